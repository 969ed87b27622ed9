package middlewares

// Gin context keys shared between middlewares and handlers.
const (
	CtxRequestID = "request_id"

	ctxUserIDKey    = "auth.userID"
	ctxEmailKey     = "auth.email"
	ctxRoleKey      = "auth.role"
	ctxNameKey      = "auth.name"
	ctxPartnerIDKey = "auth.partnerID"
)
