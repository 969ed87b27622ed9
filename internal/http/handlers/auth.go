package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nbclinic/portal/internal/auth"
	"github.com/nbclinic/portal/internal/config"
	"github.com/nbclinic/portal/internal/http/middlewares"
)

type AuthHandler struct {
	session     *auth.Context
	provisioner *auth.Provisioner
}

func NewAuthHandler(session *auth.Context, provisioner *auth.Provisioner) *AuthHandler {
	return &AuthHandler{session: session, provisioner: provisioner}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RecoverRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type BootstrapRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required,min=2,max=120"`
}

// Login runs the full credential strategy chain. Validation happens in
// the verifier, not the binding tags, so its Portuguese messages reach
// the form unchanged.
func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	res, err := h.session.SignIn(cctx, req.Email, req.Password)
	if err != nil {
		h.respondAuthError(ctx, err)
		return
	}

	body := gin.H{
		"user":        res.User,
		"accessToken": res.AccessToken,
	}
	if res.RefreshToken != "" {
		body["refreshToken"] = res.RefreshToken
	}

	ctx.JSON(http.StatusOK, body)
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	h.session.SignOut(cctx)
	ctx.Status(http.StatusNoContent)
}

func (h *AuthHandler) Recover(ctx *gin.Context) {
	var req RecoverRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	if err := h.session.ResetPassword(cctx, req.Email); err != nil {
		h.respondAuthError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Email de recuperação enviado",
	})
}

// Bootstrap provisions the first administrator. Open by design: it is a
// no-op once any admin exists, so exposing it does not allow takeover.
func (h *AuthHandler) Bootstrap(ctx *gin.Context) {
	var req BootstrapRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := h.provisioner.CreateFirstAdmin(cctx, req.Email, req.Password, req.Name); err != nil {
		switch {
		case errors.Is(err, auth.ErrProvisionMissing),
			errors.Is(err, auth.ErrInvalidEmail),
			errors.Is(err, auth.ErrProvisionPassword):
			RespondBadRequest(ctx, err.Error(), nil)
		default:
			RespondInternal(ctx, auth.ErrProvisionFailed.Error())
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Administrador inicial disponível",
	})
}

// Me answers from the verified token context set by the auth middleware.
func (h *AuthHandler) Me(ctx *gin.Context) {
	id, _ := middlewares.UserIDFromContext(ctx)
	email, _ := middlewares.EmailFromContext(ctx)
	role, _ := middlewares.RoleFromContext(ctx)
	name, _ := middlewares.NameFromContext(ctx)

	body := gin.H{
		"id":    id,
		"email": email,
		"role":  role,
		"name":  name,
	}
	if partnerID, ok := middlewares.PartnerIDFromContext(ctx); ok {
		body["partnerId"] = partnerID
	}

	ctx.JSON(http.StatusOK, body)
}

func (h *AuthHandler) respondAuthError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidLogin),
		errors.Is(err, auth.ErrEmailNotConfirmed):
		RespondUnAuthorized(ctx, "invalid_credentials", err.Error())
	case errors.Is(err, auth.ErrTooManyRequests):
		RespondError(ctx, http.StatusTooManyRequests, "rate_limited", err.Error(), nil)
	case errors.Is(err, auth.ErrMissingFields),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrShortPassword):
		RespondBadRequest(ctx, err.Error(), nil)
	case errors.Is(err, auth.ErrProfileUnavailable):
		RespondError(ctx, http.StatusConflict, "profile_unavailable", err.Error(), nil)
	case errors.Is(err, auth.ErrNotConfigured):
		RespondError(ctx, http.StatusServiceUnavailable, "not_configured", err.Error(), nil)
	case errors.Is(err, auth.ErrResetFailed):
		RespondError(ctx, http.StatusBadGateway, "recover_failed", err.Error(), nil)
	default:
		RespondInternal(ctx, auth.ErrInternal.Error())
	}
}
