package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nbclinic/portal/internal/auth"
	"github.com/nbclinic/portal/internal/cache"
	"github.com/nbclinic/portal/internal/domain/profile"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

// ProfileLookup resolves the portal role for store-issued tokens, whose
// role claim is the store's generic "authenticated".
type ProfileLookup interface {
	Get(ctx context.Context, id string) (profile.Profile, error)
}

type AuthMiddleware struct {
	jwt          TokenVerifier
	profiles     ProfileLookup
	cache        *cache.Cache
	fallbackRole string
}

func NewAuthMiddleware(jwt TokenVerifier, profiles ProfileLookup, c *cache.Cache, fallbackRole string) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt, profiles: profiles, cache: c, fallbackRole: fallbackRole}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Cabeçalho de autorização ausente ou inválido",
				},
			})
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Token de acesso ausente",
				},
			})
			return
		}

		claims, err := m.jwt.VerifyAccessToken(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Token de acesso inválido ou expirado",
				},
			})
			return
		}

		role := claims.Role
		email := claims.Email
		name := ""
		var partnerID *string

		// The profile row is authoritative when present; store-issued
		// tokens carry the generic "authenticated" role and need it.
		if p, ok := m.resolveProfile(c.Request.Context(), claims.Subject); ok {
			role = p.Role
			email = p.Email
			name = p.Name
			partnerID = p.PartnerID
		} else if !profile.ValidRole(role) {
			if m.fallbackRole == "" {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error": gin.H{
						"code":    "profile_unavailable",
						"message": "Perfil do usuário ainda não disponível. Tente novamente em instantes.",
					},
				})
				return
			}
			role = m.fallbackRole
		}

		SetIdentity(c, claims.Subject, email, role, name, partnerID)

		c.Next()
	}
}

// SetIdentity installs the resolved identity on the request context.
func SetIdentity(c *gin.Context, id, email, role, name string, partnerID *string) {
	c.Set(ctxUserIDKey, id)
	c.Set(ctxEmailKey, email)
	c.Set(ctxRoleKey, role)
	c.Set(ctxNameKey, name)
	if partnerID != nil {
		c.Set(ctxPartnerIDKey, *partnerID)
	}
}

func (m *AuthMiddleware) resolveProfile(ctx context.Context, id string) (profile.Profile, bool) {
	key := "profile:" + id

	if m.cache != nil {
		if v, ok := m.cache.Get(key); ok {
			p, ok := v.(profile.Profile)
			if ok {
				return p, true
			}
		}
	}

	p, err := m.profiles.Get(ctx, id)
	if err != nil {
		// absent row and lookup failure both mean "no authoritative role"
		return profile.Profile{}, false
	}

	if m.cache != nil {
		m.cache.Set(key, p)
	}
	return p, true
}

// Helpers so handlers don't need to know the magic keys.

func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

func RoleFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxRoleKey)
	if !ok {
		return "", false
	}
	role, ok := v.(string)
	return role, ok
}

func EmailFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxEmailKey)
	if !ok {
		return "", false
	}
	email, ok := v.(string)
	return email, ok
}

func NameFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxNameKey)
	if !ok {
		return "", false
	}
	name, ok := v.(string)
	return name, ok
}

// PartnerIDFromContext is set only for partner-linked profiles.
func PartnerIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxPartnerIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}
