package middlewares_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nbclinic/portal/internal/auth"
	"github.com/nbclinic/portal/internal/cache"
	"github.com/nbclinic/portal/internal/domain/profile"
	"github.com/nbclinic/portal/internal/http/middlewares"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	claims *auth.Claims
	err    error
}

func (f *fakeVerifier) VerifyAccessToken(token string) (*auth.Claims, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.claims, nil
}

type fakeProfiles struct {
	rows  map[string]profile.Profile
	calls int
}

func claimsFor(id, email, role string) *auth.Claims {
	return &auth.Claims{
		Email:            email,
		Role:             role,
		RegisteredClaims: jwt.RegisteredClaims{Subject: id},
	}
}

func (f *fakeProfiles) Get(ctx context.Context, id string) (profile.Profile, error) {
	f.calls++
	if p, ok := f.rows[id]; ok {
		return p, nil
	}
	return profile.Profile{}, profile.ErrNotFound
}

func protectedRouter(m *middlewares.AuthMiddleware, roles ...string) *gin.Engine {
	r := gin.New()

	grp := r.Group("", m.RequireAuth())
	if len(roles) > 0 {
		grp.Use(m.RequireRole(roles...))
	}

	grp.GET("/ping", func(c *gin.Context) {
		role, _ := middlewares.RoleFromContext(c)
		partnerID, _ := middlewares.PartnerIDFromContext(c)
		c.JSON(http.StatusOK, gin.H{"role": role, "partnerId": partnerID})
	})

	return r
}

func get(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	m := middlewares.NewAuthMiddleware(&fakeVerifier{}, &fakeProfiles{}, nil, "")
	r := protectedRouter(m)

	if w := get(r, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", w.Code)
	}
}

func TestRequireAuth_BadToken(t *testing.T) {
	m := middlewares.NewAuthMiddleware(&fakeVerifier{err: errors.New("expired")}, &fakeProfiles{}, nil, "")
	r := protectedRouter(m)

	if w := get(r, "stale-token"); w.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", w.Code)
	}
}

func TestRequireAuth_ProfileRoleWinsOverClaims(t *testing.T) {
	userID := uuid.NewString()
	partnerID := uuid.NewString()

	// store-issued tokens carry the generic role; the profile row decides
	verifier := &fakeVerifier{claims: claimsFor(userID, "p@nb.com", "authenticated")}
	profiles := &fakeProfiles{rows: map[string]profile.Profile{
		userID: {ID: userID, Email: "p@nb.com", Role: profile.RolePartner, PartnerID: &partnerID},
	}}

	m := middlewares.NewAuthMiddleware(verifier, profiles, cache.New(time.Minute), "")
	r := protectedRouter(m, profile.RolePartner)

	w := get(r, "store-token")

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
	if body := w.Body.String(); !strings.Contains(body, profile.RolePartner) || !strings.Contains(body, partnerID) {
		t.Fatalf("context identity incomplete: %s", body)
	}
}

func TestRequireAuth_ProfileIsCached(t *testing.T) {
	userID := uuid.NewString()

	verifier := &fakeVerifier{claims: claimsFor(userID, "", "authenticated")}
	profiles := &fakeProfiles{rows: map[string]profile.Profile{
		userID: {ID: userID, Role: profile.RoleReception},
	}}

	m := middlewares.NewAuthMiddleware(verifier, profiles, cache.New(time.Minute), "")
	r := protectedRouter(m)

	get(r, "tok")
	get(r, "tok")

	if profiles.calls != 1 {
		t.Fatalf("profile lookups = %d, want 1", profiles.calls)
	}
}

func TestRequireAuth_NoProfileNoFallback(t *testing.T) {
	verifier := &fakeVerifier{claims: claimsFor(uuid.NewString(), "", "authenticated")}

	m := middlewares.NewAuthMiddleware(verifier, &fakeProfiles{}, nil, "")
	r := protectedRouter(m)

	if w := get(r, "tok"); w.Code != http.StatusForbidden {
		t.Fatalf("got status %d, want 403", w.Code)
	}
}

func TestRequireAuth_FallbackRole(t *testing.T) {
	verifier := &fakeVerifier{claims: claimsFor(uuid.NewString(), "", "authenticated")}

	m := middlewares.NewAuthMiddleware(verifier, &fakeProfiles{}, nil, profile.RoleReception)
	r := protectedRouter(m, profile.RoleReception)

	if w := get(r, "tok"); w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		allowed    []string
		wantStatus int
	}{
		{"exact_match", profile.RoleReception, []string{profile.RoleReception}, http.StatusOK},
		{"admin_passes_every_gate", profile.RoleAdmin, []string{profile.RoleCheckup}, http.StatusOK},
		{"wrong_role", profile.RolePartner, []string{profile.RoleReception}, http.StatusForbidden},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			userID := uuid.NewString()

			verifier := &fakeVerifier{claims: claimsFor(userID, "", tt.role)}

			m := middlewares.NewAuthMiddleware(verifier, &fakeProfiles{}, nil, "")
			r := protectedRouter(m, tt.allowed...)

			if w := get(r, "tok"); w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}
