package v1

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"taskboard/internal/models"
	"taskboard/internal/services"
)

func newAuthTestRouter(tokens services.TokenService) (*gin.Engine, *map[string]string) {
	gin.SetMode(gin.TestMode)
	h := New(zerolog.Nop(), &mockAuthService{}, tokens, &mockTaskService{}, nil)

	seen := make(map[string]string)
	router := gin.New()
	router.GET("/protected", h.HandleAuthMiddleware, func(c *gin.Context) {
		seen[userIDCtxKey], _ = getStringFromContext(c, userIDCtxKey)
		seen[usernameCtxKey], _ = getStringFromContext(c, usernameCtxKey)
		seen[userRoleCtxKey], _ = getStringFromContext(c, userRoleCtxKey)
		c.Status(http.StatusOK)
	})
	return router, &seen
}

func newTestTokenService(ttl time.Duration) services.TokenService {
	return services.NewTokenService("taskboard", "taskboard-clients", []byte("test-key"), ttl)
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	tokens := newTestTokenService(time.Hour)
	router, seen := newAuthTestRouter(tokens)

	token, _, err := tokens.Issue(&models.User{ID: "42", Username: "alice", Role: models.RoleUser})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if (*seen)[userIDCtxKey] != "42" || (*seen)[usernameCtxKey] != "alice" || (*seen)[userRoleCtxKey] != models.RoleUser {
		t.Fatalf("identity not propagated: %+v", *seen)
	}
}

func TestAuthMiddlewareRejects(t *testing.T) {
	tokens := newTestTokenService(time.Hour)
	expired := newTestTokenService(-time.Minute)

	expiredToken, _, err := expired.Issue(&models.User{ID: "42", Username: "alice"})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	cases := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "garbage token", header: "Bearer garbage"},
		{name: "expired token", header: "Bearer " + expiredToken},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router, _ := newAuthTestRouter(tokens)
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}
