package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier map[string]uint

func (s stubVerifier) VerifyToken(_ context.Context, token string) (uint, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return 0, errors.New("bad token")
}

func newAuthApp(mw fiber.Handler) *fiber.App {
	app := fiber.New()
	handler := func(c *fiber.Ctx) error {
		id, ok := CurrentUserID(c)
		if !ok {
			return c.SendString("anonymous")
		}
		return c.JSON(fiber.Map{"user": id})
	}
	app.Get("/api/me", mw, handler)
	app.Get("/profile", mw, handler)
	return app
}

func TestAuthRequired(t *testing.T) {
	app := newAuthApp(AuthRequired(stubVerifier{"good": 7}))

	tests := []struct {
		name     string
		path     string
		header   string
		cookie   string
		accept   string
		status   int
		location string
	}{
		{name: "bearer token", path: "/api/me", header: "Bearer good", status: http.StatusOK},
		{name: "cookie token", path: "/profile", cookie: "good", accept: "text/html", status: http.StatusOK},
		{name: "api missing token", path: "/api/me", status: http.StatusUnauthorized},
		{name: "api malformed header", path: "/api/me", header: "Token good", status: http.StatusUnauthorized},
		{name: "api bad token", path: "/api/me", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "page redirects to login", path: "/profile", accept: "text/html", status: http.StatusSeeOther, location: "/login?next=/profile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: TokenCookie, Value: tt.cookie})
			}
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.location != "" {
				assert.Equal(t, tt.location, resp.Header.Get("Location"))
			}
		})
	}
}

func TestAuthOptional(t *testing.T) {
	app := newAuthApp(AuthOptional(stubVerifier{"good": 7}))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer nope")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}
