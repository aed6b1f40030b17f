package server

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func TestServer_AuthRequired(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")
	user, _ := env.createUser(t, "gleb")

	generateToken := func(userID uint, issuer, audience string, exp time.Duration, secret string) string {
		claims := jwt.MapClaims{
			"sub": strconv.FormatUint(uint64(userID), 10),
			"iss": issuer,
			"aud": audience,
			"exp": time.Now().Add(exp).Unix(),
			"jti": "test-jti-valid-length",
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		str, _ := token.SignedString([]byte(secret))
		return str
	}

	tests := []struct {
		name           string
		token          string
		expectedStatus int
	}{
		{
			name:           "Valid Token",
			token:          generateToken(user.ID, service.TokenIssuer, service.TokenAudience, time.Hour, testJWTSecret),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Missing Token",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Expired Token",
			token:          generateToken(user.ID, service.TokenIssuer, service.TokenAudience, -time.Hour, testJWTSecret),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Wrong Issuer",
			token:          generateToken(user.ID, "someone-else", service.TokenAudience, time.Hour, testJWTSecret),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Wrong Audience",
			token:          generateToken(user.ID, service.TokenIssuer, "other-client", time.Hour, testJWTSecret),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Wrong Secret",
			token:          generateToken(user.ID, service.TokenIssuer, service.TokenAudience, time.Hour, "another-secret-another-secret-another"),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := jsonRequest(t, http.MethodGet, "/api/profile", nil)
			if tt.token != "" {
				req = withBearer(req, tt.token)
			}
			resp := env.do(t, req)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestServer_AuthRequiredRedirectsBrowsers(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")

	resp := env.do(t, pageRequest("/posts/new"))
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?next=/posts/new", resp.Header.Get(fiber.HeaderLocation))
}

func TestServer_AuthOptionalIgnoresBadCookie(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")

	resp := env.do(t, withCookie(pageRequest("/"), "garbage"))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `href="/login"`)
}
