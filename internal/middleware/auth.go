package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// TokenCookie is the cookie carrying the session JWT for HTML pages.
const TokenCookie = "quill_token"

// TokenVerifier validates a raw token and returns the user it was issued to.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (uint, error)
}

// ExtractToken returns the bearer token from the Authorization header or,
// failing that, the session cookie.
func ExtractToken(c *fiber.Ctx) string {
	if authHeader := c.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return c.Cookies(TokenCookie)
}

// wantsHTML reports whether the request came from a browser page rather than
// the JSON API.
func wantsHTML(c *fiber.Ctx) bool {
	if strings.HasPrefix(c.Path(), "/api/") {
		return false
	}
	return strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMETextHTML) ||
		c.Get(fiber.HeaderAccept) == ""
}

// AuthRequired enforces authentication. Browsers are redirected to /login,
// API clients get 401.
func AuthRequired(v TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := ExtractToken(c)
		if token == "" {
			return unauthorized(c, "Authorization required")
		}
		userID, err := v.VerifyToken(c.UserContext(), token)
		if err != nil {
			return unauthorized(c, "Invalid or expired token")
		}
		setUser(c, userID)
		return c.Next()
	}
}

// AuthOptional resolves the user when a valid token is present and lets
// anonymous requests through otherwise.
func AuthOptional(v TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token := ExtractToken(c); token != "" {
			if userID, err := v.VerifyToken(c.UserContext(), token); err == nil {
				setUser(c, userID)
			}
		}
		return c.Next()
	}
}

// setUser stores the user id in locals and in the user context so the
// context-aware logger picks it up.
func setUser(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, userID))
}

// CurrentUserID returns the authenticated user id, if any.
func CurrentUserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals("userID").(uint)
	return id, ok && id != 0
}

func unauthorized(c *fiber.Ctx, msg string) error {
	if wantsHTML(c) {
		return c.Redirect("/login?next="+c.OriginalURL(), fiber.StatusSeeOther)
	}
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": msg,
		"code":  "UNAUTHORIZED",
	})
}
