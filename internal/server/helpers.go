package server

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"quill/internal/middleware"
	"quill/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// flashCookie carries a one-shot message across a redirect.
const flashCookie = "quill_flash"

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	maxPaginationLimit = 100
)

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

// parsePage reads the 1-based ?page= parameter of HTML lists.
func parsePage(c *fiber.Ctx) int {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	return page
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		if isAPI(c) {
			_ = models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid "+humanizeParam(param)))
		} else {
			_ = s.renderError(c, fiber.StatusNotFound)
		}
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "postId" -> "post ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		return strings.ToLower(param[:len(param)-2]) + " ID"
	}
	return param
}

// isAPI reports whether the request targets the JSON API.
func isAPI(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Path(), "/api/")
}

// respondError writes err as JSON with the status its code maps to.
// Internal errors never leak their cause.
func respondError(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed", "path", c.Path(), "error", err)
		var appErr *models.AppError
		if !errors.As(err, &appErr) || appErr.Code != models.CodeInternal {
			err = models.NewInternalError(err)
		}
	}
	return models.RespondWithError(c, status, err)
}

// render executes an HTML page. The signed-in user and any pending flash
// message are added to data.
func (s *Server) render(c *fiber.Ctx, status int, name string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	if _, ok := data["current_user"]; !ok {
		if user := s.currentUser(c); user != nil {
			data["current_user"] = user
		}
	}
	if msg := s.popFlash(c); msg != "" {
		data["flash"] = msg
	}
	return c.Status(status).Render(name, data)
}

// renderError shows the error page for status.
func (s *Server) renderError(c *fiber.Ctx, status int) error {
	message := statusMessage(status)
	return s.render(c, status, "error", fiber.Map{
		"status":  status,
		"message": message,
	})
}

func statusMessage(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "Страница не найдена."
	case fiber.StatusBadRequest:
		return "Некорректный запрос."
	case fiber.StatusRequestEntityTooLarge:
		return "Файл слишком большой."
	case fiber.StatusTooManyRequests:
		return "Слишком много запросов, попробуйте позже."
	}
	if status >= fiber.StatusInternalServerError {
		return "Что-то пошло не так. Попробуйте ещё раз."
	}
	return fiber.ErrBadRequest.Message
}

// currentUser loads the account of the authenticated request, or nil.
func (s *Server) currentUser(c *fiber.Ctx) *models.User {
	if cached, ok := c.Locals("currentUser").(*models.User); ok {
		return cached
	}
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return nil
	}
	user, err := s.authService.CurrentUser(c.UserContext(), userID)
	if err != nil {
		middleware.Logger.DebugContext(c.UserContext(), "current user lookup failed", "user_id", userID, "error", err)
		return nil
	}
	c.Locals("currentUser", user)
	return user
}

func (s *Server) secureCookies() bool {
	return s.config != nil && (s.config.Env == "production" || s.config.Env == "prod")
}

// setSessionCookie stores token for HTML pages.
func (s *Server) setSessionCookie(c *fiber.Ctx, token string, ttl time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		HTTPOnly: true,
		Secure:   s.secureCookies(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   s.secureCookies(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (s *Server) setFlash(c *fiber.Ctx, msg string) {
	c.Cookie(&fiber.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(msg),
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (s *Server) popFlash(c *fiber.Ctx) string {
	raw := c.Cookies(flashCookie)
	if raw == "" {
		return ""
	}
	c.ClearCookie(flashCookie)
	msg, err := url.QueryUnescape(raw)
	if err != nil {
		return ""
	}
	return msg
}

// redirectWithFlash sends the browser to location after a successful POST.
func (s *Server) redirectWithFlash(c *fiber.Ctx, location, msg string) error {
	if msg != "" {
		s.setFlash(c, msg)
	}
	return c.Redirect(location, fiber.StatusSeeOther)
}

// safeNext returns next when it is a local path, otherwise fallback.
func safeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") ||
		strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return fallback
	}
	return next
}
