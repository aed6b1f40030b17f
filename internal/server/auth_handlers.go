package server

import (
	"quill/internal/forms"
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

// AuthResponse is returned by the API after registration or login.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// RegisterPage handles GET /register
func (s *Server) RegisterPage(c *fiber.Ctx) error {
	if _, ok := middleware.CurrentUserID(c); ok {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	return s.render(c, fiber.StatusOK, "register", fiber.Map{
		"form": s.authService.NewRegisterForm(forms.RegisterInput{}),
	})
}

// Register handles POST /register
func (s *Server) Register(c *fiber.Ctx) error {
	var in forms.RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return s.renderError(c, fiber.StatusBadRequest)
	}

	form := s.authService.NewRegisterForm(in)
	_, token, err := s.authService.Register(c.UserContext(), form)
	if err != nil {
		if _, ok := forms.AsErrors(err); ok {
			return s.render(c, fiber.StatusBadRequest, "register", fiber.Map{"form": form})
		}
		return err
	}

	s.setSessionCookie(c, token, service.TokenTTL)
	return s.redirectWithFlash(c, "/", "Регистрация прошла успешно.")
}

// LoginPage handles GET /login
func (s *Server) LoginPage(c *fiber.Ctx) error {
	next := safeNext(c.Query("next"), "")
	if _, ok := middleware.CurrentUserID(c); ok {
		return c.Redirect(safeNext(next, "/"), fiber.StatusSeeOther)
	}
	return s.render(c, fiber.StatusOK, "login", fiber.Map{
		"form": forms.NewUserLoginForm(forms.LoginInput{}),
		"next": next,
	})
}

// Login handles POST /login
func (s *Server) Login(c *fiber.Ctx) error {
	var in forms.LoginInput
	if err := c.BodyParser(&in); err != nil {
		return s.renderError(c, fiber.StatusBadRequest)
	}
	next := safeNext(c.Query("next"), "")

	form := forms.NewUserLoginForm(in)
	_, token, err := s.authService.Login(c.UserContext(), form)
	if err != nil {
		status := models.StatusFor(err)
		if status == fiber.StatusBadRequest || status == fiber.StatusUnauthorized {
			// The failed attempt is shown on the form, not as a 401 page.
			return s.render(c, fiber.StatusBadRequest, "login", fiber.Map{
				"form": form,
				"next": next,
			})
		}
		return err
	}

	s.setSessionCookie(c, token, service.TokenTTL)
	return c.Redirect(safeNext(next, "/"), fiber.StatusSeeOther)
}

// Logout handles POST /logout
func (s *Server) Logout(c *fiber.Ctx) error {
	if token := middleware.ExtractToken(c); token != "" {
		if err := s.authService.Logout(c.UserContext(), token); err != nil {
			middleware.Logger.DebugContext(c.UserContext(), "logout with unusable token", "error", err)
		}
	}
	s.clearSessionCookie(c)
	return c.Redirect("/", fiber.StatusSeeOther)
}

// APIRegister handles POST /api/auth/register
// @Summary Register
// @Description Create an account and receive a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body forms.RegisterInput true "Registration"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/register [post]
func (s *Server) APIRegister(c *fiber.Ctx) error {
	var in forms.RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, token, err := s.authService.Register(c.UserContext(), s.authService.NewRegisterForm(in))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(AuthResponse{Token: token, User: user})
}

// APILogin handles POST /api/auth/login
// @Summary Login
// @Description Exchange username and password for a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body forms.LoginInput true "Credentials"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) APILogin(c *fiber.Ctx) error {
	var in forms.LoginInput
	if err := c.BodyParser(&in); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, token, err := s.authService.Login(c.UserContext(), forms.NewUserLoginForm(in))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(AuthResponse{Token: token, User: user})
}

// APILogout handles POST /api/auth/logout
// @Summary Logout
// @Description Revoke the presented token
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/logout [post]
func (s *Server) APILogout(c *fiber.Ctx) error {
	if err := s.authService.Logout(c.UserContext(), middleware.ExtractToken(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
