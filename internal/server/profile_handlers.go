package server

import (
	"quill/internal/forms"
	"quill/internal/middleware"
	"quill/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ProfilePage handles GET /profile
func (s *Server) ProfilePage(c *fiber.Ctx) error {
	userID, _ := middleware.CurrentUserID(c)
	form, err := s.profileService.NewProfileForm(c.UserContext(), userID)
	if err != nil {
		return err
	}
	profile, err := s.profileService.Get(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return s.render(c, fiber.StatusOK, "profile", fiber.Map{
		"form":    form,
		"profile": profile,
	})
}

// UpdateProfile handles POST /profile
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	userID, _ := middleware.CurrentUserID(c)
	ctx := c.UserContext()

	var in forms.ProfileInput
	if err := c.BodyParser(&in); err != nil {
		return s.renderError(c, fiber.StatusBadRequest)
	}
	in.Avatar = optionalFile(c, "avatar")

	form, err := s.profileService.NewProfileForm(ctx, userID)
	if err != nil {
		return err
	}
	current, err := s.profileService.Get(ctx, userID)
	if err != nil {
		return err
	}

	if _, err := s.profileService.Update(ctx, form.Bind(in)); err != nil {
		if _, ok := forms.AsErrors(err); ok {
			return s.render(c, fiber.StatusBadRequest, "profile", fiber.Map{
				"form":    form,
				"profile": current,
			})
		}
		return err
	}
	return s.redirectWithFlash(c, "/profile", "Профиль обновлён.")
}

// APIGetProfile handles GET /api/profile
// @Summary My profile
// @Description Returns the caller's profile, creating an empty one on first use
// @Tags profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Profile
// @Failure 401 {object} models.ErrorResponse
// @Router /profile [get]
func (s *Server) APIGetProfile(c *fiber.Ctx) error {
	userID, _ := middleware.CurrentUserID(c)
	profile, err := s.profileService.Get(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// APIUpdateProfile handles PUT /api/profile
// @Summary Update my profile
// @Description Updates the profile and the account's username and email together. Accepts JSON or multipart with an avatar part
// @Tags profile
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param request body forms.ProfileInput true "Profile"
// @Success 200 {object} models.Profile
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /profile [put]
func (s *Server) APIUpdateProfile(c *fiber.Ctx) error {
	userID, _ := middleware.CurrentUserID(c)
	ctx := c.UserContext()

	var in forms.ProfileInput
	if err := c.BodyParser(&in); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	in.Avatar = optionalFile(c, "avatar")

	form, err := s.profileService.NewProfileForm(ctx, userID)
	if err != nil {
		return respondError(c, err)
	}
	profile, err := s.profileService.Update(ctx, form.Bind(in))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}
