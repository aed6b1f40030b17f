package server

import (
	"strings"

	"quill/internal/models"

	"github.com/gofiber/fiber/v2"
)

// imageCacheControl lets browsers keep content-addressed files forever.
const imageCacheControl = "public, max-age=31536000, immutable"

// ServeImage handles GET /media/i/:hash/:file
func (s *Server) ServeImage(c *fiber.Ctx) error {
	hash := strings.TrimSpace(c.Params("hash"))
	file := strings.TrimSpace(c.Params("file"))

	img, path, err := s.imageService.ResolveForServing(c.UserContext(), hash, file)
	if err != nil {
		if models.StatusFor(err) < fiber.StatusInternalServerError {
			return c.SendStatus(fiber.StatusNotFound)
		}
		return err
	}
	s.imageService.UpdateLastAccessed(c.UserContext(), img.ID)

	if err := c.SendFile(path); err != nil {
		return err
	}
	c.Set(fiber.HeaderCacheControl, imageCacheControl)
	return nil
}
