package server

import (
	"errors"
	"strconv"

	"quill/internal/forms"
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CommentTreeResponse is the reply tree of one post.
type CommentTreeResponse struct {
	PostID   uint                   `json:"post_id"`
	Threaded bool                   `json:"threaded"`
	Comments []*service.CommentNode `json:"comments"`
}

// CreateComment handles POST /posts/:id/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, _ := middleware.CurrentUserID(c)

	var in forms.CommentInput
	if err := c.BodyParser(&in); err != nil {
		return s.renderError(c, fiber.StatusBadRequest)
	}

	form := s.commentService.NewCommentForm(in, postID, userID)
	comment, err := s.commentService.Create(c.UserContext(), form, userID)
	if err != nil {
		if _, ok := forms.AsErrors(err); ok {
			return s.renderPostDetail(c, fiber.StatusBadRequest, postID, form)
		}
		return err
	}

	location := "/posts/" + strconv.FormatUint(uint64(postID), 10) +
		"#comment-" + strconv.FormatUint(uint64(comment.ID), 10)
	return s.redirectWithFlash(c, location, "")
}

// APIListComments handles GET /api/posts/:id/comments
// @Summary Comment tree
// @Description Comments of a post nested under their parents
// @Tags comments
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} CommentTreeResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [get]
func (s *Server) APIListComments(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	tree, err := s.commentService.Tree(c.UserContext(), postID)
	if err != nil {
		return respondError(c, err)
	}
	if tree == nil {
		tree = []*service.CommentNode{}
	}
	userID, _ := middleware.CurrentUserID(c)
	return c.JSON(CommentTreeResponse{
		PostID:   postID,
		Threaded: s.commentService.Threaded(userID),
		Comments: tree,
	})
}

// APICreateComment handles POST /api/posts/:id/comments
// @Summary Add comment
// @Description parent_id is optional; a parent outside the post makes a top-level comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body forms.CommentInput true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [post]
func (s *Server) APICreateComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, _ := middleware.CurrentUserID(c)

	var in forms.CommentInput
	if err := c.BodyParser(&in); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	comment, err := s.commentService.Create(c.UserContext(), s.commentService.NewCommentForm(in, postID, userID), userID)
	if err != nil {
		if errors.Is(err, forms.ErrPostIDRequired) {
			return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(err.Error()))
		}
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}
