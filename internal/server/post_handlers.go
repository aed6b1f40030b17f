package server

import (
	"mime/multipart"
	"strconv"

	"quill/internal/forms"
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

// PostListResponse is a page of posts.
type PostListResponse struct {
	Posts  []*models.Post `json:"posts"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// optionalFile returns the uploaded file under name, or nil when the field
// is missing or empty.
func optionalFile(c *fiber.Ctx, name string) *multipart.FileHeader {
	fh, err := c.FormFile(name)
	if err != nil || fh == nil || (fh.Size == 0 && fh.Filename == "") {
		return nil
	}
	return fh
}

// Index handles GET /
func (s *Server) Index(c *fiber.Ctx) error {
	page := parsePage(c)
	limit := service.DefaultPageSize
	offset := (page - 1) * limit

	posts, err := s.postService.List(c.UserContext(), limit, offset)
	if err != nil {
		return err
	}
	total, err := s.postService.Count(c.UserContext())
	if err != nil {
		return err
	}

	data := fiber.Map{"posts": posts}
	if page > 1 {
		data["prev_page"] = page - 1
	}
	if int64(offset+limit) < total {
		data["next_page"] = page + 1
	}
	return s.render(c, fiber.StatusOK, "index", data)
}

// NewPostPage handles GET /posts/new
func (s *Server) NewPostPage(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "post_form", fiber.Map{
		"form": s.postService.NewPostForm(forms.PostInput{}),
	})
}

// CreatePost handles POST /posts/new
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID, _ := middleware.CurrentUserID(c)

	var in forms.PostInput
	if err := c.BodyParser(&in); err != nil {
		return s.renderError(c, fiber.StatusBadRequest)
	}
	in.Image = optionalFile(c, "image")

	form := s.postService.NewPostForm(in)
	post, err := s.postService.Create(c.UserContext(), form, userID)
	if err != nil {
		if _, ok := forms.AsErrors(err); ok {
			return s.render(c, fiber.StatusBadRequest, "post_form", fiber.Map{"form": form})
		}
		return err
	}
	return s.redirectWithFlash(c, "/posts/"+strconv.FormatUint(uint64(post.ID), 10), "Пост опубликован.")
}

// PostDetail handles GET /posts/:id
func (s *Server) PostDetail(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, _ := middleware.CurrentUserID(c)
	form := s.commentService.NewCommentForm(forms.CommentInput{}, postID, userID)
	return s.renderPostDetail(c, fiber.StatusOK, postID, form)
}

// renderPostDetail shows a post with its comment tree and form.
func (s *Server) renderPostDetail(c *fiber.Ctx, status int, postID uint, form *forms.CommentForm) error {
	ctx := c.UserContext()
	post, err := s.postService.Get(ctx, postID)
	if err != nil {
		return err
	}
	tree, err := s.commentService.Tree(ctx, postID)
	if err != nil {
		return err
	}
	userID, _ := middleware.CurrentUserID(c)

	return s.render(c, status, "post_detail", fiber.Map{
		"post":     post,
		"comments": service.Flatten(tree),
		"form":     form,
		"threaded": s.commentService.Threaded(userID),
	})
}

// APIListPosts handles GET /api/posts
// @Summary List posts
// @Description Newest posts first
// @Tags posts
// @Produce json
// @Param limit query int false "Page size" default(10)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} PostListResponse
// @Router /posts [get]
func (s *Server) APIListPosts(c *fiber.Ctx) error {
	page := parsePagination(c, service.DefaultPageSize)
	ctx := c.UserContext()

	posts, err := s.postService.List(ctx, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	total, err := s.postService.Count(ctx)
	if err != nil {
		return respondError(c, err)
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return c.JSON(PostListResponse{Posts: posts, Total: total, Limit: page.Limit, Offset: page.Offset})
}

// APIGetPost handles GET /api/posts/:id
// @Summary Get post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) APIGetPost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.Get(c.UserContext(), postID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// APICreatePost handles POST /api/posts
// @Summary Create post
// @Description Accepts JSON or multipart form data; the image part is optional
// @Tags posts
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param request body forms.PostInput true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) APICreatePost(c *fiber.Ctx) error {
	userID, _ := middleware.CurrentUserID(c)

	var in forms.PostInput
	if err := c.BodyParser(&in); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	in.Image = optionalFile(c, "image")

	post, err := s.postService.Create(c.UserContext(), s.postService.NewPostForm(in), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}
