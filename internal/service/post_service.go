package service

import (
	"context"
	"errors"

	"quill/internal/cache"
	"quill/internal/featureflags"
	"quill/internal/forms"
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type PostService struct {
	posts  repository.PostRepository
	images *ImageService
	flags  *featureflags.Manager
}

func NewPostService(posts repository.PostRepository, images *ImageService, flags *featureflags.Manager) *PostService {
	return &PostService{posts: posts, images: images, flags: flags}
}

// NewPostForm binds in to a post form.
func (s *PostService) NewPostForm(in forms.PostInput) *forms.PostForm {
	return forms.NewPostForm(in, s.posts)
}

// Create validates the form, stores the optional image and persists the post
// for authorID. Image problems are reported as errors on the image field.
func (s *PostService) Create(ctx context.Context, form *forms.PostForm, authorID uint) (post *models.Post, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "CreatePost",
		attribute.Int64("post.author_id", int64(authorID)))
	defer func() { observability.EndSpan(span, err) }()

	if authorID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}

	post, err = form.Save(ctx, false)
	if err != nil {
		if isFormError(err) {
			observability.RecordForm("post", false)
		}
		return nil, err
	}
	post.UserID = authorID

	if fh := form.Image(); fh != nil {
		if !s.flags.Enabled(featureflags.PostImages, authorID) {
			middleware.Logger.DebugContext(ctx, "post images disabled, ignoring upload", "user_id", authorID)
		} else {
			if s.images == nil {
				return nil, models.NewInternalError(errors.New("image service not configured"))
			}
			img, upErr := s.images.UploadFile(ctx, authorID, fh, false)
			if upErr != nil {
				return nil, imageFieldError(form.Errors(), "image", upErr)
			}
			post.ImageHash = img.Hash
			post.ImageURL = s.images.BuildImageURL(img.Hash, MasterJPEG)
		}
	}
	observability.RecordForm("post", true)

	if err = s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Get returns one post with its author and comment count.
func (s *PostService) Get(ctx context.Context, id uint) (*models.Post, error) {
	post, err := cache.Aside(ctx, cache.PostKey(id), cache.PostTTL, func(ctx context.Context) (*models.Post, error) {
		return s.posts.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// List returns posts newest first. The first default-sized page is cached.
func (s *PostService) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	limit, offset = normalizePage(limit, offset)
	if limit == DefaultPageSize && offset == 0 {
		return cache.Aside(ctx, cache.PostListKey, cache.PostListTTL, func(ctx context.Context) ([]*models.Post, error) {
			return s.posts.List(ctx, limit, offset)
		})
	}
	return s.posts.List(ctx, limit, offset)
}

// Count returns the number of visible posts.
func (s *PostService) Count(ctx context.Context) (int64, error) {
	return s.posts.Count(ctx)
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// imageFieldError turns a validation failure from the image pipeline into a
// field error on the form. Other errors pass through.
func imageFieldError(errs forms.Errors, field string, err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Code == models.CodeValidation {
		errs.Add(field, appErr.Message)
		return errs
	}
	return err
}
