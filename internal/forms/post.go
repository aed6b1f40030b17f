package forms

import (
	"context"
	"fmt"
	"mime/multipart"

	"quill/internal/models"
)

// MaxTitleLength matches the posts.title column.
const MaxTitleLength = 200

// PostCreator persists posts.
type PostCreator interface {
	Create(ctx context.Context, post *models.Post) error
}

// PostInput is the raw post submission. Image is optional.
type PostInput struct {
	Title   string                `form:"title" json:"title"`
	Content string                `form:"content" json:"content"`
	Image   *multipart.FileHeader `form:"-" json:"-"`
}

// PostForm creates posts.
type PostForm struct {
	input  PostInput
	store  PostCreator
	errors Errors
}

// NewPostForm binds in to a post form. store is only used by Save with commit.
func NewPostForm(in PostInput, store PostCreator) *PostForm {
	return &PostForm{input: in, store: store, errors: Errors{}}
}

// Validate checks presence and length of the text fields.
func (f *PostForm) Validate() error {
	f.errors = Errors{}
	f.input.Title = cleanText(f.input.Title)
	f.input.Content = cleanText(f.input.Content)

	if checkRequired(f.errors, "title", f.input.Title) {
		checkMaxLength(f.errors, "title", f.input.Title, MaxTitleLength)
	}
	checkRequired(f.errors, "content", f.input.Content)

	if f.errors.Any() {
		return f.errors
	}
	return nil
}

// Errors returns the messages from the last Validate.
func (f *PostForm) Errors() Errors {
	return f.errors
}

// Image returns the uploaded image, or nil.
func (f *PostForm) Image() *multipart.FileHeader {
	return f.input.Image
}

// Save validates and builds the post. The caller sets the author and image
// before committing, so most callers pass commit=false.
func (f *PostForm) Save(ctx context.Context, commit bool) (*models.Post, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	post := &models.Post{
		Title:   f.input.Title,
		Content: f.input.Content,
	}
	if !commit {
		return post, nil
	}
	if f.store == nil {
		return nil, fmt.Errorf("post form: no store to commit to")
	}
	if err := f.store.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Fields describes the post form.
func (f *PostForm) Fields() []Field {
	var image string
	if f.input.Image != nil {
		image = f.input.Image.Filename
	}
	return withErrors([]Field{
		{Name: "title", Label: "Заголовок", Widget: WidgetText, Attrs: map[string]string{"class": ClassControl}, Required: true, MaxLength: MaxTitleLength, Value: f.input.Title},
		{Name: "content", Label: "Содержание", Widget: WidgetTextarea, Attrs: map[string]string{"class": ClassControl, "rows": "5"}, Required: true, Value: f.input.Content},
		{Name: "image", Label: "Изображение (опционально)", Widget: WidgetFile, Attrs: map[string]string{"class": ClassControlFile}, Value: image},
	}, f.errors)
}
