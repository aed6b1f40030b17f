package forms

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"quill/internal/middleware"
	"quill/internal/models"
)

// CommentStore resolves parents and persists comments.
type CommentStore interface {
	// GetByIDForPost returns the comment with id only if it belongs to postID.
	GetByIDForPost(ctx context.Context, id, postID uint) (*models.Comment, error)
	Create(ctx context.Context, comment *models.Comment) error
}

// CommentInput is the raw comment submission. ParentID comes from a hidden
// input and may be empty.
type CommentInput struct {
	Content  string      `form:"content" json:"content"`
	ParentID OptionalInt `form:"parent_id" json:"parent_id" swaggertype:"integer"`
}

// OptionalInt is an optional integer kept in its submitted text form. JSON
// accepts a number, a string or null.
type OptionalInt string

// UnmarshalJSON implements json.Unmarshaler.
func (v *OptionalInt) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = OptionalInt(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*v = OptionalInt(n.String())
	return nil
}

// CommentForm creates comments on one post. The post id is supplied out of
// band, not through the submitted fields.
type CommentForm struct {
	input    CommentInput
	postID   uint
	parentID int64
	store    CommentStore
	errors   Errors
}

// NewCommentForm binds in to a comment form for postID. A zero postID means
// none was provided and Save will fail with ErrPostIDRequired.
func NewCommentForm(in CommentInput, postID uint, store CommentStore) *CommentForm {
	return &CommentForm{input: in, postID: postID, store: store, errors: Errors{}}
}

// PostID returns the out-of-band post id.
func (f *CommentForm) PostID() uint {
	return f.postID
}

// RequestedParent returns the parent id parsed by the last Validate, or 0.
func (f *CommentForm) RequestedParent() int64 {
	return f.parentID
}

// Validate checks the content and that parent_id, when present, is an
// integer.
func (f *CommentForm) Validate() error {
	f.errors = Errors{}
	f.parentID = 0
	f.input.Content = cleanText(f.input.Content)
	f.input.ParentID = OptionalInt(strings.TrimSpace(string(f.input.ParentID)))

	checkRequired(f.errors, "content", f.input.Content)
	if f.input.ParentID != "" {
		id, err := strconv.ParseInt(string(f.input.ParentID), 10, 64)
		if err != nil {
			f.errors.Add("parent_id", MsgInvalidInteger)
		} else {
			f.parentID = id
		}
	}

	if f.errors.Any() {
		return f.errors
	}
	return nil
}

// Errors returns the messages from the last Validate.
func (f *CommentForm) Errors() Errors {
	return f.errors
}

// Save builds the comment for the form's post.
//
// A parent_id that does not name a comment on the same post is dropped and
// the comment becomes top-level without an error. With commit the comment
// is persisted, otherwise it is returned unsaved.
func (f *CommentForm) Save(ctx context.Context, commit bool) (*models.Comment, error) {
	if f.postID == 0 {
		return nil, ErrPostIDRequired
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		Content: f.input.Content,
		PostID:  f.postID,
	}

	if f.parentID != 0 {
		if f.store == nil {
			return nil, fmt.Errorf("comment form: no store to resolve parent")
		}
		var parent *models.Comment
		var err error
		if f.parentID > 0 {
			parent, err = f.store.GetByIDForPost(ctx, uint(f.parentID), f.postID)
		} else {
			err = models.NewNotFoundError("Comment", f.parentID)
		}
		switch {
		case err == nil:
			comment.ParentID = &parent.ID
			comment.Parent = parent
		case isNotFound(err):
			middleware.Logger.DebugContext(ctx, "comment parent not on post, saving as top-level",
				"parent_id", f.parentID, "post_id", f.postID)
		default:
			return nil, fmt.Errorf("resolve parent comment: %w", err)
		}
	}

	if !commit {
		return comment, nil
	}
	if f.store == nil {
		return nil, fmt.Errorf("comment form: no store to commit to")
	}
	if err := f.store.Create(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// Fields describes the comment form.
func (f *CommentForm) Fields() []Field {
	return withErrors([]Field{
		{Name: "content", Label: "", Widget: WidgetTextarea, Attrs: map[string]string{"class": ClassControl, "rows": "3", "placeholder": "Напишите комментарий..."}, Required: true, Value: f.input.Content},
		{Name: "parent_id", Widget: WidgetHidden, Value: string(f.input.ParentID)},
	}, f.errors)
}
