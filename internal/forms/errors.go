package forms

import (
	"errors"
	"sort"
	"strings"

	"quill/internal/models"

	"gorm.io/gorm"
)

// ErrPostIDRequired is returned by CommentForm.Save when the form was built
// without a post id. It signals a caller bug, not bad user input.
var ErrPostIDRequired = errors.New("post_id must be provided")

// NonFieldErrors is the Errors key for messages not tied to one field.
const NonFieldErrors = "__all__"

// Validation messages.
const (
	MsgRequired         = "This field is required."
	MsgInvalidEmail     = "Enter a valid email address."
	MsgPasswordMismatch = "The two password fields didn't match."
	MsgUsernameTaken    = "A user with that username already exists."
	MsgEmailTaken       = "A user with that email already exists."
	MsgInvalidInteger   = "Enter a whole number."
	MsgInvalidDate      = "Enter a valid date."
)

// Errors maps field names to validation messages. A non-empty Errors is the
// ValidationError returned by Validate and Save.
type Errors map[string][]string

// Add appends msg to field.
func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// Any reports whether at least one message was recorded.
func (e Errors) Any() bool {
	return len(e) > 0
}

// Has reports whether field has messages.
func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

// NonField returns messages not bound to a field.
func (e Errors) NonField() []string {
	return e[NonFieldErrors]
}

// FieldErrors exposes the messages to models.RespondWithError.
func (e Errors) FieldErrors() map[string][]string {
	return e
}

func (e Errors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e[k], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsErrors extracts field errors from err.
func AsErrors(err error) (Errors, bool) {
	var e Errors
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func isNotFound(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true
	}
	var appErr *models.AppError
	return errors.As(err, &appErr) && appErr.Code == models.CodeNotFound
}
