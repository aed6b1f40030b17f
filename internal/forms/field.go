package forms

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Widget is the input control a field is rendered with.
type Widget string

const (
	WidgetText     Widget = "text"
	WidgetEmail    Widget = "email"
	WidgetPassword Widget = "password"
	WidgetTextarea Widget = "textarea"
	WidgetFile     Widget = "file"
	WidgetHidden   Widget = "hidden"
	WidgetDate     Widget = "date"
)

// CSS classes used by the stock templates.
const (
	ClassControl     = "form-control"
	ClassControlFile = "form-control-file"
)

// Field describes one form field for rendering.
type Field struct {
	Name      string            `json:"name"`
	Label     string            `json:"label"`
	Widget    Widget            `json:"widget"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	Required  bool              `json:"required"`
	MaxLength int               `json:"max_length,omitempty"`
	Initial   string            `json:"initial,omitempty"`
	Value     string            `json:"value,omitempty"`
	Errors    []string          `json:"errors,omitempty"`
}

// Kind returns the widget name as a plain string for template comparisons.
func (f Field) Kind() string {
	return string(f.Widget)
}

// IsHidden reports whether the field renders as a hidden input.
func (f Field) IsHidden() bool {
	return f.Widget == WidgetHidden
}

// Display returns the bound value, falling back to the initial value.
// Password fields never echo.
func (f Field) Display() string {
	if f.Widget == WidgetPassword {
		return ""
	}
	if f.Value != "" {
		return f.Value
	}
	return f.Initial
}

// Form is the rendering contract shared by every form.
type Form interface {
	Fields() []Field
	Errors() Errors
}

// cleanText trims surrounding whitespace. Text is stored as written and
// escaped when rendered.
func cleanText(s string) string {
	return strings.TrimSpace(s)
}

func checkRequired(errs Errors, field, value string) bool {
	if value == "" {
		errs.Add(field, MsgRequired)
		return false
	}
	return true
}

func checkMaxLength(errs Errors, field, value string, max int) {
	if n := utf8.RuneCountInString(value); n > max {
		errs.Add(field, maxLengthMessage(max, n))
	}
}

func maxLengthMessage(max, got int) string {
	return "Ensure this value has at most " + strconv.Itoa(max) +
		" characters (it has " + strconv.Itoa(got) + ")."
}

// withErrors copies field errors from errs onto fields.
func withErrors(fields []Field, errs Errors) []Field {
	for i := range fields {
		fields[i].Errors = errs[fields[i].Name]
	}
	return fields
}
