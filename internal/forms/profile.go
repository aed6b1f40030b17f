package forms

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"quill/internal/models"
	"quill/internal/validation"
)

// DateLayout is the wire format of birth_date.
const DateLayout = "2006-01-02"

// MaxNameLength matches the first/last name columns.
const MaxNameLength = 150

// ErrNoLinkedAccount is returned when a profile has no account to update.
var ErrNoLinkedAccount = errors.New("profile has no linked account")

// ProfileStore persists a profile together with its account.
type ProfileStore interface {
	AccountLookup
	// SaveWithUser writes user and profile in one transaction.
	SaveWithUser(ctx context.Context, profile *models.Profile, user *models.User) error
}

// ProfileInput covers the profile record and the two account fields edited
// alongside it.
type ProfileInput struct {
	// Profile fields.
	Avatar    *multipart.FileHeader `form:"-" json:"-"`
	BirthDate string                `form:"birth_date" json:"birth_date"`
	FirstName string                `form:"first_name" json:"first_name"`
	LastName  string                `form:"last_name" json:"last_name"`
	Bio       string                `form:"bio" json:"bio"`

	// Account fields.
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
}

// UserProfileForm edits a profile and its account's username and email.
type UserProfileForm struct {
	instance  *models.Profile
	user      *models.User
	input     *ProfileInput
	store     ProfileStore
	errors    Errors
	birthDate *time.Time
	validated bool
}

// NewUserProfileForm returns an unbound form over instance. user, when
// given, seeds the initial username and email.
func NewUserProfileForm(instance *models.Profile, user *models.User, store ProfileStore) *UserProfileForm {
	return &UserProfileForm{instance: instance, user: user, store: store, errors: Errors{}}
}

// Bind attaches submitted input to the form.
func (f *UserProfileForm) Bind(in ProfileInput) *UserProfileForm {
	f.input = &in
	f.validated = false
	return f
}

// IsBound reports whether input was attached.
func (f *UserProfileForm) IsBound() bool {
	return f.input != nil
}

// Avatar returns the uploaded avatar, or nil.
func (f *UserProfileForm) Avatar() *multipart.FileHeader {
	if f.input == nil {
		return nil
	}
	return f.input.Avatar
}

// Initial returns the values the form displays before submission.
func (f *UserProfileForm) Initial() map[string]string {
	initial := map[string]string{}
	if p := f.instance; p != nil {
		initial["first_name"] = p.FirstName
		initial["last_name"] = p.LastName
		initial["bio"] = p.Bio
		if p.BirthDate != nil {
			initial["birth_date"] = p.BirthDate.Format(DateLayout)
		}
		if p.AvatarURL != "" {
			initial["avatar"] = p.AvatarURL
		}
	}
	if f.user != nil {
		initial["username"] = f.user.Username
		initial["email"] = f.user.Email
	}
	return initial
}

// account returns the account the profile belongs to.
func (f *UserProfileForm) account() *models.User {
	if f.instance != nil && f.instance.User.ID != 0 {
		return &f.instance.User
	}
	return f.user
}

// Validate checks the bound input. An unbound form is invalid.
func (f *UserProfileForm) Validate(ctx context.Context) error {
	f.errors = Errors{}
	f.birthDate = nil
	if f.input == nil {
		f.errors.Add(NonFieldErrors, "No data submitted.")
		return f.errors
	}
	in := f.input
	in.FirstName = cleanText(in.FirstName)
	in.LastName = cleanText(in.LastName)
	in.Bio = cleanText(in.Bio)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.BirthDate = strings.TrimSpace(in.BirthDate)

	if in.BirthDate != "" {
		d, err := time.Parse(DateLayout, in.BirthDate)
		if err != nil {
			f.errors.Add("birth_date", MsgInvalidDate)
		} else {
			f.birthDate = &d
		}
	}
	checkMaxLength(f.errors, "first_name", in.FirstName, MaxNameLength)
	checkMaxLength(f.errors, "last_name", in.LastName, MaxNameLength)

	if checkRequired(f.errors, "username", in.Username) {
		if err := validation.ValidateUsername(in.Username); err != nil {
			f.errors.Add("username", err.Error())
		}
	}
	if checkRequired(f.errors, "email", in.Email) {
		if err := validation.ValidateEmail(in.Email); err != nil {
			f.errors.Add("email", MsgInvalidEmail)
		}
	}

	if f.store != nil {
		var selfID uint
		if acct := f.account(); acct != nil {
			selfID = acct.ID
		}
		if !f.errors.Has("username") {
			taken, err := f.store.UsernameTaken(ctx, in.Username, selfID)
			if err != nil {
				return fmt.Errorf("check username: %w", err)
			}
			if taken {
				f.errors.Add("username", MsgUsernameTaken)
			}
		}
		if !f.errors.Has("email") {
			taken, err := f.store.EmailTaken(ctx, in.Email, selfID)
			if err != nil {
				return fmt.Errorf("check email: %w", err)
			}
			if taken {
				f.errors.Add("email", MsgEmailTaken)
			}
		}
	}

	f.validated = true
	if f.errors.Any() {
		return f.errors
	}
	return nil
}

// Errors returns the messages from the last Validate.
func (f *UserProfileForm) Errors() Errors {
	return f.errors
}

// Save applies the input to the profile and its account. With commit both
// are written in one transaction; either way the profile is returned.
func (f *UserProfileForm) Save(ctx context.Context, commit bool) (*models.Profile, error) {
	if !f.validated {
		if err := f.Validate(ctx); err != nil {
			return nil, err
		}
	} else if f.errors.Any() {
		return nil, f.errors
	}

	profile := f.instance
	if profile == nil {
		profile = &models.Profile{}
	}
	profile.FirstName = f.input.FirstName
	profile.LastName = f.input.LastName
	profile.Bio = f.input.Bio
	profile.BirthDate = f.birthDate

	user := f.account()
	if user == nil {
		return nil, ErrNoLinkedAccount
	}
	user.Username = f.input.Username
	user.Email = f.input.Email
	profile.UserID = user.ID
	profile.User = *user

	if commit {
		if f.store == nil {
			return nil, fmt.Errorf("profile form: no store to commit to")
		}
		if err := f.store.SaveWithUser(ctx, profile, user); err != nil {
			return nil, f.ResolveConflict(ctx, err)
		}
		profile.User = *user
	}
	return profile, nil
}

// ResolveConflict turns a uniqueness conflict reported by the store into
// field errors on username or email, rechecking which one now collides.
// Other errors are returned unchanged.
func (f *UserProfileForm) ResolveConflict(ctx context.Context, err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) || appErr.Code != models.CodeConflict || f.input == nil || f.store == nil {
		return err
	}

	var selfID uint
	if user := f.account(); user != nil {
		selfID = user.ID
	}
	f.errors = Errors{}
	if taken, lookupErr := f.store.UsernameTaken(ctx, f.input.Username, selfID); lookupErr != nil {
		return lookupErr
	} else if taken {
		f.errors.Add("username", MsgUsernameTaken)
	}
	if taken, lookupErr := f.store.EmailTaken(ctx, f.input.Email, selfID); lookupErr != nil {
		return lookupErr
	} else if taken {
		f.errors.Add("email", MsgEmailTaken)
	}
	if !f.errors.Any() {
		f.errors.Add(NonFieldErrors, "The profile changed while saving. Please try again.")
	}
	return f.errors
}

// Fields describes the profile form.
func (f *UserProfileForm) Fields() []Field {
	initial := f.Initial()
	value := func(name string) string {
		if f.input == nil {
			return ""
		}
		switch name {
		case "birth_date":
			return f.input.BirthDate
		case "first_name":
			return f.input.FirstName
		case "last_name":
			return f.input.LastName
		case "bio":
			return f.input.Bio
		case "username":
			return f.input.Username
		case "email":
			return f.input.Email
		case "avatar":
			if f.input.Avatar != nil {
				return f.input.Avatar.Filename
			}
		}
		return ""
	}

	fields := []Field{
		{Name: "avatar", Label: "Avatar", Widget: WidgetFile, Attrs: map[string]string{"class": ClassControlFile}},
		{Name: "birth_date", Label: "Birth date", Widget: WidgetDate, Attrs: map[string]string{"class": ClassControl}},
		{Name: "first_name", Label: "First name", Widget: WidgetText, Attrs: map[string]string{"class": ClassControl}, MaxLength: MaxNameLength},
		{Name: "last_name", Label: "Last name", Widget: WidgetText, Attrs: map[string]string{"class": ClassControl}, MaxLength: MaxNameLength},
		{Name: "bio", Label: "Bio", Widget: WidgetTextarea, Attrs: map[string]string{"class": ClassControl, "rows": "4"}},
		{Name: "username", Label: "Username", Widget: WidgetText, Attrs: map[string]string{"class": ClassControl}, Required: true, MaxLength: validation.MaxUsernameLength},
		{Name: "email", Label: "Email", Widget: WidgetEmail, Attrs: map[string]string{"class": ClassControl}, Required: true, MaxLength: validation.MaxEmailLength},
	}
	for i := range fields {
		fields[i].Initial = initial[fields[i].Name]
		fields[i].Value = value(fields[i].Name)
	}
	return withErrors(fields, f.errors)
}
