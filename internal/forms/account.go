package forms

import (
	"context"
	"fmt"
	"strings"

	"quill/internal/models"
	"quill/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// AccountLookup answers uniqueness questions about accounts. exceptID
// excludes one account from the check (0 excludes none).
type AccountLookup interface {
	UsernameTaken(ctx context.Context, username string, exceptID uint) (bool, error)
	EmailTaken(ctx context.Context, email string, exceptID uint) (bool, error)
}

// AccountStore is what UserRegisterForm needs to persist a new account.
type AccountStore interface {
	AccountLookup
	Create(ctx context.Context, user *models.User) error
}

// RegisterInput is the raw registration submission.
type RegisterInput struct {
	Username  string `form:"username" json:"username"`
	Email     string `form:"email" json:"email"`
	Password1 string `form:"password1" json:"password1"`
	Password2 string `form:"password2" json:"password2"`
}

// UserRegisterForm creates accounts.
type UserRegisterForm struct {
	input  RegisterInput
	store  AccountStore
	errors Errors
	// Policy is checked against password1. Defaults to
	// validation.DefaultPasswordPolicy.
	Policy validation.PasswordPolicy
	// Cost is the bcrypt cost used by Save.
	Cost      int
	validated bool
}

// NewUserRegisterForm binds in to a registration form.
func NewUserRegisterForm(in RegisterInput, store AccountStore) *UserRegisterForm {
	return &UserRegisterForm{
		input:  in,
		store:  store,
		errors: Errors{},
		Policy: validation.DefaultPasswordPolicy,
		Cost:   bcrypt.DefaultCost,
	}
}

// Validate runs every field check. It returns Errors when the input is
// invalid, and a wrapped error when the uniqueness lookup itself fails.
func (f *UserRegisterForm) Validate(ctx context.Context) error {
	f.errors = Errors{}
	f.input.Username = strings.TrimSpace(f.input.Username)
	f.input.Email = strings.TrimSpace(f.input.Email)

	if checkRequired(f.errors, "username", f.input.Username) {
		if err := validation.ValidateUsername(f.input.Username); err != nil {
			f.errors.Add("username", err.Error())
		}
	}
	if checkRequired(f.errors, "email", f.input.Email) {
		if err := validation.ValidateEmail(f.input.Email); err != nil {
			f.errors.Add("email", MsgInvalidEmail)
		}
	}
	if checkRequired(f.errors, "password1", f.input.Password1) {
		if err := f.Policy.Check(f.input.Password1); err != nil {
			f.errors.Add("password1", err.Error())
		}
	}
	if checkRequired(f.errors, "password2", f.input.Password2) &&
		f.input.Password1 != f.input.Password2 {
		f.errors.Add("password2", MsgPasswordMismatch)
	}

	if f.store != nil {
		if !f.errors.Has("username") {
			taken, err := f.store.UsernameTaken(ctx, f.input.Username, 0)
			if err != nil {
				return fmt.Errorf("check username: %w", err)
			}
			if taken {
				f.errors.Add("username", MsgUsernameTaken)
			}
		}
		if !f.errors.Has("email") {
			taken, err := f.store.EmailTaken(ctx, f.input.Email, 0)
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
func (f *UserRegisterForm) Errors() Errors {
	return f.errors
}

// Save validates if needed and builds the account with a bcrypt-encoded
// password. With commit it is also persisted.
func (f *UserRegisterForm) Save(ctx context.Context, commit bool) (*models.User, error) {
	if !f.validated {
		if err := f.Validate(ctx); err != nil {
			return nil, err
		}
	} else if f.errors.Any() {
		return nil, f.errors
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(f.input.Password1), f.Cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username: f.input.Username,
		Email:    f.input.Email,
		Password: string(hash),
	}
	if !commit {
		return user, nil
	}
	if f.store == nil {
		return nil, fmt.Errorf("register form: no store to commit to")
	}
	if err := f.store.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Fields describes the registration form.
func (f *UserRegisterForm) Fields() []Field {
	return withErrors([]Field{
		{Name: "username", Label: "Username", Widget: WidgetText, Attrs: map[string]string{"class": ClassControl}, Required: true, MaxLength: validation.MaxUsernameLength, Value: f.input.Username},
		{Name: "email", Label: "Email", Widget: WidgetEmail, Attrs: map[string]string{"class": ClassControl}, Required: true, MaxLength: validation.MaxEmailLength, Value: f.input.Email},
		{Name: "password1", Label: "Password", Widget: WidgetPassword, Attrs: map[string]string{"class": ClassControl}, Required: true},
		{Name: "password2", Label: "Password confirmation", Widget: WidgetPassword, Attrs: map[string]string{"class": ClassControl}, Required: true},
	}, f.errors)
}

// LoginInput is the raw login submission.
type LoginInput struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// UserLoginForm checks presence only. Credentials are verified by the auth
// service.
type UserLoginForm struct {
	input  LoginInput
	errors Errors
}

// NewUserLoginForm binds in to a login form.
func NewUserLoginForm(in LoginInput) *UserLoginForm {
	return &UserLoginForm{input: in, errors: Errors{}}
}

// Validate reports missing fields.
func (f *UserLoginForm) Validate() error {
	f.errors = Errors{}
	f.input.Username = strings.TrimSpace(f.input.Username)
	checkRequired(f.errors, "username", f.input.Username)
	checkRequired(f.errors, "password", f.input.Password)
	if f.errors.Any() {
		return f.errors
	}
	return nil
}

// Credentials returns the submitted username and password.
func (f *UserLoginForm) Credentials() (string, string) {
	return f.input.Username, f.input.Password
}

// Errors returns the messages from the last Validate.
func (f *UserLoginForm) Errors() Errors {
	return f.errors
}

// AddError records a form-wide message, such as failed authentication.
func (f *UserLoginForm) AddError(msg string) {
	f.errors.Add(NonFieldErrors, msg)
}

// Fields describes the login form.
func (f *UserLoginForm) Fields() []Field {
	return withErrors([]Field{
		{Name: "username", Label: "Username", Widget: WidgetText, Attrs: map[string]string{"class": ClassControl}, Required: true, MaxLength: validation.MaxUsernameLength, Value: f.input.Username},
		{Name: "password", Label: "Password", Widget: WidgetPassword, Attrs: map[string]string{"class": ClassControl}, Required: true},
	}, f.errors)
}
