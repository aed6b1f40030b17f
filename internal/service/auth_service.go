package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"quill/internal/cache"
	"quill/internal/forms"
	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	TokenIssuer   = "quill-api"
	TokenAudience = "quill-client"
	TokenTTL      = 7 * 24 * time.Hour
)

// MsgInvalidLogin is shown on the login form when authentication fails.
const MsgInvalidLogin = "Please enter a correct username and password."

var errJWTSecretMissing = errors.New("JWT secret not configured")

// dummyHash is compared against when the username is unknown so both
// failure paths cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("quill-dummy-password"), bcrypt.MinCost)

// TokenClaims are the claims of a session token.
type TokenClaims struct {
	UserID    uint
	ID        string
	ExpiresAt time.Time
}

// AuthService registers accounts and issues, verifies and revokes session
// tokens.
type AuthService struct {
	users  repository.UserRepository
	secret []byte
	now    func() time.Time
}

func NewAuthService(users repository.UserRepository, jwtSecret string) *AuthService {
	return &AuthService{users: users, secret: []byte(jwtSecret), now: time.Now}
}

// NewRegisterForm binds in to a registration form backed by the user store.
func (s *AuthService) NewRegisterForm(in forms.RegisterInput) *forms.UserRegisterForm {
	return forms.NewUserRegisterForm(in, s.users)
}

// Register validates and commits the form, then issues a token for the new
// account.
func (s *AuthService) Register(ctx context.Context, form *forms.UserRegisterForm) (user *models.User, token string, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "Register")
	defer func() { observability.EndSpan(span, err) }()

	user, err = form.Save(ctx, true)
	if err != nil {
		if isFormError(err) {
			observability.RecordForm("register", false)
		}
		return nil, "", err
	}
	observability.RecordForm("register", true)
	token, err = s.IssueToken(user)
	if err != nil {
		return nil, "", models.NewInternalError(err)
	}
	return user, token, nil
}

// Login checks the submitted credentials. On failure the form carries a
// non-field error and the returned error is UNAUTHORIZED.
func (s *AuthService) Login(ctx context.Context, form *forms.UserLoginForm) (user *models.User, token string, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "Login")
	defer func() { observability.EndSpan(span, err) }()

	if err = form.Validate(); err != nil {
		observability.RecordForm("login", false)
		return nil, "", err
	}
	username, password := form.Credentials()

	user, err = s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, "", err
	}
	hash := dummyHash
	if user != nil {
		hash = []byte(user.Password)
	}
	if cmpErr := bcrypt.CompareHashAndPassword(hash, []byte(password)); cmpErr != nil || user == nil {
		form.AddError(MsgInvalidLogin)
		observability.RecordForm("login", false)
		return nil, "", models.NewUnauthorizedError("Invalid credentials")
	}
	observability.RecordForm("login", true)

	token, err = s.IssueToken(user)
	if err != nil {
		return nil, "", models.NewInternalError(err)
	}
	return user, token, nil
}

// IssueToken signs an HS256 session token for user.
func (s *AuthService) IssueToken(user *models.User) (string, error) {
	if len(s.secret) == 0 {
		return "", errJWTSecretMissing
	}

	now := s.now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(user.ID), 10),
		"username": user.Username,
		"iss":      TokenIssuer,
		"aud":      TokenAudience,
		"exp":      now.Add(TokenTTL).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      generateJTI(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// generateJTI creates a unique JWT ID so single tokens can be revoked.
func generateJTI(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.Unix(), uuid.New().String())
}

// ParseToken checks signature, issuer, audience and expiry and returns the
// claims the rest of the app uses.
func (s *AuthService) ParseToken(raw string) (*TokenClaims, error) {
	if len(s.secret) == 0 {
		return nil, errJWTSecretMissing
	}
	token, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, models.NewUnauthorizedError("Invalid token claims")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, models.NewUnauthorizedError("Invalid subject claim")
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, models.NewUnauthorizedError("Invalid user ID in token")
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, models.NewUnauthorizedError("Invalid expiry claim")
	}
	jti, _ := claims["jti"].(string)

	return &TokenClaims{UserID: uint(userID), ID: jti, ExpiresAt: exp.Time}, nil
}

// VerifyToken parses raw and rejects revoked tokens. A cache error fails
// open, like every other redis lookup.
func (s *AuthService) VerifyToken(ctx context.Context, raw string) (uint, error) {
	claims, err := s.ParseToken(raw)
	if err != nil {
		return 0, err
	}
	if claims.ID != "" {
		revoked, err := cache.IsTokenRevoked(ctx, claims.ID)
		if err == nil && revoked {
			return 0, models.NewUnauthorizedError("Token has been revoked")
		}
	}
	return claims.UserID, nil
}

// Logout revokes raw until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	claims, err := s.ParseToken(raw)
	if err != nil {
		return err
	}
	if claims.ID == "" {
		return nil
	}
	return cache.RevokeToken(ctx, claims.ID, claims.ExpiresAt.Sub(s.now()))
}

// CurrentUser loads the account behind an authenticated request.
func (s *AuthService) CurrentUser(ctx context.Context, userID uint) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}
