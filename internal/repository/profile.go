package repository

import (
	"context"
	"errors"

	"quill/internal/cache"
	"quill/internal/database"
	"quill/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepository persists profiles. Account edits made through the
// profile form go through SaveWithUser so both rows change together.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID uint) (*models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) error
	SaveWithUser(ctx context.Context, profile *models.Profile, user *models.User) error
	UsernameTaken(ctx context.Context, username string, exceptID uint) (bool, error)
	EmailTaken(ctx context.Context, email string, exceptID uint) (bool, error)
}

type profileRepository struct {
	db    *gorm.DB
	users UserRepository
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db, users: NewUserRepository(db)}
}

func (r *profileRepository) GetByUserID(ctx context.Context, userID uint) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Preload("User").Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Profile", userID)
		}
		return nil, models.NewInternalError(err)
	}
	return &profile, nil
}

func (r *profileRepository) Create(ctx context.Context, profile *models.Profile) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(profile).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return models.NewConflictError("Profile already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// SaveWithUser writes the account's username and email and the profile in
// one transaction. Nothing is written when either update fails.
func (r *profileRepository) SaveWithUser(ctx context.Context, profile *models.Profile, user *models.User) error {
	if user == nil || user.ID == 0 {
		return models.NewValidationError("profile has no linked account")
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ?", user.ID).
			Updates(map[string]any{"username": user.Username, "email": user.Email})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("User", user.ID)
		}

		profile.UserID = user.ID
		return tx.Omit(clause.Associations).Save(profile).Error
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return err
		}
		if database.IsUniqueViolation(err) {
			return models.NewConflictError("Username, email or profile already in use")
		}
		return models.NewInternalError(err)
	}

	cache.InvalidateUser(ctx, user.ID)
	return nil
}

func (r *profileRepository) UsernameTaken(ctx context.Context, username string, exceptID uint) (bool, error) {
	return r.users.UsernameTaken(ctx, username, exceptID)
}

func (r *profileRepository) EmailTaken(ctx context.Context, email string, exceptID uint) (bool, error) {
	return r.users.EmailTaken(ctx, email, exceptID)
}
