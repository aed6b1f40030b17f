package service

import (
	"context"
	"errors"

	"quill/internal/cache"
	"quill/internal/forms"
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

type ProfileService struct {
	profiles repository.ProfileRepository
	images   *ImageService
}

func NewProfileService(profiles repository.ProfileRepository, images *ImageService) *ProfileService {
	return &ProfileService{profiles: profiles, images: images}
}

// Get returns the profile of userID, creating an empty one on first use.
func (s *ProfileService) Get(ctx context.Context, userID uint) (*models.Profile, error) {
	return cache.Aside(ctx, cache.ProfileKey(userID), cache.ProfileTTL, func(ctx context.Context) (*models.Profile, error) {
		profile, err := s.profiles.GetByUserID(ctx, userID)
		if err == nil {
			return profile, nil
		}
		if !isNotFound(err) {
			return nil, err
		}

		middleware.Logger.InfoContext(ctx, "creating empty profile", "user_id", userID)
		if err := s.profiles.Create(ctx, &models.Profile{UserID: userID}); err != nil {
			var appErr *models.AppError
			// A concurrent request may have created it first.
			if !errors.As(err, &appErr) || appErr.Code != models.CodeConflict {
				return nil, err
			}
		}
		return s.profiles.GetByUserID(ctx, userID)
	})
}

// NewProfileForm returns an unbound form over the profile of userID.
func (s *ProfileService) NewProfileForm(ctx context.Context, userID uint) (*forms.UserProfileForm, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return forms.NewUserProfileForm(profile, &profile.User, s.profiles), nil
}

// Update validates a bound profile form, stores the optional avatar and
// writes the profile together with the account fields in one transaction.
func (s *ProfileService) Update(ctx context.Context, form *forms.UserProfileForm) (profile *models.Profile, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "UpdateProfile")
	defer func() { observability.EndSpan(span, err) }()

	profile, err = form.Save(ctx, false)
	if err != nil {
		if isFormError(err) {
			observability.RecordForm("profile", false)
		}
		return nil, err
	}
	span.SetAttributes(attribute.Int64("profile.user_id", int64(profile.UserID)))

	if fh := form.Avatar(); fh != nil && s.images != nil {
		img, upErr := s.images.UploadFile(ctx, profile.UserID, fh, true)
		if upErr != nil {
			return nil, imageFieldError(form.Errors(), "avatar", upErr)
		}
		profile.AvatarHash = img.Hash
		profile.AvatarURL = s.images.BuildImageURL(img.Hash, MasterJPEG)
	}
	observability.RecordForm("profile", true)

	user := profile.User
	if err = s.profiles.SaveWithUser(ctx, profile, &user); err != nil {
		return nil, form.ResolveConflict(ctx, err)
	}
	profile.User = user
	return profile, nil
}
