package service

import (
	"context"
	"testing"

	"quill/internal/config"
	"quill/internal/forms"
	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupProfileService(t *testing.T) (*ProfileService, *gorm.DB, *models.User) {
	t.Helper()
	db := testutil.NewTestDB(t)
	user := &models.User{Username: "erin", Email: "erin@example.com", Password: "hash"}
	require.NoError(t, repository.NewUserRepository(db).Create(context.Background(), user))

	images := NewImageService(repository.NewImageRepository(db), &config.Config{MediaDir: t.TempDir()})
	return NewProfileService(repository.NewProfileRepository(db), images), db, user
}

func TestProfileService_GetCreatesOnFirstUse(t *testing.T) {
	t.Parallel()
	svc, db, user := setupProfileService(t)
	ctx := context.Background()

	first, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	require.NotZero(t, first.ID)
	assert.Equal(t, "erin", first.User.Username)

	second, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.Profile{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestProfileService_Update(t *testing.T) {
	t.Parallel()
	svc, db, user := setupProfileService(t)
	ctx := context.Background()

	form, err := svc.NewProfileForm(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "erin", form.Initial()["username"])

	avatar := testutil.FileHeader(t, "avatar", "me.png", "image/png", testutil.TinyPNG(t, 300, 200))
	form.Bind(forms.ProfileInput{
		Username:  "erin2",
		Email:     "erin2@example.com",
		FirstName: "Erin",
		LastName:  "Doe",
		BirthDate: "1990-04-01",
		Bio:       "hello",
		Avatar:    avatar,
	})
	profile, err := svc.Update(ctx, form)
	require.NoError(t, err)
	assert.Equal(t, "Erin Doe", profile.FullName())
	assert.Equal(t, "erin2", profile.User.Username)
	require.NotEmpty(t, profile.AvatarHash)
	assert.Equal(t, "/media/i/"+profile.AvatarHash+"/master.jpg", profile.AvatarURL)

	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.Equal(t, "erin2", stored.Username)
	assert.Equal(t, "erin2@example.com", stored.Email)
	assert.Equal(t, "hash", stored.Password, "password must survive a profile edit")

	var img models.Image
	require.NoError(t, db.Where("hash = ?", profile.AvatarHash).First(&img).Error)
	assert.Equal(t, img.Width, img.Height)

	reloaded, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.BirthDate)
	assert.Equal(t, "1990-04-01", reloaded.BirthDate.Format(forms.DateLayout))
}

func TestProfileService_UpdateInvalidWritesNothing(t *testing.T) {
	t.Parallel()
	svc, db, user := setupProfileService(t)
	ctx := context.Background()

	form, err := svc.NewProfileForm(ctx, user.ID)
	require.NoError(t, err)
	form.Bind(forms.ProfileInput{Username: "new-name", Email: "not-an-email"})

	_, err = svc.Update(ctx, form)
	errs, ok := forms.AsErrors(err)
	require.True(t, ok)
	assert.True(t, errs.Has("email"))

	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.Equal(t, "erin", stored.Username)
}

func TestProfileService_BadAvatarIsFieldError(t *testing.T) {
	t.Parallel()
	svc, _, user := setupProfileService(t)
	ctx := context.Background()

	form, err := svc.NewProfileForm(ctx, user.ID)
	require.NoError(t, err)
	form.Bind(forms.ProfileInput{
		Username: "erin",
		Email:    "erin@example.com",
		Avatar:   testutil.FileHeader(t, "avatar", "x.txt", "text/plain", []byte("hello")),
	})

	_, err = svc.Update(ctx, form)
	errs, ok := forms.AsErrors(err)
	require.True(t, ok)
	assert.True(t, errs.Has("avatar"))
}
