package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quill/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the seeder and tests.
type Factory struct {
	db           *gorm.DB
	opts         Options
	faker        *gofakeit.Faker
	passwordHash string
	now          time.Time
}

// NewFactory creates a new Factory bound to the provided Gorm DB. A zero
// RandSeed picks a random one.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	return &Factory{
		db:    db,
		opts:  opts.withDefaults(),
		faker: gofakeit.New(opts.RandSeed),
		now:   time.Now(),
	}
}

// Intn returns a pseudo-random number in [0, n).
func (f *Factory) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	return f.faker.Number(0, n-1)
}

func (f *Factory) password() (string, error) {
	if f.opts.SkipBcrypt {
		return DefaultPassword, nil
	}
	if f.passwordHash == "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
		if err != nil {
			return "", err
		}
		f.passwordHash = string(hash)
	}
	return f.passwordHash, nil
}

// pastTime returns a moment within the last MaxDays.
func (f *Factory) pastTime() time.Time {
	start := f.now.Add(-time.Duration(f.opts.MaxDays) * 24 * time.Hour)
	return f.faker.DateRange(start, f.now)
}

// CreateUser constructs and persists a sample `models.User`.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	password, err := f.password()
	if err != nil {
		return nil, err
	}
	username := strings.ToLower(f.faker.Username()) + fmt.Sprintf("%d", f.faker.Number(100, 9999))
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: password,
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateProfile attaches a profile with a name, a bio and a birth date.
func (f *Factory) CreateProfile(ctx context.Context, user *models.User) (*models.Profile, error) {
	birth := f.faker.DateRange(
		time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2005, 12, 31, 0, 0, 0, 0, time.UTC),
	).Truncate(24 * time.Hour)
	profile := &models.Profile{
		UserID:    user.ID,
		FirstName: f.faker.FirstName(),
		LastName:  f.faker.LastName(),
		Bio:       f.faker.Sentence(12),
		BirthDate: &birth,
	}
	if err := f.db.WithContext(ctx).Create(profile).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

// BuildPost constructs an unsaved post by author. Some posts get a remote
// placeholder image according to ImageRatio.
func (f *Factory) BuildPost(author *models.User) *models.Post {
	title := strings.TrimSuffix(f.faker.Sentence(f.faker.Number(3, 8)), ".")
	if len(title) > 200 {
		title = title[:200]
	}
	post := &models.Post{
		Title:     title,
		Content:   f.faker.Paragraph(f.faker.Number(1, 4), 4, 12, "\n\n"),
		UserID:    author.ID,
		CreatedAt: f.pastTime(),
	}
	if f.opts.ImageRatio > 0 && f.faker.Float64Range(0, 1) < f.opts.ImageRatio {
		post.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/600", f.faker.UUID())
	}
	post.UpdatedAt = post.CreatedAt
	return post
}

// CreatePostsBatch persists multiple posts in a single DB call.
func (f *Factory) CreatePostsBatch(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	return f.db.WithContext(ctx).Create(&posts).Error
}

// CreateThread adds n comments to post by random users. Each comment after
// the first replies to an earlier one with probability ReplyRatio, so a
// thread grows several levels deep.
func (f *Factory) CreateThread(ctx context.Context, post *models.Post, users []*models.User, n int) ([]*models.Comment, error) {
	comments := make([]*models.Comment, 0, n)
	at := post.CreatedAt
	for i := 0; i < n; i++ {
		author := users[f.Intn(len(users))]
		at = at.Add(time.Duration(f.faker.Number(1, 180)) * time.Minute)
		comment := &models.Comment{
			Content:   f.faker.Sentence(f.faker.Number(4, 20)),
			UserID:    &author.ID,
			PostID:    post.ID,
			CreatedAt: at,
			UpdatedAt: at,
		}
		if len(comments) > 0 && f.faker.Float64Range(0, 1) < f.opts.ReplyRatio {
			parent := comments[f.Intn(len(comments))]
			comment.ParentID = &parent.ID
		}
		if err := f.db.WithContext(ctx).Create(comment).Error; err != nil {
			return comments, err
		}
		comments = append(comments, comment)
	}
	return comments, nil
}
