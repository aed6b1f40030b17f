// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"quill/internal/models"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// DefaultPassword is the plaintext password of every seeded account.
const DefaultPassword = "quill-demo-123"

// Options configuration for the seeder
type Options struct {
	Users           int     `yaml:"users"`
	Posts           int     `yaml:"posts"`
	CommentsPerPost int     `yaml:"comments_per_post"`
	ReplyRatio      float64 `yaml:"reply_ratio"`
	ImageRatio      float64 `yaml:"image_ratio"`
	MaxDays         int     `yaml:"max_days"`
	BatchSize       int     `yaml:"batch_size"`
	SkipBcrypt      bool    `yaml:"skip_bcrypt"`
	RandSeed        int64   `yaml:"rand_seed"`
}

// Presets are the built-in seeding profiles selectable by name.
var Presets = map[string]Options{
	"small": {Users: 5, Posts: 12, CommentsPerPost: 4, ReplyRatio: 0.5, MaxDays: 14},
	"demo":  {Users: 25, Posts: 80, CommentsPerPost: 8, ReplyRatio: 0.6, ImageRatio: 0.3, MaxDays: 60},
	"large": {Users: 200, Posts: 1500, CommentsPerPost: 12, ReplyRatio: 0.6, ImageRatio: 0.3, MaxDays: 365, SkipBcrypt: true},
}

func (o Options) withDefaults() Options {
	if o.Users <= 0 {
		o.Users = 1
	}
	if o.MaxDays <= 0 {
		o.MaxDays = 90
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.ReplyRatio < 0 {
		o.ReplyRatio = 0
	}
	if o.ReplyRatio > 1 {
		o.ReplyRatio = 1
	}
	return o
}

// LoadPresets decodes a YAML document mapping preset names to options,
// for example:
//
//	demo:
//	  users: 25
//	  posts: 80
//	  comments_per_post: 8
func LoadPresets(r io.Reader) (map[string]Options, error) {
	presets := make(map[string]Options)
	if err := yaml.NewDecoder(r).Decode(&presets); err != nil {
		if err == io.EOF {
			return presets, nil
		}
		return nil, fmt.Errorf("seed: decode presets: %w", err)
	}
	for name, opts := range presets {
		if opts.Users < 0 || opts.Posts < 0 || opts.CommentsPerPost < 0 {
			return nil, fmt.Errorf("seed: preset %q has negative counts", name)
		}
	}
	return presets, nil
}

// LoadPresetFile reads presets from path and merges them over the built-in
// ones. A missing file yields the built-ins unchanged.
func LoadPresetFile(path string) (map[string]Options, error) {
	merged := make(map[string]Options, len(Presets))
	for k, v := range Presets {
		merged[k] = v
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return merged, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	fromFile, err := LoadPresets(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for k, v := range fromFile {
		merged[k] = v
	}
	return merged, nil
}

// PresetNames lists preset names in a stable order.
func PresetNames(presets map[string]Options) []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Result counts what a seeding run created.
type Result struct {
	Users    int
	Posts    int
	Comments int
	Replies  int
}

// Seeder populates the database with demo data.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
}

// NewSeeder creates a Seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	opts = opts.withDefaults()
	return &Seeder{db: db, opts: opts, factory: NewFactory(db, opts)}
}

// ClearAll removes every row the seeder can create, children first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	log.Println("🗑️  Clearing existing data...")
	for _, model := range []any{&models.Comment{}, &models.Post{}, &models.Profile{}, &models.Image{}, &models.User{}} {
		tx := s.db.WithContext(ctx).Unscoped().Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := tx.Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	return nil
}

// Run creates users with profiles, then posts spread over the last MaxDays,
// then a comment thread under every post.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	log.Printf("🌱 Seeding %d users, %d posts, up to %d comments per post...",
		s.opts.Users, s.opts.Posts, s.opts.CommentsPerPost)
	res := &Result{}

	users := make([]*models.User, 0, s.opts.Users)
	for i := 0; i < s.opts.Users; i++ {
		user, err := s.factory.CreateUser(ctx)
		if err != nil {
			return res, fmt.Errorf("failed to create user: %w", err)
		}
		if _, err := s.factory.CreateProfile(ctx, user); err != nil {
			return res, fmt.Errorf("failed to create profile for %s: %w", user.Username, err)
		}
		users = append(users, user)
	}
	res.Users = len(users)
	log.Printf("✓ %d users created", res.Users)

	posts := make([]*models.Post, 0, s.opts.Posts)
	batch := make([]*models.Post, 0, s.opts.BatchSize)
	for i := 0; i < s.opts.Posts; i++ {
		batch = append(batch, s.factory.BuildPost(users[s.factory.Intn(len(users))]))
		if len(batch) == s.opts.BatchSize || i == s.opts.Posts-1 {
			if err := s.factory.CreatePostsBatch(ctx, batch); err != nil {
				return res, fmt.Errorf("failed to create posts: %w", err)
			}
			posts = append(posts, batch...)
			batch = make([]*models.Post, 0, s.opts.BatchSize)
		}
	}
	res.Posts = len(posts)
	log.Printf("✓ %d posts created", res.Posts)

	for _, post := range posts {
		n := s.opts.CommentsPerPost
		if n > 0 {
			n = s.factory.Intn(n + 1)
		}
		comments, err := s.factory.CreateThread(ctx, post, users, n)
		if err != nil {
			return res, fmt.Errorf("failed to create comments for post %d: %w", post.ID, err)
		}
		for _, c := range comments {
			res.Comments++
			if !c.IsTopLevel() {
				res.Replies++
			}
		}
	}
	log.Printf("✓ %d comments created (%d replies)", res.Comments, res.Replies)

	log.Println("🎉 Database seeding completed successfully!")
	return res, nil
}
