// Package bootstrap wires the process-wide runtime: database, Redis and the
// development conveniences that run before the HTTP server starts.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// InitRuntime connects to DB and Redis, then runs the development bootstrap.
// An unreachable Redis yields a nil client.
func InitRuntime(ctx context.Context, cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	if err := Prepare(ctx, cfg, db); err != nil {
		return nil, nil, err
	}
	return db, cache.GetClient(), nil
}

// Prepare runs the development-only steps against an open database.
func Prepare(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if !isDevelopment(cfg) {
		return nil
	}
	if err := ensureDevAdmin(ctx, cfg, db); err != nil {
		return fmt.Errorf("failed to bootstrap development admin: %w", err)
	}
	if err := seedIfEmpty(ctx, cfg, db); err != nil {
		return fmt.Errorf("failed to seed development data: %w", err)
	}
	return nil
}

func isDevelopment(cfg *config.Config) bool {
	return cfg != nil && strings.EqualFold(cfg.Env, "development")
}

// ensureDevAdmin creates or promotes the configured admin account.
func ensureDevAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if !cfg.DevBootstrapAdmin {
		return nil
	}
	username := strings.TrimSpace(cfg.DevAdminUsername)
	if username == "" {
		username = "quill_admin"
	}
	email := strings.ToLower(strings.TrimSpace(cfg.DevAdminEmail))
	if email == "" {
		email = "admin@quill.local"
	}
	if cfg.DevAdminPassword == "" {
		return errors.New("DEV_ADMIN_PASSWORD must be set when DEV_BOOTSTRAP_ADMIN is enabled")
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var admin models.User
		err := tx.Where("username = ?", username).First(&admin).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			hash, err := bcrypt.GenerateFromPassword([]byte(cfg.DevAdminPassword), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash admin password: %w", err)
			}
			admin = models.User{Username: username, Email: email, Password: string(hash), IsAdmin: true}
			if err := tx.Create(&admin).Error; err != nil {
				return err
			}
			middleware.Logger.InfoContext(ctx, "development admin created", "username", username, "id", admin.ID)
		case err != nil:
			return err
		case !admin.IsAdmin:
			if err := tx.Model(&admin).Update("is_admin", true).Error; err != nil {
				return err
			}
			middleware.Logger.InfoContext(ctx, "development admin promoted", "username", username, "id", admin.ID)
		}
		return nil
	})
}

// seedIfEmpty applies DevSeedPreset when the database holds no posts yet.
func seedIfEmpty(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg.DevSeedPreset == "" {
		return nil
	}
	opts, ok := seed.Presets[cfg.DevSeedPreset]
	if !ok {
		return fmt.Errorf("unknown seed preset %q", cfg.DevSeedPreset)
	}

	var posts int64
	if err := db.WithContext(ctx).Model(&models.Post{}).Count(&posts).Error; err != nil {
		return err
	}
	if posts > 0 {
		return nil
	}

	res, err := seed.NewSeeder(db, opts).Run(ctx)
	if err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "development data seeded",
		"preset", cfg.DevSeedPreset, "users", res.Users, "posts", res.Posts, "comments", res.Comments)
	return nil
}
