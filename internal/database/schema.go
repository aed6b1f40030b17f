package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"quill/internal/config"
	"quill/internal/middleware"

	"gorm.io/gorm"
)

// SchemaMode selects how ApplySchema brings the database up to date.
type SchemaMode string

const (
	// SchemaModeHybrid runs the SQL migrations, then AutoMigrate outside
	// guarded environments.
	SchemaModeHybrid SchemaMode = "hybrid"
	// SchemaModeSQL runs the embedded SQL migrations only.
	SchemaModeSQL SchemaMode = "sql"
	// SchemaModeAuto runs gorm AutoMigrate only.
	SchemaModeAuto SchemaMode = "auto"
)

// SchemaPlan is what ApplySchema will do for a given config.
type SchemaPlan struct {
	Mode        SchemaMode
	Env         string
	SQL         bool
	AutoMigrate bool
}

// SchemaStatus is a SchemaPlan plus the migration log.
type SchemaStatus struct {
	SchemaPlan
	Applied []int
	Pending []Migration
}

// guardedEnv reports whether env holds data that AutoMigrate must not touch
// unless explicitly allowed.
func guardedEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// PlanSchema resolves DB_SCHEMA_MODE against the environment. An empty mode
// means hybrid.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	plan := SchemaPlan{
		Mode: SchemaMode(strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))),
		Env:  cfg.Env,
	}
	if plan.Mode == "" {
		plan.Mode = SchemaModeHybrid
	}
	guarded := guardedEnv(cfg.Env)

	switch plan.Mode {
	case SchemaModeSQL:
		plan.SQL = true
	case SchemaModeHybrid:
		plan.SQL = true
		plan.AutoMigrate = !guarded
	case SchemaModeAuto:
		if guarded && !cfg.DBAutoMigrateDestructive {
			return plan, fmt.Errorf("DB_SCHEMA_MODE=auto is not allowed in %q unless DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.AutoMigrate = true
	default:
		return plan, fmt.Errorf("unknown DB_SCHEMA_MODE %q (want hybrid, sql or auto)", plan.Mode)
	}
	return plan, nil
}

// ApplySchema migrates db according to PlanSchema.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}

	if plan.SQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations: %w", err)
		}
	}
	if !plan.AutoMigrate {
		return nil
	}

	log := middleware.Logger.With(slog.String("mode", string(plan.Mode)), slog.String("env", plan.Env))
	if guardedEnv(plan.Env) {
		log.WarnContext(ctx, "auto-migrating a guarded environment")
	}
	log.InfoContext(ctx, "auto-migrating models", slog.Int("models", len(PersistentModels())))
	if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// GetSchemaStatus reports the plan for cfg and, when SQL migrations are part
// of it, which versions are applied and pending.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{SchemaPlan: plan}
	if !plan.SQL {
		return status, nil
	}

	m := NewMigrator(db, migrations)
	if status.Applied, err = m.Applied(ctx); err != nil {
		return nil, err
	}
	if status.Pending, err = m.Pending(ctx); err != nil {
		return nil, err
	}
	return status, nil
}
