package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"testing/fstest"

	"quill/internal/config"
	"quill/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestConfigurePool(t *testing.T) {
	db := openSQLite(t)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))

	db := openSQLite(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(PersistentModels()...))

	require.NoError(t, db.Create(&models.User{Username: "alice", Email: "a@example.com", Password: "x"}).Error)
	err = db.Create(&models.User{Username: "alice", Email: "b@example.com", Password: "x"}).Error
	assert.True(t, IsUniqueViolation(err))
}

func TestPlanSchema(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		env      string
		destroy  bool
		wantMode SchemaMode
		sql      bool
		auto     bool
		wantErr  bool
	}{
		{name: "empty mode is hybrid", mode: "", env: "development", wantMode: SchemaModeHybrid, sql: true, auto: true},
		{name: "hybrid in staging skips automigrate", mode: "hybrid", env: "staging", wantMode: SchemaModeHybrid, sql: true},
		{name: "mode is case insensitive", mode: " SQL ", env: "development", wantMode: SchemaModeSQL, sql: true},
		{name: "auto in test", mode: "auto", env: "test", wantMode: SchemaModeAuto, auto: true},
		{name: "auto in production refused", mode: "auto", env: "prod", wantErr: true},
		{name: "auto in production allowed", mode: "auto", env: "production", destroy: true, wantMode: SchemaModeAuto, auto: true},
		{name: "unknown mode", mode: "yolo", env: "test", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{DBSchemaMode: tt.mode, Env: tt.env, DBAutoMigrateDestructive: tt.destroy}
			plan, err := PlanSchema(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, SchemaPlan{Mode: tt.wantMode, Env: tt.env, SQL: tt.sql, AutoMigrate: tt.auto}, plan)
		})
	}
}

func TestEmbeddedMigrationsRegistered(t *testing.T) {
	all := GetMigrations()
	require.NotEmpty(t, all)
	assert.Equal(t, 1, all[0].Version)
	assert.Equal(t, "000001_init", all[0].String())
	assert.Contains(t, all[0].UpScript, "CREATE TABLE IF NOT EXISTS comments")
	assert.NotNil(t, GetMigrationByVersion(1))
	assert.Nil(t, GetMigrationByVersion(999))
}

func TestValidateAppliedVersions(t *testing.T) {
	registered := []Migration{{Version: 1, Name: "init"}}
	assert.NoError(t, validateAppliedVersions(nil, registered))
	assert.NoError(t, validateAppliedVersions([]int{1}, registered))
	err := validateAppliedVersions([]int{1, 7}, registered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000007")
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/000002_notes.up.sql":   {Data: []byte("CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT);")},
		"m/000002_notes.down.sql": {Data: []byte("DROP TABLE notes;")},
		"m/000001_tags.up.sql":    {Data: []byte("CREATE TABLE tags (id INTEGER PRIMARY KEY);")},
		"m/000001_tags.down.sql":  {Data: []byte("DROP TABLE tags;")},
		"m/README.md":             {Data: []byte("ignored")},
	}
	set, err := LoadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, set, 2)
	assert.Equal(t, "000001_tags", set[0].String())
	assert.Equal(t, "notes", set[1].Name)

	fsys["m/000003_orphan.up.sql"] = &fstest.MapFile{Data: []byte("SELECT 1;")}
	_, err = LoadMigrations(fsys, "m")
	assert.ErrorContains(t, err, "no down script")
}

func TestMigratorUpDown(t *testing.T) {
	db := openSQLite(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	ctx := context.Background()
	set := []Migration{
		{Version: 1, Name: "tags", UpScript: "CREATE TABLE tags (id INTEGER PRIMARY KEY);", DownScript: "DROP TABLE tags;"},
		{Version: 2, Name: "notes", UpScript: "CREATE TABLE notes (id INTEGER PRIMARY KEY);", DownScript: "DROP TABLE notes;"},
	}
	m := NewMigrator(db, set)

	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, m.Up(ctx))
	require.NoError(t, m.Up(ctx))
	applied, err := m.Applied(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, applied)
	assert.True(t, db.Migrator().HasTable("notes"))

	require.NoError(t, m.Down(ctx, 2))
	assert.False(t, db.Migrator().HasTable("notes"))
	assert.ErrorContains(t, m.Down(ctx, 2), "has not been applied")
	assert.ErrorContains(t, m.Down(ctx, 9), "not found")

	t.Run("failed script leaves no log row", func(t *testing.T) {
		broken := NewMigrator(db, append(set[:1:1], Migration{Version: 3, Name: "bad", UpScript: "CREATE TABLE oops (", DownScript: ""}))
		require.Error(t, broken.Up(ctx))
		applied, err := broken.Applied(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int{1}, applied)
	})

	t.Run("unknown applied version blocks Up", func(t *testing.T) {
		older := NewMigrator(db, nil)
		assert.ErrorContains(t, older.Up(ctx), "000001")
	})
}

func TestGetSchemaStatus(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	status, err := GetSchemaStatus(ctx, db, &config.Config{DBSchemaMode: "sql", Env: "development"})
	require.NoError(t, err)
	assert.True(t, status.SQL)
	assert.Empty(t, status.Applied)
	assert.Len(t, status.Pending, len(GetMigrations()))

	status, err = GetSchemaStatus(ctx, db, &config.Config{DBSchemaMode: "auto", Env: "test"})
	require.NoError(t, err)
	assert.True(t, status.AutoMigrate)
	assert.Nil(t, status.Pending)

	_, err = GetSchemaStatus(ctx, db, &config.Config{DBSchemaMode: "auto", Env: "production"})
	assert.Error(t, err)
}
