package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/ecobuy/pkg/config"
	"github.com/angelmondragon/ecobuy/pkg/db"
	"github.com/angelmondragon/ecobuy/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

func TestAccountsMigrationContainsSchema(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_accounts_table.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, matches, "no accounts migration file found")

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS accounts",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_email",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_google_id",
		"DROP TABLE IF EXISTS accounts",
	} {
		assert.Contains(t, string(data), sub)
	}
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, ValidateEmbedded())
	require.NoError(t, ValidateDir("migrations"))
}

func TestDialect(t *testing.T) {
	assert.Equal(t, "sqlite3", Dialect(config.DBDriverSQLite))
	assert.Equal(t, "postgres", Dialect(config.DBDriverPostgres))
	assert.Equal(t, "postgres", Dialect(""))
}

func TestEmbeddedMigrationsApplyOnSQLite(t *testing.T) {
	conn, err := db.Open(sqlite.Open("file:migrate_apply?mode=memory&cache=shared"))
	require.NoError(t, err)
	client := db.NewFromGorm(conn, config.DBDriverSQLite)

	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvDev},
		FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true},
	}
	require.NoError(t, MaybeRunDev(context.Background(), cfg, logger.Nop(), client))

	assert.True(t, conn.Migrator().HasTable("accounts"))
	assert.True(t, conn.Migrator().HasIndex("accounts", "idx_accounts_email"))
	assert.True(t, conn.Migrator().HasColumn("accounts", "reset_code_hash"))
	assert.True(t, conn.Migrator().HasColumn("accounts", "reset_expires_at"))

	sqlDB, err := client.SQL()
	require.NoError(t, err)
	require.NoError(t, RunEmbedded(context.Background(), sqlDB, "sqlite3", "down"))
	assert.False(t, conn.Migrator().HasColumn("accounts", "reset_code_hash"))
	assert.True(t, conn.Migrator().HasTable("accounts"))
	require.NoError(t, RunEmbedded(context.Background(), sqlDB, "sqlite3", "reset"))
	assert.False(t, conn.Migrator().HasTable("accounts"))
}

func TestMaybeRunDevSkipsOutsideDev(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: config.AppEnvProd}, FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true}}
	require.NoError(t, MaybeRunDev(context.Background(), cfg, logger.Nop(), nil))
}

func TestCreateAndValidateDir(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	path, err := CreateSQLMigration(dir, "Add Orders Index!", now)
	require.NoError(t, err)
	assert.Equal(t, "20260301120000_add_orders_index.sql", filepath.Base(path))
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "add orders index", now)
	require.Error(t, err)
	_, err = CreateSQLMigration(dir, "!!!", now)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad-name.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	err = ValidateDir(dir)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid migration filename"))
}
