package config

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Setenv("APP_ENV", "test")
	t.Setenv("DATABASE_URL_TEST", "postgres://localhost/ledger_test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, "postgres://localhost/ledger_test", cfg.DatabaseURL)
	assert.Equal(t, sql.LevelSerializable, cfg.Tx.Isolation)
	assert.Equal(t, 10*time.Second, cfg.Tx.Timeout)
	assert.Equal(t, uint64(3), cfg.Tx.MaxRetries)
	assert.Equal(t, "superadmin", cfg.SuperadminRole)
	assert.True(t, cfg.Limits["basic"].Daily.Equal(decimal.NewFromInt(10_000_000)))
}

func TestLoad_LimitOverride(t *testing.T) {
	viper.Reset()
	t.Setenv("LIMIT_SILVER_DAILY", "30000000")
	t.Setenv("LIMIT_SILVER_SINGLE", "12000000.50")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Limits["silver"].Daily.Equal(decimal.NewFromInt(30_000_000)))
	assert.True(t, cfg.Limits["silver"].Single.Equal(decimal.RequireFromString("12000000.50")))
	assert.True(t, cfg.Limits["gold"].Daily.Equal(decimal.NewFromInt(100_000_000)))
}

func TestLoad_InvalidIsolation(t *testing.T) {
	viper.Reset()
	t.Setenv("TX_ISOLATION", "chaos")

	_, err := Load()
	require.Error(t, err)
}

func TestParseIsolation(t *testing.T) {
	lvl, err := ParseIsolation("default")
	require.NoError(t, err)
	assert.Equal(t, sql.LevelDefault, lvl)

	lvl, err = ParseIsolation("Read_Committed")
	require.NoError(t, err)
	assert.Equal(t, sql.LevelReadCommitted, lvl)
}
