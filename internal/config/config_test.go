package config

import (
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"PORT", "MONGO_URI", "MONGO_DATABASE", "DATA_DIR", "UPLOAD_DIR", "ADMIN_DB_PATH",
	"JWT_SECRET", "TOKEN_TTL", "FIREBASE_API_KEY", "FIREBASE_PROJECT_ID",
	"DEMO_MODE", "DEMO_EMAIL", "DEMO_PASSWORD", "CSRF_KEY", "SESSION_KEY",
	"COOKIE_DOMAIN", "COOKIE_SECURE", "CORS_ORIGIN", "CONTACT_RATE_WINDOW",
	"CONTACT_WEBHOOK_URL", "LOG_LEVEL", "SNOWFLAKE_NODE",
}

// clearEnv unsets every key for the test and restores it afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Port)
	assert.Empty(t, cfg.MongoURI)
	assert.Equal(t, "websitelelo", cfg.MongoDatabase)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "./uploads", cfg.UploadDir)
	assert.Equal(t, "./data/admin.db", cfg.AdminDBPath)
	assert.Equal(t, 30*24*time.Hour, cfg.TokenTTL)
	assert.True(t, cfg.DemoMode)
	assert.Equal(t, "websitelelo.in@gmail.com", cfg.DemoEmail)
	assert.Equal(t, "*", cfg.CORSOrigin)
	assert.Equal(t, 30*time.Second, cfg.ContactRateWindow)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Len(t, cfg.JWTSecret, 32)
	assert.Len(t, cfg.CSRFKey, 32)
	assert.Len(t, cfg.SessionKey, 32)
	assert.False(t, cfg.CookieSecure)
	assert.Equal(t, int64(0), cfg.SnowflakeNode)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	clearEnv(t)
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	t.Setenv("PORT", "8080")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("DEMO_MODE", "false")
	t.Setenv("CSRF_KEY", key)
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("CONTACT_RATE_WINDOW", "0s")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("SNOWFLAKE_NODE", "7")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, []byte("secret"), cfg.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.False(t, cfg.DemoMode)
	assert.Equal(t, []byte("0123456789abcdef0123456789abcdef"), cfg.CSRFKey)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, time.Duration(0), cfg.ContactRateWindow)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.Equal(t, int64(7), cfg.SnowflakeNode)
	assert.Equal(t, int64(8), cfg.CLINode())
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")
	t.Setenv("TOKEN_TTL", "a month")
	t.Setenv("DEMO_MODE", "maybe")
	t.Setenv("SESSION_KEY", base64.StdEncoding.EncodeToString([]byte("short")))
	t.Setenv("SNOWFLAKE_NODE", "4096")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, 30*24*time.Hour, cfg.TokenTTL)
	assert.True(t, cfg.DemoMode)
	assert.Len(t, cfg.SessionKey, 32)
	assert.Equal(t, int64(0), cfg.SnowflakeNode)
}

func TestCLINodeNeverMatchesServerNode(t *testing.T) {
	for _, node := range []int64{0, 1, 512, maxSnowflakeNode} {
		cfg := &Config{SnowflakeNode: node}
		assert.NotEqual(t, cfg.SnowflakeNode, cfg.CLINode())
		assert.GreaterOrEqual(t, cfg.CLINode(), int64(0))
		assert.LessOrEqual(t, cfg.CLINode(), int64(maxSnowflakeNode))
	}
}

func TestLoadConfig_DotEnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATA_DIR", "/srv/data")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("MONGO_DATABASE=lelo_test\nDATA_DIR=/ignored\n"), 0o600))

	cfg, err := LoadConfig(envFile)
	require.NoError(t, err)

	assert.Equal(t, "lelo_test", cfg.MongoDatabase)
	// real environment wins over the file
	assert.Equal(t, "/srv/data", cfg.DataDir)
}
