package config

import (
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultPort = "5000"

type Config struct {
	Port          string
	MongoURI      string
	MongoDatabase string
	DataDir       string
	UploadDir     string
	AdminDBPath   string

	JWTSecret []byte
	TokenTTL  time.Duration

	FirebaseAPIKey    string
	FirebaseProjectID string

	DemoMode     bool
	DemoEmail    string
	DemoPassword string

	CSRFKey      []byte
	SessionKey   []byte
	CookieDomain string
	CookieSecure bool
	CORSOrigin   string

	ContactRateWindow time.Duration
	ContactWebhookURL string
	LogLevel          slog.Level

	// SnowflakeNode identifies this process in file-store ids. Processes
	// writing the same data directory must use different nodes.
	SnowflakeNode int64
}

const maxSnowflakeNode = 1023

// LoadConfig reads the environment, after loading .env files if present.
func LoadConfig(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !os.IsNotExist(err) {
		slog.Warn("Could not load .env file", "error", err)
	}

	cfg := &Config{
		Port:              getEnv("PORT", defaultPort),
		MongoURI:          getEnv("MONGO_URI", ""),
		MongoDatabase:     getEnv("MONGO_DATABASE", "websitelelo"),
		DataDir:           getEnv("DATA_DIR", "./data"),
		UploadDir:         getEnv("UPLOAD_DIR", "./uploads"),
		AdminDBPath:       getEnv("ADMIN_DB_PATH", "./data/admin.db"),
		TokenTTL:          getDuration("TOKEN_TTL", 30*24*time.Hour),
		FirebaseAPIKey:    getEnv("FIREBASE_API_KEY", ""),
		FirebaseProjectID: getEnv("FIREBASE_PROJECT_ID", ""),
		DemoMode:          getBool("DEMO_MODE", true),
		DemoEmail:         getEnv("DEMO_EMAIL", "websitelelo.in@gmail.com"),
		DemoPassword:      getEnv("DEMO_PASSWORD", "webistelelo@2026"),
		CookieDomain:      getEnv("COOKIE_DOMAIN", ""),
		CookieSecure:      getBool("COOKIE_SECURE", false),
		CORSOrigin:        getEnv("CORS_ORIGIN", "*"),
		ContactRateWindow: getDuration("CONTACT_RATE_WINDOW", 30*time.Second),
		ContactWebhookURL: getEnv("CONTACT_WEBHOOK_URL", ""),
		LogLevel:          getLogLevel("LOG_LEVEL", slog.LevelDebug),
		SnowflakeNode:     getInt("SNOWFLAKE_NODE", 0, 0, maxSnowflakeNode),
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.JWTSecret = []byte(secret)
	} else {
		slog.Warn("JWT_SECRET environment variable not set. Generating a random secret for development. Tokens will be invalid on restart. PLEASE SET JWT_SECRET IN PRODUCTION!")
		cfg.JWTSecret = generateRandomBytes(32)
	}

	cfg.CSRFKey = loadKey("CSRF_KEY")
	cfg.SessionKey = loadKey("SESSION_KEY")

	// Make sure port is valid
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		slog.Error("Invalid PORT environment variable. Falling back to default.", "PORT", os.Getenv("PORT"))
		cfg.Port = defaultPort
	}

	return cfg, nil
}

// loadKey decodes a base64 key of at least 32 bytes, or generates one.
func loadKey(name string) []byte {
	value := os.Getenv(name)
	if value == "" {
		slog.Warn(name + " environment variable not set. Generating a random key for development. This key will change on each restart. PLEASE SET " + name + " IN PRODUCTION!")
		return generateRandomBytes(32)
	}
	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil || len(decoded) < 32 {
		slog.Warn(name + " is invalid or too short (min 32 bytes recommended). Generating a random key for development. PLEASE SET A SECURE " + name + " IN PRODUCTION!")
		return generateRandomBytes(32)
	}
	return decoded
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		slog.Error("Invalid boolean environment variable. Falling back to default.", key, value)
		return defaultValue
	}
	return b
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Error("Invalid duration environment variable. Falling back to default.", key, value)
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue, lo, hi int64) int64 {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < lo || n > hi {
		slog.Error("Invalid integer environment variable. Falling back to default.", key, value)
		return defaultValue
	}
	return n
}

// CLINode is the snowflake node for one-off tools, kept apart from the
// server's node so both can write ids in the same millisecond.
func (c *Config) CLINode() int64 {
	return (c.SnowflakeNode + 1) % (maxSnowflakeNode + 1)
}

func getLogLevel(key string, defaultValue slog.Level) slog.Level {
	value := strings.TrimSpace(getEnv(key, ""))
	if value == "" {
		return defaultValue
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		slog.Error("Invalid log level. Falling back to default.", key, value)
		return defaultValue
	}
	return level
}

// generateRandomBytes generates a random byte slice of specified length
// Uses crypto/rand for secure random numbers.
func generateRandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		slog.Error("Failed to read random bytes", "error", err)
		// Fallback to a less secure random string if crypto/rand fails
		// This fallback is only for panic prevention, not for production use
		fallbackKey := "fallback-insecure-key-" + strconv.FormatInt(time.Now().UnixNano(), 10)
		if len(fallbackKey) < n {
			paddedKey := make([]byte, n)
			copy(paddedKey, fallbackKey)
			return paddedKey
		}
		return []byte(fallbackKey)[:n]
	}
	return b
}
