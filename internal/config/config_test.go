package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:            "5000",
		Env:             "development",
		DBDriver:        "postgres",
		DBPassword:      "secure-password",
		DBSSLMode:       "require",
		JWTSecret:       "secure-secret-at-least-32-chars-long",
		BcryptCost:      12,
		UploadBackend:   "local",
		UploadMaxSizeMB: 5,
		UploadMaxFiles:  10,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError string
	}{
		{"valid development", func(c *Config) {}, ""},
		{"missing port", func(c *Config) { c.Port = "" }, "PORT is required"},
		{"missing secret in development", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET is required"},
		{"short secret allowed outside production", func(c *Config) { c.JWTSecret = "short" }, ""},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, "DB_DRIVER"},
		{"unknown upload backend", func(c *Config) { c.UploadBackend = "ftp" }, "UPLOAD_BACKEND"},
		{"s3 without bucket", func(c *Config) { c.UploadBackend = "s3" }, "S3_BUCKET"},
		{"s3 configured", func(c *Config) {
			c.UploadBackend = "s3"
			c.S3Bucket = "media"
			c.S3PublicBaseURL = "https://media.example.com"
		}, ""},
		{"bcrypt cost too low", func(c *Config) { c.BcryptCost = 2 }, "BCRYPT_COST"},
		{"production short secret", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = "short"
		}, "at least 32 characters"},
		{"production weak db password", func(c *Config) {
			c.Env = "production"
			c.DBPassword = "pw"
		}, "DB_PASSWORD"},
		{"production sqlite skips db password", func(c *Config) {
			c.Env = "production"
			c.DBDriver = "sqlite"
			c.DBPassword = ""
		}, ""},
		{"production imagekit without private key", func(c *Config) {
			c.Env = "prod"
			c.ImageKitURLEndpoint = "https://ik.imagekit.io/demo"
		}, "IMAGEKIT_PRIVATE_KEY"},
		{"production fully configured", func(c *Config) {
			c.Env = "production"
			c.ImageKitURLEndpoint = "https://ik.imagekit.io/demo"
			c.ImageKitPrivateKey = "private_key"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestConfig_TokenTTL(t *testing.T) {
	c := validConfig()
	assert.Equal(t, 7*24*time.Hour, c.TokenTTL())

	c.JWTTTLHours = 2
	assert.Equal(t, 2*time.Hour, c.TokenTTL())
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "env-secret-that-is-long-enough-123456")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("PUBLIC_BASE_URL", "https://api.example.com/")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "env-secret-that-is-long-enough-123456", c.JWTSecret)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, "https://api.example.com", c.PublicBaseURL)
	assert.Equal(t, "5000", c.Port)
	assert.Equal(t, int64(5<<20), c.UploadMaxBytes())
}

func TestLoadConfig_RequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
}
