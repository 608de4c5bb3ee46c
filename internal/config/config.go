// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	DBDriver       string `mapstructure:"DB_DRIVER"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	DBDSN          string `mapstructure:"DB_DSN"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	JWTTTLHours    int    `mapstructure:"JWT_TTL_HOURS"`
	BcryptCost     int    `mapstructure:"BCRYPT_COST"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FrontendURL    string `mapstructure:"FRONTEND_URL"`
	PublicBaseURL  string `mapstructure:"PUBLIC_BASE_URL"`
	StaticDir      string `mapstructure:"STATIC_DIR"`

	UploadDir       string `mapstructure:"UPLOAD_DIR"`
	UploadBackend   string `mapstructure:"UPLOAD_BACKEND"`
	UploadMaxSizeMB int    `mapstructure:"UPLOAD_MAX_SIZE_MB"`
	UploadMaxFiles  int    `mapstructure:"UPLOAD_MAX_FILES"`

	ImageKitURLEndpoint string `mapstructure:"IMAGEKIT_URL_ENDPOINT"`
	ImageKitPublicKey   string `mapstructure:"IMAGEKIT_PUBLIC_KEY"`
	ImageKitPrivateKey  string `mapstructure:"IMAGEKIT_PRIVATE_KEY"`
	ImageKitFolder      string `mapstructure:"IMAGEKIT_FOLDER"`
	ImageKitAPIBaseURL  string `mapstructure:"IMAGEKIT_API_BASE_URL"`

	S3Bucket        string `mapstructure:"S3_BUCKET"`
	S3Region        string `mapstructure:"S3_REGION"`
	S3Endpoint      string `mapstructure:"S3_ENDPOINT"`
	S3AccessKey     string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey     string `mapstructure:"S3_SECRET_KEY"`
	S3PublicBaseURL string `mapstructure:"S3_PUBLIC_BASE_URL"`
	S3KeyPrefix     string `mapstructure:"S3_KEY_PREFIX"`

	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`
	TracingExporter string `mapstructure:"TRACING_EXPORTER"`
	TracingEndpoint string `mapstructure:"TRACING_ENDPOINT"`
}

// secretKeys have no default value and are only ever read from the environment or a config file.
var secretKeys = []string{
	"JWT_SECRET",
	"DB_PASSWORD",
	"IMAGEKIT_PRIVATE_KEY",
	"S3_SECRET_KEY",
}

// LoadConfig loads application configuration from .env, config files and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.AddConfigPath("../..")
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()

	// The base config file is optional.
	_ = v.ReadInConfig()

	env := strings.ToLower(strings.TrimSpace(v.GetString("APP_ENV")))
	if env == "" {
		env = "development"
	}

	if env != "development" {
		v.SetConfigName("config." + env)
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config.%s.yml: %w", env, err)
			}
		} else {
			log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
		}
	}

	setDefaults(v)
	for _, key := range secretKeys {
		_ = v.BindEnv(key)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.Env = env
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "5000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "explorer")
	v.SetDefault("DB_NAME", "srilanka_explorer")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_DSN", "explorer.db")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("JWT_TTL_HOURS", 168)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("PUBLIC_BASE_URL", "")
	v.SetDefault("STATIC_DIR", "./dist")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("UPLOAD_BACKEND", "local")
	v.SetDefault("UPLOAD_MAX_SIZE_MB", 5)
	v.SetDefault("UPLOAD_MAX_FILES", 10)
	v.SetDefault("IMAGEKIT_URL_ENDPOINT", "")
	v.SetDefault("IMAGEKIT_PUBLIC_KEY", "")
	v.SetDefault("IMAGEKIT_FOLDER", "/experiences/")
	v.SetDefault("IMAGEKIT_API_BASE_URL", "https://api.imagekit.io")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_PUBLIC_BASE_URL", "")
	v.SetDefault("S3_KEY_PREFIX", "experiences/")
	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_EXPORTER", "stdout")
	v.SetDefault("TRACING_ENDPOINT", "localhost:4318")
}

func (c *Config) normalize() {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.UploadBackend = strings.ToLower(strings.TrimSpace(c.UploadBackend))
	c.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.PublicBaseURL), "/")
	c.FrontendURL = strings.TrimRight(strings.TrimSpace(c.FrontendURL), "/")
	c.ImageKitURLEndpoint = strings.TrimRight(strings.TrimSpace(c.ImageKitURLEndpoint), "/")
	c.S3PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.S3PublicBaseURL), "/")
}

// IsProduction reports whether the service runs with production semantics.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// TokenTTL is the validity window of issued session tokens.
func (c *Config) TokenTTL() time.Duration {
	if c.JWTTTLHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.JWTTTLHours) * time.Hour
}

// UploadMaxBytes is the per-file size cap for uploads.
func (c *Config) UploadMaxBytes() int64 {
	return int64(c.UploadMaxSizeMB) << 20
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if c.UploadBackend != "local" && c.UploadBackend != "s3" {
		return fmt.Errorf("UPLOAD_BACKEND must be local or s3, got %q", c.UploadBackend)
	}
	if c.UploadBackend == "s3" && (c.S3Bucket == "" || c.S3PublicBaseURL == "") {
		return errors.New("S3_BUCKET and S3_PUBLIC_BASE_URL are required when UPLOAD_BACKEND=s3")
	}
	if c.UploadMaxSizeMB <= 0 || c.UploadMaxFiles <= 0 {
		return errors.New("UPLOAD_MAX_SIZE_MB and UPLOAD_MAX_FILES must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("BCRYPT_COST must be between 4 and 31")
	}

	// Strict checks for production
	if c.IsProduction() {
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBDriver == "postgres" && len(c.DBPassword) < 8 {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.ImageKitURLEndpoint != "" && c.ImageKitPrivateKey == "" {
			return errors.New("IMAGEKIT_PRIVATE_KEY is required when IMAGEKIT_URL_ENDPOINT is set")
		}
		if c.DBDriver == "postgres" && c.DBSSLMode == "disable" {
			log.Println("WARNING: DB_SSLMODE is 'disable' in production. It is highly recommended to use SSL for database connections.")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
