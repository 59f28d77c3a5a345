package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvProduction is the only runtime in which rate limits are enforced.
const EnvProduction = "production"

// Config holds all configuration for the service.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	App             AppConfig             `mapstructure:"app"`
	Server          ServerConfig          `mapstructure:"server"`
	Upload          UploadConfig          `mapstructure:"upload"`
	Storage         StorageConfig         `mapstructure:"storage"`
	ImageProcessing ImageProcessingConfig `mapstructure:"image_processing"`
	S3              S3Config              `mapstructure:"s3"`
	Database        DatabaseConfig        `mapstructure:"database"`
	JWT             JWTConfig             `mapstructure:"jwt"`
	RateLimit       RateLimitConfig       `mapstructure:"ratelimit"`
	Log             LogConfig             `mapstructure:"log"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type UploadConfig struct {
	Dir string `mapstructure:"dir"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type ImageProcessingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type S3Config struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
	// Cloudflare R2: account id derives the endpoint, the hash selects the
	// pub-<hash>.r2.dev public bucket domain.
	R2AccountID  string `mapstructure:"r2_account_id"`
	R2PublicHash string `mapstructure:"r2_public_hash"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type RateLimitConfig struct {
	Store         string `mapstructure:"store"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// IsProduction reports whether the service runs in the production runtime.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.App.Env), EnvProduction)
}

// LoadConfig reads configuration from config.yaml in path (optional) and
// environment variables. Nested keys map to env names by replacing "." with
// "_", so storage.driver is STORAGE_DRIVER and upload.dir is UPLOAD_DIR.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	// Every key needs a default so Unmarshal picks up env-only values.
	v.SetDefault("app.env", "development")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("storage.driver", "local")
	v.SetDefault("image_processing.enabled", "false")
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.force_path_style", false)
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.public_base_url", "")
	v.SetDefault("s3.r2_account_id", "")
	v.SetDefault("s3.r2_public_hash", "")
	v.SetDefault("database.driver", "mongo")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "media_service")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("ratelimit.store", "memory")
	v.SetDefault("ratelimit.redis_addr", "localhost:6379")
	v.SetDefault("ratelimit.redis_password", "")
	v.SetDefault("ratelimit.redis_db", 0)
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	// IMAGE_PROCESSING_ENABLED accepts the usual bool-like spellings.
	v.Set("image_processing.enabled", ParseBoolish(v.GetString("image_processing.enabled")))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.JWT.Secret == "" {
		return Config{}, errors.New("jwt.secret (JWT_SECRET) is required")
	}
	return cfg, nil
}

// ParseBoolish treats 1/true/yes/on (any case) as true and anything else as false.
func ParseBoolish(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on", "y":
		return true
	default:
		return false
	}
}
