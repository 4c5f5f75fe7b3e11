// Package config reads the server settings from the environment.
//
// Values are read once at startup and handed to the components that need them;
// nothing downstream calls os.Getenv on its own.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Image host modes.
const (
	ImageHostUpstream = "upstream"
	ImageHostImageKit = "imagekit"
	ImageHostS3       = "s3"
)

const defaultImageKitUploadURL = "https://upload.imagekit.io/api/v1/files/upload"

var ErrMissingUpstream = errors.New("UPSTREAM_BASE environment variable not set")

type Config struct {
	Port       string
	Env        string
	CORSOrigin string

	AdminEmail    string
	AdminPassword string
	AuthSecret    string

	UpstreamBase    string
	UpstreamToken   string
	UpstreamTimeout time.Duration

	ImageHost          string
	ImageKitPrivateKey string
	ImageKitFolder     string
	ImageKitUploadURL  string
	MaxImageBytes      int64

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string

	DatabaseURL      string
	OTelCollectorURL string

	LoginRateRPS float64
	WriteRateRPS float64
}

// Production reports whether the server runs with production settings
// (secure cookies, JSON logs).
func (c *Config) Production() bool {
	return c.Env == "production"
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:       getEnvString("PORT", "8080"),
		Env:        getEnvString("APP_ENV", "development"),
		CORSOrigin: getEnvString("CORS_ORIGIN", "*"),

		AdminEmail:    getEnvString("ADMIN_EMAIL", ""),
		AdminPassword: getEnvString("ADMIN_PASSWORD", ""),
		AuthSecret:    getEnvString("AUTH_SECRET", ""),

		UpstreamBase:    strings.TrimRight(getEnvString("UPSTREAM_BASE", ""), "/"),
		UpstreamToken:   strings.TrimSpace(getEnvString("BARRIER_TOKEN", "")),
		UpstreamTimeout: getEnvDuration("UPSTREAM_TIMEOUT", 15*time.Second),

		ImageKitPrivateKey: getEnvString("IMAGEKIT_PRIVATE_KEY", ""),
		ImageKitFolder:     getEnvString("IMAGEKIT_FOLDER", "/Career"),
		ImageKitUploadURL:  getEnvString("IMAGEKIT_UPLOAD_URL", defaultImageKitUploadURL),
		MaxImageBytes:      int64(getEnvInt("MAX_IMAGE_MB", 2)) << 20,

		S3Bucket:    getEnvString("S3_BUCKET", ""),
		S3Region:    getEnvString("S3_REGION", "us-east-1"),
		S3Endpoint:  getEnvString("S3_ENDPOINT", ""),
		S3AccessKey: getEnvString("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnvString("S3_SECRET_KEY", ""),
		S3PublicURL: strings.TrimRight(getEnvString("S3_PUBLIC_URL", ""), "/"),

		DatabaseURL:      getEnvString("DATABASE_URL", "sqlite://careerboard.db"),
		OTelCollectorURL: getEnvString("OTEL_COLLECTOR_URL", ""),

		LoginRateRPS: getEnvFloat("LOGIN_RATE_RPS", 1.0/3.0),
		WriteRateRPS: getEnvFloat("WRITE_RATE_RPS", 1.0),
	}

	cfg.ImageHost = getEnvString("IMAGE_HOST", "")
	if cfg.ImageHost == "" {
		cfg.ImageHost = ImageHostUpstream
		if cfg.ImageKitPrivateKey != "" {
			cfg.ImageHost = ImageHostImageKit
		}
	}

	if cfg.UpstreamBase == "" {
		return nil, ErrMissingUpstream
	}
	switch cfg.ImageHost {
	case ImageHostUpstream, ImageHostImageKit, ImageHostS3:
	default:
		return nil, errors.New("IMAGE_HOST must be one of upstream, imagekit, s3")
	}

	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
