package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            int
	SecretKey       string // signs session tokens; no default
	DatabasePath    string
	ImageDirectory  string
	ModelPath       string
	ConfigPath      string
	LabelsPath      string // empty uses the embedded COCO table
	LogDirectory    string
	MaxUploadSizeMB int64
	SessionTTLHours int
	TrustedProxies  []string // IPs or CIDRs allowed to set X-Forwarded-For
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	return &Config{
		Port:            getEnvAsInt("PORT", 8080),
		SecretKey:       getEnv("SECRET_KEY", ""),
		DatabasePath:    getEnv("DATABASE_PATH", filepath.Join(".", "data", "imagetag.db")),
		ImageDirectory:  getEnv("IMAGE_DIR", filepath.Join(".", "images")),
		ModelPath:       getEnv("MODEL_PATH", filepath.Join(".", "models", "frozen_inference_graph.pb")),
		ConfigPath:      getEnv("CONFIG_PATH", filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt")),
		LabelsPath:      getEnv("LABELS_PATH", ""),
		LogDirectory:    getEnv("LOG_DIR", filepath.Join(".", "logs")),
		MaxUploadSizeMB: getEnvAsInt64("MAX_UPLOAD_SIZE_MB", 10),
		SessionTTLHours: getEnvAsInt("SESSION_TTL_HOURS", 24),
		TrustedProxies:  getEnvAsList("TRUSTED_PROXIES"),
	}
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return errors.New("SECRET_KEY must be set")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("PORT must be between 1 and 65535")
	}
	if c.MaxUploadSizeMB <= 0 {
		return errors.New("MAX_UPLOAD_SIZE_MB must be positive")
	}
	if c.SessionTTLHours <= 0 {
		return errors.New("SESSION_TTL_HOURS must be positive")
	}
	if c.ImageDirectory == "" || c.DatabasePath == "" {
		return errors.New("IMAGE_DIR and DATABASE_PATH are required")
	}
	return nil
}

// MaxUploadBytes is the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadSizeMB << 20
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var values []string
	for _, value := range strings.Split(os.Getenv(key), ",") {
		if value = strings.TrimSpace(value); value != "" {
			values = append(values, value)
		}
	}
	return values
}
