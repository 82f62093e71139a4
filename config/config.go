package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Config struct {
	Port        string
	Env         string
	BaseURL     string
	DBPath      string
	JWTSecret   string
	MaxUploadMB int64
	MinIO       MinIOConfig
}

var AppConfig *Config

func Load() {
	_ = godotenv.Load()

	AppConfig = &Config{
		Port:        GetEnv("PORT", "3000"),
		Env:         GetEnv("ENV", "development"),
		BaseURL:     GetEnv("BASE_URL", "http://localhost:3000"),
		DBPath:      GetEnv("DB_PATH", "./data/iped-studio.db"),
		JWTSecret:   GetEnv("JWT_SECRET", "dev-secret-change-me"),
		MaxUploadMB: GetEnvInt64("MAX_UPLOAD_MB", 16),
		MinIO: MinIOConfig{
			Endpoint:  GetEnv("MINIO_ENDPOINT", ""),
			AccessKey: GetEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: GetEnv("MINIO_SECRET_KEY", ""),
			Bucket:    GetEnv("MINIO_BUCKET", "study-elements"),
			UseSSL:    GetEnvBool("MINIO_USE_SSL", false),
		},
	}

	if AppConfig.Env == "production" && AppConfig.JWTSecret == "dev-secret-change-me" {
		log.Fatal("JWT_SECRET is required in production")
	}
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
