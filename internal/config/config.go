package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the chat server.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	DBMaxConns  int32
	RedisURL    string
	JWTSecret   string
	CORSOrigins string

	// Attachments
	UploadDir     string
	PublicBaseURL string
	S3            S3Config

	// Audit log
	KafkaBrokers []string
	KafkaTopic   string

	// Socket events allowed per second per connection, and burst
	SocketRate  float64
	SocketBurst int

	// HTTP request limits, per user or IP
	AuthLimit   int
	ReadLimit   int
	UploadLimit int
}

// S3Config selects MinIO/S3 attachment storage when Endpoint is set.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		DBMaxConns:    int32(getFloat("DB_MAX_CONNS", 10)),
		RedisURL:      os.Getenv("REDIS_URL"),
		JWTSecret:     getEnv("JWT_SECRET", "kelasin-dev-secret"),
		CORSOrigins:   getEnv("CORS_ORIGINS", "http://localhost:3000"),
		UploadDir:     getEnv("UPLOAD_DIR", "./uploads"),
		PublicBaseURL: os.Getenv("PUBLIC_BASE_URL"),
		S3: S3Config{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Bucket:    getEnv("S3_BUCKET", "chat-attachments"),
			UseSSL:    getEnv("S3_USE_SSL", "false") == "true",
			Region:    os.Getenv("S3_REGION"),
		},
		KafkaTopic:  getEnv("KAFKA_TOPIC", "chat.audit"),
		SocketRate:  getFloat("SOCKET_RATE", 10),
		SocketBurst: int(getFloat("SOCKET_BURST", 20)),
		AuthLimit:   int(getFloat("AUTH_LIMIT", 5)),
		ReadLimit:   int(getFloat("READ_LIMIT", 100)),
		UploadLimit: int(getFloat("UPLOAD_LIMIT", 10)),
	}

	// Parse brokers (comma-separated host:port)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			b = strings.TrimSpace(b)
			if b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	// In production, require database and a real signing secret
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if os.Getenv("JWT_SECRET") == "" {
			panic("JWT_SECRET is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}
