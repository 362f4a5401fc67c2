package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/romariotrain/course-platform/internal/upload/s3"
)

type Config struct {
	Port        string
	DatabaseURL string

	S3 s3.Config

	KafkaBrokers []string
	KafkaTopic   string

	// PartURLTTL — срок жизни presigned ссылки на загрузку части.
	PartURLTTL time.Duration

	ReaperInterval  time.Duration
	ReaperBatchSize int

	OutboxInterval  time.Duration
	OutboxBatchSize int
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		S3: s3.Config{
			Region:        getEnv("S3_REGION", "us-east-1"),
			Bucket:        getEnv("S3_BUCKET", ""),
			AccessKey:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretKey:     getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:      getEnv("S3_ENDPOINT", ""),
			PublicBaseURL: getEnv("S3_PUBLIC_BASE_URL", ""),
		},
		KafkaBrokers:    splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "course-video-events"),
		PartURLTTL:      getDuration("PART_URL_TTL", 15*time.Minute),
		ReaperInterval:  getDuration("REAPER_INTERVAL", 10*time.Minute),
		ReaperBatchSize: getInt("REAPER_BATCH_SIZE", 50),
		OutboxInterval:  getDuration("OUTBOX_INTERVAL", 5*time.Second),
		OutboxBatchSize: getInt("OUTBOX_BATCH_SIZE", 100),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}
	if cfg.S3.Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is empty")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
