package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var configKeys = []string{
	"PORT", "ENVIRONMENT", "DATABASE_PATH", "JWT_SECRET", "TOKEN_TTL", "CORS_ORIGINS", "MAX_UPLOAD_SIZE",
	"STORAGE_TYPE", "FILE_STORAGE_PATH", "PUBLIC_BASE_URL", "S3_ENDPOINT", "S3_ACCESS_KEY", "S3_SECRET_KEY",
	"S3_BUCKET", "S3_USE_SSL", "REDIS_URL", "KAFKA_BROKERS", "KAFKA_TOPIC", "VAPID_PUBLIC_KEY",
	"VAPID_PRIVATE_KEY", "OTEL_EXPORTER_OTLP_ENDPOINT", "SEED_DEMO",
}

func writeEnvFile(t *testing.T, dir string, body string) string {
	t.Helper()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	return path
}

func unsetConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		// t.Setenv registers the restore, Unsetenv then clears the value for this test.
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func TestLoadReadsExplicitEnvFile(t *testing.T) {
	unsetConfigEnv(t)

	envPath := writeEnvFile(t, t.TempDir(), `
PORT=9090
ENVIRONMENT=production
DATABASE_PATH=/var/lib/memeboard/memeboard.db
JWT_SECRET=super-secret
TOKEN_TTL=24h
CORS_ORIGINS=https://example.com
MAX_UPLOAD_SIZE=2048
STORAGE_TYPE=S3
FILE_STORAGE_PATH=/var/lib/memeboard/uploads
PUBLIC_BASE_URL=https://memes.example.com/
S3_ENDPOINT=minio:9000
S3_BUCKET=dank
S3_USE_SSL=true
KAFKA_BROKERS=kafka-1:9092, kafka-2:9092
SEED_DEMO=false
`)
	t.Setenv("MEMEBOARD_ENV_FILE", envPath)

	cfg := Load()

	if cfg.Port != "9090" {
		t.Fatalf("Port = %q, want %q", cfg.Port, "9090")
	}
	if cfg.Environment != "production" {
		t.Fatalf("Environment = %q, want %q", cfg.Environment, "production")
	}
	if cfg.DatabasePath != "/var/lib/memeboard/memeboard.db" {
		t.Fatalf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.JWTSecret != "super-secret" {
		t.Fatalf("JWTSecret = %q", cfg.JWTSecret)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("TokenTTL = %s, want 24h", cfg.TokenTTL)
	}
	if cfg.MaxUploadSize != 2048 {
		t.Fatalf("MaxUploadSize = %d, want 2048", cfg.MaxUploadSize)
	}
	if cfg.StorageType != "s3" {
		t.Fatalf("StorageType = %q, want s3", cfg.StorageType)
	}
	if cfg.PublicBaseURL != "https://memes.example.com" {
		t.Fatalf("PublicBaseURL = %q", cfg.PublicBaseURL)
	}
	if cfg.S3Endpoint != "minio:9000" || cfg.S3Bucket != "dank" || !cfg.S3UseSSL {
		t.Fatalf("unexpected s3 config: %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if cfg.SeedDemo {
		t.Fatalf("SeedDemo = true, want false")
	}
}

func TestLoadEnvVarOverridesEnvFile(t *testing.T) {
	unsetConfigEnv(t)

	envPath := writeEnvFile(t, t.TempDir(), `
PORT=9090
DATABASE_PATH=/var/lib/memeboard/memeboard.db
FILE_STORAGE_PATH=/var/lib/memeboard/uploads
JWT_SECRET=file-secret
`)
	t.Setenv("MEMEBOARD_ENV_FILE", envPath)
	t.Setenv("DATABASE_PATH", "/override.db")
	t.Setenv("PORT", "7777")

	cfg := Load()

	if cfg.Port != "7777" {
		t.Fatalf("Port = %q, want %q", cfg.Port, "7777")
	}
	if cfg.DatabasePath != "/override.db" {
		t.Fatalf("DatabasePath = %q, want %q", cfg.DatabasePath, "/override.db")
	}
	if cfg.FileStoragePath != "/var/lib/memeboard/uploads" {
		t.Fatalf("FileStoragePath = %q", cfg.FileStoragePath)
	}
	if cfg.JWTSecret != "file-secret" {
		t.Fatalf("JWTSecret = %q", cfg.JWTSecret)
	}
	if cfg.PublicBaseURL != "http://localhost:7777" {
		t.Fatalf("PublicBaseURL = %q, want derived from port", cfg.PublicBaseURL)
	}
}

func TestLoadFallsBackToDefaultsWhenNoEnvFile(t *testing.T) {
	unsetConfigEnv(t)
	t.Setenv("MEMEBOARD_ENV_FILE", "")

	cfg := Load()

	if cfg.Port != "8000" {
		t.Fatalf("Port = %q, want %q", cfg.Port, "8000")
	}
	if cfg.DatabasePath != "./data/memeboard.db" {
		t.Fatalf("DatabasePath = %q, want default", cfg.DatabasePath)
	}
	if cfg.TokenTTL != 7*24*time.Hour {
		t.Fatalf("TokenTTL = %s, want 168h", cfg.TokenTTL)
	}
	if cfg.StorageType != "local" {
		t.Fatalf("StorageType = %q, want local", cfg.StorageType)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Fatalf("KafkaBrokers = %v, want none", cfg.KafkaBrokers)
	}
	if !cfg.SeedDemo {
		t.Fatalf("SeedDemo = false, want true")
	}
}

func TestLoadIgnoresBadNumbers(t *testing.T) {
	unsetConfigEnv(t)
	t.Setenv("MEMEBOARD_ENV_FILE", "")
	t.Setenv("MAX_UPLOAD_SIZE", "lots")
	t.Setenv("TOKEN_TTL", "-1h")

	cfg := Load()

	if cfg.MaxUploadSize != 10485760 {
		t.Fatalf("MaxUploadSize = %d, want default", cfg.MaxUploadSize)
	}
	if cfg.TokenTTL != 7*24*time.Hour {
		t.Fatalf("TokenTTL = %s, want default", cfg.TokenTTL)
	}
}
