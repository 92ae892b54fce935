package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	Environment     string
	DatabasePath    string
	JWTSecret       string
	TokenTTL        time.Duration
	CORSOrigins     string
	MaxUploadSize   int64
	StorageType     string // local or s3
	FileStoragePath string
	PublicBaseURL   string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3UseSSL        bool
	RedisURL        string
	KafkaBrokers    []string
	KafkaTopic      string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	OTLPEndpoint    string
	SeedDemo        bool
}

// Load reads configuration from the process environment. Values missing from
// the environment are taken from the env file named by MEMEBOARD_ENV_FILE
// (or ./.env when present) and then from built-in defaults.
func Load() *Config {
	file := readEnvFile()
	get := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		if value, exists := file[key]; exists {
			return value
		}
		return defaultValue
	}

	port := get("PORT", "8000")

	return &Config{
		Port:            port,
		Environment:     get("ENVIRONMENT", "development"),
		DatabasePath:    get("DATABASE_PATH", "./data/memeboard.db"),
		JWTSecret:       get("JWT_SECRET", "dev_secret_key_change_in_production"),
		TokenTTL:        parseDuration(get("TOKEN_TTL", "168h"), 7*24*time.Hour),
		CORSOrigins:     get("CORS_ORIGINS", "*"),
		MaxUploadSize:   parseInt64(get("MAX_UPLOAD_SIZE", "10485760")), // 10MB default
		StorageType:     strings.ToLower(get("STORAGE_TYPE", "local")),
		FileStoragePath: get("FILE_STORAGE_PATH", "./data/uploads"),
		PublicBaseURL:   strings.TrimRight(get("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
		S3Endpoint:      get("S3_ENDPOINT", ""),
		S3AccessKey:     get("S3_ACCESS_KEY", ""),
		S3SecretKey:     get("S3_SECRET_KEY", ""),
		S3Bucket:        get("S3_BUCKET", "memes"),
		S3UseSSL:        parseBool(get("S3_USE_SSL", "false")),
		RedisURL:        get("REDIS_URL", ""),
		KafkaBrokers:    splitList(get("KAFKA_BROKERS", "")),
		KafkaTopic:      get("KAFKA_TOPIC", "memeboard.events"),
		VAPIDPublicKey:  get("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: get("VAPID_PRIVATE_KEY", ""),
		OTLPEndpoint:    get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		SeedDemo:        parseBool(get("SEED_DEMO", "true")),
	}
}

func readEnvFile() map[string]string {
	path, explicit := os.LookupEnv("MEMEBOARD_ENV_FILE")
	if !explicit {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if path == "" {
		return nil
	}

	values, err := godotenv.Read(path)
	if err != nil {
		log.Printf("config: failed to read env file path=%s error=%v", path, err)
		return nil
	}
	return values
}

func parseInt64(s string) int64 {
	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 10485760 // 10MB default
	}
	return val
}

func parseBool(s string) bool {
	val, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return val
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	val, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || val <= 0 {
		return fallback
	}
	return val
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
