package app

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
)

const defaultJWTSecret = "change-me-in-production"

type Config struct {
	LogMode       string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	HTTPAddr  string
	RunServer bool
	RunWorker bool

	DBDriver    string
	DatabaseURL string
	SQLitePath  string
	DBMaxOpen   int
	DBMaxIdle   int

	JWTSecretKey   string
	AccessTokenTTL time.Duration
	ResetTokenTTL  time.Duration
	BcryptCost     int

	VectorProvider string
	QdrantURL      string
	QdrantAPIKey   string
	QdrantTimeout  time.Duration

	EmbedBaseURL string
	EmbedAPIKey  string
	EmbedModel   string

	LLMBaseURL    string
	LLMAPIKey     string
	LLMModel      string
	LLMTimeout    time.Duration
	LLMMaxRetries int

	IngestChunkSize       int
	IngestChunkOverlap    int
	IngestEmbedBatch      int
	IngestParallelism     int
	IngestAllowLocalPaths bool
	GenerateTopK          int

	JobTimeout              time.Duration
	WorkerConcurrency       int
	WorkerPollInterval      time.Duration
	WorkerSweepInterval     time.Duration
	WorkerHeartbeatInterval time.Duration

	StorageProvider string
	UploadDir       string
	MaxUploadBytes  int64
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioUseSSL     bool
	MinioRegion     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	MetricsEnabled bool

	OtelEnabled     bool
	OtelServiceName string
	OtelEnvironment string
	OtelEndpoint    string
	OtelHeaders     string
	OtelInsecure    bool
	OtelSampleRatio float64

	CORSAllowedOrigins     []string
	AuthRateLimitPerMinute int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LOG_MODE", "development")
	v.SetDefault("LOG_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 5)
	v.SetDefault("LOG_MAX_AGE_DAYS", 28)

	v.SetDefault("HTTP_ADDR", ":8000")
	v.SetDefault("RUN_SERVER", true)
	v.SetDefault("RUN_WORKER", true)

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "postgres")
	v.SetDefault("POSTGRES_DB", "bloomquiz")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("SQLITE_PATH", "bloomquiz.db")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("JWT_SECRET_KEY", defaultJWTSecret)
	v.SetDefault("ACCESS_TOKEN_TTL", 1800)
	v.SetDefault("RESET_TOKEN_TTL", 900)
	v.SetDefault("BCRYPT_COST", 12)

	v.SetDefault("VECTOR_PROVIDER", string(VectorProviderQdrant))
	v.SetDefault("QDRANT_URL", "http://localhost:6333")
	v.SetDefault("QDRANT_TIMEOUT_SECONDS", 30)

	v.SetDefault("EMBED_BASE_URL", "http://localhost:11434/v1")
	v.SetDefault("EMBED_API_KEY", "ollama")
	v.SetDefault("EMBED_MODEL", "qwen3-embedding:0.6b")

	v.SetDefault("LLM_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/")
	v.SetDefault("LLM_MODEL", "gemini-2.5-flash-lite")
	v.SetDefault("LLM_TIMEOUT_SECONDS", 120)
	v.SetDefault("LLM_MAX_RETRIES", 2)

	v.SetDefault("INGEST_CHUNK_SIZE", 1000)
	v.SetDefault("INGEST_CHUNK_OVERLAP", 400)
	v.SetDefault("INGEST_EMBED_BATCH", 64)
	v.SetDefault("INGEST_PARALLELISM", 4)
	v.SetDefault("INGEST_ALLOW_LOCAL_PATHS", false)
	v.SetDefault("GENERATE_TOP_K", 5)

	v.SetDefault("JOB_TIMEOUT_SECONDS", 600)
	v.SetDefault("WORKER_CONCURRENCY", 4)
	v.SetDefault("WORKER_POLL_INTERVAL", "1s")
	v.SetDefault("WORKER_SWEEP_INTERVAL", "30s")
	v.SetDefault("WORKER_HEARTBEAT_INTERVAL", "10s")

	v.SetDefault("STORAGE_PROVIDER", string(StorageProviderLocal))
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("MAX_UPLOAD_BYTES", 50<<20)
	v.SetDefault("MINIO_BUCKET", "bloomquiz-uploads")

	v.SetDefault("REDIS_CHANNEL", "job_events")

	v.SetDefault("METRICS_ENABLED", true)

	v.SetDefault("OTEL_SERVICE_NAME", "bloomquiz-backend")
	v.SetDefault("OTEL_ENVIRONMENT", "development")
	v.SetDefault("OTEL_SAMPLE_RATIO", 1.0)

	v.SetDefault("AUTH_RATE_LIMIT_PER_MINUTE", 20)
}

// LoadConfig reads settings from the environment, overlaid on CONFIG_FILE
// (YAML) when that is set. Keys are the environment variable names.
func LoadConfig(log *logger.Logger) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	if path := strings.TrimSpace(v.GetString("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	return configFrom(v, log)
}

func configFrom(v *viper.Viper, log *logger.Logger) (Config, error) {
	cfg := Config{
		LogMode:       v.GetString("LOG_MODE"),
		LogFile:       v.GetString("LOG_FILE"),
		LogMaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
		LogMaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
		LogMaxAgeDays: v.GetInt("LOG_MAX_AGE_DAYS"),

		HTTPAddr:  v.GetString("HTTP_ADDR"),
		RunServer: v.GetBool("RUN_SERVER"),
		RunWorker: v.GetBool("RUN_WORKER"),

		DBDriver:    strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
		DatabaseURL: strings.TrimSpace(v.GetString("DATABASE_URL")),
		SQLitePath:  v.GetString("SQLITE_PATH"),
		DBMaxOpen:   v.GetInt("DB_MAX_OPEN_CONNS"),
		DBMaxIdle:   v.GetInt("DB_MAX_IDLE_CONNS"),

		JWTSecretKey:   v.GetString("JWT_SECRET_KEY"),
		AccessTokenTTL: seconds(v, "ACCESS_TOKEN_TTL"),
		ResetTokenTTL:  seconds(v, "RESET_TOKEN_TTL"),
		BcryptCost:     v.GetInt("BCRYPT_COST"),

		VectorProvider: strings.ToLower(strings.TrimSpace(v.GetString("VECTOR_PROVIDER"))),
		QdrantURL:      v.GetString("QDRANT_URL"),
		QdrantAPIKey:   v.GetString("QDRANT_API_KEY"),
		QdrantTimeout:  seconds(v, "QDRANT_TIMEOUT_SECONDS"),

		EmbedBaseURL: v.GetString("EMBED_BASE_URL"),
		EmbedAPIKey:  v.GetString("EMBED_API_KEY"),
		EmbedModel:   v.GetString("EMBED_MODEL"),

		LLMBaseURL:    v.GetString("LLM_BASE_URL"),
		LLMAPIKey:     v.GetString("LLM_API_KEY"),
		LLMModel:      v.GetString("LLM_MODEL"),
		LLMTimeout:    seconds(v, "LLM_TIMEOUT_SECONDS"),
		LLMMaxRetries: v.GetInt("LLM_MAX_RETRIES"),

		IngestChunkSize:       v.GetInt("INGEST_CHUNK_SIZE"),
		IngestChunkOverlap:    v.GetInt("INGEST_CHUNK_OVERLAP"),
		IngestEmbedBatch:      v.GetInt("INGEST_EMBED_BATCH"),
		IngestParallelism:     v.GetInt("INGEST_PARALLELISM"),
		IngestAllowLocalPaths: v.GetBool("INGEST_ALLOW_LOCAL_PATHS"),
		GenerateTopK:          v.GetInt("GENERATE_TOP_K"),

		JobTimeout:              seconds(v, "JOB_TIMEOUT_SECONDS"),
		WorkerConcurrency:       v.GetInt("WORKER_CONCURRENCY"),
		WorkerPollInterval:      v.GetDuration("WORKER_POLL_INTERVAL"),
		WorkerSweepInterval:     v.GetDuration("WORKER_SWEEP_INTERVAL"),
		WorkerHeartbeatInterval: v.GetDuration("WORKER_HEARTBEAT_INTERVAL"),

		StorageProvider: strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_PROVIDER"))),
		UploadDir:       v.GetString("UPLOAD_DIR"),
		MaxUploadBytes:  v.GetInt64("MAX_UPLOAD_BYTES"),
		MinioEndpoint:   v.GetString("MINIO_ENDPOINT"),
		MinioAccessKey:  v.GetString("MINIO_ACCESS_KEY"),
		MinioSecretKey:  v.GetString("MINIO_SECRET_KEY"),
		MinioBucket:     v.GetString("MINIO_BUCKET"),
		MinioUseSSL:     v.GetBool("MINIO_USE_SSL"),
		MinioRegion:     v.GetString("MINIO_REGION"),

		RedisAddr:     strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),
		RedisChannel:  v.GetString("REDIS_CHANNEL"),

		MetricsEnabled: v.GetBool("METRICS_ENABLED"),

		OtelEnabled:     v.GetBool("OTEL_ENABLED"),
		OtelServiceName: v.GetString("OTEL_SERVICE_NAME"),
		OtelEnvironment: v.GetString("OTEL_ENVIRONMENT"),
		OtelEndpoint:    v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OtelHeaders:     v.GetString("OTEL_EXPORTER_OTLP_HEADERS"),
		OtelInsecure:    v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
		OtelSampleRatio: v.GetFloat64("OTEL_SAMPLE_RATIO"),

		CORSAllowedOrigins:     splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		AuthRateLimitPerMinute: v.GetInt("AUTH_RATE_LIMIT_PER_MINUTE"),
	}
	if cfg.DBDriver == "postgres" && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = postgresURL(v)
	}
	if err := cfg.validate(log); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate(log *logger.Logger) error {
	if !c.RunServer && !c.RunWorker {
		return fmt.Errorf("RUN_SERVER and RUN_WORKER are both false; nothing to run")
	}
	if c.IngestChunkOverlap >= c.IngestChunkSize {
		return fmt.Errorf("INGEST_CHUNK_OVERLAP (%d) must be smaller than INGEST_CHUNK_SIZE (%d)", c.IngestChunkOverlap, c.IngestChunkSize)
	}
	if c.JWTSecretKey == defaultJWTSecret || len(c.JWTSecretKey) < 32 {
		if c.LogMode == "production" {
			return fmt.Errorf("JWT_SECRET_KEY must be set to at least 32 characters in production")
		}
		if log != nil {
			log.Warn("JWT_SECRET_KEY is weak or unset; do not use this configuration in production")
		}
	}
	return nil
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt(key)) * time.Second
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func postgresURL(v *viper.Viper) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(v.GetString("POSTGRES_USER"), v.GetString("POSTGRES_PASSWORD")),
		Host:     fmt.Sprintf("%s:%d", v.GetString("POSTGRES_HOST"), v.GetInt("POSTGRES_PORT")),
		Path:     "/" + v.GetString("POSTGRES_DB"),
		RawQuery: "sslmode=" + url.QueryEscape(v.GetString("POSTGRES_SSLMODE")),
	}
	return u.String()
}
