package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPath is the default location of the service config file.
var ConfigPath = envOr("INGEST_CONFIG_PATH", "config.yaml")

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port       string `yaml:"port"`
	LogLevel   string `yaml:"logLevel"`
	LogsDir    string `yaml:"logsDir"`
	AdminToken string `yaml:"adminToken"`

	DatabaseURL  string `yaml:"databaseURL"`
	EmbeddingDim int    `yaml:"embeddingDim"`

	RedisAddr              string `yaml:"redisAddr"`
	RedisPassword          string `yaml:"redisPassword"`
	QueueName              string `yaml:"queueName"`
	QueueGroup             string `yaml:"queueGroup"`
	QueueConcurrency       int    `yaml:"queueConcurrency"`
	QueueMaxRetries        int    `yaml:"queueMaxRetries"`
	QueueRetryDelaySeconds int    `yaml:"queueRetryDelaySeconds"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
	MaxUploadMB    int    `yaml:"maxUploadMB"`

	EmbeddingProvider   string  `yaml:"embeddingProvider"`
	EmbeddingBaseURL    string  `yaml:"embeddingBaseURL"`
	EmbeddingAPIKey     string  `yaml:"embeddingAPIKey"`
	EmbeddingModel      string  `yaml:"embeddingModel"`
	EmbeddingRPS        float64 `yaml:"embeddingRPS"`
	GenerationProvider  string  `yaml:"generationProvider"`
	GenerationBaseURL   string  `yaml:"generationBaseURL"`
	GenerationAPIKey    string  `yaml:"generationAPIKey"`
	GenerationModel     string  `yaml:"generationModel"`
	ChunkSize           int     `yaml:"chunkSize"`
	ChunkOverlap        int     `yaml:"chunkOverlap"`
	BatchSize           int     `yaml:"batchSize"`
	BatchDelayMillis    int     `yaml:"batchDelayMillis"`
	UsePdftotext        bool    `yaml:"usePdftotext"`
	PdftotextTimeoutSec int     `yaml:"pdftotextTimeoutSeconds"`
}

// Load reads config from path (defaults to ConfigPath). A .env file in the
// working directory is loaded first so its values act as env overrides.
func Load(path string) (FileConfig, error) {
	_ = godotenv.Load()

	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	overrideString(&cfg.Port, "PORT")
	overrideString(&cfg.LogLevel, "LOG_LEVEL")
	overrideString(&cfg.LogsDir, "LOGS_DIR")
	overrideString(&cfg.AdminToken, "ADMIN_TOKEN")
	overrideString(&cfg.DatabaseURL, "DATABASE_URL")
	overrideInt(&cfg.EmbeddingDim, "NUMAINDA_EMBEDDING_DIM")
	overrideString(&cfg.RedisAddr, "REDIS_ADDR")
	overrideString(&cfg.RedisPassword, "REDIS_PASSWORD")
	overrideString(&cfg.QueueName, "INGEST_QUEUE_NAME")
	overrideString(&cfg.QueueGroup, "INGEST_QUEUE_GROUP")
	overrideInt(&cfg.QueueConcurrency, "INGEST_QUEUE_CONCURRENCY")
	overrideInt(&cfg.QueueMaxRetries, "INGEST_QUEUE_MAX_RETRIES")
	overrideInt(&cfg.QueueRetryDelaySeconds, "INGEST_QUEUE_RETRY_DELAY_SECONDS")
	overrideString(&cfg.MinioEndpoint, "MINIO_ENDPOINT")
	overrideString(&cfg.MinioAccessKey, "MINIO_ACCESS_KEY")
	overrideString(&cfg.MinioSecretKey, "MINIO_SECRET_KEY")
	overrideString(&cfg.MinioBucket, "MINIO_BUCKET")
	overrideBool(&cfg.MinioUseSSL, "MINIO_USE_SSL")
	overrideInt(&cfg.MaxUploadMB, "INGEST_MAX_UPLOAD_MB")
	overrideString(&cfg.EmbeddingProvider, "EMBEDDING_PROVIDER")
	overrideString(&cfg.EmbeddingBaseURL, "EMBEDDING_BASE_URL")
	overrideString(&cfg.EmbeddingAPIKey, "EMBEDDING_API_KEY")
	overrideString(&cfg.EmbeddingModel, "EMBEDDING_MODEL")
	overrideFloat(&cfg.EmbeddingRPS, "EMBEDDING_RPS")
	overrideString(&cfg.GenerationProvider, "GENERATION_PROVIDER")
	overrideString(&cfg.GenerationBaseURL, "GENERATION_BASE_URL")
	overrideString(&cfg.GenerationAPIKey, "GENERATION_API_KEY")
	overrideString(&cfg.GenerationModel, "GENERATION_MODEL")
	overrideInt(&cfg.ChunkSize, "INGEST_CHUNK_SIZE")
	overrideInt(&cfg.ChunkOverlap, "INGEST_CHUNK_OVERLAP")
	overrideInt(&cfg.BatchSize, "INGEST_BATCH_SIZE")
	overrideInt(&cfg.BatchDelayMillis, "INGEST_BATCH_DELAY_MS")
	overrideBool(&cfg.UsePdftotext, "INGEST_USE_PDFTOTEXT")
	overrideInt(&cfg.PdftotextTimeoutSec, "INGEST_PDFTOTEXT_TIMEOUT_SECONDS")

	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 1536
	}
	if cfg.QueueName == "" {
		cfg.QueueName = "numainda:ingest"
	}
	if cfg.QueueGroup == "" {
		cfg.QueueGroup = "ingest-workers"
	}
	if cfg.QueueConcurrency == 0 {
		cfg.QueueConcurrency = 2
	}
	if cfg.MinioBucket == "" {
		cfg.MinioBucket = "numainda-uploads"
	}
	if cfg.MaxUploadMB == 0 {
		cfg.MaxUploadMB = 50
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 1500
	}
	if cfg.ChunkOverlap == 0 {
		cfg.ChunkOverlap = 300
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if strings.TrimSpace(cfg.AdminToken) == "" {
		return errors.New("config: adminToken is required (set in config.yaml or ADMIN_TOKEN)")
	}
	if cfg.EmbeddingDim <= 0 {
		return errors.New("config: embeddingDim must be > 0")
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set in config.yaml or REDIS_ADDR)")
	}
	if cfg.QueueConcurrency <= 0 {
		return errors.New("config: queueConcurrency must be > 0")
	}
	if cfg.MinioEndpoint == "" || cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" {
		return errors.New("config: minioEndpoint, minioAccessKey and minioSecretKey are required")
	}
	if cfg.MaxUploadMB <= 0 {
		return errors.New("config: maxUploadMB must be > 0")
	}
	if cfg.EmbeddingModel == "" {
		return errors.New("config: embeddingModel is required (set in config.yaml or EMBEDDING_MODEL)")
	}
	if cfg.EmbeddingRPS < 0 {
		return errors.New("config: embeddingRPS must be >= 0")
	}
	if cfg.GenerationProvider != "" && cfg.GenerationProvider != "none" && cfg.GenerationModel == "" {
		return errors.New("config: generationModel is required when generationProvider is set")
	}
	if cfg.ChunkSize <= 0 {
		return errors.New("config: chunkSize must be > 0 (set in config.yaml or INGEST_CHUNK_SIZE)")
	}
	if cfg.ChunkOverlap < 0 {
		return errors.New("config: chunkOverlap must be >= 0 (set in config.yaml or INGEST_CHUNK_OVERLAP)")
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return errors.New("config: chunkOverlap must be smaller than chunkSize")
	}
	if cfg.BatchSize < 0 {
		return errors.New("config: batchSize must be >= 0")
	}
	if cfg.PdftotextTimeoutSec < 0 {
		return errors.New("config: pdftotextTimeoutSeconds must be >= 0")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func overrideFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = n
		}
	}
}

func overrideBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
