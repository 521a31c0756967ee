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
var ConfigPath = envOr("CHAT_CONFIG_PATH", "config.yaml")

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`
	LogsDir  string `yaml:"logsDir"`

	DatabaseURL  string `yaml:"databaseURL"`
	EmbeddingDim int    `yaml:"embeddingDim"`

	EmbeddingProvider  string  `yaml:"embeddingProvider"`
	EmbeddingBaseURL   string  `yaml:"embeddingBaseURL"`
	EmbeddingAPIKey    string  `yaml:"embeddingAPIKey"`
	EmbeddingModel     string  `yaml:"embeddingModel"`
	EmbeddingRPS       float64 `yaml:"embeddingRPS"`
	GenerationProvider string  `yaml:"generationProvider"`
	GenerationBaseURL  string  `yaml:"generationBaseURL"`
	GenerationAPIKey   string  `yaml:"generationAPIKey"`
	GenerationModel    string  `yaml:"generationModel"`

	SimilarityThreshold float64 `yaml:"similarityThreshold"`
	TopK                int     `yaml:"topK"`
	HistoryLimit        int     `yaml:"historyLimit"`

	RedisAddr              string   `yaml:"redisAddr"`
	RedisPassword          string   `yaml:"redisPassword"`
	RateLimitPerWindow     int      `yaml:"rateLimitPerWindow"`
	RateLimitWindowSeconds int      `yaml:"rateLimitWindowSeconds"`
	TrustedProxies         []string `yaml:"trustedProxies"`
}

// Load reads config from path (defaults to ConfigPath).
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
	overrideString(&cfg.DatabaseURL, "DATABASE_URL")
	overrideInt(&cfg.EmbeddingDim, "NUMAINDA_EMBEDDING_DIM")
	overrideString(&cfg.EmbeddingProvider, "EMBEDDING_PROVIDER")
	overrideString(&cfg.EmbeddingBaseURL, "EMBEDDING_BASE_URL")
	overrideString(&cfg.EmbeddingAPIKey, "EMBEDDING_API_KEY")
	overrideString(&cfg.EmbeddingModel, "EMBEDDING_MODEL")
	overrideFloat(&cfg.EmbeddingRPS, "EMBEDDING_RPS")
	overrideString(&cfg.GenerationProvider, "GENERATION_PROVIDER")
	overrideString(&cfg.GenerationBaseURL, "GENERATION_BASE_URL")
	overrideString(&cfg.GenerationAPIKey, "GENERATION_API_KEY")
	overrideString(&cfg.GenerationModel, "GENERATION_MODEL")
	overrideFloat(&cfg.SimilarityThreshold, "CHAT_SIMILARITY_THRESHOLD")
	overrideInt(&cfg.TopK, "CHAT_TOP_K")
	overrideInt(&cfg.HistoryLimit, "CHAT_HISTORY_LIMIT")
	overrideString(&cfg.RedisAddr, "REDIS_ADDR")
	overrideString(&cfg.RedisPassword, "REDIS_PASSWORD")
	overrideInt(&cfg.RateLimitPerWindow, "CHAT_RATE_LIMIT")
	overrideInt(&cfg.RateLimitWindowSeconds, "CHAT_RATE_LIMIT_WINDOW_SECONDS")
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = strings.Split(v, ",")
	}

	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 1536
	}
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = 0.75
	}
	if cfg.TopK == 0 {
		cfg.TopK = 6
	}
	if cfg.RateLimitPerWindow == 0 {
		cfg.RateLimitPerWindow = 20
	}
	if cfg.RateLimitWindowSeconds == 0 {
		cfg.RateLimitWindowSeconds = 60
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.EmbeddingDim <= 0 {
		return errors.New("config: embeddingDim must be > 0")
	}
	if cfg.EmbeddingModel == "" {
		return errors.New("config: embeddingModel is required (set in config.yaml or EMBEDDING_MODEL)")
	}
	if cfg.GenerationProvider == "" || cfg.GenerationProvider == "none" {
		return errors.New("config: generationProvider is required (set in config.yaml or GENERATION_PROVIDER)")
	}
	if cfg.GenerationModel == "" {
		return errors.New("config: generationModel is required (set in config.yaml or GENERATION_MODEL)")
	}
	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		return errors.New("config: similarityThreshold must be between 0 and 1")
	}
	if cfg.TopK <= 0 {
		return errors.New("config: topK must be > 0")
	}
	if cfg.RateLimitPerWindow < 0 || cfg.RateLimitWindowSeconds < 0 {
		return errors.New("config: rate limit values must be >= 0")
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
