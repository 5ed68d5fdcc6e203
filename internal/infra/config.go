package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	Port              string
	DatabaseURL       string
	CatalogPath       string
	StoragePath       string
	StorageBaseURL    string
	BackendURL        string
	BackendDialect    string
	BackendClientID   string
	GeoIPDBPath       string
	PromptProvider    string
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	RateLimitPerMin   int
	PrivateDailyLimit int
	TrackIdleTimeout  time.Duration
	TrackMaxRounds    int
	RetryMaxAttempts  int
	Warmup            bool
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              port,
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		CatalogPath:       getEnv("CATALOG_PATH", "configs/models.hcl"),
		StoragePath:       getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:    strings.TrimRight(getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"), "/"),
		BackendURL:        strings.TrimRight(getEnv("BACKEND_URL", "http://127.0.0.1:8188"), "/"),
		BackendDialect:    getEnv("BACKEND_DIALECT", "default"),
		BackendClientID:   os.Getenv("BACKEND_CLIENT_ID"),
		GeoIPDBPath:       os.Getenv("GEOIP_DB_PATH"),
		PromptProvider:    getEnv("PROMPT_PROVIDER", "static"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 0)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		PrivateDailyLimit: getEnvInt("PRIVATE_DAILY_LIMIT", 50),
		TrackIdleTimeout:  time.Second * time.Duration(getEnvInt("TRACK_IDLE_TIMEOUT_SECONDS", 90)),
		TrackMaxRounds:    getEnvInt("TRACK_MAX_ROUNDS", 10),
		RetryMaxAttempts:  getEnvInt("RETRY_MAX_ATTEMPTS", 5),
		Warmup:            getEnvBool("WARMUP", false),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	switch cfg.BackendDialect {
	case "default", "comfyui":
	default:
		return nil, fmt.Errorf("BACKEND_DIALECT must be default or comfyui, got %q", cfg.BackendDialect)
	}

	if cfg.TrackMaxRounds <= 0 {
		return nil, fmt.Errorf("TRACK_MAX_ROUNDS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
