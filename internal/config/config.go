package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider names accepted by EMBEDDINGS_PROVIDER and GENERATION_PROVIDER.
const (
	ProviderGoogle = "google"
	ProviderOpenAI = "openai"
)

// Index cache backends accepted by INDEX_CACHE_BACKEND.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string
	ServiceName string

	// Bearer token required on /api/v1 routes
	APIKey string

	// Document resolution
	DocumentsDir     string
	MaxDocumentSize  int64
	DownloadTimeout  time.Duration
	MaxRequestBodyMB int64

	// Model providers
	EmbeddingsProvider    string // "google" (default), "openai"
	GenerationProvider    string // "google" (default), "openai"
	GoogleAPIKey          string
	GoogleEmbeddingsModel string
	GoogleGenerationModel string
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	OpenAIEmbeddingsModel string
	OpenAIGenerationModel string
	Temperature           float64

	// Pipeline
	MaxChunkSize       int
	ChunkOverlap       int
	RetrievalTopK      int
	PromptTemplate     string
	PipelineConfigPath string

	// Remote call resilience
	RemoteCallTimeout time.Duration
	RemoteCallRetries int
	RetryBackoff      time.Duration
	ProviderRPM       int

	// Index cache
	IndexCacheBackend string
	IndexCacheSize    int
	IndexCacheTTL     time.Duration

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	RateLimitReqs   int
	RateLimitWindow int

	// Telemetry
	OTLPEndpoint     string
	TraceSampleRatio float64
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8000"),
		GinMode:     getEnv("GIN_MODE", "release"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
		ServiceName: getEnv("SERVICE_NAME", "policy-qa-service"),

		APIKey: getEnv("API_KEY", ""),

		DocumentsDir:     getEnv("DOCUMENTS_DIR", "app/documents"),
		MaxDocumentSize:  getEnvInt64("MAX_DOCUMENT_SIZE", 52428800), // 50MB
		DownloadTimeout:  getEnvDuration("DOWNLOAD_TIMEOUT", 60*time.Second),
		MaxRequestBodyMB: getEnvInt64("MAX_REQUEST_BODY_MB", 1),

		EmbeddingsProvider:    strings.ToLower(getEnv("EMBEDDINGS_PROVIDER", ProviderGoogle)),
		GenerationProvider:    strings.ToLower(getEnv("GENERATION_PROVIDER", ProviderGoogle)),
		GoogleAPIKey:          getEnv("GOOGLE_API_KEY", getEnv("GEMINI_API_KEY", "")),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "embedding-001"),
		GoogleGenerationModel: getEnv("GENERATION_MODEL", "gemini-2.5-pro"),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", ""),
		OpenAIEmbeddingsModel: getEnv("OPENAI_EMBEDDINGS_MODEL", "text-embedding-3-small"),
		OpenAIGenerationModel: getEnv("OPENAI_GENERATION_MODEL", "gpt-4o-mini"),
		Temperature:           getEnvFloat64("GENERATION_TEMPERATURE", 0),

		MaxChunkSize:       getEnvInt("MAX_CHUNK_SIZE", 500),
		ChunkOverlap:       getEnvInt("CHUNK_OVERLAP", 100),
		RetrievalTopK:      getEnvInt("RETRIEVAL_TOP_K", 5),
		PipelineConfigPath: getEnv("PIPELINE_CONFIG", ""),

		RemoteCallTimeout: getEnvDuration("REMOTE_CALL_TIMEOUT", 60*time.Second),
		RemoteCallRetries: getEnvInt("REMOTE_CALL_RETRIES", 1),
		RetryBackoff:      getEnvDuration("RETRY_BACKOFF", 500*time.Millisecond),
		ProviderRPM:       getEnvInt("GEMINI_RPM", 0),

		IndexCacheBackend: strings.ToLower(getEnv("INDEX_CACHE_BACKEND", CacheMemory)),
		IndexCacheSize:    getEnvInt("INDEX_CACHE_SIZE", 32),
		IndexCacheTTL:     getEnvDuration("INDEX_CACHE_TTL", 24*time.Hour),

		RedisURL:      getEnv("REDIS_URL", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		TraceSampleRatio: getEnvFloat64("OTEL_TRACE_SAMPLE_RATIO", 0.1),
	}

	if cfg.PipelineConfigPath != "" {
		pf, err := LoadPipelineFile(cfg.PipelineConfigPath)
		if err != nil {
			return nil, err
		}
		pf.Apply(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for _, p := range []string{c.EmbeddingsProvider, c.GenerationProvider} {
		switch p {
		case ProviderGoogle:
			if c.GoogleAPIKey == "" {
				return fmt.Errorf("GOOGLE_API_KEY is required for the google provider - set it in .env file")
			}
		case ProviderOpenAI:
			if c.OpenAIAPIKey == "" {
				return fmt.Errorf("OPENAI_API_KEY is required for the openai provider - set it in .env file")
			}
		default:
			return fmt.Errorf("unknown model provider: %s", p)
		}
	}

	if c.MaxChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.MaxChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be non-negative and below MAX_CHUNK_SIZE (%d)", c.ChunkOverlap, c.MaxChunkSize)
	}

	switch c.IndexCacheBackend {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when INDEX_CACHE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown index cache backend: %s", c.IndexCacheBackend)
	}
	return nil
}

// ValidateServer checks the settings only the HTTP server needs.
func (c *Config) ValidateServer() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required - set it in .env file")
	}
	return nil
}

// EmbeddingsModel returns the embedding model of the selected provider.
func (c *Config) EmbeddingsModel() string {
	if c.EmbeddingsProvider == ProviderOpenAI {
		return c.OpenAIEmbeddingsModel
	}
	return c.GoogleEmbeddingsModel
}

// GenerationModel returns the chat model of the selected provider.
func (c *Config) GenerationModel() string {
	if c.GenerationProvider == ProviderOpenAI {
		return c.OpenAIGenerationModel
	}
	return c.GoogleGenerationModel
}

func splitList(value string) []string {
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
