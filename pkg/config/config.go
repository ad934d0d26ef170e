package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Embedding EmbeddingConfig
	LLM       LLMConfig
	RAG       RAGConfig
	Cache     CacheConfig
	Logger    LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	// URL is optional; when empty the service falls back to an
	// in-process cache.
	URL string
}

type EmbeddingConfig struct {
	Provider  string // "stub" | "openai"
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	Timeout   time.Duration
}

type LLMConfig struct {
	Provider    string // "stub" | "openai" | "gigachat"
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	GigaChatScope              string
	GigaChatInsecureSkipVerify bool
}

type RAGConfig struct {
	TopK                int
	SimilarityThreshold float64
	MaxChunkTokens      int
	MaxContextTokens    int
}

type CacheConfig struct {
	TTL time.Duration
}

func Load() (*Config, error) {
	// Try to load .env file from current directory or project root
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}
	// No .env file is fine: environment variables are used directly
	// (Docker / K8s deployments).

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "30"))
	embeddingDim, _ := strconv.Atoi(getEnv("EMBEDDING_DIMENSION", "384"))
	embeddingTimeout, _ := strconv.Atoi(getEnv("EMBEDDING_TIMEOUT", "30"))
	llmTimeout, _ := strconv.Atoi(getEnv("LLM_TIMEOUT", "60"))
	llmMaxTokens, _ := strconv.Atoi(getEnv("LLM_MAX_TOKENS", "1024"))
	llmTemperature, _ := strconv.ParseFloat(getEnv("LLM_TEMPERATURE", "0.1"), 64)
	topK, _ := strconv.Atoi(getEnv("RAG_TOP_K", "5"))
	threshold, _ := strconv.ParseFloat(getEnv("RAG_SIMILARITY_THRESHOLD", "0.3"), 64)
	maxChunkTokens, _ := strconv.Atoi(getEnv("RAG_MAX_CHUNK_TOKENS", "500"))
	maxContextTokens, _ := strconv.Atoi(getEnv("RAG_MAX_CONTEXT_TOKENS", "2500"))
	cacheTTL, _ := strconv.Atoi(getEnv("CACHE_TTL_SECONDS", "3600"))
	gigaSkipVerify := getEnv("GIGACHAT_INSECURE_SKIP_VERIFY", "false") == "true"

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "knowledge_assistant"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Embedding: EmbeddingConfig{
			Provider:  getEnv("EMBEDDING_PROVIDER", "stub"),
			BaseURL:   getEnv("EMBEDDING_BASE_URL", "https://api.openai.com/v1"),
			APIKey:    getEnv("EMBEDDING_API_KEY", ""),
			Model:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimension: embeddingDim,
			Timeout:   time.Duration(embeddingTimeout) * time.Second,
		},
		LLM: LLMConfig{
			Provider:                   getEnv("LLM_PROVIDER", "stub"),
			BaseURL:                    getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:                     getEnv("LLM_API_KEY", ""),
			Model:                      getEnv("LLM_MODEL", "gpt-4o-mini"),
			Temperature:                llmTemperature,
			MaxTokens:                  llmMaxTokens,
			Timeout:                    time.Duration(llmTimeout) * time.Second,
			GigaChatScope:              getEnv("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
			GigaChatInsecureSkipVerify: gigaSkipVerify,
		},
		RAG: RAGConfig{
			TopK:                topK,
			SimilarityThreshold: threshold,
			MaxChunkTokens:      maxChunkTokens,
			MaxContextTokens:    maxContextTokens,
		},
		Cache: CacheConfig{
			TTL: time.Duration(cacheTTL) * time.Second,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
