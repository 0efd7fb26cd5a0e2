package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Stack    StackConfig
	Chat     ChatConfig
	Server   ServerConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Log      LogConfig
}

// StackConfig locates the remote stack server.
type StackConfig struct {
	Host          string
	Port          int
	UseTLS        bool
	CertPath      string
	DisableSafety bool
	Timeout       time.Duration
}

// ChatConfig drives the agent and memory bank behind the chat programs.
type ChatConfig struct {
	ModelName      string
	DocsDir        string
	BankID         string
	ChunkSize      int
	Overlap        int
	MaxTokens      int
	MaxChunks      int
	SearchAPIKey   string //nolint:gosec // G117: search API key config
	EmbeddingModel string
	ExamplePrompts []string
}

// ServerConfig holds HTTP server settings for the web chat.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
	RatePerSec   float64
	RateBurst    int
}

// RedisConfig holds Redis connection settings. An empty Addr disables fan-out.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// DatabaseConfig holds PostgreSQL settings. An empty DSN keeps transcripts in memory.
type DatabaseConfig struct {
	DSN      string
	MaxConns int
}

// LogConfig selects zerolog level and output format.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	port, err := getEnvInt("STACKCHAT_PORT", 5000)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	useTLS, err := getEnvBool("STACKCHAT_USE_TLS", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	disableSafety, err := getEnvBool("STACKCHAT_DISABLE_SAFETY", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	stackTimeout, err := getEnvDuration("STACKCHAT_STACK_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	chunkSize, err := getEnvInt("STACKCHAT_CHUNK_SIZE", 100)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	overlap, err := getEnvInt("STACKCHAT_CHUNK_OVERLAP", 10)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxTokens, err := getEnvInt("STACKCHAT_MAX_TOKENS", 300)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxChunks, err := getEnvInt("STACKCHAT_MAX_CHUNKS", 5)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("STACKCHAT_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("STACKCHAT_SERVER_WRITE_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	ratePerSec, err := getEnvFloat("STACKCHAT_RATE_PER_SEC", 2)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateBurst, err := getEnvInt("STACKCHAT_RATE_BURST", 10)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("STACKCHAT_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("STACKCHAT_DB_MAX_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cfg := &Config{
		Stack: StackConfig{
			Host:          getEnv("STACKCHAT_HOST", "localhost"),
			Port:          port,
			UseTLS:        useTLS,
			CertPath:      getEnv("STACKCHAT_CERT_PATH", ""),
			DisableSafety: disableSafety,
			Timeout:       stackTimeout,
		},
		Chat: ChatConfig{
			ModelName:      getEnv("STACKCHAT_MODEL_NAME", "meta-llama/Llama-3.2-3B-Instruct"),
			DocsDir:        getEnv("STACKCHAT_DOCS_DIR", "./example_data"),
			BankID:         getEnv("STACKCHAT_BANK_ID", "test_bank_235"),
			ChunkSize:      chunkSize,
			Overlap:        overlap,
			MaxTokens:      maxTokens,
			MaxChunks:      maxChunks,
			SearchAPIKey:   getEnv("BRAVE_SEARCH_API_KEY", ""),
			EmbeddingModel: getEnv("STACKCHAT_EMBEDDING_MODEL", "all-MiniLM-L6-v2"),
			ExamplePrompts: getEnvList("STACKCHAT_EXAMPLE_PROMPTS", []string{
				"What topics are covered in the documents?",
				"Can you summarize the main points?",
				"Tell me more about specific details in the text.",
			}),
		},
		Server: ServerConfig{
			Addr:         getEnv("STACKCHAT_WEB_ADDR", ":7861"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  getEnvList("STACKCHAT_CORS_ORIGINS", []string{"*"}),
			RatePerSec:   ratePerSec,
			RateBurst:    rateBurst,
		},
		Redis: RedisConfig{
			Addr:     getEnv("STACKCHAT_REDIS_ADDR", ""),
			Password: getEnv("STACKCHAT_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Database: DatabaseConfig{
			DSN:      getEnv("STACKCHAT_DATABASE_DSN", ""),
			MaxConns: dbMaxConns,
		},
		Log: LogConfig{
			Level:  getEnv("STACKCHAT_LOG_LEVEL", "info"),
			Format: getEnv("STACKCHAT_LOG_FORMAT", "text"),
		},
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// Validate checks required fields and value bounds. Call it again after
// applying command-line overrides.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Stack.Host) == "" {
		return errors.New("STACKCHAT_HOST is required")
	}
	if c.Stack.Port < 1 || c.Stack.Port > 65535 {
		return fmt.Errorf("STACKCHAT_PORT must be 1-65535, got %d", c.Stack.Port)
	}
	if c.Stack.Timeout <= 0 {
		return fmt.Errorf("STACKCHAT_STACK_TIMEOUT must be positive, got %s", c.Stack.Timeout)
	}
	if strings.TrimSpace(c.Chat.ModelName) == "" {
		return errors.New("STACKCHAT_MODEL_NAME is required")
	}
	if c.Chat.ChunkSize < 1 {
		return fmt.Errorf("STACKCHAT_CHUNK_SIZE must be >= 1, got %d", c.Chat.ChunkSize)
	}
	if c.Chat.Overlap < 0 || c.Chat.Overlap >= c.Chat.ChunkSize {
		return fmt.Errorf("STACKCHAT_CHUNK_OVERLAP must be 0-%d, got %d", c.Chat.ChunkSize-1, c.Chat.Overlap)
	}
	if c.Chat.MaxTokens < 1 {
		return fmt.Errorf("STACKCHAT_MAX_TOKENS must be >= 1, got %d", c.Chat.MaxTokens)
	}
	if c.Chat.MaxChunks < 1 {
		return fmt.Errorf("STACKCHAT_MAX_CHUNKS must be >= 1, got %d", c.Chat.MaxChunks)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("STACKCHAT_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("STACKCHAT_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.RatePerSec <= 0 {
		return fmt.Errorf("STACKCHAT_RATE_PER_SEC must be positive, got %g", c.Server.RatePerSec)
	}
	if c.Server.RateBurst < 1 {
		return fmt.Errorf("STACKCHAT_RATE_BURST must be >= 1, got %d", c.Server.RateBurst)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("STACKCHAT_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("STACKCHAT_LOG_FORMAT must be text or json, got %q", c.Log.Format)
	}

	return nil
}

// Warnings lists settings that are valid but have no effect. The caller logs
// them once logging is configured.
func (c *Config) Warnings() []string {
	var out []string
	if c.Stack.CertPath != "" && !c.Stack.UseTLS {
		out = append(out, "STACKCHAT_CERT_PATH is ignored without STACKCHAT_USE_TLS")
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
