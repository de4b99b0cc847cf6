package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Language understanding
	LLMProvider         string
	LLMFallbackProvider string
	LLMTemperature      float64
	LUSTimeout          time.Duration
	GeminiAPIKey        string
	GeminiModel         string
	OpenAIAPIKey        string
	OpenAIModel         string
	BedrockModelID      string
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Scheduling directory
	DirectoryBaseURL  string
	DirectoryAPIToken string
	DirectoryTimeout  time.Duration
	DirectoryUnitID   string
	UseDemoDirectory  bool

	// Conversation checkpoints
	StoreBackend   string
	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool
	DatabaseURL    string
	MongoURI       string
	MongoDatabase  string
	CheckpointTTL  time.Duration
	LexiconPath    string
	ClinicTimezone string

	// Dialogue tuning
	InitialHistoryWindow  int
	FollowUpHistoryWindow int
	MaxTransitions        int
	MaxMonthLookahead     int

	OutboundWebhookURL string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		LLMProvider:         strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "gemini"))),
		LLMFallbackProvider: strings.ToLower(strings.TrimSpace(getEnv("LLM_FALLBACK_PROVIDER", ""))),
		LLMTemperature:      getEnvAsFloat("LLM_TEMPERATURE", 0.2),
		LUSTimeout:          getEnvAsDuration("LUS_TIMEOUT", 15*time.Second),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		DirectoryBaseURL:  strings.TrimRight(getEnv("DIRECTORY_BASE_URL", ""), "/"),
		DirectoryAPIToken: getEnv("DIRECTORY_API_TOKEN", ""),
		DirectoryTimeout:  getEnvAsDuration("DIRECTORY_TIMEOUT", 10*time.Second),
		DirectoryUnitID:   getEnv("DIRECTORY_UNIT_ID", ""),
		UseDemoDirectory:  getEnvAsBool("USE_DEMO_DIRECTORY", false),

		StoreBackend:   strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", "memory"))),
		RedisAddr:      getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTLS:       getEnvAsBool("REDIS_TLS", false),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		MongoURI:       getEnv("MONGODB_URI", ""),
		MongoDatabase:  getEnv("MONGODB_DATABASE", "scheduling"),
		CheckpointTTL:  getEnvAsDuration("CHECKPOINT_TTL", 72*time.Hour),
		LexiconPath:    getEnv("LEXICON_PATH", ""),
		ClinicTimezone: getEnv("CLINIC_TIMEZONE", "America/Sao_Paulo"),

		InitialHistoryWindow:  getEnvAsInt("INITIAL_HISTORY_WINDOW", 5),
		FollowUpHistoryWindow: getEnvAsInt("FOLLOWUP_HISTORY_WINDOW", 3),
		MaxTransitions:        getEnvAsInt("MAX_TRANSITIONS", 8),
		MaxMonthLookahead:     getEnvAsInt("MAX_MONTH_LOOKAHEAD", 1),

		OutboundWebhookURL: getEnv("OUTBOUND_WEBHOOK_URL", ""),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),
	}
}

// Location returns the clinic timezone, falling back to UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	if c == nil || strings.TrimSpace(c.ClinicTimezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
