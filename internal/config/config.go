package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port                string
	Env                 string
	WriteTimeoutSeconds int

	// Gemini
	GoogleAPIKey string
	GeminiModel  string

	// Mistral
	MistralAPIKey  string
	MistralBaseURL string
	MistralModel   string

	// Deepseek via Ollama
	OllamaHost    string
	DeepseekModel string

	// Claude (registered only when the key is set)
	AnthropicAPIKey string
	ClaudeModel     string

	// Sessions
	RedisURL          string
	SessionTTLMinutes int

	// Turn workers
	WorkerCount     int
	WorkerQueueSize int
	TurnRateLimit   int

	// UI
	StylesheetPath string
}

// Load reads configuration from the environment. API keys are not checked
// here: a missing key surfaces as an adapter failure on first use.
func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                getEnvOrDefault("PORT", "8080"),
		Env:                 getEnvOrDefault("ENV", "development"),
		WriteTimeoutSeconds: getEnvAsIntOrDefault("SERVER_WRITE_TIMEOUT_SECONDS", 300),
		GoogleAPIKey:        os.Getenv("GOOGLE_API_KEY"),
		GeminiModel:         getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		MistralAPIKey:       os.Getenv("MISTRAL_API_KEY"),
		MistralBaseURL:      getEnvOrDefault("MISTRAL_BASE_URL", "https://api.mistral.ai/v1"),
		MistralModel:        getEnvOrDefault("MISTRAL_MODEL", "mistral-large-latest"),
		OllamaHost:          getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434"),
		DeepseekModel:       getEnvOrDefault("DEEPSEEK_MODEL", "deepseek-r1:7b"),
		AnthropicAPIKey:     os.Getenv("ANTHROPIC_API_KEY"),
		ClaudeModel:         getEnvOrDefault("CLAUDE_MODEL", "claude-sonnet-4-5"),
		RedisURL:            os.Getenv("REDIS_URL"),
		SessionTTLMinutes:   getEnvAsIntOrDefault("SESSION_TTL_MINUTES", 60),
		WorkerCount:         getEnvAsIntOrDefault("WORKER_COUNT", 2),
		WorkerQueueSize:     getEnvAsIntOrDefault("WORKER_QUEUE_SIZE", 64),
		TurnRateLimit:       getEnvAsIntOrDefault("TURN_RATE_LIMIT", 30),
		StylesheetPath:      getEnvOrDefault("STYLESHEET_PATH", "style.css"),
	}

	return cfg
}

// LoadStylesheet returns the stylesheet at path, or "" if it cannot be read.
func LoadStylesheet(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
