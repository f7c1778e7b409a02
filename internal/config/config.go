package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	GeminiAPIKey string

	LogLevel string
	Debug    bool

	PreferIPv4 bool

	HTTPTimeout    time.Duration
	RequestTimeout time.Duration

	GeminiBaseURL    string
	GeminiAPIVersion string
	TextModel        string
	ImageModel       string

	BlueprintProvider string
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string

	WebAddr     string
	SessionIdle time.Duration

	TelegramToken string
	MaxConcurrent int
}

// Load reads the shared configuration. A missing Gemini credential is the
// only fatal condition.
func Load() (Config, error) {
	cfg := Config{
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Debug:             getEnvBool("DEBUG", false),
		PreferIPv4:        getEnvBool("PREFER_IPV4", true),
		HTTPTimeout:       time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second,
		RequestTimeout:    time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 0)) * time.Second,
		GeminiBaseURL:     getEnv("GEMINI_BASE_URL", ""),
		GeminiAPIVersion:  getEnv("GEMINI_API_VERSION", "v1beta"),
		TextModel:         getEnv("TEXT_MODEL", "gemini-2.5-flash"),
		ImageModel:        getEnv("IMAGE_MODEL", "imagen-4.0-generate-001"),
		BlueprintProvider: strings.ToLower(getEnv("BLUEPRINT_PROVIDER", ProviderGemini)),
		OpenAIAPIKey:      strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		WebAddr:           getEnv("WEB_ADDR", ":8080"),
		SessionIdle:       time.Duration(getEnvInt("SESSION_IDLE_MINUTES", 60)) * time.Minute,
		MaxConcurrent:     getEnvInt("MAX_CONCURRENT", 4),
	}

	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", strings.TrimSpace(os.Getenv("API_KEY")))

	switch {
	case cfg.GeminiAPIKey == "":
		return Config{}, errors.New("GEMINI_API_KEY (or API_KEY) is required")
	case cfg.BlueprintProvider != ProviderGemini && cfg.BlueprintProvider != ProviderOpenAI:
		return Config{}, fmt.Errorf("BLUEPRINT_PROVIDER %q is not supported", cfg.BlueprintProvider)
	case cfg.BlueprintProvider == ProviderOpenAI && cfg.OpenAIAPIKey == "":
		return Config{}, errors.New("OPENAI_API_KEY is required when BLUEPRINT_PROVIDER=openai")
	}

	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}
	if cfg.RequestTimeout < 0 {
		cfg.RequestTimeout = 0
	}
	if cfg.SessionIdle <= 0 {
		cfg.SessionIdle = time.Hour
	}

	return cfg, nil
}

// LoadBot is Load plus the Telegram token.
func LoadBot() (Config, error) {
	cfg, err := Load()
	if err != nil {
		return Config{}, err
	}

	cfg.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	if cfg.TelegramToken == "" {
		return Config{}, errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
