package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	AppName     = "survival-bro"
	EnvFileName = "config.env"

	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	DefaultHTTPAddr = "127.0.0.1:8080"
)

// Config is the process configuration read from the environment.
type Config struct {
	Provider     string // ProviderGemini or ProviderOpenAI
	GeminiModel  string // empty means the analyzer default
	OpenAIModel  string
	OpenAIBase   string
	HTTPAddr     string
	CORSOrigins  []string
	BotToken     string // empty disables the Telegram surface
	OwnerID      int64
	LogLevel     zerolog.Level
	CacheEnabled bool
}

// BotEnabled reports whether the Telegram surface should run.
func (c Config) BotEnabled() bool {
	return c.BotToken != ""
}

// CredentialVar is the environment variable holding the selected provider's key.
func (c Config) CredentialVar() string {
	if c.Provider == ProviderOpenAI {
		return "OPENAI_API_KEY"
	}
	return "GEMINI_API_KEY"
}

// ConfigDir returns the application's config directory path.
// Creates the directory if it doesn't exist.
func ConfigDir() (string, error) {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	configDir := filepath.Join(configBase, AppName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// ConfigFilePath returns the full path to the config file.
func ConfigFilePath() (string, error) {
	configDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, EnvFileName), nil
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory. Errors are ignored since the file may not exist. Variables
// already set in the environment win.
func LoadEnvFile() {
	configPath, err := ConfigFilePath()
	if err != nil {
		return
	}
	_ = godotenv.Load(configPath)
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		Provider:     strings.ToLower(strings.TrimSpace(os.Getenv("SURVIVAL_PROVIDER"))),
		GeminiModel:  os.Getenv("GEMINI_MODEL"),
		OpenAIModel:  os.Getenv("OPENAI_MODEL"),
		OpenAIBase:   os.Getenv("OPENAI_BASE_URL"),
		HTTPAddr:     os.Getenv("HTTP_ADDR"),
		CORSOrigins:  splitList(os.Getenv("CORS_ORIGINS")),
		BotToken:     strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		LogLevel:     zerolog.InfoLevel,
		CacheEnabled: os.Getenv("DISABLE_ANALYSIS_CACHE") == "",
	}

	switch cfg.Provider {
	case "":
		cfg.Provider = ProviderGemini
	case ProviderGemini, ProviderOpenAI:
	default:
		return Config{}, fmt.Errorf("SURVIVAL_PROVIDER must be %q or %q, got %q", ProviderGemini, ProviderOpenAI, cfg.Provider)
	}

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = DefaultHTTPAddr
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = parsed
	}

	if cfg.BotToken != "" {
		ownerStr := os.Getenv("OWNER_TELEGRAM_ID")
		if ownerStr == "" {
			return Config{}, fmt.Errorf("OWNER_TELEGRAM_ID is required when BOT_TOKEN is set")
		}
		ownerID, err := strconv.ParseInt(ownerStr, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("OWNER_TELEGRAM_ID must be a valid integer: %w", err)
		}
		cfg.OwnerID = ownerID
	}

	return cfg, nil
}

// MissingRequired returns the names of required variables that are not set.
// Only the selected provider's credential is required; every other surface is
// optional.
func MissingRequired() []string {
	cfg, err := Load()
	if err != nil {
		// Let Load report the problem at startup
		return nil
	}
	if strings.TrimSpace(os.Getenv(cfg.CredentialVar())) == "" {
		return []string{cfg.CredentialVar()}
	}
	return nil
}

// WriteEnvFile writes values to the config file, merging with what is
// already there. Uses 0600 since the file contains secrets. Returns the path
// written.
func WriteEnvFile(values map[string]string) (string, error) {
	configPath, err := ConfigFilePath()
	if err != nil {
		return "", err
	}

	merged := map[string]string{}
	if existing, err := godotenv.Read(configPath); err == nil {
		merged = existing
	}
	for k, v := range values {
		merged[k] = v
	}

	content, err := godotenv.Marshal(merged)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(content+"\n"), 0600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	// WriteFile keeps the mode of an existing file
	if err := os.Chmod(configPath, 0600); err != nil {
		return "", fmt.Errorf("failed to restrict config file permissions: %w", err)
	}

	return configPath, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
