package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configVars = []string{
	"SURVIVAL_PROVIDER", "GEMINI_MODEL", "OPENAI_MODEL", "OPENAI_BASE_URL",
	"HTTP_ADDR", "CORS_ORIGINS", "BOT_TOKEN", "OWNER_TELEGRAM_ID", "LOG_LEVEL",
	"DISABLE_ANALYSIS_CACHE", "GEMINI_API_KEY", "OPENAI_API_KEY",
}

// clearEnv blanks every variable Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range configVars {
		t.Setenv(v, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderGemini, cfg.Provider)
	assert.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.False(t, cfg.BotEnabled())
	assert.True(t, cfg.CacheEnabled)
	assert.Empty(t, cfg.CORSOrigins)
	assert.Equal(t, "GEMINI_API_KEY", cfg.CredentialVar())
}

func TestLoad_AllSet(t *testing.T) {
	clearEnv(t)
	t.Setenv("SURVIVAL_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173, https://bro.example ,")
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("OWNER_TELEGRAM_ID", "424242")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("DISABLE_ANALYSIS_CACHE", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "OPENAI_API_KEY", cfg.CredentialVar())
	assert.Equal(t, "gpt-4o", cfg.OpenAIModel)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, []string{"http://localhost:5173", "https://bro.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.BotEnabled())
	assert.Equal(t, int64(424242), cfg.OwnerID)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.False(t, cfg.CacheEnabled)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unknown provider",
			env:     map[string]string{"SURVIVAL_PROVIDER": "ollama"},
			wantErr: "SURVIVAL_PROVIDER",
		},
		{
			name:    "bot without owner",
			env:     map[string]string{"BOT_TOKEN": "123:abc"},
			wantErr: "OWNER_TELEGRAM_ID is required",
		},
		{
			name:    "owner not a number",
			env:     map[string]string{"BOT_TOKEN": "123:abc", "OWNER_TELEGRAM_ID": "me"},
			wantErr: "valid integer",
		},
		{
			name:    "bad log level",
			env:     map[string]string{"LOG_LEVEL": "loud"},
			wantErr: "LOG_LEVEL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMissingRequired(t *testing.T) {
	clearEnv(t)
	assert.Equal(t, []string{"GEMINI_API_KEY"}, MissingRequired())

	t.Setenv("GEMINI_API_KEY", "AIzaSyTestKey123")
	assert.Empty(t, MissingRequired())

	t.Setenv("SURVIVAL_PROVIDER", "openai")
	assert.Equal(t, []string{"OPENAI_API_KEY"}, MissingRequired())
}

func TestWriteEnvFile_MergesAndRestrictsPermissions(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("config dir override relies on XDG_CONFIG_HOME")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err := WriteEnvFile(map[string]string{"GEMINI_API_KEY": "first-key-12345", "HTTP_ADDR": ":8081"})
	require.NoError(t, err)
	path, err := WriteEnvFile(map[string]string{"GEMINI_API_KEY": "second-key-12345"})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(AppName, EnvFileName), filepath.Join(filepath.Base(filepath.Dir(path)), filepath.Base(path)))

	values, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"GEMINI_API_KEY": "second-key-12345", "HTTP_ADDR": ":8081"}, values)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
