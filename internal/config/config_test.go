package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"GROQ_API_KEY", "LLM_BASE_URL", "LLM_MODEL", "LLM_TEMPERATURE", "LLM_MAX_TOKENS",
	"PARAM_PREFIX", "QUOTA_TABLE", "QUOTA_LIMIT", "QUOTA_WINDOW", "MAX_MESSAGE_LENGTH",
	"CONTEXT_BUCKET", "CONTEXT_KEY", "CONTEXT_TTL", "CHATBOT_CONTEXT", "GA4_CREDENTIALS",
	"GA4_PROPERTY_ID", "VISITOR_CACHE_TTL", "VISITOR_PROJECTS", "CV_URL", "CV_FILE_PREFIX",
	"LOG_LEVEL", "ALLOWED_ORIGIN",
}

// clearEnv unsets every key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "https://api.groq.com/openai/v1", cfg.LLM.BaseURL)
	require.Equal(t, "llama-3.3-70b-versatile", cfg.LLM.Model)
	require.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
	require.Equal(t, 500, cfg.LLM.MaxTokens)
	require.Equal(t, 20, cfg.Quota.Limit)
	require.Equal(t, time.Hour, cfg.Quota.Window)
	require.Empty(t, cfg.Quota.Table)
	require.Equal(t, 500, cfg.MaxMessageLength)
	require.Equal(t, "context", cfg.Context.Key)
	require.Equal(t, 5*time.Minute, cfg.Context.TTL)
	require.Equal(t, time.Hour, cfg.Analytics.CacheTTL)
	require.Nil(t, cfg.Analytics.Projects)
	require.Equal(t, "CV", cfg.CV.FilePrefix)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "*", cfg.AllowedOrigin)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GROQ_API_KEY", " gsk_test ")
	t.Setenv("QUOTA_LIMIT", "5")
	t.Setenv("QUOTA_WINDOW", "30m")
	t.Setenv("QUOTA_TABLE", "portfolio-quota")
	t.Setenv("VISITOR_PROJECTS", "blog=blog.example.com, shop = shop.example.com")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "gsk_test", cfg.LLM.APIKey)
	require.Equal(t, 5, cfg.Quota.Limit)
	require.Equal(t, 30*time.Minute, cfg.Quota.Window)
	require.Equal(t, "portfolio-quota", cfg.Quota.Table)
	require.Equal(t, map[string]string{"blog": "blog.example.com", "shop": "shop.example.com"}, cfg.Analytics.Projects)
}

func TestLoad_DotenvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CHATBOT_CONTEXT=from-file\nCV_URL=https://example.com/cv.pdf\nLOG_LEVEL=debug\n"), 0o600))
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.Context.Inline)
	require.Equal(t, "https://example.com/cv.pdf", cfg.CV.URL)
	require.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_MissingDotenvIsIgnored(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("QUOTA_LIMIT", "0")
	_, err := Load("")
	require.Error(t, err)

	clearEnv(t)
	t.Setenv("VISITOR_PROJECTS", "portfolio")
	_, err = Load("")
	require.Error(t, err)
}
