// Package config loads function and CLI settings from the environment, with
// an optional dotenv file underneath.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting read by the functions and the CLI. Each binary
// uses the subset it needs.
type Config struct {
	LLM              LLMConfig
	ParamPrefix      string
	Quota            QuotaConfig
	MaxMessageLength int
	Context          ContextConfig
	Analytics        AnalyticsConfig
	CV               CVConfig
	LogLevel         string
	AllowedOrigin    string
}

type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
}

type QuotaConfig struct {
	// Table selects the DynamoDB store; empty keeps quotas in memory.
	Table  string
	Limit  int
	Window time.Duration
}

type ContextConfig struct {
	Bucket string
	Key    string
	TTL    time.Duration
	// Inline is the CHATBOT_CONTEXT value.
	Inline string
}

type AnalyticsConfig struct {
	Credentials string
	PropertyID  string
	CacheTTL    time.Duration
	// Projects maps project IDs to hostnames. Nil means the built-in set.
	Projects map[string]string
}

type CVConfig struct {
	URL        string
	FilePrefix string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("groq_api_key", "")
	v.SetDefault("llm_base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm_model", "llama-3.3-70b-versatile")
	v.SetDefault("llm_temperature", 0.7)
	v.SetDefault("llm_max_tokens", 500)
	v.SetDefault("param_prefix", "")
	v.SetDefault("quota_table", "")
	v.SetDefault("quota_limit", 20)
	v.SetDefault("quota_window", "1h")
	v.SetDefault("max_message_length", 500)
	v.SetDefault("context_bucket", "")
	v.SetDefault("context_key", "context")
	v.SetDefault("context_ttl", "5m")
	v.SetDefault("chatbot_context", "")
	v.SetDefault("ga4_credentials", "")
	v.SetDefault("ga4_property_id", "")
	v.SetDefault("visitor_cache_ttl", "1h")
	v.SetDefault("visitor_projects", "")
	v.SetDefault("cv_url", "")
	v.SetDefault("cv_file_prefix", "CV")
	v.SetDefault("log_level", "info")
	v.SetDefault("allowed_origin", "*")
}

// Load reads configuration from the environment. When envFile names an
// existing file it is parsed as dotenv; real environment variables win.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("config: read %s: %w", envFile, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: stat %s: %w", envFile, err)
		}
	}

	projects, err := parseProjects(v.GetString("visitor_projects"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LLM: LLMConfig{
			APIKey:      strings.TrimSpace(v.GetString("groq_api_key")),
			BaseURL:     v.GetString("llm_base_url"),
			Model:       v.GetString("llm_model"),
			Temperature: v.GetFloat64("llm_temperature"),
			MaxTokens:   v.GetInt("llm_max_tokens"),
		},
		ParamPrefix: strings.TrimSpace(v.GetString("param_prefix")),
		Quota: QuotaConfig{
			Table:  strings.TrimSpace(v.GetString("quota_table")),
			Limit:  v.GetInt("quota_limit"),
			Window: v.GetDuration("quota_window"),
		},
		MaxMessageLength: v.GetInt("max_message_length"),
		Context: ContextConfig{
			Bucket: strings.TrimSpace(v.GetString("context_bucket")),
			Key:    v.GetString("context_key"),
			TTL:    v.GetDuration("context_ttl"),
			Inline: v.GetString("chatbot_context"),
		},
		Analytics: AnalyticsConfig{
			Credentials: v.GetString("ga4_credentials"),
			PropertyID:  strings.TrimSpace(v.GetString("ga4_property_id")),
			CacheTTL:    v.GetDuration("visitor_cache_ttl"),
			Projects:    projects,
		},
		CV: CVConfig{
			URL:        strings.TrimSpace(v.GetString("cv_url")),
			FilePrefix: v.GetString("cv_file_prefix"),
		},
		LogLevel:      v.GetString("log_level"),
		AllowedOrigin: v.GetString("allowed_origin"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Quota.Limit <= 0 {
		return errors.New("config: QUOTA_LIMIT must be positive")
	}
	if c.Quota.Window <= 0 {
		return errors.New("config: QUOTA_WINDOW must be a positive duration")
	}
	if c.MaxMessageLength <= 0 {
		return errors.New("config: MAX_MESSAGE_LENGTH must be positive")
	}
	if c.Context.TTL <= 0 {
		return errors.New("config: CONTEXT_TTL must be a positive duration")
	}
	if c.Analytics.CacheTTL <= 0 {
		return errors.New("config: VISITOR_CACHE_TTL must be a positive duration")
	}
	return nil
}

// parseProjects reads "id=host,id=host".
func parseProjects(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		id, host, ok := strings.Cut(pair, "=")
		id, host = strings.TrimSpace(id), strings.TrimSpace(host)
		if !ok || id == "" || host == "" {
			return nil, fmt.Errorf("config: VISITOR_PROJECTS entry %q is not id=host", strings.TrimSpace(pair))
		}
		out[id] = host
	}
	return out, nil
}
