package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/titanous/json5"
)

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: defaults plus env are enough to run.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// ApplyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values; secrets are env-only.
func (c *Config) ApplyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("IMOBLINK_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("IMOBLINK_OPENAI_API_KEY", &c.OpenAI.APIKey)
	envStr("IMOBLINK_OPENAI_BASE_URL", &c.OpenAI.BaseURL)
	envStr("IMOBLINK_GATEWAY_URL", &c.Gateway.BaseURL)
	envStr("IMOBLINK_GATEWAY_TOKEN", &c.Gateway.Token)
	envStr("IMOBLINK_WEBHOOK_TOKEN", &c.Webhook.Token)
	envStr("IMOBLINK_MODEL", &c.Agents.Model)

	envStr("IMOBLINK_HOST", &c.Server.Host)
	if v := os.Getenv("IMOBLINK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
}

// Validate reports configuration the service cannot start without.
func (c *Config) Validate() error {
	if c.Database.PostgresDSN == "" {
		return fmt.Errorf("IMOBLINK_POSTGRES_DSN is not set")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("IMOBLINK_OPENAI_API_KEY is not set")
	}
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("IMOBLINK_GATEWAY_URL is not set")
	}
	return nil
}
