package config

import "time"

// Config is the root configuration for the imoblink service.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database,omitempty"`
	OpenAI   OpenAIConfig   `json:"openai"`
	Gateway  GatewayConfig  `json:"gateway"`
	Agents   AgentDefaults  `json:"agents"`
	Webhook  WebhookConfig  `json:"webhook"`
}

// ServerConfig configures the inbound HTTP listener.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DatabaseConfig configures Postgres.
// PostgresDSN is never read from the config file, env IMOBLINK_POSTGRES_DSN only.
type DatabaseConfig struct {
	PostgresDSN string `json:"-"`
}

// OpenAIConfig configures the completion and transcription service.
// APIKey comes from env IMOBLINK_OPENAI_API_KEY only.
type OpenAIConfig struct {
	APIKey             string `json:"-"`
	BaseURL            string `json:"base_url,omitempty"`
	TranscriptionModel string `json:"transcription_model,omitempty"`
}

// GatewayConfig configures the outbound messaging-gateway client
// (Evolution-compatible HTTP API). Token from env IMOBLINK_GATEWAY_TOKEN only.
type GatewayConfig struct {
	BaseURL          string `json:"base_url"`
	Token            string `json:"-"`
	SendDelayMS      int    `json:"send_delay_ms,omitempty"`
	MaxImagesPerItem int    `json:"max_images_per_item,omitempty"`
}

// SendDelay returns the inter-media-send delay as a duration.
func (g GatewayConfig) SendDelay() time.Duration {
	return time.Duration(g.SendDelayMS) * time.Millisecond
}

// AgentDefaults holds model parameters used when an agent record leaves them unset.
type AgentDefaults struct {
	Model        string  `json:"model"`
	Temperature  float32 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
	HistoryLimit int     `json:"history_limit"`
}

// WebhookConfig configures inbound event handling.
// Token (shared secret checked against the webhook header) from env only.
type WebhookConfig struct {
	Token        string `json:"-"`
	Path         string `json:"path,omitempty"`
	RateLimitRPM int    `json:"rate_limit_rpm,omitempty"`
	MaxBodyBytes int64  `json:"max_body_bytes,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 18890,
		},
		OpenAI: OpenAIConfig{
			TranscriptionModel: "whisper-1",
		},
		Gateway: GatewayConfig{
			SendDelayMS:      1200,
			MaxImagesPerItem: 3,
		},
		Agents: AgentDefaults{
			Model:        "gpt-4o",
			Temperature:  0.7,
			MaxTokens:    1000,
			HistoryLimit: 50,
		},
		Webhook: WebhookConfig{
			Path:         "/webhook/messages",
			RateLimitRPM: 60,
			MaxBodyBytes: 4 << 20,
		},
	}
}
