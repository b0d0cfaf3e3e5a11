// Package llm wraps the OpenAI-compatible API used for chat completions and
// audio transcription. The interfaces exist so the pipeline can be tested
// against fakes.
package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// Completer is the chat-completion surface of the API client.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Transcriber is the speech-to-text surface of the API client.
type Transcriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// Client bundles both surfaces. *openai.Client satisfies it.
type Client interface {
	Completer
	Transcriber
}

// New creates an API client. baseURL overrides the default endpoint, for
// OpenAI-compatible proxies.
func New(apiKey, baseURL string) *openai.Client {
	if baseURL == "" {
		return openai.NewClient(apiKey)
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return openai.NewClientWithConfig(cfg)
}
