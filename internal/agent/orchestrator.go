package agent

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/imoblink/imoblink/internal/catalog"
	"github.com/imoblink/imoblink/internal/gateway"
	"github.com/imoblink/imoblink/internal/llm"
	"github.com/imoblink/imoblink/internal/store"
	"github.com/imoblink/imoblink/internal/webhook"
)

// User-safe fixed replies. The contact always gets one of these or a real
// answer, never a raw error.
const (
	llmFallbackText           = "Desculpe, ocorreu um erro ao processar sua mensagem. Tente novamente em alguns instantes."
	transcriptionFallbackText = "Desculpe, não consegui processar o áudio enviado."
)

const searchToolName = "search_catalog"

// finalCallMaxTokens caps the reply after a search so the model cannot
// re-list items in prose; the intro sentence fits comfortably.
const finalCallMaxTokens = 120

const finalCallTemperature = 0.2

// Reply is the orchestrator's output for one turn.
type Reply struct {
	Text        string
	Items       []gateway.MediaItem
	WorkingText string // transcription-resolved inbound text, for persistence
	Searched    bool
}

// Orchestrator runs the completion loop: optional transcription, first
// completion with the search tool offered, tool execution, and the final
// short completion when a search happened.
type Orchestrator struct {
	llm       llm.Client
	paginator *catalog.Paginator
	defaults  ModelDefaults
	whisper   string
	logger    *slog.Logger
}

// ModelDefaults fill in agent records with unset model parameters.
type ModelDefaults struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

func NewOrchestrator(client llm.Client, paginator *catalog.Paginator, defaults ModelDefaults, whisperModel string, logger *slog.Logger) *Orchestrator {
	if defaults.Model == "" {
		defaults.Model = openai.GPT4o
	}
	if defaults.MaxTokens <= 0 {
		defaults.MaxTokens = 1000
	}
	if whisperModel == "" {
		whisperModel = openai.Whisper1
	}
	return &Orchestrator{
		llm:       client,
		paginator: paginator,
		defaults:  defaults,
		whisper:   whisperModel,
		logger:    logger,
	}
}

// Respond produces the reply for one inbound event. Failures of the
// external services degrade to fixed fallback texts; the returned slots
// must be persisted by the caller when Searched is set.
func (o *Orchestrator) Respond(ctx context.Context, tenantID uuid.UUID, ag *store.Agent, pc *PromptContext, ev *webhook.InboundEvent, slots store.SearchSlots) (*Reply, store.SearchSlots) {
	workingText := ev.Text
	if ev.MediaKind == store.KindAudio {
		text, err := o.transcribe(ctx, ev)
		if err != nil {
			o.logger.Warn("transcription failed", "error", err)
			return &Reply{Text: transcriptionFallbackText, WorkingText: ev.Text}, slots
		}
		workingText = text
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(pc.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: pc.System,
	})
	messages = append(messages, pc.History...)
	messages = append(messages, o.currentMessage(ev, workingText))

	model, temperature, maxTokens := o.modelParams(ag)

	first, err := o.llm.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Tools:       []openai.Tool{searchToolDef()},
	})
	if err != nil {
		o.logger.Error("completion failed", "agent", ag.ID, "error", err)
		return &Reply{Text: llmFallbackText, WorkingText: workingText}, slots
	}
	if len(first.Choices) == 0 {
		return &Reply{Text: llmFallbackText, WorkingText: workingText}, slots
	}

	choice := first.Choices[0].Message
	toolCall, ok := findSearchCall(choice.ToolCalls)
	if !ok {
		return &Reply{Text: choice.Content, WorkingText: workingText}, slots
	}

	var args catalog.SearchArgs
	if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &args); err != nil {
		o.logger.Warn("bad tool arguments", "agent", ag.ID, "error", err)
	}

	result, nextSlots, err := o.paginator.Search(ctx, tenantID, args, slots, pc.HistoryText, workingText)
	if err != nil {
		o.logger.Error("catalog search failed", "agent", ag.ID, "error", err)
		return &Reply{Text: llmFallbackText, WorkingText: workingText}, slots
	}

	toolPayload, _ := json.Marshal(result)
	messages = append(messages, choice)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		ToolCallID: toolCall.ID,
		Name:       searchToolName,
		Content:    string(toolPayload),
	})

	final, err := o.llm.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: finalCallTemperature,
		MaxTokens:   finalCallMaxTokens,
	})
	if err != nil || len(final.Choices) == 0 {
		o.logger.Error("final completion failed", "agent", ag.ID, "error", err)
		return &Reply{Text: llmFallbackText, WorkingText: workingText}, slots
	}

	return &Reply{
		Text:        final.Choices[0].Message.Content,
		Items:       mediaItems(result.Items),
		WorkingText: workingText,
		Searched:    true,
	}, nextSlots
}

func (o *Orchestrator) modelParams(ag *store.Agent) (string, float32, int) {
	model := ag.Model
	if model == "" {
		model = o.defaults.Model
	}
	temperature := ag.Temperature
	if temperature <= 0 {
		temperature = o.defaults.Temperature
	}
	maxTokens := ag.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.defaults.MaxTokens
	}
	return model, temperature, maxTokens
}

// currentMessage renders the inbound message, as multimodal content when it
// carries an image.
func (o *Orchestrator) currentMessage(ev *webhook.InboundEvent, workingText string) openai.ChatCompletionMessage {
	if ev.MediaKind != store.KindImage || ev.MediaBase64 == "" {
		return openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: workingText,
		}
	}
	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeText,
				Text: workingText,
			},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    "data:image/jpeg;base64," + ev.MediaBase64,
					Detail: openai.ImageURLDetailAuto,
				},
			},
		},
	}
}

func (o *Orchestrator) transcribe(ctx context.Context, ev *webhook.InboundEvent) (string, error) {
	if ev.MediaBase64 == "" {
		return "", fmt.Errorf("audio message without payload")
	}
	data, err := base64.StdEncoding.DecodeString(ev.MediaBase64)
	if err != nil {
		return "", fmt.Errorf("decode audio payload: %w", err)
	}
	resp, err := o.llm.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.whisper,
		Reader:   bytes.NewReader(data),
		FilePath: "audio.ogg",
	})
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("empty transcription")
	}
	return text, nil
}

func findSearchCall(calls []openai.ToolCall) (openai.ToolCall, bool) {
	for _, call := range calls {
		if call.Function.Name == searchToolName {
			return call, true
		}
	}
	return openai.ToolCall{}, false
}

func searchToolDef() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name: searchToolName,
			Description: "Busca imoveis no catalogo da imobiliaria. Use quando o cliente quiser ver imoveis " +
				"ou pedir mais opcoes. Todos os parametros sao opcionais.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"location": map[string]any{
						"type":        "string",
						"description": "Cidade ou bairro mencionado pelo cliente",
					},
					"transaction_type": map[string]any{
						"type": "string",
						"enum": []string{"sale", "rent"},
					},
					"category": map[string]any{
						"type": "string",
						"enum": catalog.Categories,
					},
					"limit": map[string]any{
						"type":        "number",
						"description": "Quantidade de imoveis a retornar",
					},
				},
			},
		},
	}
}

// mediaItems converts resolved listings into outbound media sequences. The
// first item's caption carries the listing summary.
func mediaItems(items []*store.Property) []gateway.MediaItem {
	result := make([]gateway.MediaItem, 0, len(items))
	for _, p := range items {
		result = append(result, gateway.MediaItem{
			Caption:   propertyCaption(p),
			ImageURLs: p.ImageURLs,
			VideoURL:  p.VideoURL,
		})
	}
	return result
}

func propertyCaption(p *store.Property) string {
	var parts []string
	title := strings.TrimSpace(p.Title)
	if p.Code != "" {
		title = fmt.Sprintf("%s (Cód. %s)", title, p.Code)
	}
	parts = append(parts, title)

	if loc := joinNonEmpty(", ", p.Neighborhood, p.City); loc != "" {
		parts = append(parts, loc)
	}

	var attrs []string
	if p.Bedrooms > 0 {
		attrs = append(attrs, fmt.Sprintf("%d quartos", p.Bedrooms))
	}
	if p.Bathrooms > 0 {
		attrs = append(attrs, fmt.Sprintf("%d banheiros", p.Bathrooms))
	}
	if p.ParkingSpaces > 0 {
		attrs = append(attrs, fmt.Sprintf("%d vagas", p.ParkingSpaces))
	}
	if p.AreaM2 > 0 {
		attrs = append(attrs, fmt.Sprintf("%.0f m²", p.AreaM2))
	}
	if len(attrs) > 0 {
		parts = append(parts, strings.Join(attrs, ", "))
	}
	return strings.Join(parts, " - ")
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, strings.TrimSpace(p))
		}
	}
	return strings.Join(kept, sep)
}
