package agent

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/imoblink/imoblink/internal/catalog"
	"github.com/imoblink/imoblink/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- stores ---

type memInstances struct {
	byGatewayID map[string]*store.TenantInstance
}

func (m *memInstances) GetByGatewayID(ctx context.Context, gatewayID string) (*store.TenantInstance, error) {
	if inst, ok := m.byGatewayID[gatewayID]; ok {
		return inst, nil
	}
	return nil, store.ErrNotFound
}

func (m *memInstances) FindByName(ctx context.Context, name string) (*store.TenantInstance, error) {
	for _, inst := range m.byGatewayID {
		if inst.Name == name {
			return inst, nil
		}
	}
	return nil, store.ErrNotFound
}

type memAgents struct {
	agents map[uuid.UUID]*store.Agent
}

func (m *memAgents) Get(ctx context.Context, id uuid.UUID) (*store.Agent, error) {
	if ag, ok := m.agents[id]; ok {
		return ag, nil
	}
	return nil, store.ErrNotFound
}

func (m *memAgents) ListSecondariesByParent(ctx context.Context, parentID uuid.UUID) ([]*store.Agent, error) {
	var result []*store.Agent
	for _, ag := range m.agents {
		if ag.Kind == store.AgentSecondary && ag.ParentAgentID != nil && *ag.ParentAgentID == parentID {
			result = append(result, ag)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

type memConversations struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*store.Conversation
	messages      map[uuid.UUID][]*store.Message
}

func newMemConversations() *memConversations {
	return &memConversations{
		conversations: make(map[uuid.UUID]*store.Conversation),
		messages:      make(map[uuid.UUID][]*store.Message),
	}
}

func (m *memConversations) GetOrCreate(ctx context.Context, instanceID uuid.UUID, phone, contactName, firstMessage string) (*store.Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, conv := range m.conversations {
		if conv.InstanceID == instanceID && conv.ContactPhone == phone {
			return conv, false, nil
		}
	}
	conv := &store.Conversation{
		ID:           uuid.Must(uuid.NewV7()),
		InstanceID:   instanceID,
		ContactPhone: phone,
		ContactName:  contactName,
		LastMessage:  firstMessage,
		Status:       "active",
		CreatedAt:    time.Now(),
	}
	m.conversations[conv.ID] = conv
	return conv, true, nil
}

func (m *memConversations) UpdateContactName(ctx context.Context, id uuid.UUID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.conversations[id]; ok {
		conv.ContactName = name
	}
	return nil
}

func (m *memConversations) UpdateSlots(ctx context.Context, id uuid.UUID, slots store.SearchSlots) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.conversations[id]; ok {
		conv.Slots = slots
	}
	return nil
}

func (m *memConversations) UpdateLastMessage(ctx context.Context, id uuid.UUID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.conversations[id]; ok {
		conv.LastMessage = text
	}
	return nil
}

func (m *memConversations) AppendMessage(ctx context.Context, msg *store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == uuid.Nil {
		msg.ID = uuid.Must(uuid.NewV7())
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return nil
}

func (m *memConversations) History(ctx context.Context, conversationID uuid.UUID, limit int) ([]*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*store.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

type memCatalog struct {
	items []*store.Property
}

func (m *memCatalog) Search(ctx context.Context, tenantID uuid.UUID, f store.PropertyFilter, offset, limit int) ([]*store.Property, int, error) {
	var matched []*store.Property
	for _, p := range m.items {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Transaction != "" && string(p.Transaction) != f.Transaction {
			continue
		}
		if f.Location != "" && catalog.Normalize(p.City) != catalog.Normalize(f.Location) {
			continue
		}
		matched = append(matched, p)
	}
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (m *memCatalog) Locations(ctx context.Context, tenantID uuid.UUID) ([]string, error) {
	seen := map[string]bool{}
	var locs []string
	for _, p := range m.items {
		c := catalog.Normalize(p.City)
		if c != "" && !seen[c] {
			seen[c] = true
			locs = append(locs, c)
		}
	}
	return locs, nil
}

// --- llm ---

// scriptedLLM returns canned completion responses in order and records the
// requests it saw.
type scriptedLLM struct {
	responses []openai.ChatCompletionResponse
	errs      []error
	requests  []openai.ChatCompletionRequest

	transcription    string
	transcriptionErr error
}

func (s *scriptedLLM) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.requests = append(s.requests, req)
	i := len(s.requests) - 1
	if i < len(s.errs) && s.errs[i] != nil {
		return openai.ChatCompletionResponse{}, s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return textResponse("ok"), nil
}

func (s *scriptedLLM) CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error) {
	if s.transcriptionErr != nil {
		return openai.AudioResponse{}, s.transcriptionErr
	}
	return openai.AudioResponse{Text: s.transcription}, nil
}

func textResponse(text string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: text}},
		},
	}
}

func toolCallResponse(arguments string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{
					{
						ID:   "call-1",
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      "search_catalog",
							Arguments: arguments,
						},
					},
				},
			}},
		},
	}
}

// --- gateway ---

type sentItem struct {
	kind    string // "text" or "image"
	text    string
	caption string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentItem
	fail map[int]bool // index in send order to fail
}

func (f *fakeSender) SendText(ctx context.Context, instanceID, phone, text string) error {
	return f.record(sentItem{kind: "text", text: text})
}

func (f *fakeSender) SendImage(ctx context.Context, instanceID, phone, imageURL, caption string) error {
	return f.record(sentItem{kind: "image", text: imageURL, caption: caption})
}

func (f *fakeSender) record(item sentItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.sent)
	f.sent = append(f.sent, item)
	if f.fail[idx] {
		return context.DeadlineExceeded
	}
	return nil
}

type fakeMedia struct {
	payload string
	err     error
}

func (f *fakeMedia) DownloadMedia(ctx context.Context, mediaURL string) (string, error) {
	return f.payload, f.err
}
