package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/imoblink/imoblink/internal/catalog"
	"github.com/imoblink/imoblink/internal/store"
)

const knowledgeHeader = "=== CONHECIMENTO BASE ==="
const knowledgeFooter = "=== FIM CONHECIMENTO BASE ==="

const toolPolicy = `Voce tem acesso a ferramenta search_catalog para buscar imoveis no catalogo. ` +
	`Use-a sempre que o cliente demonstrar interesse em ver, comprar ou alugar imoveis, ou pedir mais opcoes. ` +
	`NUNCA liste, descreva ou enumere os imoveis na sua resposta: os detalhes e fotos sao enviados automaticamente pelo sistema. ` +
	`Apos uma busca, responda apenas com uma frase curta de introducao.`

// PromptContext is the assembled model input for one turn.
type PromptContext struct {
	System      string
	History     []openai.ChatCompletionMessage
	HistoryText string // flattened history, oldest-first, for criteria scanning
	IsFirst     bool   // no prior messages in the conversation
}

// Assembler builds the system prompt and chat history for a turn.
type Assembler struct {
	conversations store.ConversationStore
	catalog       store.CatalogStore
	classifier    catalog.Classifier
	historyLimit  int
}

func NewAssembler(conversations store.ConversationStore, cat store.CatalogStore, classifier catalog.Classifier, historyLimit int) *Assembler {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &Assembler{
		conversations: conversations,
		catalog:       cat,
		classifier:    classifier,
		historyLimit:  historyLimit,
	}
}

// Build loads recent history and assembles the system prompt for the agent
// answering currentText. The current message itself is appended by the
// orchestrator, which knows whether it carries media.
func (a *Assembler) Build(ctx context.Context, conv *store.Conversation, ag *store.Agent, tenantID uuid.UUID, currentText string) (*PromptContext, error) {
	history, err := a.conversations.History(ctx, conv.ID, a.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	pc := &PromptContext{IsFirst: len(history) == 0}

	var sb strings.Builder
	var textParts []string
	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if msg.Sender == store.SenderAgent {
			role = openai.ChatMessageRoleAssistant
		}
		// Media history entries are flattened to their text rendering.
		pc.History = append(pc.History, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
		textParts = append(textParts, msg.Content)
	}
	pc.HistoryText = strings.Join(textParts, "\n")

	sb.WriteString(strings.TrimSpace(ag.Prompt))
	if sb.Len() == 0 {
		fmt.Fprintf(&sb, "Voce e %s, um assistente imobiliario especializado.", ag.Name)
	}

	sb.WriteString("\n\n")
	sb.WriteString(a.identityBlock(conv, pc.IsFirst))

	if k := strings.TrimSpace(ag.Knowledge); k != "" {
		fmt.Fprintf(&sb, "\n\n%s\n%s\n%s\n\n", knowledgeHeader, k, knowledgeFooter)
		sb.WriteString("Use as informacoes do CONHECIMENTO BASE acima para responder as perguntas do usuario de forma precisa e detalhada.")
	}

	sb.WriteString("\n\n")
	sb.WriteString(toolPolicy)

	if hint := a.contextHint(ctx, conv, tenantID, currentText, pc.HistoryText); hint != "" {
		sb.WriteString("\n\n")
		sb.WriteString(hint)
	}

	sb.WriteString("\n\nResponda sempre em portugues brasileiro de forma natural.")

	pc.System = sb.String()
	return pc, nil
}

func (a *Assembler) identityBlock(conv *store.Conversation, isFirst bool) string {
	name := strings.TrimSpace(conv.ContactName)
	switch {
	case isFirst && name != "":
		return fmt.Sprintf("Voce esta falando com %s. Esta e a primeira mensagem da conversa: cumprimente-o calorosamente pelo nome.", name)
	case isFirst:
		return "Esta e a primeira mensagem da conversa: cumprimente o cliente calorosamente."
	case name != "":
		return fmt.Sprintf("Voce esta falando com %s. Dirija-se a ele pelo nome quando for natural.", name)
	default:
		return ""
	}
}

// contextHint surfaces previously stated search criteria so the model does
// not lose them between turns. The persisted slots are authoritative; the
// history scan only covers conversations from before slots existed.
// Suppressed on bare greetings so "oi" never triggers a premature search.
func (a *Assembler) contextHint(ctx context.Context, conv *store.Conversation, tenantID uuid.UUID, currentText, historyText string) string {
	if catalog.IsGreeting(currentText) {
		return ""
	}

	location := conv.Slots.Location
	category := conv.Slots.Category
	transaction := conv.Slots.Transaction

	if location == "" || category == "" {
		scan := historyText + "\n" + currentText
		if category == "" {
			if cat, ok := a.classifier.Category(scan); ok {
				category = cat
			}
		}
		if location == "" {
			if known, err := a.catalog.Locations(ctx, tenantID); err == nil {
				if loc, ok := a.classifier.Location(scan, known); ok {
					location = loc
				}
			}
		}
		if transaction == "" {
			if tx, ok := a.classifier.Transaction(scan); ok {
				transaction = tx
			}
		}
	}

	var parts []string
	if category != "" {
		parts = append(parts, "tipo de imovel: "+category)
	}
	if location != "" {
		parts = append(parts, "localizacao: "+location)
	}
	if transaction != "" {
		parts = append(parts, "transacao: "+transaction)
	}
	if len(parts) == 0 {
		return ""
	}
	return "Contexto da conversa (criterios ja mencionados pelo cliente): " + strings.Join(parts, ", ") + "."
}
