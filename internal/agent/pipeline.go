package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/imoblink/imoblink/internal/gateway"
	"github.com/imoblink/imoblink/internal/store"
	"github.com/imoblink/imoblink/internal/webhook"
)

// Pipeline wires the full inbound flow: resolve, delegate, assemble,
// respond, dispatch, persist. One invocation per event; all shared state
// lives in the stores.
type Pipeline struct {
	resolver     *Resolver
	delegator    *Delegator
	assembler    *Assembler
	orchestrator *Orchestrator
	dispatcher   *gateway.Dispatcher
	media        gateway.MediaFetcher
	stores       *store.Stores
	logger       *slog.Logger
}

func NewPipeline(
	stores *store.Stores,
	assembler *Assembler,
	orchestrator *Orchestrator,
	dispatcher *gateway.Dispatcher,
	media gateway.MediaFetcher,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		resolver:     NewResolver(stores.Instances, stores.Agents),
		delegator:    NewDelegator(stores.Agents),
		assembler:    assembler,
		orchestrator: orchestrator,
		dispatcher:   dispatcher,
		media:        media,
		stores:       stores,
		logger:       logger,
	}
}

// Process handles one accepted inbound event end to end. Resolution
// failures are terminal drops; everything downstream degrades to fallback
// texts rather than erroring, so the contact always hears back.
func (p *Pipeline) Process(ctx context.Context, ev *webhook.InboundEvent) error {
	inst, mainAgent, err := p.resolver.Resolve(ctx, ev)
	if err != nil {
		if errors.Is(err, ErrInstanceNotFound) || errors.Is(err, ErrAgentNotLinked) {
			p.logger.Warn("event dropped", "reason", err)
			return nil
		}
		return err
	}

	p.fetchMedia(ctx, ev)

	conv, created, err := p.stores.Conversations.GetOrCreate(ctx, inst.ID, ev.ContactPhone, ev.ContactName, ev.Text)
	if err != nil {
		return fmt.Errorf("get or create conversation: %w", err)
	}
	if created {
		p.logger.Info("conversation created",
			"conversation", conv.ID, "instance", inst.ID, "contact", ev.ContactPhone)
	}
	if conv.ContactName == "" && ev.ContactName != "" {
		if err := p.stores.Conversations.UpdateContactName(ctx, conv.ID, ev.ContactName); err != nil {
			p.logger.Warn("contact name update failed", "conversation", conv.ID, "error", err)
		} else {
			conv.ContactName = ev.ContactName
		}
	}

	responder, err := p.delegator.SelectResponder(ctx, mainAgent, ev.Text)
	if err != nil {
		return fmt.Errorf("select responder: %w", err)
	}
	if responder.ID != mainAgent.ID {
		p.logger.Info("delegated", "from", mainAgent.ID, "to", responder.ID)
	}

	pc, err := p.assembler.Build(ctx, conv, responder, inst.TenantID, ev.Text)
	if err != nil {
		return fmt.Errorf("assemble context: %w", err)
	}

	reply, nextSlots := p.orchestrator.Respond(ctx, inst.TenantID, responder, pc, ev, conv.Slots)

	p.dispatcher.Dispatch(ctx, inst.GatewayInstanceID, ev.ContactPhone, reply.Text, reply.Items)

	// Persistence happens after the send attempts so a failed exchange
	// never leaves a half-written conversation.
	return p.persist(ctx, conv, responder, ev, reply, nextSlots)
}

// fetchMedia downloads inbound media that arrived as a URL reference only.
// Best-effort: an image that cannot be fetched degrades to its caption
// text, and audio without payload ends in the transcription apology.
func (p *Pipeline) fetchMedia(ctx context.Context, ev *webhook.InboundEvent) {
	if ev.MediaKind == store.KindText || ev.MediaBase64 != "" || ev.MediaURL == "" {
		return
	}
	b64, err := p.media.DownloadMedia(ctx, ev.MediaURL)
	if err != nil {
		p.logger.Warn("media download failed", "kind", ev.MediaKind, "error", err)
		return
	}
	ev.MediaBase64 = b64
}

func (p *Pipeline) persist(ctx context.Context, conv *store.Conversation, responder *store.Agent, ev *webhook.InboundEvent, reply *Reply, nextSlots store.SearchSlots) error {
	inbound := &store.Message{
		ConversationID: conv.ID,
		Sender:         store.SenderContact,
		Content:        reply.WorkingText,
		Kind:           ev.MediaKind,
		MediaBase64:    ev.MediaBase64,
		Caption:        ev.Caption,
	}
	if inbound.Content == "" {
		inbound.Content = ev.Text
	}
	if err := p.stores.Conversations.AppendMessage(ctx, inbound); err != nil {
		return fmt.Errorf("persist inbound message: %w", err)
	}

	outbound := &store.Message{
		ConversationID: conv.ID,
		Sender:         store.SenderAgent,
		Content:        reply.Text,
		AgentID:        &responder.ID,
		Kind:           store.KindText,
	}
	if err := p.stores.Conversations.AppendMessage(ctx, outbound); err != nil {
		return fmt.Errorf("persist reply: %w", err)
	}

	if err := p.stores.Conversations.UpdateLastMessage(ctx, conv.ID, reply.Text); err != nil {
		p.logger.Warn("last message update failed", "conversation", conv.ID, "error", err)
	}
	if reply.Searched {
		if err := p.stores.Conversations.UpdateSlots(ctx, conv.ID, nextSlots); err != nil {
			p.logger.Warn("slot update failed", "conversation", conv.ID, "error", err)
		}
	}
	return nil
}
