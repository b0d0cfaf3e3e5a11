package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Processor runs the pipeline for one accepted event.
type Processor interface {
	Process(ctx context.Context, ev *InboundEvent) error
}

// HandlerConfig tunes the webhook endpoint.
type HandlerConfig struct {
	Token          string // expected apikey header; empty disables the check
	RateLimitRPM   int    // per-contact events per minute
	MaxBodyBytes   int64
	ProcessTimeout time.Duration
}

// Handler is the webhook HTTP entry point. Accepted events are processed
// asynchronously; the gateway gets its 200 immediately so it never retries
// an event the pipeline already owns.
type Handler struct {
	cfg       HandlerConfig
	processor Processor
	deduper   *Deduper
	limiters  *senderLimiters
	logger    *slog.Logger
}

func NewHandler(cfg HandlerConfig, processor Processor, logger *slog.Logger) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 4 << 20
	}
	if cfg.RateLimitRPM <= 0 {
		cfg.RateLimitRPM = 60
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 2 * time.Minute
	}
	return &Handler{
		cfg:       cfg,
		processor: processor,
		deduper:   NewDeduper(),
		limiters:  newSenderLimiters(cfg.RateLimitRPM),
		logger:    logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.cfg.Token != "" && r.Header.Get("apikey") != h.cfg.Token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var payload Payload
	body := http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		// Malformed bodies are acknowledged too; a 4xx would just make the
		// gateway redeliver the same garbage.
		h.logger.Warn("webhook decode failed", "error", err)
		h.ack(w)
		return
	}

	ev, dropReason := payload.Normalize()
	if ev == nil {
		h.logger.Debug("webhook event dropped", "reason", dropReason)
		h.ack(w)
		return
	}
	if h.deduper.Seen(ev.EventID) {
		h.logger.Debug("webhook event deduplicated", "event_id", ev.EventID)
		h.ack(w)
		return
	}
	if !h.limiters.allow(ev.ContactPhone) {
		h.logger.Warn("webhook rate limited", "contact", ev.ContactPhone)
		h.ack(w)
		return
	}

	go h.process(ev)
	h.ack(w)
}

func (h *Handler) process(ev *InboundEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("pipeline panic", "event_id", ev.EventID, "panic", rec)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.ProcessTimeout)
	defer cancel()

	if err := h.processor.Process(ctx, ev); err != nil {
		h.logger.Error("pipeline failed",
			"event_id", ev.EventID, "instance", ev.GatewayInstanceID, "error", err)
	}
}

func (h *Handler) ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"received"}`))
}

// senderLimiters holds one token bucket per contact, bounded so rotating
// sender IDs cannot exhaust memory.
type senderLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rpm      int
}

const maxTrackedSenders = 4096

func newSenderLimiters(rpm int) *senderLimiters {
	return &senderLimiters{
		limiters: make(map[string]*rate.Limiter),
		rpm:      rpm,
	}
}

func (s *senderLimiters) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.limiters) >= maxTrackedSenders {
		for k := range s.limiters {
			delete(s.limiters, k)
			break
		}
	}

	lim, ok := s.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(s.rpm)/60.0), s.rpm)
		s.limiters[key] = lim
	}
	return lim.Allow()
}
