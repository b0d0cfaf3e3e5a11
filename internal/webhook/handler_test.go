package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type captureProcessor struct {
	mu     sync.Mutex
	events []*InboundEvent
	done   chan struct{}
}

func newCaptureProcessor() *captureProcessor {
	return &captureProcessor{done: make(chan struct{}, 16)}
}

func (c *captureProcessor) Process(ctx context.Context, ev *InboundEvent) error {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	c.done <- struct{}{}
	return nil
}

func (c *captureProcessor) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *captureProcessor) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("processor was not invoked")
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func postBody(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func eventJSON(t *testing.T, id, text string) string {
	t.Helper()
	p := textPayload(text)
	p.Data.Key.ID = id
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestHandler_AcceptsAndProcesses(t *testing.T) {
	proc := newCaptureProcessor()
	h := NewHandler(HandlerConfig{}, proc, discardLogger())

	rec := postBody(t, h, eventJSON(t, "e1", "oi"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	proc.wait(t)
	if proc.count() != 1 {
		t.Fatalf("processed %d events, want 1", proc.count())
	}
}

func TestHandler_Acks200ForDroppedEvents(t *testing.T) {
	proc := newCaptureProcessor()
	h := NewHandler(HandlerConfig{}, proc, discardLogger())

	fromMe := textPayload("nossa resposta")
	fromMe.Data.Key.FromMe = true
	b, _ := json.Marshal(fromMe)

	for _, body := range []string{"{not json", string(b)} {
		rec := postBody(t, h, body)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d for %q, want 200 (gateways retry on non-2xx)", rec.Code, body[:10])
		}
	}
	if proc.count() != 0 {
		t.Fatalf("dropped events must not reach the processor, got %d", proc.count())
	}
}

func TestHandler_Deduplicates(t *testing.T) {
	proc := newCaptureProcessor()
	h := NewHandler(HandlerConfig{}, proc, discardLogger())

	postBody(t, h, eventJSON(t, "same-id", "oi"))
	proc.wait(t)
	rec := postBody(t, h, eventJSON(t, "same-id", "oi"))
	if rec.Code != http.StatusOK {
		t.Fatalf("redelivery status = %d, want 200", rec.Code)
	}
	if proc.count() != 1 {
		t.Fatalf("redelivered event must be dropped, processed %d", proc.count())
	}
}

func TestHandler_TokenCheck(t *testing.T) {
	proc := newCaptureProcessor()
	h := NewHandler(HandlerConfig{Token: "secret"}, proc, discardLogger())

	rec := postBody(t, h, eventJSON(t, "e1", "oi"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/webhook/messages", strings.NewReader(eventJSON(t, "e2", "oi")))
	req.Header.Set("apikey", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d, want 200", rec.Code)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := NewHandler(HandlerConfig{}, newCaptureProcessor(), discardLogger())
	req := httptest.NewRequest(http.MethodGet, "/webhook/messages", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestSenderLimiters(t *testing.T) {
	lim := newSenderLimiters(60)
	// Burst capacity equals the per-minute budget.
	for i := 0; i < 60; i++ {
		if !lim.allow("contact-a") {
			t.Fatalf("request %d within burst was rejected", i)
		}
	}
	if lim.allow("contact-a") {
		t.Fatal("request beyond burst must be rejected")
	}
	if !lim.allow("contact-b") {
		t.Fatal("other contacts are limited independently")
	}
}
