package webhook

import (
	"testing"

	"github.com/imoblink/imoblink/internal/store"
)

func textPayload(text string) *Payload {
	return &Payload{
		Instance: "demo",
		Data: EventData{
			Key:         &EventKey{RemoteJid: "5549999990000@s.whatsapp.net", FromMe: false, ID: "msg-1"},
			Message:     EventMessage{Conversation: text},
			PushName:    "Maria",
			InstanceID:  "inst-abc",
			MessageType: "conversation",
		},
	}
}

func TestNormalize_AcceptsPlainText(t *testing.T) {
	ev, reason := textPayload("oi, tudo bem?").Normalize()
	if ev == nil {
		t.Fatalf("dropped: %s", reason)
	}
	if ev.ContactPhone != "5549999990000" {
		t.Errorf("ContactPhone = %q, want suffix stripped", ev.ContactPhone)
	}
	if ev.Text != "oi, tudo bem?" {
		t.Errorf("Text = %q", ev.Text)
	}
	if ev.ContactName != "Maria" {
		t.Errorf("ContactName = %q", ev.ContactName)
	}
	if ev.MediaKind != store.KindText {
		t.Errorf("MediaKind = %q, want text", ev.MediaKind)
	}
	if ev.GatewayInstanceID != "inst-abc" || ev.InstanceName != "demo" {
		t.Errorf("instance fields = %q / %q", ev.GatewayInstanceID, ev.InstanceName)
	}
}

func TestNormalize_DropsSelfAuthored(t *testing.T) {
	p := textPayload("resposta nossa")
	p.Data.Key.FromMe = true
	if ev, _ := p.Normalize(); ev != nil {
		t.Fatal("fromMe event must never reach the pipeline")
	}
}

func TestNormalize_DropsOutboundEcho(t *testing.T) {
	p := textPayload("eco")
	p.Data.Status = "PENDING"
	p.Destination = "https://example.com/webhook"
	if ev, _ := p.Normalize(); ev != nil {
		t.Fatal("PENDING event with destination must be dropped")
	}
}

func TestNormalize_DropsStatusUpdates(t *testing.T) {
	for _, status := range []string{"READ", "SERVER_ACK", "PLAYED"} {
		p := textPayload("oi")
		p.Data.Status = status
		if ev, _ := p.Normalize(); ev != nil {
			t.Errorf("status %s is an update, not a new message", status)
		}
	}
	// Fresh messages carry DELIVERY_ACK, PENDING, or no status.
	for _, status := range []string{"", "DELIVERY_ACK", "PENDING"} {
		p := textPayload("oi")
		p.Data.Status = status
		if ev, reason := p.Normalize(); ev == nil {
			t.Errorf("status %q dropped: %s", status, reason)
		}
	}
}

func TestNormalize_DropsMissingType(t *testing.T) {
	p := textPayload("oi")
	p.Data.MessageType = ""
	if ev, _ := p.Normalize(); ev != nil {
		t.Fatal("event without a message type must be dropped")
	}
}

func TestNormalize_DropsUnsupportedType(t *testing.T) {
	p := textPayload("x")
	p.Data.MessageType = "stickerMessage"
	if ev, reason := p.Normalize(); ev != nil || reason == "" {
		t.Fatalf("unsupported type must be dropped, got ev=%v reason=%q", ev, reason)
	}
}

func TestNormalize_DropsEmptyText(t *testing.T) {
	p := textPayload("   ")
	if ev, _ := p.Normalize(); ev != nil {
		t.Fatal("whitespace-only text must be dropped")
	}
}

func TestNormalize_DropsMissingPhone(t *testing.T) {
	p := textPayload("oi")
	p.Data.Key = nil
	if ev, _ := p.Normalize(); ev != nil {
		t.Fatal("event without sender phone must be dropped")
	}
}

func TestNormalize_ExtendedText(t *testing.T) {
	p := textPayload("")
	p.Data.Message = EventMessage{ExtendedTextMessage: &TextContent{Text: "procuro casa"}}
	p.Data.MessageType = "extendedTextMessage"
	ev, reason := p.Normalize()
	if ev == nil {
		t.Fatalf("dropped: %s", reason)
	}
	if ev.Text != "procuro casa" {
		t.Errorf("Text = %q", ev.Text)
	}
}

func TestNormalize_ImageWithCaption(t *testing.T) {
	p := textPayload("")
	p.Data.MessageType = "imageMessage"
	p.Data.Message = EventMessage{ImageMessage: &MediaContent{
		URL:     "https://gw.example.com/media/1",
		Caption: "esse imovel ainda esta disponivel?",
		Base64:  "aGVsbG8=",
	}}
	ev, reason := p.Normalize()
	if ev == nil {
		t.Fatalf("dropped: %s", reason)
	}
	if ev.MediaKind != store.KindImage {
		t.Fatalf("MediaKind = %q", ev.MediaKind)
	}
	if ev.Text != "esse imovel ainda esta disponivel?" {
		t.Errorf("caption should become the message text, got %q", ev.Text)
	}
	if ev.MediaBase64 != "aGVsbG8=" {
		t.Errorf("MediaBase64 = %q", ev.MediaBase64)
	}
}

func TestNormalize_ImageWithoutCaption(t *testing.T) {
	p := textPayload("")
	p.Data.MessageType = "imageMessage"
	p.Data.Message = EventMessage{ImageMessage: &MediaContent{URL: "https://gw.example.com/media/2"}}
	ev, reason := p.Normalize()
	if ev == nil {
		t.Fatalf("dropped: %s", reason)
	}
	if ev.Text != "Imagem enviada" {
		t.Errorf("Text = %q, want fixed fallback", ev.Text)
	}
}

func TestNormalize_Audio(t *testing.T) {
	p := textPayload("")
	p.Data.MessageType = "audioMessage"
	p.Data.Message = EventMessage{AudioMessage: &MediaContent{Base64: "b2dn"}}
	ev, reason := p.Normalize()
	if ev == nil {
		t.Fatalf("dropped: %s", reason)
	}
	if ev.MediaKind != store.KindAudio {
		t.Errorf("MediaKind = %q", ev.MediaKind)
	}
	// Audio has no text until transcription runs.
	if ev.Text != "" {
		t.Errorf("Text = %q, want empty", ev.Text)
	}
}

func TestDeduper(t *testing.T) {
	d := NewDeduper()
	if d.Seen("msg-1") {
		t.Fatal("first sighting must not be deduplicated")
	}
	if !d.Seen("msg-1") {
		t.Fatal("second sighting must be deduplicated")
	}
	if d.Seen("") {
		t.Fatal("empty ids are never deduplicated")
	}
	if d.Seen("") {
		t.Fatal("empty ids are never deduplicated, even repeated")
	}
}
