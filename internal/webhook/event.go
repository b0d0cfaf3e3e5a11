// Package webhook receives gateway message events, filters out everything
// that must not reach the pipeline, and normalizes the rest.
package webhook

import (
	"strings"

	"github.com/imoblink/imoblink/internal/store"
)

// Payload is the raw gateway webhook body, one message event per call.
type Payload struct {
	Event       string    `json:"event"`
	Instance    string    `json:"instance"`
	Data        EventData `json:"data"`
	Sender      string    `json:"sender"`
	Destination string    `json:"destination"`
	ServerURL   string    `json:"server_url"`
}

type EventData struct {
	Key         *EventKey    `json:"key"`
	Message     EventMessage `json:"message"`
	PushName    string       `json:"pushName"`
	InstanceID  string       `json:"instanceId"`
	MessageType string       `json:"messageType"`
	Status      string       `json:"status"`
}

type EventKey struct {
	RemoteJid string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

type EventMessage struct {
	Conversation        string        `json:"conversation"`
	ExtendedTextMessage *TextContent  `json:"extendedTextMessage"`
	ImageMessage        *MediaContent `json:"imageMessage"`
	AudioMessage        *MediaContent `json:"audioMessage"`
}

type TextContent struct {
	Text string `json:"text"`
}

type MediaContent struct {
	URL      string `json:"url"`
	Mimetype string `json:"mimetype"`
	Caption  string `json:"caption"`
	Base64   string `json:"base64"`
}

// InboundEvent is the normalized form handed to the pipeline.
type InboundEvent struct {
	GatewayInstanceID string
	InstanceName      string
	EventID           string
	ContactPhone      string
	ContactName       string
	Text              string
	MediaKind         store.MessageKind // KindText when no media
	MediaURL          string
	MediaBase64       string
	Caption           string
}

// fallbackImageText stands in for the message text when an image arrives
// without a caption.
const fallbackImageText = "Imagem enviada"

var validStatuses = map[string]bool{
	"":             true,
	"PENDING":      true,
	"DELIVERY_ACK": true,
}

var supportedTypes = map[string]bool{
	"conversation":        true,
	"extendedTextMessage": true,
	"imageMessage":        true,
	"audioMessage":        true,
}

// Normalize applies the acceptance rules and produces the pipeline event.
// The second return is a short drop reason when the event must be ignored;
// dropped events are still acknowledged with 200 upstream, since gateways
// retry on anything else.
func (p *Payload) Normalize() (*InboundEvent, string) {
	d := p.Data

	// Self-authored messages would loop replies forever.
	if d.Key != nil && d.Key.FromMe {
		return nil, "self-authored"
	}
	// Outbound echoes surface as PENDING events carrying a destination.
	if d.Status == "PENDING" && p.Destination != "" {
		return nil, "outbound echo"
	}
	// Fresh inbound messages arrive as DELIVERY_ACK, PENDING, or with no
	// status at all. READ and SERVER_ACK updates reuse the same event shape.
	if !validStatuses[d.Status] {
		return nil, "status " + d.Status
	}
	if d.MessageType == "" {
		return nil, "missing message type"
	}
	if !supportedTypes[d.MessageType] {
		return nil, "unsupported type " + d.MessageType
	}

	text := d.Message.Conversation
	if text == "" && d.Message.ExtendedTextMessage != nil {
		text = d.Message.ExtendedTextMessage.Text
	}

	ev := &InboundEvent{
		GatewayInstanceID: d.InstanceID,
		InstanceName:      p.Instance,
		ContactName:       d.PushName,
		Text:              strings.TrimSpace(text),
		MediaKind:         store.KindText,
	}
	if d.Key != nil {
		ev.EventID = d.Key.ID
		ev.ContactPhone = strings.TrimSuffix(d.Key.RemoteJid, "@s.whatsapp.net")
	}

	switch {
	case d.Message.ImageMessage != nil:
		img := d.Message.ImageMessage
		ev.MediaKind = store.KindImage
		ev.MediaURL = img.URL
		ev.MediaBase64 = img.Base64
		ev.Caption = img.Caption
		if ev.Caption != "" {
			ev.Text = ev.Caption
		} else {
			ev.Text = fallbackImageText
		}
	case d.Message.AudioMessage != nil:
		aud := d.Message.AudioMessage
		ev.MediaKind = store.KindAudio
		ev.MediaURL = aud.URL
		ev.MediaBase64 = aud.Base64
	}

	if ev.MediaKind == store.KindText && ev.Text == "" {
		return nil, "empty content"
	}
	if ev.ContactPhone == "" {
		return nil, "no sender phone"
	}
	return ev, ""
}
