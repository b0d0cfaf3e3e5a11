package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AgentKind is the closed set of agent roles.
type AgentKind string

const (
	AgentMain      AgentKind = "main"
	AgentSecondary AgentKind = "secondary"
)

// Valid reports whether k is a known kind. Unknown kinds are rejected at load
// time instead of being silently treated as main.
func (k AgentKind) Valid() bool {
	return k == AgentMain || k == AgentSecondary
}

// Sender identifies who authored a message.
type Sender string

const (
	SenderContact Sender = "contact"
	SenderAgent   Sender = "agent"
)

// MessageKind is the content type of a stored message.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindAudio MessageKind = "audio"
)

// TransactionType is the catalog transaction filter.
type TransactionType string

const (
	TransactionSale TransactionType = "sale"
	TransactionRent TransactionType = "rent"
)

// TenantInstance is a tenant's connected messaging channel.
// Owned by the administrative subsystem; the pipeline only reads it.
type TenantInstance struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	Name              string
	GatewayInstanceID string
	Phone             string
	Status            string
	AgentID           *uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Agent is an AI persona configured by a tenant.
type Agent struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	Kind               AgentKind
	ParentAgentID      *uuid.UUID // set iff Kind == AgentSecondary
	Name               string
	Prompt             string
	Knowledge          string
	DelegationKeywords []string // only meaningful for secondary agents
	Model              string
	Temperature        float32
	MaxTokens          int
	Status             string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Validate checks the kind/parent invariant.
func (a *Agent) Validate() error {
	if !a.Kind.Valid() {
		return fmt.Errorf("agent %s: unknown kind %q", a.ID, a.Kind)
	}
	if a.Kind == AgentSecondary && a.ParentAgentID == nil {
		return fmt.Errorf("agent %s: secondary agent without parent", a.ID)
	}
	if a.Kind == AgentMain && a.ParentAgentID != nil {
		return fmt.Errorf("agent %s: main agent with parent", a.ID)
	}
	return nil
}

// SearchSlots is the per-conversation slot-filling state: the last known
// search criteria plus the pagination counter for "show more" follow-ups.
type SearchSlots struct {
	Location    string
	Category    string
	Transaction string
	Offset      int
}

// Conversation is one contact's thread on one tenant instance.
type Conversation struct {
	ID           uuid.UUID
	InstanceID   uuid.UUID
	ContactPhone string
	ContactName  string
	LastMessage  string
	Status       string
	Slots        SearchSlots
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message is one append-only entry in a conversation.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Sender         Sender
	Content        string
	AgentID        *uuid.UUID // authoring agent, agent-sent messages only
	Kind           MessageKind
	MediaBase64    string
	Caption        string
	CreatedAt      time.Time
}

// Property is a tenant catalog listing. Read-only to the pipeline.
type Property struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	Code          string
	Title         string
	Category      string
	Transaction   TransactionType
	City          string
	Neighborhood  string
	Street        string
	Bedrooms      int
	Bathrooms     int
	ParkingSpaces int
	AreaM2        float64
	Description   string
	ImageURLs     []string
	VideoURL      string
	Status        string
	CreatedAt     time.Time
}
