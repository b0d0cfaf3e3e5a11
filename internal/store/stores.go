package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get-style lookups when no row matches.
var ErrNotFound = errors.New("not found")

// InstanceStore resolves tenant instances from gateway identifiers.
type InstanceStore interface {
	// GetByGatewayID looks up an instance by its opaque gateway identifier.
	GetByGatewayID(ctx context.Context, gatewayID string) (*TenantInstance, error)
	// FindByName scans all instances for a display-name match. Fallback for
	// gateways that report a name instead of the opaque id.
	FindByName(ctx context.Context, name string) (*TenantInstance, error)
}

// AgentStore reads agent records. Agents are owned by the admin subsystem.
type AgentStore interface {
	Get(ctx context.Context, id uuid.UUID) (*Agent, error)
	// ListSecondariesByParent returns active secondary agents of a main agent
	// in creation order.
	ListSecondariesByParent(ctx context.Context, parentID uuid.UUID) ([]*Agent, error)
}

// ConversationStore owns the Conversation/Message lifecycle.
type ConversationStore interface {
	// GetOrCreate returns the conversation for (instance, phone), creating it
	// if absent. Concurrent creation for the same pair must resolve to a
	// single row (uniqueness constraint + re-fetch on conflict).
	GetOrCreate(ctx context.Context, instanceID uuid.UUID, phone, contactName, firstMessage string) (*Conversation, bool, error)
	// UpdateContactName records a better display name for the contact.
	UpdateContactName(ctx context.Context, id uuid.UUID, name string) error
	// UpdateSlots persists the slot-filling state and pagination counter.
	UpdateSlots(ctx context.Context, id uuid.UUID, slots SearchSlots) error
	// UpdateLastMessage refreshes the conversation's last-message snapshot.
	UpdateLastMessage(ctx context.Context, id uuid.UUID, text string) error
	// AppendMessage stores one message. Messages are append-only.
	AppendMessage(ctx context.Context, msg *Message) error
	// History returns the most recent limit messages, oldest first.
	History(ctx context.Context, conversationID uuid.UUID, limit int) ([]*Message, error)
}

// PropertyFilter narrows a catalog search. Empty fields are ignored.
type PropertyFilter struct {
	Location    string // matched against city and neighborhood, case-insensitive
	Category    string
	Transaction string
}

// CatalogStore reads a tenant's property catalog.
type CatalogStore interface {
	// Search returns active properties matching the filter, sliced to
	// [offset, offset+limit), plus the total match count.
	Search(ctx context.Context, tenantID uuid.UUID, f PropertyFilter, offset, limit int) ([]*Property, int, error)
	// Locations returns the distinct city and neighborhood names present in
	// the tenant's active catalog. Feeds the keyword classifier.
	Locations(ctx context.Context, tenantID uuid.UUID) ([]string, error)
}

// Stores is the top-level container for all storage backends.
type Stores struct {
	Instances     InstanceStore
	Agents        AgentStore
	Conversations ConversationStore
	Catalog       CatalogStore
}
