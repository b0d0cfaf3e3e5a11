package pg

import (
	"database/sql"

	"github.com/imoblink/imoblink/internal/store"
)

// NewPGStores creates all stores backed by the given Postgres pool.
func NewPGStores(db *sql.DB) *store.Stores {
	return &store.Stores{
		Instances:     NewPGInstanceStore(db),
		Agents:        NewPGAgentStore(db),
		Conversations: NewPGConversationStore(db),
		Catalog:       NewPGCatalogStore(db),
	}
}
