package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/imoblink/imoblink/internal/store"
)

// PGConversationStore implements store.ConversationStore backed by Postgres.
type PGConversationStore struct {
	db *sql.DB
}

func NewPGConversationStore(db *sql.DB) *PGConversationStore {
	return &PGConversationStore{db: db}
}

const conversationSelectCols = `id, instance_id, contact_phone, contact_name, last_message, status,
	search_location, search_category, search_transaction, search_offset, created_at, updated_at`

// GetOrCreate inserts the conversation for (instance, phone) if absent and
// returns it. The unique index on (instance_id, contact_phone) plus
// ON CONFLICT DO NOTHING keeps concurrent first messages from creating
// duplicate threads; whoever loses the race re-reads the winner's row.
func (s *PGConversationStore) GetOrCreate(ctx context.Context, instanceID uuid.UUID, phone, contactName, firstMessage string) (*store.Conversation, bool, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, instance_id, contact_phone, contact_name, last_message, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, 'active', $6, $6)
		 ON CONFLICT (instance_id, contact_phone) DO NOTHING`,
		uuid.Must(uuid.NewV7()), instanceID, phone, contactName, firstMessage, now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert conversation: %w", err)
	}
	inserted, _ := res.RowsAffected()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+conversationSelectCols+` FROM conversations
		 WHERE instance_id = $1 AND contact_phone = $2`, instanceID, phone)
	conv, err := scanConversation(row)
	if err != nil {
		return nil, false, err
	}
	return conv, inserted > 0, nil
}

func (s *PGConversationStore) UpdateContactName(ctx context.Context, id uuid.UUID, name string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET contact_name = $1, updated_at = $2 WHERE id = $3`,
		name, time.Now(), id)
	return err
}

func (s *PGConversationStore) UpdateSlots(ctx context.Context, id uuid.UUID, slots store.SearchSlots) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET
			search_location = $1, search_category = $2,
			search_transaction = $3, search_offset = $4, updated_at = $5
		 WHERE id = $6`,
		slots.Location, slots.Category, slots.Transaction, slots.Offset, time.Now(), id)
	return err
}

func (s *PGConversationStore) UpdateLastMessage(ctx context.Context, id uuid.UUID, text string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET last_message = $1, updated_at = $2 WHERE id = $3`,
		text, time.Now(), id)
	return err
}

func (s *PGConversationStore) AppendMessage(ctx context.Context, msg *store.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.Must(uuid.NewV7())
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender, content, agent_id, kind, media_base64, caption, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		msg.ID, msg.ConversationID, msg.Sender, msg.Content, msg.AgentID,
		msg.Kind, nilStr(msg.MediaBase64), nilStr(msg.Caption), msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// History returns the most recent limit messages in chronological order.
func (s *PGConversationStore) History(ctx context.Context, conversationID uuid.UUID, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, sender, content, agent_id, kind, media_base64, caption, created_at
		 FROM messages WHERE conversation_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var result []*store.Message
	for rows.Next() {
		var msg store.Message
		var media, caption *string
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.Sender, &msg.Content,
			&msg.AgentID, &msg.Kind, &media, &caption, &msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.MediaBase64 = derefStr(media)
		msg.Caption = derefStr(caption)
		result = append(result, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Fetched newest-first for the LIMIT; callers want oldest-first.
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result, nil
}

func scanConversation(row *sql.Row) (*store.Conversation, error) {
	var conv store.Conversation
	var location, category, transaction *string
	err := row.Scan(
		&conv.ID, &conv.InstanceID, &conv.ContactPhone, &conv.ContactName,
		&conv.LastMessage, &conv.Status,
		&location, &category, &transaction, &conv.Slots.Offset,
		&conv.CreatedAt, &conv.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	conv.Slots.Location = derefStr(location)
	conv.Slots.Category = derefStr(category)
	conv.Slots.Transaction = derefStr(transaction)
	return &conv, nil
}

func nilStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
