package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/imoblink/imoblink/internal/store"
)

// PGAgentStore implements store.AgentStore backed by Postgres.
type PGAgentStore struct {
	db *sql.DB
}

func NewPGAgentStore(db *sql.DB) *PGAgentStore {
	return &PGAgentStore{db: db}
}

const agentSelectCols = `id, tenant_id, kind, parent_agent_id, name, prompt, knowledge,
	delegation_keywords, model, temperature, max_tokens, status, created_at, updated_at`

func (s *PGAgentStore) Get(ctx context.Context, id uuid.UUID) (*store.Agent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+agentSelectCols+` FROM agents WHERE id = $1`, id)
	agent, err := scanAgentRow(row.Scan)
	if err != nil {
		return nil, err
	}
	if err := agent.Validate(); err != nil {
		return nil, err
	}
	return agent, nil
}

func (s *PGAgentStore) ListSecondariesByParent(ctx context.Context, parentID uuid.UUID) ([]*store.Agent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+agentSelectCols+` FROM agents
		 WHERE parent_agent_id = $1 AND status = 'active'
		 ORDER BY created_at`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list secondaries: %w", err)
	}
	defer rows.Close()

	var result []*store.Agent
	for rows.Next() {
		agent, err := scanAgentRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		if err := agent.Validate(); err != nil {
			return nil, err
		}
		result = append(result, agent)
	}
	return result, rows.Err()
}

func scanAgentRow(scan func(dest ...any) error) (*store.Agent, error) {
	var agent store.Agent
	var keywordsJSON []byte
	err := scan(
		&agent.ID, &agent.TenantID, &agent.Kind, &agent.ParentAgentID,
		&agent.Name, &agent.Prompt, &agent.Knowledge, &keywordsJSON,
		&agent.Model, &agent.Temperature, &agent.MaxTokens, &agent.Status,
		&agent.CreatedAt, &agent.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan agent: %w", err)
	}
	if len(keywordsJSON) > 0 {
		if err := json.Unmarshal(keywordsJSON, &agent.DelegationKeywords); err != nil {
			return nil, fmt.Errorf("agent %s: decode delegation_keywords: %w", agent.ID, err)
		}
	}
	return &agent, nil
}
