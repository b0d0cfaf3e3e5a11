package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/imoblink/imoblink/internal/store"
)

// PGInstanceStore implements store.InstanceStore backed by Postgres.
type PGInstanceStore struct {
	db *sql.DB
}

func NewPGInstanceStore(db *sql.DB) *PGInstanceStore {
	return &PGInstanceStore{db: db}
}

const instanceSelectCols = `id, tenant_id, name, gateway_instance_id, phone, status, agent_id, created_at, updated_at`

func (s *PGInstanceStore) GetByGatewayID(ctx context.Context, gatewayID string) (*store.TenantInstance, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+instanceSelectCols+` FROM tenant_instances WHERE gateway_instance_id = $1`, gatewayID)
	return scanInstance(row)
}

func (s *PGInstanceStore) FindByName(ctx context.Context, name string) (*store.TenantInstance, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+instanceSelectCols+` FROM tenant_instances WHERE lower(name) = $1`,
		strings.ToLower(name))
	return scanInstance(row)
}

// UpdateGatewayLink refreshes the gateway identifier and connection status
// reported by the gateway. Used by the sync command, not the pipeline.
func (s *PGInstanceStore) UpdateGatewayLink(ctx context.Context, id uuid.UUID, gatewayID, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tenant_instances SET gateway_instance_id = $1, status = $2, updated_at = $3 WHERE id = $4`,
		gatewayID, status, time.Now(), id)
	return err
}

func scanInstance(row *sql.Row) (*store.TenantInstance, error) {
	var inst store.TenantInstance
	err := row.Scan(
		&inst.ID, &inst.TenantID, &inst.Name, &inst.GatewayInstanceID,
		&inst.Phone, &inst.Status, &inst.AgentID, &inst.CreatedAt, &inst.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan instance: %w", err)
	}
	return &inst, nil
}
