package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/imoblink/imoblink/internal/store"
)

// PGCatalogStore implements store.CatalogStore backed by Postgres.
type PGCatalogStore struct {
	db *sql.DB
}

func NewPGCatalogStore(db *sql.DB) *PGCatalogStore {
	return &PGCatalogStore{db: db}
}

const propertySelectCols = `id, tenant_id, code, title, category, transaction, city, neighborhood,
	street, bedrooms, bathrooms, parking_spaces, area_m2, description, image_urls, video_url, status, created_at`

func (s *PGCatalogStore) Search(ctx context.Context, tenantID uuid.UUID, f store.PropertyFilter, offset, limit int) ([]*store.Property, int, error) {
	where := []string{"tenant_id = $1", "status = 'active'"}
	args := []interface{}{tenantID}

	if f.Location != "" {
		args = append(args, "%"+strings.ToLower(f.Location)+"%")
		where = append(where, fmt.Sprintf("(lower(city) LIKE $%d OR lower(neighborhood) LIKE $%d)", len(args), len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.Transaction != "" {
		args = append(args, f.Transaction)
		where = append(where, fmt.Sprintf("transaction = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM properties WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count properties: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM properties WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
			propertySelectCols, cond, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query properties: %w", err)
	}
	defer rows.Close()

	var result []*store.Property
	for rows.Next() {
		var p store.Property
		var street, description, videoURL *string
		var imagesJSON []byte
		if err := rows.Scan(
			&p.ID, &p.TenantID, &p.Code, &p.Title, &p.Category, &p.Transaction,
			&p.City, &p.Neighborhood, &street, &p.Bedrooms, &p.Bathrooms,
			&p.ParkingSpaces, &p.AreaM2, &description, &imagesJSON, &videoURL,
			&p.Status, &p.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan property: %w", err)
		}
		p.Street = derefStr(street)
		p.Description = derefStr(description)
		p.VideoURL = derefStr(videoURL)
		if len(imagesJSON) > 0 {
			if err := json.Unmarshal(imagesJSON, &p.ImageURLs); err != nil {
				return nil, 0, fmt.Errorf("property %s: decode image_urls: %w", p.ID, err)
			}
		}
		result = append(result, &p)
	}
	return result, total, rows.Err()
}

// Locations returns the distinct city and neighborhood names in the tenant's
// active catalog, lowercased, cities before neighborhoods.
func (s *PGCatalogStore) Locations(ctx context.Context, tenantID uuid.UUID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT lower(city) FROM properties WHERE tenant_id = $1 AND status = 'active' AND city <> ''
		 UNION
		 SELECT DISTINCT lower(neighborhood) FROM properties WHERE tenant_id = $1 AND status = 'active' AND neighborhood <> ''`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, err
		}
		result = append(result, loc)
	}
	return result, rows.Err()
}
