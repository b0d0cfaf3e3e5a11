package cmd

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/imoblink/imoblink/internal/config"
	"github.com/imoblink/imoblink/internal/store/pg"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create a demo tenant with an agent and sample listings",
		Long:  "Inserts a demo tenant, a main agent with a rentals secondary, one instance, and a handful of properties. Idempotent: existing rows are left alone.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed()
		},
	}
}

func runSeed() error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.PostgresDSN == "" {
		return fmt.Errorf("IMOBLINK_POSTGRES_DSN environment variable is not set")
	}

	db, err := pg.OpenDB(cfg.Database.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return seedDemo(ctx, db)
}

// Fixed IDs keep the seed idempotent across runs.
var (
	demoTenantID    = uuid.MustParse("019206a0-0000-7000-8000-000000000001")
	demoMainAgentID = uuid.MustParse("019206a0-0000-7000-8000-000000000002")
	demoRentAgentID = uuid.MustParse("019206a0-0000-7000-8000-000000000003")
	demoInstanceID  = uuid.MustParse("019206a0-0000-7000-8000-000000000004")
)

func seedDemo(ctx context.Context, db *sql.DB) error {
	now := time.Now()

	_, err := db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, status, created_at, updated_at)
		 VALUES ($1, 'Imobiliária Demo', 'active', $2, $2) ON CONFLICT (id) DO NOTHING`,
		demoTenantID, now)
	if err != nil {
		return fmt.Errorf("seed tenant: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO agents (id, tenant_id, kind, name, prompt, created_at, updated_at)
		 VALUES ($1, $2, 'main', 'Atendente Virtual',
		         'Você é a atendente virtual de uma imobiliária. Seja cordial e objetiva.', $3, $3)
		 ON CONFLICT (id) DO NOTHING`,
		demoMainAgentID, demoTenantID, now)
	if err != nil {
		return fmt.Errorf("seed main agent: %w", err)
	}

	keywords, _ := json.Marshal([]string{"alugar", "aluguel", "locação"})
	_, err = db.ExecContext(ctx,
		`INSERT INTO agents (id, tenant_id, kind, parent_agent_id, name, prompt, delegation_keywords, created_at, updated_at)
		 VALUES ($1, $2, 'secondary', $3, 'Especialista em Locação',
		         'Você é especialista em locação de imóveis. Explique prazos, garantias e documentação.', $4, $5, $5)
		 ON CONFLICT (id) DO NOTHING`,
		demoRentAgentID, demoTenantID, demoMainAgentID, keywords, now)
	if err != nil {
		return fmt.Errorf("seed secondary agent: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO tenant_instances (id, tenant_id, name, gateway_instance_id, status, agent_id, created_at, updated_at)
		 VALUES ($1, $2, 'demo', 'demo-instance', 'connected', $3, $4, $4)
		 ON CONFLICT (id) DO NOTHING`,
		demoInstanceID, demoTenantID, demoMainAgentID, now)
	if err != nil {
		return fmt.Errorf("seed instance: %w", err)
	}

	type listing struct {
		code, title, category, transaction, city, neighborhood string
		bedrooms, bathrooms, parking                           int
		area                                                   float64
	}
	listings := []listing{
		{"AP101", "Apartamento 2 quartos no centro", "apartment", "sale", "Joaçaba", "Centro", 2, 1, 1, 68},
		{"AP102", "Apartamento 3 quartos com sacada", "apartment", "sale", "Joaçaba", "Centro", 3, 2, 2, 95},
		{"CA201", "Casa com quintal amplo", "house", "sale", "Joaçaba", "Flor da Serra", 3, 2, 2, 140},
		{"AP301", "Apartamento mobiliado para locação", "apartment", "rent", "Herval d'Oeste", "Centro", 2, 1, 1, 60},
		{"TE401", "Terreno plano 450 m²", "land", "sale", "Joaçaba", "Santa Tereza", 0, 0, 0, 450},
	}
	for _, l := range listings {
		images, _ := json.Marshal([]string{
			fmt.Sprintf("https://cdn.example.com/%s/1.jpg", l.code),
			fmt.Sprintf("https://cdn.example.com/%s/2.jpg", l.code),
		})
		_, err := db.ExecContext(ctx,
			`INSERT INTO properties (id, tenant_id, code, title, category, transaction, city, neighborhood,
			                         bedrooms, bathrooms, parking_spaces, area_m2, image_urls, status, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 'active', $14)
			 ON CONFLICT (id) DO NOTHING`,
			uuid.NewSHA1(demoTenantID, []byte(l.code)), demoTenantID, l.code, l.title, l.category, l.transaction,
			l.city, l.neighborhood, l.bedrooms, l.bathrooms, l.parking, l.area, images, now)
		if err != nil {
			return fmt.Errorf("seed property %s: %w", l.code, err)
		}
	}

	fmt.Println("demo tenant seeded")
	return nil
}
