package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/imoblink/imoblink/internal/config"
	"github.com/imoblink/imoblink/internal/gateway"
	"github.com/imoblink/imoblink/internal/store/pg"
)

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile tenant instances with the gateway",
		Long:  "Fetches the instance list from the gateway and refreshes each matching tenant instance's gateway identifier and connection status.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync()
		},
	}
}

func runSync() error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := pg.OpenDB(cfg.Database.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	instances := pg.NewPGInstanceStore(db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gw := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Token)
	remote, err := gw.FetchInstances(ctx)
	if err != nil {
		return err
	}

	var updated, unmatched int
	for _, ri := range remote {
		inst, err := instances.GetByGatewayID(ctx, ri.ID)
		if err != nil {
			inst, err = instances.FindByName(ctx, ri.Name)
		}
		if err != nil {
			fmt.Printf("  %-24s no local instance, skipped\n", ri.Name)
			unmatched++
			continue
		}
		if err := instances.UpdateGatewayLink(ctx, inst.ID, ri.ID, ri.Status); err != nil {
			return fmt.Errorf("update instance %s: %w", inst.ID, err)
		}
		fmt.Printf("  %-24s %s (gateway id %s)\n", ri.Name, ri.Status, ri.ID)
		updated++
	}

	fmt.Printf("\nsynced %d instance(s), %d unmatched\n", updated, unmatched)
	return nil
}
