package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/imoblink/imoblink/internal/config"
	"github.com/imoblink/imoblink/internal/gateway"
	"github.com/imoblink/imoblink/internal/store/pg"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("imoblink doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults + env)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Secrets:")
	checkSecret("Postgres DSN", cfg.Database.PostgresDSN)
	checkSecret("OpenAI key", cfg.OpenAI.APIKey)
	checkSecret("Gateway token", cfg.Gateway.Token)
	checkSecret("Webhook token", cfg.Webhook.Token)

	fmt.Println()
	fmt.Println("  Database:")
	if cfg.Database.PostgresDSN == "" {
		fmt.Printf("    %-12s NOT CONFIGURED\n", "Status:")
	} else if db, dbErr := pg.OpenDB(cfg.Database.PostgresDSN); dbErr != nil {
		fmt.Printf("    %-12s CONNECT FAILED (%s)\n", "Status:", dbErr)
	} else {
		defer db.Close()
		fmt.Printf("    %-12s OK\n", "Status:")
		var instances int
		if err := db.QueryRow("SELECT COUNT(*) FROM tenant_instances").Scan(&instances); err != nil {
			fmt.Printf("    %-12s SCHEMA MISSING (run: imoblink migrate up)\n", "Schema:")
		} else {
			fmt.Printf("    %-12s %d instance(s)\n", "Instances:", instances)
		}
	}

	fmt.Println()
	fmt.Println("  Gateway:")
	if cfg.Gateway.BaseURL == "" {
		fmt.Printf("    %-12s NOT CONFIGURED\n", "Status:")
		return
	}
	fmt.Printf("    %-12s %s\n", "URL:", cfg.Gateway.BaseURL)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	gw := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Token)
	if err := gw.Ping(ctx); err != nil {
		fmt.Printf("    %-12s UNREACHABLE (%s)\n", "Status:", err)
	} else {
		fmt.Printf("    %-12s OK\n", "Status:")
	}
}

func checkSecret(name, value string) {
	if value == "" {
		fmt.Printf("    %-16s MISSING\n", name+":")
	} else {
		fmt.Printf("    %-16s set (%d chars)\n", name+":", len(value))
	}
}
