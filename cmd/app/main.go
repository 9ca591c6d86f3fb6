package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"FinFusion/internal/di"
	"FinFusion/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	checkOnly := flag.Bool("check", false, "validate the config and exit")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *checkOnly {
		fmt.Printf("config ok: env=%s symbols=%v market=%s %s-%s\n",
			cfg.Environment, cfg.Fusion.Symbols, cfg.Market.Timezone, cfg.Market.Open, cfg.Market.Close)
		return
	}

	log.Printf("env=%s symbols=%d redis=%t postgres=%t clickhouse=%t kafka=%t",
		cfg.Environment, len(cfg.Fusion.Symbols),
		cfg.Redis.Enabled, cfg.Postgres.Enabled, cfg.ClickHouse.Enabled, cfg.Kafka.Enabled)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Blocks until a signal arrives, then shuts down in order.
	if err := app.Run(ctx); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
