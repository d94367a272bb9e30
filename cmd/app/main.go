package main

import (
	"context"
	"flag"
	"log"
	"os"

	"GridSpend/internal/di"
	"GridSpend/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	mode := flag.String("mode", "run", "run | ingest | train | forecast | evaluate | serve")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s mode=%s sources=%v", cfg.Environment, *mode, cfg.Pipeline.Sources)

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	log.Printf("clickhouse: connected - db: %s", cfg.ClickHouse.Database)

	ctx := context.Background()
	switch *mode {
	case "run":
		err = app.Run()
	case "ingest":
		err = app.Ingest(ctx)
	case "train":
		err = app.Train(ctx)
	case "forecast":
		err = app.Forecast(ctx)
	case "evaluate":
		err = app.Evaluate(ctx)
	case "serve":
		err = app.Serve()
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
	if err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
