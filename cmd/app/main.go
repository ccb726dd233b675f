package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"storefront-agent/internal/adapters/cli"
	"storefront-agent/internal/bootstrap"
	"storefront-agent/internal/config"
	"storefront-agent/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, cli.Usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	rt, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer rt.Close()

	if err := cli.Run(ctx, rt.Service, os.Args[1:], os.Stdout); err != nil {
		rt.Close()
		log.Fatalf("%v", err)
	}
}
