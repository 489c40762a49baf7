package main

import (
	"context"
	"log"

	"whitepaper-console/internal/bootstrap"
	"whitepaper-console/internal/server"
	"whitepaper-console/internal/shared/config"
	"whitepaper-console/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.Init(cfg.LogLevel, cfg.LogPretty)

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Shutdown()

	addr := server.Addr(cfg.Port)
	log.Printf("Starting API server on %s", addr)

	if err := server.Run(context.Background(), addr, app.Router); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
