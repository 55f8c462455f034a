// Shotcaster - Self-Hosted Upload and Screenshot Manager
// Copyright 2026 Shotcaster Contributors
// SPDX-License-Identifier: MIT
// https://github.com/shotcaster/shotcaster

// Command server runs the Shotcaster backend: the SSE live-update stream,
// the geo-enriched access statistics API, and the upload notification
// endpoint, all under a suture supervision tree.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shotcaster/shotcaster/internal/api"
	"github.com/shotcaster/shotcaster/internal/config"
	"github.com/shotcaster/shotcaster/internal/database"
	"github.com/shotcaster/shotcaster/internal/geo"
	"github.com/shotcaster/shotcaster/internal/history"
	"github.com/shotcaster/shotcaster/internal/logging"
	"github.com/shotcaster/shotcaster/internal/sse"
	"github.com/shotcaster/shotcaster/internal/supervisor"
	"github.com/shotcaster/shotcaster/internal/supervisor/services"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Printf("shotcaster %s\n", version)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Str("db_path", cfg.Database.Path).
		Msg("starting shotcaster")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize access log database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing database")
		}
	}()

	uploads := history.NewStore(&cfg.History)
	geoCache := geo.NewCache(&cfg.GeoIP)

	// The inactivity sweep guards against client accumulation from frontend
	// hot reloads; it only runs outside production.
	manager := sse.NewManager(sse.Config{
		MaxClients:       cfg.SSE.MaxClients,
		PingInterval:     cfg.SSE.PingInterval,
		InactivityWindow: cfg.SSE.InactivityWindow,
		SweepInactive:    !cfg.IsProduction(),
	})

	handler := api.NewHandler(cfg, manager, geoCache, db, uploads)
	router := api.NewRouter(cfg, handler)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		// No WriteTimeout: SSE connections are long-lived by design.
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddBroadcastService(manager)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("http server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("service failed to stop within timeout")
	}

	logging.Info().Msg("shotcaster stopped gracefully")
}
