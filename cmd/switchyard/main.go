package main

import (
	"log"
	"os"

	"switchyard/internal/api"
	"switchyard/internal/config"
	"switchyard/internal/dispatch"
	"switchyard/internal/engine"
	"switchyard/internal/engines/cluster"
	"switchyard/internal/engines/local"
	"switchyard/internal/probe"
	"switchyard/internal/selector"
	"switchyard/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("switchyard: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"cluster_endpoint", cfg.ClusterEndpoint,
		"cluster_enabled", cfg.ClusterEnabled,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	reg := engine.NewRegistry()
	if err := reg.Register(local.New()); err != nil {
		log.Fatalf("failed to register local engine: %v", err)
	}
	if cfg.ClusterEnabled {
		if err := reg.Register(cluster.New(cfg.ClusterEndpoint, cfg.ClusterShards)); err != nil {
			log.Fatalf("failed to register cluster engine: %v", err)
		}
	}

	prober := probe.New(cfg.ProbeSettings())
	sel := selector.New(reg, prober, db, logger)
	disp := dispatch.NewDispatcher(sel, reg, db, logger)

	srv := api.NewServer(cfg.ListenAddr, db, reg, sel, disp, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
