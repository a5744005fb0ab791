// switchyard-worker serves the cluster side of the operation protocol.
// The distributed engine forwards operations here; a deployment runs one or
// more workers behind the configured cluster endpoint.
package main

import (
	"log"
	"os"

	"switchyard/internal/config"
	"switchyard/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("switchyard-worker: starting", "listen_addr", cfg.WorkerListenAddr)

	srv := worker.NewServer(cfg.WorkerListenAddr, logger)
	if err := srv.Run(); err != nil {
		log.Fatalf("worker error: %v", err)
	}
}
