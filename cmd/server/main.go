// Command server wires the ingest-and-aggregate core into a long-running
// process: it opens the Postgres pool (applying migrations), builds the
// chess.com Platform Client and the Game Repository, and starts the Ingest
// Orchestrator. The HTTP/GraphQL surface that drives SubscribeUpdate and
// GetMoveStats over the network is an external collaborator and is not
// built here (§1); this binary only proves the core wires together and
// stays alive to serve it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ayarotskyi/neochess/internal/chesscom"
	"github.com/ayarotskyi/neochess/internal/config"
	"github.com/ayarotskyi/neochess/internal/logger"
	"github.com/ayarotskyi/neochess/internal/orchestrator"
	"github.com/ayarotskyi/neochess/internal/repository/postgres"
)

func main() {
	cfg := config.MustLoad()

	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithColors(true),
	)
	logger.SetDefault(log)

	log.Info("===========================================")
	log.Info("neochess ingest core starting")
	log.Info("===========================================")
	log.Debug("expand_worker_count=%d expand_queue_size=%d", cfg.ExpandWorkerCount, cfg.ExpandQueueSize)
	log.Debug("copy_chunk_concurrency=%d", cfg.CopyChunkConcurrency)
	log.Debug("platform_request_timeout_seconds=%d platform_max_retries=%d", cfg.PlatformRequestTimeoutSeconds, cfg.PlatformMaxRetries)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to open database: %v", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := postgres.NewGameRepository(pool, cfg.ExpandWorkerCount, cfg.ExpandQueueSize, cfg.CopyChunkConcurrency)
	defer repo.Close()

	httpClient := chesscom.New(
		time.Duration(cfg.PlatformRequestTimeoutSeconds)*time.Second,
		uint64(cfg.PlatformMaxRetries),
	)
	platform := chesscom.NewPlatform(httpClient)

	// SubscribeUpdate and GetMoveStats are what the external HTTP/GraphQL
	// collaborator calls into; this process just needs them constructed
	// and alive, since that collaborator is out of scope here (§1).
	orchestrator.New(repo, platform)

	log.Info("ingest core ready")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	log.Info("received signal %v, shutting down", sig)
	cancel()

	log.Info("===========================================")
	log.Info("neochess ingest core stopped")
	log.Info("===========================================")
}
