/**
 * Rent-Roll Worker - Main Entry Point
 *
 * Consumes rent-roll jobs from Redis and reconstructs their tables.
 *
 * Architecture:
 * - Redis LIST or asynq consumer, one goroutine per unit of concurrency
 * - Text-layer PDF reading with per-page OCR fallback (Tesseract)
 * - Header- or anchor-driven row reconstruction
 * - PostgreSQL or SQLite persistence of job status and records
 * - Optional HTML output and AI summary
 */

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/rentroll-worker/internal/config"
	"github.com/adverant/nexus/rentroll-worker/internal/logging"
	"github.com/adverant/nexus/rentroll-worker/internal/processor"
	"github.com/adverant/nexus/rentroll-worker/internal/queue"
	"github.com/adverant/nexus/rentroll-worker/internal/storage"
)

type consumer interface {
	Start() error
	Stop() error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rentroll-worker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	envErr := godotenv.Load(".env.rentroll")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	log := logging.NewLogger("Worker")
	if envErr != nil {
		log.Warn(".env.rentroll not found, using system environment variables")
	}

	redacted := cfg.Redacted()
	log.Info("Rent-roll worker starting",
		"redis", redacted.RedisURL,
		"queue", cfg.QueueName,
		"queue_backend", cfg.QueueBackend,
		"store", cfg.StoreDriver,
		"ocr_engine", cfg.OCREngine,
		"extraction_mode", cfg.ExtractionMode,
		"workers", cfg.WorkerConcurrency)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := storage.NewStore(ctx, storage.Config{
		Driver:      cfg.StoreDriver,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
	})
	cancel()
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing store", "error", err.Error())
		}
	}()
	log.Info("Store initialized", "driver", cfg.StoreDriver)

	proc, err := processor.NewFromConfig(cfg, store)
	if err != nil {
		return fmt.Errorf("failed to initialize processor: %w", err)
	}

	c, err := newConsumer(cfg, proc)
	if err != nil {
		return fmt.Errorf("failed to initialize queue consumer: %w", err)
	}
	if err := c.Start(); err != nil {
		return fmt.Errorf("failed to start queue consumer: %w", err)
	}
	log.Info("Waiting for jobs", "queue", cfg.QueueName)

	statsCtx, stopStats := context.WithCancel(context.Background())
	defer stopStats()
	rc, _ := c.(*queue.RedisConsumer)
	pg, _ := store.(*storage.PostgresStore)
	if rc != nil || pg != nil {
		go logStats(statsCtx, rc, pg, log)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal, initiating graceful shutdown", "signal", sig.String())

	stopStats()
	if err := c.Stop(); err != nil {
		log.Error("Error stopping queue consumer", "error", err.Error())
	}

	log.Info("Shutdown complete")
	return nil
}

func newConsumer(cfg *config.Config, proc processor.DocumentProcessorInterface) (consumer, error) {
	if cfg.QueueBackend == "asynq" {
		return queue.NewConsumer(&queue.ConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: int64(cfg.ProcessingTimeout),
		})
	}
	return queue.NewRedisConsumer(&queue.RedisConsumerConfig{
		RedisURL:          cfg.RedisURL,
		QueueName:         cfg.QueueName,
		Concurrency:       cfg.WorkerConcurrency,
		Processor:         proc,
		ProcessingTimeout: int64(cfg.ProcessingTimeout),
	})
}

// logStats reports list queue depth and database pool usage once a minute.
// Either source may be nil.
func logStats(ctx context.Context, rc *queue.RedisConsumer, pg *storage.PostgresStore, log *logging.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pg != nil {
				db := pg.GetStats()
				log.Info("Database pool stats",
					"open", db.OpenConnections,
					"in_use", db.InUse,
					"idle", db.Idle,
					"wait_count", db.WaitCount)
			}
			if rc == nil {
				continue
			}
			stats, err := rc.GetStats(ctx)
			if err != nil {
				log.Warn("Failed to read queue stats", "error", err.Error())
				continue
			}
			log.Info("Queue stats",
				"waiting", stats["waiting"],
				"processing", stats["processing"],
				"completed", stats["completed"],
				"failed", stats["failed"])
		}
	}
}
