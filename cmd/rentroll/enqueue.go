package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/adverant/nexus/rentroll-worker/internal/config"
	"github.com/adverant/nexus/rentroll-worker/internal/document"
	"github.com/adverant/nexus/rentroll-worker/internal/queue"
)

type enqueueOptions struct {
	backend  string
	queue    string
	redisURL string
	mode     string
	fileURL  string
}

func enqueueCmd() *cobra.Command {
	var opts enqueueOptions

	cmd := &cobra.Command{
		Use:   "enqueue [FILE]",
		Short: "Submit a rent-roll job to the worker queue",
		Long: `Enqueue pushes FILE (or --url) onto the worker queue and prints the job ID.
The file is embedded in the payload; with --url the worker downloads it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if opts.backend == "" {
				opts.backend = cfg.QueueBackend
			}
			if opts.queue == "" {
				opts.queue = cfg.QueueName
			}
			if opts.redisURL == "" {
				opts.redisURL = cfg.RedisURL
			}

			payload := queue.JobPayload{
				FileURL:        opts.fileURL,
				ExtractionMode: opts.mode,
			}
			switch {
			case len(args) == 1 && opts.fileURL != "":
				return fmt.Errorf("pass either FILE or --url, not both")
			case len(args) == 1:
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", args[0], err)
				}
				payload.Filename = filepath.Base(args[0])
				payload.FileBuffer = data
				payload.FileSize = int64(len(data))
				payload.MimeType = document.DetectMimeType(data, "")
			case opts.fileURL != "":
				payload.Filename = filepath.Base(opts.fileURL)
			default:
				return fmt.Errorf("FILE or --url is required")
			}

			producer, err := queue.NewProducer(opts.backend, opts.redisURL, opts.queue)
			if err != nil {
				return err
			}
			defer producer.Close()

			jobID, err := producer.Enqueue(cmd.Context(), payload)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), jobID)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.backend, "backend", "", "queue backend: list or asynq (default from QUEUE_BACKEND)")
	cmd.Flags().StringVar(&opts.queue, "queue", "", "queue name (default from QUEUE_NAME)")
	cmd.Flags().StringVar(&opts.redisURL, "redis", "", "Redis URL (default from REDIS_URL)")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "extraction mode for this job")
	cmd.Flags().StringVar(&opts.fileURL, "url", "", "file URL for the worker to download")

	return cmd
}
