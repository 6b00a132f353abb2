package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/adverant/nexus/rentroll-worker/internal/config"
	"github.com/adverant/nexus/rentroll-worker/internal/rentroll"
	"github.com/adverant/nexus/rentroll-worker/internal/storage"
)

func jobCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "job JOBID",
		Short: "Show a stored job and its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			store, err := storage.NewStore(ctx, storage.Config{
				Driver:      cfg.StoreDriver,
				DatabaseURL: cfg.DatabaseURL,
				SQLitePath:  cfg.SQLitePath,
			})
			if err != nil {
				return err
			}
			defer store.Close()

			job, err := store.GetJobByID(ctx, args[0])
			if err != nil {
				return err
			}
			records, err := store.GetRecords(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Job     *storage.Job      `json:"job"`
					Records []rentroll.Record `json:"records"`
				}{job, records})
			}

			fmt.Fprintf(out, "job %s: %s (%s)\n", job.ID, job.Status, job.Filename)
			if job.ErrorCode != "" {
				fmt.Fprintf(out, "error %s: %s\n", job.ErrorCode, job.ErrorMessage)
			}
			fmt.Fprintf(out, "%d records, %d skipped lines, %d skipped pages\n\n",
				job.RecordCount, job.SkippedLines, job.SkippedPages)
			if len(records) == 0 {
				return nil
			}
			return printTable(out, rentroll.NewTable(records))
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print job and records as JSON")
	return cmd
}
