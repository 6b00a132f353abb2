package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/adverant/nexus/rentroll-worker/internal/config"
	"github.com/adverant/nexus/rentroll-worker/internal/processor"
	"github.com/adverant/nexus/rentroll-worker/internal/render"
	"github.com/adverant/nexus/rentroll-worker/internal/rentroll"
)

type extractOptions struct {
	mode      string
	htmlPath  string
	asJSON    bool
	analyze   bool
	ocrEngine string
	progress  bool
}

func extractCmd() *cobra.Command {
	var opts extractOptions

	cmd := &cobra.Command{
		Use:   "extract FILE",
		Short: "Extract rent-roll records from a document",
		Long: `Extract reads FILE (PDF, image or plain text), reconstructs the rent-roll
records and prints them.

Modes:
  auto    use the column header when one is present, otherwise anchors
  header  rows start at lines with at least as many tokens as the header
  anchor  rows start at lines opening with a control number and site code`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.mode, "mode", "", "extraction mode: auto, header or anchor (default from EXTRACTION_MODE)")
	cmd.Flags().StringVar(&opts.htmlPath, "html", "", "write the table as HTML to this path")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print records as JSON")
	cmd.Flags().BoolVar(&opts.analyze, "analyze", false, "request an AI summary (needs ANALYSIS_API_KEY)")
	cmd.Flags().StringVar(&opts.ocrEngine, "ocr-engine", "", "OCR engine: gosseract or tesseract-cli")
	cmd.Flags().BoolVar(&opts.progress, "progress", true, "show a progress bar on stderr")

	return cmd
}

func runExtract(cmd *cobra.Command, path string, opts extractOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg := config.FromEnv()
	if opts.mode != "" {
		cfg.ExtractionMode = opts.mode
	}
	if opts.ocrEngine != "" {
		cfg.OCREngine = opts.ocrEngine
	}
	if !opts.analyze {
		cfg.AnalysisAPIKey = ""
	} else if !cfg.AnalysisEnabled() {
		return fmt.Errorf("--analyze needs ANALYSIS_API_KEY")
	}
	// The CLI writes HTML only where --html says
	cfg.HTMLOutputDir = ""
	// One document at a time, so one in-process OCR engine
	cfg.WorkerConcurrency = 1

	var bar *progressbar.ProgressBar
	if opts.progress {
		bar = newProgressBar(cmd.ErrOrStderr(), len(processor.Stages))
	}

	proc, err := processor.NewFromConfig(cfg, nil, func(pc *processor.ProcessorConfig) {
		if bar != nil {
			pc.Progress = func(stage string) {
				bar.Describe(stage)
				_ = bar.Add(1)
			}
		}
	})
	if err != nil {
		return err
	}

	result, err := proc.ProcessDocument(cmd.Context(), &processor.ProcessRequest{
		JobID:      uuid.New().String(),
		Filename:   filepath.Base(path),
		FileSize:   int64(len(data)),
		FileBuffer: data,
	})
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}

	if opts.htmlPath != "" {
		if err := writeHTML(opts.htmlPath, result); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Result.Table.Records())
	}

	if err := printTable(out, result.Result.Table); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d records (%s mode), %d skipped lines, %d skipped pages\n",
		result.RecordCount, result.Mode, result.SkippedLines, result.SkippedPages)
	if result.Analysis != "" {
		fmt.Fprintf(out, "\n%s\n", result.Analysis)
	}
	if result.AnalysisError != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "analysis failed: %s\n", result.AnalysisError)
	}
	return nil
}

func newProgressBar(w io.Writer, steps int) *progressbar.ProgressBar {
	return progressbar.NewOptions(steps,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("starting"),
		progressbar.OptionClearOnFinish(),
	)
}

func writeHTML(path string, result *processor.ProcessResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	err = render.HTML(f, result.Result.Table, render.Options{
		Caption:    fmt.Sprintf("%d records, %d skipped lines, %d skipped pages", result.RecordCount, result.SkippedLines, result.SkippedPages),
		RightAlign: rentroll.IsAmountColumn,
	})
	if err != nil {
		return fmt.Errorf("failed to render HTML: %w", err)
	}
	return f.Close()
}

func printTable(w io.Writer, table *rentroll.Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(table.Columns(), "\t"))
	for _, row := range table.Rows() {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
