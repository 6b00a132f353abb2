/**
 * Rent-Roll Processor
 *
 * Orchestrates one job:
 * - Load the file from its buffer or URL
 * - Split it into pages (text layer, or OCR for scanned pages)
 * - Reconstruct rent-roll records
 * - Persist records and job status
 * - Render the HTML table and, when configured, request an AI summary
 */

package processor

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/adverant/nexus/rentroll-worker/internal/clients"
	"github.com/adverant/nexus/rentroll-worker/internal/document"
	"github.com/adverant/nexus/rentroll-worker/internal/errors"
	"github.com/adverant/nexus/rentroll-worker/internal/logging"
	"github.com/adverant/nexus/rentroll-worker/internal/render"
	"github.com/adverant/nexus/rentroll-worker/internal/rentroll"
	"github.com/adverant/nexus/rentroll-worker/internal/storage"
)

// DocumentProcessorInterface defines the interface for document processing
type DocumentProcessorInterface interface {
	ProcessDocument(ctx context.Context, req *ProcessRequest) (*ProcessResult, error)
	UpdateJobStatus(ctx context.Context, jobID string, status string, progress int, metadata map[string]interface{}) error
}

// Stage names reported through ProcessorConfig.Progress
const (
	StageLoad    = "load"
	StageRead    = "read"
	StageExtract = "extract"
	StageStore   = "store"
	StageRender  = "render"
	StageAnalyze = "analyze"
)

// Stages lists every stage in pipeline order
var Stages = []string{StageLoad, StageRead, StageExtract, StageStore, StageRender, StageAnalyze}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	Loader    *document.Loader
	Reader    *document.Reader
	Extractor *rentroll.Extractor
	// Store is optional; without it records are not persisted
	Store storage.Store
	// Analyzer is optional; analysis failures never fail the job
	Analyzer      clients.Analyzer
	HTMLOutputDir string
	// Progress is called after each stage finishes or is skipped
	Progress func(stage string)
	Now      func() time.Time
}

// ProcessRequest represents a document processing request
type ProcessRequest struct {
	JobID      string
	UserID     string
	Filename   string
	MimeType   string
	FileSize   int64
	FileURL    string
	FileBuffer []byte
	// ExtractionMode overrides the processor's mode for this job
	ExtractionMode string
	Metadata       map[string]interface{}
}

// ProcessResult represents the processing result
type ProcessResult struct {
	RecordCount      int              `json:"recordCount"`
	SkippedLines     int              `json:"skippedLines"`
	SkippedPages     int              `json:"skippedPages"`
	MoneyFallbacks   int              `json:"moneyFallbacks"`
	Mode             string           `json:"mode"`
	Condition        string           `json:"condition"`
	MimeType         string           `json:"mimeType"`
	OCRPages         int              `json:"ocrPages"`
	TextPages        int              `json:"textPages"`
	HTMLPath         string           `json:"htmlPath,omitempty"`
	Analysis         string           `json:"analysis,omitempty"`
	AnalysisError    string           `json:"analysisError,omitempty"`
	ProcessingTimeMs int64            `json:"processingTimeMs"`
	Result           *rentroll.Result `json:"-"`
}

// Metadata flattens the result for job status updates
func (r *ProcessResult) Metadata() map[string]interface{} {
	m := map[string]interface{}{
		"recordCount":    r.RecordCount,
		"skippedLines":   r.SkippedLines,
		"skippedPages":   r.SkippedPages,
		"moneyFallbacks": r.MoneyFallbacks,
		"mode":           r.Mode,
		"condition":      r.Condition,
		"mimeType":       r.MimeType,
		"ocrPages":       r.OCRPages,
		"textPages":      r.TextPages,
		"processingTime": r.ProcessingTimeMs,
	}
	if r.HTMLPath != "" {
		m["htmlPath"] = r.HTMLPath
	}
	if r.Analysis != "" {
		m["analysis"] = r.Analysis
	}
	if r.AnalysisError != "" {
		m["analysisError"] = r.AnalysisError
	}
	return m
}

// RentRollProcessor handles rent-roll jobs
type RentRollProcessor struct {
	config *ProcessorConfig
	logger *logging.Logger
}

// NewRentRollProcessor creates a new processor
func NewRentRollProcessor(cfg *ProcessorConfig) (*RentRollProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Loader == nil {
		return nil, fmt.Errorf("loader is required")
	}
	if cfg.Reader == nil {
		return nil, fmt.Errorf("reader is required")
	}
	if cfg.Extractor == nil {
		cfg.Extractor = rentroll.NewExtractor(rentroll.ModeAuto)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &RentRollProcessor{
		config: cfg,
		logger: logging.NewLogger("RentRollProcessor"),
	}, nil
}

// ProcessDocument runs the pipeline for one job. A document with no rows
// yields a NO_DATA_EXTRACTED processing error.
func (p *RentRollProcessor) ProcessDocument(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	start := p.config.Now()
	log := p.logger.With("job_id", req.JobID)
	log.Info("Starting rent-roll pipeline", "filename", req.Filename)

	extractor, err := p.extractorFor(req)
	if err != nil {
		return nil, err
	}

	// Step 1: Load file
	data, err := p.config.Loader.Load(ctx, document.Source{
		JobID:        req.JobID,
		URL:          req.FileURL,
		Buffer:       req.FileBuffer,
		ExpectedSize: req.FileSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load file: %w", err)
	}
	p.progress(StageLoad)

	// Step 2: Pages
	pages, err := p.config.Reader.Read(ctx, req.JobID, data, req.MimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	log.Info("Document read", "mime_type", pages.MimeType, "pages", len(pages.Pages),
		"ocr_pages", pages.OCRPages, "text_pages", pages.TextPages)
	p.progress(StageRead)

	// Step 3: Extract
	result := extractor.Extract(pages.Pages)
	p.progress(StageExtract)
	if err := result.Err(); err != nil {
		var pe *errors.ProcessingError
		if stderrors.As(err, &pe) {
			pe.WithJobID(req.JobID)
		}
		log.Warn("No records extracted", "condition", result.Condition.String(),
			"skipped_lines", result.Stats.SkippedLines, "skipped_pages", result.Stats.SkippedPages)
		return nil, err
	}

	out := &ProcessResult{
		RecordCount:    result.Table.Len(),
		SkippedLines:   result.Stats.SkippedLines,
		SkippedPages:   result.Stats.SkippedPages,
		MoneyFallbacks: result.Stats.MoneyFallbacks,
		Mode:           string(result.Mode),
		Condition:      result.Condition.String(),
		MimeType:       pages.MimeType,
		OCRPages:       pages.OCRPages,
		TextPages:      pages.TextPages,
		Result:         result,
	}
	log.Info("Records extracted", "records", out.RecordCount, "mode", out.Mode,
		"skipped_lines", out.SkippedLines, "skipped_pages", out.SkippedPages)

	// Step 4: Persist
	if p.config.Store != nil {
		if err := p.config.Store.SaveRecords(ctx, req.JobID, result.Table.Records()); err != nil {
			return nil, errors.NewStorageFailedError(req.JobID, err)
		}
	}
	p.progress(StageStore)

	// Step 5: Render
	opts := render.Options{
		Caption:    fmt.Sprintf("%d records, %d skipped lines, %d skipped pages", out.RecordCount, out.SkippedLines, out.SkippedPages),
		RightAlign: rentroll.IsAmountColumn,
	}
	if p.config.HTMLOutputDir != "" {
		path, err := render.WriteFile(p.config.HTMLOutputDir, p.config.Now(), result.Table, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to write HTML: %w", err)
		}
		out.HTMLPath = path
		log.Info("HTML written", "path", path)
	}
	p.progress(StageRender)

	// Step 6: Optional analysis
	if p.config.Analyzer != nil {
		out.Analysis, out.AnalysisError = p.analyze(ctx, req.JobID, result.Table, opts)
	}
	p.progress(StageAnalyze)

	out.ProcessingTimeMs = p.config.Now().Sub(start).Milliseconds()
	log.Info("Rent-roll pipeline complete", "records", out.RecordCount, "duration_ms", out.ProcessingTimeMs)
	return out, nil
}

func (p *RentRollProcessor) extractorFor(req *ProcessRequest) (*rentroll.Extractor, error) {
	if req.ExtractionMode == "" {
		return p.config.Extractor, nil
	}
	mode, err := rentroll.ParseMode(req.ExtractionMode)
	if err != nil {
		return nil, err
	}
	return rentroll.NewExtractor(mode), nil
}

func (p *RentRollProcessor) analyze(ctx context.Context, jobID string, table render.Table, opts render.Options) (string, string) {
	var buf bytes.Buffer
	if err := render.HTML(&buf, table, opts); err != nil {
		return "", err.Error()
	}

	summary, err := p.config.Analyzer.Analyze(ctx, buf.String())
	if err != nil {
		analysisErr := errors.NewAnalysisFailedError(jobID, err)
		p.logger.Warn("Analysis failed, continuing without summary", "job_id", jobID, "error", analysisErr.Error())
		return "", analysisErr.Error()
	}
	return summary, ""
}

func (p *RentRollProcessor) progress(stage string) {
	if p.config.Progress != nil {
		p.config.Progress(stage)
	}
}

// UpdateJobStatus updates job status in the store
func (p *RentRollProcessor) UpdateJobStatus(ctx context.Context, jobID string, status string, progress int, metadata map[string]interface{}) error {
	if p.config.Store == nil {
		return nil
	}

	update := &storage.JobUpdate{
		JobID:    jobID,
		Status:   status,
		Metadata: metadata,
	}

	// Extract specific fields from metadata if present
	if metadata != nil {
		update.Filename, _ = metadata["filename"].(string)
		update.MimeType, _ = metadata["mimeType"].(string)
		update.ExtractionMode, _ = metadata["mode"].(string)
		update.Condition, _ = metadata["condition"].(string)
		update.RecordCount, _ = metadata["recordCount"].(int)
		update.SkippedLines, _ = metadata["skippedLines"].(int)
		update.SkippedPages, _ = metadata["skippedPages"].(int)
		update.ProcessingTimeMs, _ = metadata["processingTime"].(int64)
		if code, ok := metadata["error_code"].(string); ok {
			update.ErrorCode = code
			update.ErrorMessage, _ = metadata["message"].(string)
		} else if errorMsg, ok := metadata["error"].(string); ok {
			update.ErrorCode = "PROCESSING_ERROR"
			update.ErrorMessage = errorMsg
		}
	}

	return p.config.Store.UpdateJobStatus(ctx, update)
}

// FailureMetadata returns the metadata recorded for a failed job
func FailureMetadata(err error, duration time.Duration) map[string]interface{} {
	var pe *errors.ProcessingError
	if stderrors.As(err, &pe) {
		m := pe.ToMap()
		m["processingTime"] = duration.Milliseconds()
		return m
	}
	return map[string]interface{}{
		"error":          err.Error(),
		"processingTime": duration.Milliseconds(),
	}
}
