package processor

import (
	"fmt"

	"github.com/adverant/nexus/rentroll-worker/internal/clients"
	"github.com/adverant/nexus/rentroll-worker/internal/config"
	"github.com/adverant/nexus/rentroll-worker/internal/document"
	"github.com/adverant/nexus/rentroll-worker/internal/ocr"
	"github.com/adverant/nexus/rentroll-worker/internal/rentroll"
	"github.com/adverant/nexus/rentroll-worker/internal/storage"
)

// NewFromConfig assembles the full pipeline from worker configuration.
// store may be nil; opts adjust the processor config before it is built.
func NewFromConfig(cfg *config.Config, store storage.Store, opts ...func(*ProcessorConfig)) (*RentRollProcessor, error) {
	mode, err := rentroll.ParseMode(cfg.ExtractionMode)
	if err != nil {
		return nil, err
	}

	recognizer, err := ocr.NewRecognizer(ocr.Options{
		Engine:        cfg.OCREngine,
		TesseractPath: cfg.TesseractPath,
		Language:      cfg.TesseractLanguage,
		Whitelist:     cfg.OCRCharWhitelist,
		MaxInFlight:   cfg.WorkerConcurrency,
	})
	if err != nil {
		return nil, err
	}
	pageOCR := ocr.NewPageOCR(
		recognizer,
		ocr.NewPreprocessor(cfg.OCRMaxImageWidth, cfg.OCRMaxImageHeight),
		cfg.OCRTimeoutDuration(),
	)

	var analyzer clients.Analyzer
	if cfg.AnalysisEnabled() {
		client, err := clients.NewAnalysisClient(clients.AnalysisConfig{
			URL:    cfg.AnalysisURL,
			APIKey: cfg.AnalysisAPIKey,
			Model:  cfg.AnalysisModel,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create analysis client: %w", err)
		}
		analyzer = client
	}

	pc := &ProcessorConfig{
		Loader:        document.NewLoader(document.LoaderConfig{MaxFileSize: cfg.MaxFileSize}),
		Reader:        document.NewReader(pageOCR),
		Extractor:     rentroll.NewExtractor(mode),
		Store:         store,
		Analyzer:      analyzer,
		HTMLOutputDir: cfg.HTMLOutputDir,
	}
	for _, opt := range opts {
		opt(pc)
	}
	return NewRentRollProcessor(pc)
}
