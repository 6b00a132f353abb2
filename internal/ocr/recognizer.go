/**
 * OCR for scanned rent-roll pages
 *
 * Engines:
 * - gosseract: in-process Tesseract bindings
 * - tesseract-cli: the tesseract binary as a subprocess
 *
 * Every page is recognized under its own deadline. A page that times out
 * or fails is returned as skipped; the document carries on without it.
 */

package ocr

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/adverant/nexus/rentroll-worker/internal/errors"
	"github.com/adverant/nexus/rentroll-worker/internal/logging"
	"github.com/adverant/nexus/rentroll-worker/internal/rentroll"
)

// Engine names accepted by NewRecognizer
const (
	EngineGosseract    = "gosseract"
	EngineTesseractCLI = "tesseract-cli"
)

// Recognizer turns one page image into text. Implementations must honor ctx
// cancellation and release any engine handle before returning.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
	Engine() string
}

// Options configure an engine
type Options struct {
	Engine        string
	TesseractPath string
	Language      string
	Whitelist     string
	// MaxInFlight bounds concurrent gosseract recognitions, counting ones
	// abandoned after a deadline. Zero means one.
	MaxInFlight int
}

// NewRecognizer builds the configured engine
func NewRecognizer(opts Options) (Recognizer, error) {
	switch opts.Engine {
	case EngineTesseractCLI, "":
		return NewCommandRecognizer(opts.TesseractPath, opts.Language, opts.Whitelist), nil
	case EngineGosseract:
		return NewTesseractRecognizer(opts.Language, opts.Whitelist, opts.MaxInFlight), nil
	}
	return nil, fmt.Errorf("unknown OCR engine %q", opts.Engine)
}

// PageOCR recognizes document pages one at a time with a per-page deadline
type PageOCR struct {
	recognizer   Recognizer
	preprocessor *Preprocessor
	timeout      time.Duration
	logger       *logging.Logger
}

// NewPageOCR wraps recognizer. A nil preprocessor passes images through.
func NewPageOCR(recognizer Recognizer, preprocessor *Preprocessor, timeout time.Duration) *PageOCR {
	return &PageOCR{
		recognizer:   recognizer,
		preprocessor: preprocessor,
		timeout:      timeout,
		logger:       logging.NewLogger("PageOCR"),
	}
}

// RecognizePage returns the page text, or a skipped page carrying an
// OCR_TIMEOUT or OCR_FAILED error. It never fails the document.
func (p *PageOCR) RecognizePage(ctx context.Context, number int, image []byte) rentroll.Page {
	page := rentroll.Page{Number: number}

	if p.preprocessor != nil {
		resized, err := p.preprocessor.Prepare(image)
		if err != nil {
			p.logger.Warn("Image preprocessing failed, using original", "page", number, "error", err.Error())
		} else {
			image = resized
		}
	}

	pageCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	text, err := p.recognizer.Recognize(pageCtx, image)
	if err != nil {
		page.Skipped = true
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(pageCtx.Err(), context.DeadlineExceeded) {
			page.Err = apperrors.NewOCRTimeoutError(number, p.timeout, err)
			p.logger.Warn("OCR timed out, skipping page", "page", number, "timeout", p.timeout.String(), "engine", p.recognizer.Engine())
		} else {
			page.Err = apperrors.NewOCRFailedError(number, p.recognizer.Engine(), err)
			p.logger.Warn("OCR failed, skipping page", "page", number, "engine", p.recognizer.Engine(), "error", err.Error())
		}
		return page
	}

	p.logger.Debug("Page recognized", "page", number, "chars", len(text), "duration_ms", time.Since(start).Milliseconds())
	page.Text = text
	return page
}
