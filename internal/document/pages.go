package document

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/adverant/nexus/rentroll-worker/internal/errors"
	"github.com/adverant/nexus/rentroll-worker/internal/logging"
	"github.com/adverant/nexus/rentroll-worker/internal/rentroll"
)

var errNoRecognizer = errors.New("no OCR engine configured")

// PageRecognizer recognizes one page image with its own deadline.
// Implemented by ocr.PageOCR.
type PageRecognizer interface {
	RecognizePage(ctx context.Context, number int, image []byte) rentroll.Page
}

// Pages holds the text of every page plus how it was obtained
type Pages struct {
	MimeType  string
	Pages     []rentroll.Page
	OCRPages  int // pages that went through OCR
	TextPages int // pages read from a text layer
}

// Reader turns documents into pages of text
type Reader struct {
	ocr    PageRecognizer
	logger *logging.Logger
}

// NewReader creates a reader. A nil recognizer makes scanned pages skipped.
func NewReader(ocr PageRecognizer) *Reader {
	return &Reader{
		ocr:    ocr,
		logger: logging.NewLogger("DocumentReader"),
	}
}

// Read splits data into pages according to its detected type.
// Spreadsheets and other containers are rejected as unsupported.
func (r *Reader) Read(ctx context.Context, jobID string, data []byte, declaredMime string) (*Pages, error) {
	mimeType := DetectMimeType(data, declaredMime)
	log := r.logger.With("job_id", jobID, "mime_type", mimeType)

	switch {
	case mimeType == MimePDF:
		return r.readPDF(ctx, log, data)

	case IsImage(mimeType):
		page := r.recognize(ctx, 1, data)
		return &Pages{MimeType: mimeType, Pages: []rentroll.Page{page}, OCRPages: 1}, nil

	case mimeType == MimeText:
		pages := rentroll.SplitPages(string(data))
		log.Debug("Read plain text", "pages", len(pages))
		return &Pages{MimeType: mimeType, Pages: pages, TextPages: len(pages)}, nil
	}

	return nil, apperrors.NewUnsupportedFormatError(jobID, mimeType)
}

// readPDF uses the text layer where present and OCRs the remaining pages
func (r *Reader) readPDF(ctx context.Context, log *logging.Logger, data []byte) (*Pages, error) {
	texts, err := TextLayer(data)
	if err != nil {
		return nil, err
	}

	result := &Pages{MimeType: MimePDF, Pages: make([]rentroll.Page, len(texts))}
	var scanned []int
	for i, text := range texts {
		number := i + 1
		if strings.TrimSpace(text) == "" {
			scanned = append(scanned, number)
			continue
		}
		result.Pages[i] = rentroll.Page{Number: number, Text: text}
		result.TextPages++
	}

	if len(scanned) == 0 {
		log.Info("Read PDF text layer", "pages", len(texts))
		return result, nil
	}

	log.Info("PDF pages without text layer", "pages", len(texts), "scanned", len(scanned))
	images, err := PageImages(data, scanned)
	if err != nil {
		// Text-layer pages are still usable; mark the rest skipped
		log.Warn("Failed to extract page images", "error", err.Error())
		for _, number := range scanned {
			result.Pages[number-1] = rentroll.Page{
				Number:  number,
				Skipped: true,
				Err:     apperrors.NewOCRFailedError(number, "pdf-images", err),
			}
		}
		return result, nil
	}

	for _, number := range scanned {
		img, ok := images[number]
		if !ok {
			// No text and no image: a blank page, nothing to recognize
			result.Pages[number-1] = rentroll.Page{Number: number}
			continue
		}
		result.Pages[number-1] = r.recognize(ctx, number, img.Data)
		result.OCRPages++
	}

	return result, nil
}

func (r *Reader) recognize(ctx context.Context, number int, image []byte) rentroll.Page {
	if r.ocr == nil {
		return rentroll.Page{
			Number:  number,
			Skipped: true,
			Err:     apperrors.NewOCRFailedError(number, "none", errNoRecognizer),
		}
	}
	return r.ocr.RecognizePage(ctx, number, image)
}
