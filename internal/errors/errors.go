package errors

import (
	"errors"
	"fmt"
	"time"
)

/**
 * Error types for the rent-roll worker
 *
 * Per-line and per-page problems are recovered where they happen and only
 * counted; the codes below let those counts, job failures and document-level
 * conditions share one vocabulary when they are logged or persisted.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Extraction conditions
	ErrorMalformedLine        ErrorCode = "MALFORMED_LINE"
	ErrorUnparseableMoney     ErrorCode = "UNPARSEABLE_MONEY"
	ErrorMissingOptionalField ErrorCode = "MISSING_OPTIONAL_FIELD"
	ErrorNoHeaderFound        ErrorCode = "NO_HEADER_FOUND"
	ErrorNoDataExtracted      ErrorCode = "NO_DATA_EXTRACTED"

	// Processing errors
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
	ErrorOCRTimeout        ErrorCode = "OCR_TIMEOUT"
	ErrorOCRFailed         ErrorCode = "OCR_FAILED"
	ErrorUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"

	// Storage errors
	ErrorStorageFailed ErrorCode = "STORAGE_FAILED"

	// Collaborator errors
	ErrorAnalysisFailed ErrorCode = "ANALYSIS_FAILED"
)

// Sentinels for errors.Is checks against ProcessingError values.
var (
	ErrNoDataExtracted = errors.New("no data extracted")
	ErrNoHeaderFound   = errors.New("no header found")
	ErrOCRTimeout      = errors.New("ocr timed out")
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Is matches the code-level sentinels so callers need not know the concrete type.
func (e *ProcessingError) Is(target error) bool {
	switch target {
	case ErrNoDataExtracted:
		return e.Code == ErrorNoDataExtracted
	case ErrNoHeaderFound:
		return e.Code == ErrorNoHeaderFound
	case ErrOCRTimeout:
		return e.Code == ErrorOCRTimeout
	}
	return false
}

// CodeOf returns the ErrorCode carried anywhere in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Factory functions for common errors

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewOCRTimeoutError(page int, timeout time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOCRTimeout,
		Message:   fmt.Sprintf("OCR of page %d exceeded %v", page, timeout),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"page":    page,
			"timeout": timeout.String(),
		},
		Cause: cause,
	}
}

func NewOCRFailedError(page int, engine string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOCRFailed,
		Message:   fmt.Sprintf("OCR failed on page %d (engine: %s)", page, engine),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"page":       page,
			"ocr_engine": engine,
		},
		Cause: cause,
	}
}

func NewUnsupportedFormatError(jobID string, mimeType string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorUnsupportedFormat,
		Message:   fmt.Sprintf("Unsupported file format: %s", mimeType),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"mime_type": mimeType,
		},
	}
}

func NewStorageFailedError(jobID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store extraction results",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewAnalysisFailedError(jobID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorAnalysisFailed,
		Message:   "Table analysis request failed",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// NewNoDataExtractedError reports a document that produced zero records.
// skippedLines and skippedPages explain why, when anything was skipped at all.
func NewNoDataExtractedError(jobID string, skippedLines, skippedPages int) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorNoDataExtracted,
		Message:   "No rent-roll records found in document",
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"skipped_lines": skippedLines,
			"skipped_pages": skippedPages,
		},
	}
}

// NewMalformedLineError reports a row that started but never reached the
// fixed leading fields. Recovered by the assembler; never returned to callers.
func NewMalformedLineError(page, line, tokens, required int) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorMalformedLine,
		Message:   fmt.Sprintf("Row at page %d line %d has %d tokens, need %d", page, line, tokens, required),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"page":     page,
			"line":     line,
			"tokens":   tokens,
			"required": required,
		},
	}
}

func NewNoHeaderFoundError(jobID string, lines int) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorNoHeaderFound,
		Message:   "No header line found and header-based extraction was requested",
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"lines_scanned": lines,
		},
	}
}

// WithJobID stamps the job ID onto an error created below the job layer
func (e *ProcessingError) WithJobID(jobID string) *ProcessingError {
	e.JobID = jobID
	return e
}

// ToMap converts error to map for database storage
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
