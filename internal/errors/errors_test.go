package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessingErrorSentinels(t *testing.T) {
	noData := NewNoDataExtractedError("job-1", 3, 1)
	wrapped := fmt.Errorf("processing: %w", noData)

	assert.True(t, errors.Is(wrapped, ErrNoDataExtracted))
	assert.False(t, errors.Is(wrapped, ErrNoHeaderFound))
	assert.Equal(t, ErrorNoDataExtracted, CodeOf(wrapped))

	noHeader := NewNoHeaderFoundError("job-1", 12)
	assert.True(t, errors.Is(noHeader, ErrNoHeaderFound))

	timeout := NewOCRTimeoutError(4, time.Second, context.DeadlineExceeded)
	assert.True(t, errors.Is(timeout, ErrOCRTimeout))
	assert.True(t, errors.Is(timeout, context.DeadlineExceeded))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("boom")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}

func TestToMap(t *testing.T) {
	err := NewNoDataExtractedError("job-9", 2, 1)
	m := err.ToMap()

	assert.Equal(t, "NO_DATA_EXTRACTED", m["error_code"])
	assert.Equal(t, 2, m["skipped_lines"])
	assert.Equal(t, 1, m["skipped_pages"])
	_, hasCause := m["cause"]
	assert.False(t, hasCause)

	withCause := NewStorageFailedError("job-9", errors.New("connection refused"))
	m = withCause.ToMap()
	assert.Equal(t, "connection refused", m["cause"])
}

func TestErrorString(t *testing.T) {
	err := NewOCRFailedError(2, "tesseract-cli", errors.New("exit status 1"))
	require.Error(t, err)
	assert.Equal(t, "OCR_FAILED: OCR failed on page 2 (engine: tesseract-cli) (caused by: exit status 1)", err.Error())

	plain := NewUnsupportedFormatError("job-2", "text/csv").WithJobID("job-3")
	assert.Equal(t, "UNSUPPORTED_FORMAT: Unsupported file format: text/csv", plain.Error())
	assert.Equal(t, "job-3", plain.JobID)
}
