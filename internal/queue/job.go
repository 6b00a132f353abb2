package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adverant/nexus/rentroll-worker/internal/errors"
	"github.com/adverant/nexus/rentroll-worker/internal/logging"
	"github.com/adverant/nexus/rentroll-worker/internal/processor"
	"github.com/adverant/nexus/rentroll-worker/internal/storage"
)

// TaskType identifies rent-roll jobs on both queue backends
const TaskType = "process-rent-roll"

// Default processing timeout: 5 minutes
const defaultProcessingTimeout = 300000 * time.Millisecond

// RedisJobData represents a job from the Redis list queue
type RedisJobData struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Payload    JobPayload `json:"payload"`
	CreatedAt  time.Time  `json:"createdAt"`
	Attempts   int        `json:"attempts"`
	MaxRetries int        `json:"maxRetries"`
}

// JobPayload contains the actual job data
type JobPayload struct {
	JobID          string                 `json:"jobId"`
	UserID         string                 `json:"userId,omitempty"`
	Filename       string                 `json:"filename"`
	MimeType       string                 `json:"mimeType,omitempty"`
	FileSize       int64                  `json:"fileSize,omitempty"`
	FileURL        string                 `json:"fileUrl,omitempty"`
	FileBuffer     []byte                 `json:"fileBuffer,omitempty"` // base64 on the wire
	ExtractionMode string                 `json:"extractionMode,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// UnmarshalJSON implements custom JSON unmarshaling for JobPayload to handle Buffer serialization
// Supports both base64 string format and the Node.js Buffer object format
func (p *JobPayload) UnmarshalJSON(data []byte) error {
	// Create alias type to avoid recursion
	type Alias JobPayload
	aux := &struct {
		FileBuffer interface{} `json:"fileBuffer,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(p),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to unmarshal JobPayload: %w", err)
	}

	if aux.FileBuffer == nil {
		return nil
	}

	switch v := aux.FileBuffer.(type) {
	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return fmt.Errorf("failed to decode base64 fileBuffer: %w", err)
		}
		p.FileBuffer = decoded

	case map[string]interface{}:
		// {"type":"Buffer","data":[...]}
		bufferType, ok := v["type"].(string)
		if !ok || bufferType != "Buffer" {
			return fmt.Errorf("invalid Buffer object format (missing or incorrect 'type' field)")
		}
		dataArray, ok := v["data"].([]interface{})
		if !ok {
			return fmt.Errorf("Buffer object missing 'data' array")
		}
		p.FileBuffer = make([]byte, len(dataArray))
		for i, val := range dataArray {
			byteVal, ok := val.(float64)
			if !ok || byteVal < 0 || byteVal > 255 {
				return fmt.Errorf("invalid byte value in Buffer data array at index %d", i)
			}
			p.FileBuffer[i] = byte(byteVal)
		}

	default:
		return fmt.Errorf("fileBuffer must be either base64 string or Buffer object, got %T", v)
	}

	return nil
}

// request converts the payload to processor format
func (p *JobPayload) request() *processor.ProcessRequest {
	return &processor.ProcessRequest{
		JobID:          p.JobID,
		UserID:         p.UserID,
		Filename:       p.Filename,
		MimeType:       p.MimeType,
		FileSize:       p.FileSize,
		FileURL:        p.FileURL,
		FileBuffer:     p.FileBuffer,
		ExtractionMode: p.ExtractionMode,
		Metadata:       p.Metadata,
	}
}

// Retryable reports whether running the same job again could succeed.
// Extraction outcomes depend only on the document, so they are final.
func Retryable(err error) bool {
	switch errors.CodeOf(err) {
	case errors.ErrorNoDataExtracted, errors.ErrorNoHeaderFound, errors.ErrorUnsupportedFormat:
		return false
	}
	return true
}

// runner executes one job against the processor and records its status
type runner struct {
	processor processor.DocumentProcessorInterface
	timeout   time.Duration
	logger    *logging.Logger
}

func newRunner(proc processor.DocumentProcessorInterface, timeoutMs int64, logger *logging.Logger) *runner {
	timeout := defaultProcessingTimeout
	if timeoutMs > 0 {
		timeout = time.Duration(timeoutMs) * time.Millisecond
	}
	return &runner{processor: proc, timeout: timeout, logger: logger}
}

// run processes payload under the processing timeout. statusCtx outlives
// the timeout so failures can still be recorded.
func (r *runner) run(statusCtx context.Context, payload *JobPayload) (*processor.ProcessResult, error) {
	log := r.logger.With("job_id", payload.JobID)
	start := time.Now()

	// Creates the job row if the producer did not
	if err := r.processor.UpdateJobStatus(statusCtx, payload.JobID, storage.StatusProcessing, 0, map[string]interface{}{
		"filename": payload.Filename,
		"mimeType": payload.MimeType,
	}); err != nil {
		log.Warn("Failed to update status to processing", "error", err.Error())
	}

	log.Info("Processing rent roll", "filename", payload.Filename, "size", payload.FileSize, "timeout", r.timeout.String())

	ctx, cancel := context.WithTimeout(statusCtx, r.timeout)
	defer cancel()

	result, err := r.processor.ProcessDocument(ctx, payload.request())
	duration := time.Since(start)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			log.Warn("Processing timed out", "duration", duration.String(), "timeout", r.timeout.String())
			err = errors.NewProcessingTimeoutError(payload.JobID, r.timeout, err)
		} else {
			log.Error("Processing failed", "duration", duration.String(), "error", err.Error())
		}

		if updateErr := r.processor.UpdateJobStatus(statusCtx, payload.JobID, storage.StatusFailed, 100, processor.FailureMetadata(err, duration)); updateErr != nil {
			log.Warn("Failed to update status to failed", "error", updateErr.Error())
		}
		return nil, err
	}

	log.Info("Processing completed", "duration", duration.String(), "records", result.RecordCount,
		"skipped_lines", result.SkippedLines, "skipped_pages", result.SkippedPages)

	if err := r.processor.UpdateJobStatus(statusCtx, payload.JobID, storage.StatusCompleted, 100, result.Metadata()); err != nil {
		log.Warn("Failed to update status to completed", "error", err.Error())
	}
	return result, nil
}
