/**
 * Document loading for the rent-roll worker
 *
 * Fetches the job's file from the inline buffer or its URL and splits it
 * into pages of text: text layer first, OCR for pages without one.
 */

package document

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/adverant/nexus/rentroll-worker/internal/logging"
)

// Source locates a job's file
type Source struct {
	JobID        string
	URL          string
	Buffer       []byte
	ExpectedSize int64
}

// LoaderConfig holds download settings
type LoaderConfig struct {
	MaxFileSize    int64
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration
}

// Loader reads job files from buffers or URLs
type Loader struct {
	config LoaderConfig
	client *http.Client
	logger *logging.Logger
}

// NewLoader creates a loader, filling unset settings with defaults
func NewLoader(cfg LoaderConfig) *Loader {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 32 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &Loader{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logging.NewLogger("DocumentLoader"),
	}
}

// Load returns the file bytes from the buffer or, failing that, the URL
func (l *Loader) Load(ctx context.Context, src Source) ([]byte, error) {
	log := l.logger.With("job_id", src.JobID)

	if len(src.Buffer) > 0 {
		if l.config.MaxFileSize > 0 && int64(len(src.Buffer)) > l.config.MaxFileSize {
			return nil, fmt.Errorf("file size exceeds maximum: %d > %d bytes", len(src.Buffer), l.config.MaxFileSize)
		}
		log.Debug("Using file buffer", "bytes", len(src.Buffer))
		return src.Buffer, nil
	}

	if src.URL != "" {
		log.Info("Downloading file", "url", src.URL, "expected_size", src.ExpectedSize)
		data, err := l.download(ctx, log, src)
		if err != nil {
			return nil, fmt.Errorf("failed to download file: %w", err)
		}
		return data, nil
	}

	return nil, fmt.Errorf("no file source provided (buffer or URL)")
}

// download fetches src.URL with exponential backoff between attempts
func (l *Loader) download(ctx context.Context, log *logging.Logger, src Source) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= l.config.MaxRetries; attempt++ {
		data, retry, err := l.fetch(ctx, src)
		if err == nil {
			log.Info("Download successful", "attempt", attempt, "bytes", len(data))
			return data, nil
		}
		lastErr = err
		log.Warn("Download attempt failed", "attempt", attempt, "max_attempts", l.config.MaxRetries, "error", err.Error())

		if !retry || attempt == l.config.MaxRetries {
			break
		}

		backoff := l.backoff(attempt)
		log.Debug("Retrying download", "backoff_ms", backoff.Milliseconds())
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during retry backoff: %w", ctx.Err())
		}
	}

	return nil, fmt.Errorf("failed to download file after %d attempts: %w", l.config.MaxRetries, lastErr)
}

// fetch makes one attempt. retry is false for errors another attempt cannot fix.
func (l *Loader) fetch(ctx context.Context, src Source) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("invalid URL: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 4xx other than throttling will not change on retry
		retry := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retry, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	if resp.ContentLength > 0 && src.ExpectedSize > 0 && resp.ContentLength != src.ExpectedSize {
		l.logger.Warn("Content-Length mismatch", "job_id", src.JobID, "expected", src.ExpectedSize, "got", resp.ContentLength)
	}

	limit := l.config.MaxFileSize
	if limit > 0 && resp.ContentLength > limit {
		return nil, false, fmt.Errorf("file size exceeds maximum: %d > %d bytes", resp.ContentLength, limit)
	}
	if limit <= 0 {
		limit = 10 * 1024 * 1024 * 1024 // 10GB safety limit
	}

	// Read one byte past the limit to detect oversized bodies without Content-Length
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, false, fmt.Errorf("file size exceeds maximum: more than %d bytes", limit)
	}

	return data, false, nil
}

func (l *Loader) backoff(attempt int) time.Duration {
	d := time.Duration(float64(l.config.InitialBackoff) * math.Pow(2, float64(attempt-1)))
	if d > l.config.MaxBackoff {
		d = l.config.MaxBackoff
	}
	return d
}
