package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/adverant/nexus/rentroll-worker/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestPNG creates a white PNG with a black bar
func createTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	for x := 0; x < width/2; x++ {
		img.Set(x, height/2, color.Black)
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeRecognizer struct {
	text  string
	err   error
	delay time.Duration
	seen  []byte
}

func (f *fakeRecognizer) Engine() string { return "fake" }

func (f *fakeRecognizer) Recognize(ctx context.Context, image []byte) (string, error) {
	f.seen = image
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

func TestPageOCRSuccess(t *testing.T) {
	rec := &fakeRecognizer{text: "101 1-101 Occ Active Smith"}
	p := NewPageOCR(rec, nil, time.Second)

	page := p.RecognizePage(context.Background(), 3, []byte("img"))

	assert.False(t, page.Skipped)
	assert.NoError(t, page.Err)
	assert.Equal(t, 3, page.Number)
	assert.Equal(t, "101 1-101 Occ Active Smith", page.Text)
}

func TestPageOCRTimeoutSkipsPage(t *testing.T) {
	rec := &fakeRecognizer{text: "late", delay: 5 * time.Second}
	p := NewPageOCR(rec, nil, 20*time.Millisecond)

	start := time.Now()
	page := p.RecognizePage(context.Background(), 2, []byte("img"))

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, page.Skipped)
	assert.Empty(t, page.Text)
	assert.True(t, errors.Is(page.Err, apperrors.ErrOCRTimeout))
	assert.True(t, errors.Is(page.Err, context.DeadlineExceeded))
}

func TestPageOCRFailureSkipsPage(t *testing.T) {
	rec := &fakeRecognizer{err: errors.New("bad image")}
	p := NewPageOCR(rec, nil, time.Second)

	page := p.RecognizePage(context.Background(), 1, []byte("img"))

	assert.True(t, page.Skipped)
	assert.Equal(t, apperrors.ErrorOCRFailed, apperrors.CodeOf(page.Err))
	assert.False(t, errors.Is(page.Err, apperrors.ErrOCRTimeout))
}

func TestPageOCRPreprocesses(t *testing.T) {
	rec := &fakeRecognizer{text: "ok"}
	p := NewPageOCR(rec, NewPreprocessor(100, 100), time.Second)

	p.RecognizePage(context.Background(), 1, createTestPNG(t, 400, 200))

	cfg, _, err := image.DecodeConfig(bytes.NewReader(rec.seen))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestPreprocessorFit(t *testing.T) {
	tests := []struct {
		name         string
		maxW, maxH   int
		w, h         int
		wantW, wantH int
	}{
		{"fits", 1000, 1000, 800, 600, 800, 600},
		{"too wide", 1000, 1000, 2000, 500, 1000, 250},
		{"too tall", 1000, 1000, 500, 4000, 125, 1000},
		{"both, height binds", 1000, 1000, 2000, 4000, 500, 1000},
		{"unbounded width", 0, 1000, 5000, 2000, 2500, 1000},
		{"disabled", 0, 0, 5000, 5000, 5000, 5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPreprocessor(tt.maxW, tt.maxH)
			w, h := p.fit(tt.w, tt.h)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestPreprocessorPassThrough(t *testing.T) {
	data := createTestPNG(t, 50, 20)
	out, err := NewPreprocessor(1000, 1000).Prepare(data)
	require.NoError(t, err)
	assert.Equal(t, data, out)

	_, err = NewPreprocessor(1000, 1000).Prepare([]byte("not an image"))
	assert.Error(t, err)
}

func TestNewRecognizer(t *testing.T) {
	r, err := NewRecognizer(Options{Engine: EngineTesseractCLI, Whitelist: "0123456789"})
	require.NoError(t, err)
	assert.Equal(t, EngineTesseractCLI, r.Engine())
	assert.Equal(t, []string{"stdin", "stdout", "-l", "eng", "-c", "tessedit_char_whitelist=0123456789"},
		r.(*CommandRecognizer).Args())

	r, err = NewRecognizer(Options{})
	require.NoError(t, err)
	assert.Equal(t, EngineTesseractCLI, r.Engine(), "the subprocess engine is the default")

	r, err = NewRecognizer(Options{Engine: EngineGosseract})
	require.NoError(t, err)
	assert.Equal(t, EngineGosseract, r.Engine())
	assert.Equal(t, 1, cap(r.(*TesseractRecognizer).slots))

	_, err = NewRecognizer(Options{Engine: "easyocr"})
	assert.Error(t, err)
}

// writeScript installs a fake tesseract binary
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "tesseract")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestCommandRecognizer(t *testing.T) {
	path := writeScript(t, "cat > /dev/null\necho '101 1-101 Occ Active Smith'\n")
	r := NewCommandRecognizer(path, "eng", "")

	text, err := r.Recognize(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "101 1-101 Occ Active Smith", text)
}

func TestCommandRecognizerFailure(t *testing.T) {
	path := writeScript(t, "echo 'Error in pixReadMem' >&2\nexit 1\n")
	r := NewCommandRecognizer(path, "eng", "")

	_, err := r.Recognize(context.Background(), []byte("img"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pixReadMem")
}

func TestCommandRecognizerKilledOnTimeout(t *testing.T) {
	path := writeScript(t, "exec sleep 10\n")
	r := NewCommandRecognizer(path, "eng", "")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Recognize(ctx, nil)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestTesseractRecognizer(t *testing.T) {
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skipf("Tesseract not available: %v", err)
	}

	r := NewTesseractRecognizer("eng", "", 1)
	_, err := r.Recognize(context.Background(), createTestPNG(t, 100, 50))
	assert.NoError(t, err)
}

func TestTesseractRecognizerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTesseractRecognizer("", "", 1).Recognize(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTesseractRecognizerAbandonedCallHoldsSlot(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32

	r := NewTesseractRecognizer("eng", "", 1)
	r.run = func(image []byte) (string, error) {
		calls.Add(1)
		<-release
		return "101 1-101", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Recognize(ctx, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The first engine is still running, so the next page cannot start one
	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	_, err = r.Recognize(ctx2, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), calls.Load())

	close(release)

	text, err := r.Recognize(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "101 1-101", text)
	assert.Equal(t, int32(2), calls.Load())
}
