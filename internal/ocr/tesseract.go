package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractRecognizer runs Tesseract in-process through gosseract.
// A fresh client is created per page and closed when recognition ends.
//
// The cgo call cannot be interrupted. A recognition abandoned at its
// deadline keeps its slot until Tesseract returns, so at most maxInFlight
// engines ever run at once and later pages wait or time out instead.
type TesseractRecognizer struct {
	language  string
	whitelist string
	slots     chan struct{}
	run       func(image []byte) (string, error)
}

// NewTesseractRecognizer creates a gosseract-backed recognizer. maxInFlight
// below one is treated as one.
func NewTesseractRecognizer(language, whitelist string, maxInFlight int) *TesseractRecognizer {
	if language == "" {
		language = "eng"
	}
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	t := &TesseractRecognizer{
		language:  language,
		whitelist: whitelist,
		slots:     make(chan struct{}, maxInFlight),
	}
	t.run = t.recognize
	return t
}

// Engine implements Recognizer
func (t *TesseractRecognizer) Engine() string {
	return EngineGosseract
}

type recognition struct {
	text string
	err  error
}

// Recognize implements Recognizer. On deadline it returns at once; the
// slot is released by the recognition goroutine after the client closes.
func (t *TesseractRecognizer) Recognize(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	select {
	case t.slots <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	done := make(chan recognition, 1)
	go func() {
		defer func() { <-t.slots }()
		text, err := t.run(image)
		done <- recognition{text: text, err: err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (t *TesseractRecognizer) recognize(image []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.language); err != nil {
		return "", fmt.Errorf("failed to set language: %w", err)
	}
	if t.whitelist != "" {
		if err := client.SetWhitelist(t.whitelist); err != nil {
			return "", fmt.Errorf("failed to set whitelist: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract OCR failed: %w", err)
	}

	return strings.TrimSpace(text), nil
}
