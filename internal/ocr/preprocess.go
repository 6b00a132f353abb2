package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Preprocessor downscales page images that exceed the configured bounds.
// Oversized scans slow Tesseract without improving table text.
type Preprocessor struct {
	MaxWidth  int
	MaxHeight int
}

// NewPreprocessor creates a preprocessor. Zero bounds disable resizing on that axis.
func NewPreprocessor(maxWidth, maxHeight int) *Preprocessor {
	return &Preprocessor{MaxWidth: maxWidth, MaxHeight: maxHeight}
}

// Prepare returns data unchanged when it fits, otherwise a PNG scaled down
// to fit while preserving aspect ratio
func (p *Preprocessor) Prepare(data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}

	w, h := p.fit(cfg.Width, cfg.Height)
	if w == cfg.Width && h == cfg.Height {
		return data, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}

// fit returns the largest size within bounds with the same aspect ratio
func (p *Preprocessor) fit(width, height int) (int, int) {
	if width <= 0 || height <= 0 {
		return width, height
	}

	ratio := 1.0
	if p.MaxWidth > 0 && width > p.MaxWidth {
		ratio = float64(p.MaxWidth) / float64(width)
	}
	if p.MaxHeight > 0 && height > p.MaxHeight {
		if r := float64(p.MaxHeight) / float64(height); r < ratio {
			ratio = r
		}
	}
	if ratio == 1.0 {
		return width, height
	}

	w := int(float64(width) * ratio)
	h := int(float64(height) * ratio)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}
