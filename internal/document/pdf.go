package document

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// rowTolerance is the vertical distance (points) within which glyphs share a line
const rowTolerance = 2.0

// TextLayer returns each page's text, rebuilt line by line from glyph
// positions. Pages without a text layer come back empty.
func TextLayer(data []byte) (pages []string, err error) {
	// ledongthuc/pdf panics on some malformed streams
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("failed to read PDF text layer: %v", r)
		}
	}()

	reader, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	n := reader.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, joinRows(groupTextsIntoRows(p.Content().Text)))
	}

	return pages, nil
}

type textRow struct {
	y     float64
	texts []lpdf.Text
}

// groupTextsIntoRows buckets glyphs by baseline, top of page first
func groupTextsIntoRows(texts []lpdf.Text) []textRow {
	var rows []textRow

	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" && t.S != " " {
			continue
		}

		placed := false
		for i := range rows {
			if abs(rows[i].y-t.Y) < rowTolerance {
				rows[i].texts = append(rows[i].texts, t)
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, textRow{y: t.Y, texts: []lpdf.Text{t}})
		}
	}

	// PDF y grows upwards
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].y > rows[j].y })
	for i := range rows {
		sort.SliceStable(rows[i].texts, func(a, b int) bool { return rows[i].texts[a].X < rows[i].texts[b].X })
	}
	return rows
}

// joinRows renders rows as text lines, inserting a space wherever the gap
// between glyphs is wider than a fraction of the font size
func joinRows(rows []textRow) string {
	var b strings.Builder
	for _, row := range rows {
		var line strings.Builder
		for i, t := range row.texts {
			if i > 0 {
				prev := row.texts[i-1]
				gap := t.X - (prev.X + prev.W)
				size := prev.FontSize
				if size <= 0 {
					size = 1
				}
				if gap > 0.2*size && !strings.HasSuffix(line.String(), " ") && !strings.HasPrefix(t.S, " ") {
					line.WriteByte(' ')
				}
			}
			line.WriteString(t.S)
		}
		if s := strings.TrimSpace(line.String()); s != "" {
			b.WriteString(s)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// PageImage is the largest embedded image of a page, usually the scan itself
type PageImage struct {
	Page     int
	FileType string
	Data     []byte
}

// PageImages extracts the largest embedded image of each requested page
func PageImages(data []byte, pageNrs []int) (map[int]PageImage, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to validate PDF: %w", err)
	}

	out := make(map[int]PageImage, len(pageNrs))
	for _, nr := range pageNrs {
		if nr < 1 || nr > ctx.PageCount {
			continue
		}

		images, err := pdfcpu.ExtractPageImages(ctx, nr, false)
		if err != nil {
			return nil, fmt.Errorf("failed to extract images from page %d: %w", nr, err)
		}

		var best *model.Image
		for objNr := range images {
			img := images[objNr]
			if img.Thumb || img.Reader == nil {
				continue
			}
			if best == nil || img.Width*img.Height > best.Width*best.Height {
				best = &img
			}
		}
		if best == nil {
			continue
		}

		raw, err := io.ReadAll(best.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to read image on page %d: %w", nr, err)
		}
		out[nr] = PageImage{Page: nr, FileType: best.FileType, Data: raw}
	}

	return out, nil
}
