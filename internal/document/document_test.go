package document

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/adverant/nexus/rentroll-worker/internal/errors"
	"github.com/adverant/nexus/rentroll-worker/internal/rentroll"
	lpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectMimeType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		declared string
		want     string
	}{
		{"pdf", []byte("%PDF-1.7\n..."), "application/octet-stream", MimePDF},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0}, "", MimePNG},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "", MimeJPEG},
		{"tiff", []byte{0x49, 0x49, 0x2A, 0x00, 1}, "", MimeTIFF},
		{"xlsx", []byte{0x50, 0x4B, 0x03, 0x04, 0}, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", MimeZip},
		{"plain text", []byte("Unit Occupancy Status\n101 1-101 Occ"), "", MimeText},
		{"declared csv", []byte("a,b,c\n1,2,3"), "text/csv", "text/csv"},
		{"binary", []byte{0x01, 0x00, 0x02, 0x03}, "", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectMimeType(tt.data, tt.declared))
		})
	}
}

func TestLoaderBuffer(t *testing.T) {
	l := NewLoader(LoaderConfig{MaxFileSize: 8})

	data, err := l.Load(context.Background(), Source{JobID: "j1", Buffer: []byte("abc")})
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)

	_, err = l.Load(context.Background(), Source{JobID: "j1", Buffer: []byte("far too large")})
	assert.ErrorContains(t, err, "exceeds maximum")

	_, err = l.Load(context.Background(), Source{JobID: "j1"})
	assert.ErrorContains(t, err, "no file source")
}

func TestLoaderRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("rent roll"))
	}))
	defer srv.Close()

	l := NewLoader(LoaderConfig{MaxRetries: 5, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond})
	data, err := l.Load(context.Background(), Source{JobID: "j2", URL: srv.URL})

	require.NoError(t, err)
	assert.Equal(t, "rent roll", string(data))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestLoaderDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	l := NewLoader(LoaderConfig{MaxRetries: 5, InitialBackoff: time.Millisecond})
	_, err := l.Load(context.Background(), Source{JobID: "j3", URL: srv.URL})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLoaderEnforcesMaxSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	l := NewLoader(LoaderConfig{MaxFileSize: 1024, InitialBackoff: time.Millisecond})
	_, err := l.Load(context.Background(), Source{JobID: "j4", URL: srv.URL})
	assert.ErrorContains(t, err, "exceeds maximum")
}

func TestLoaderBackoff(t *testing.T) {
	l := NewLoader(LoaderConfig{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second})
	assert.Equal(t, time.Second, l.backoff(1))
	assert.Equal(t, 4*time.Second, l.backoff(3))
	assert.Equal(t, 5*time.Second, l.backoff(6))
}

type fakePageOCR struct {
	pages  map[int]string
	calls  int
	images map[int][]byte
}

func (f *fakePageOCR) RecognizePage(ctx context.Context, number int, image []byte) rentroll.Page {
	f.calls++
	if f.images == nil {
		f.images = make(map[int][]byte)
	}
	f.images[number] = image
	text, ok := f.pages[number]
	if !ok {
		return rentroll.Page{Number: number, Skipped: true, Err: apperrors.NewOCRTimeoutError(number, time.Second, context.DeadlineExceeded)}
	}
	return rentroll.Page{Number: number, Text: text}
}

func TestReaderPlainText(t *testing.T) {
	r := NewReader(nil)
	pages, err := r.Read(context.Background(), "j5", []byte("page one\fpage two"), "")

	require.NoError(t, err)
	assert.Equal(t, MimeText, pages.MimeType)
	require.Len(t, pages.Pages, 2)
	assert.Equal(t, "page two", pages.Pages[1].Text)
	assert.Equal(t, 2, pages.TextPages)
}

func TestReaderImageGoesThroughOCR(t *testing.T) {
	ocr := &fakePageOCR{pages: map[int]string{1: "101 1-101 Occ Active Smith"}}
	r := NewReader(ocr)

	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0}
	pages, err := r.Read(context.Background(), "j6", png, "")

	require.NoError(t, err)
	assert.Equal(t, 1, ocr.calls)
	assert.Equal(t, 1, pages.OCRPages)
	assert.Equal(t, "101 1-101 Occ Active Smith", pages.Pages[0].Text)
}

func TestReaderImageWithoutRecognizerIsSkipped(t *testing.T) {
	r := NewReader(nil)
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0}
	pages, err := r.Read(context.Background(), "j7", jpeg, "")

	require.NoError(t, err)
	assert.True(t, pages.Pages[0].Skipped)
	assert.Equal(t, apperrors.ErrorOCRFailed, apperrors.CodeOf(pages.Pages[0].Err))
}

func TestReaderRejectsSpreadsheets(t *testing.T) {
	r := NewReader(nil)
	_, err := r.Read(context.Background(), "j8", []byte{0x50, 0x4B, 0x03, 0x04, 0}, "")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorUnsupportedFormat, apperrors.CodeOf(err))
}

func TestReaderRejectsCSV(t *testing.T) {
	r := NewReader(nil)
	_, err := r.Read(context.Background(), "j8", []byte("a,b,c\n1,2,3"), "text/csv")
	assert.Equal(t, apperrors.ErrorUnsupportedFormat, apperrors.CodeOf(err))
}

func TestReaderRejectsBrokenPDF(t *testing.T) {
	r := NewReader(nil)
	_, err := r.Read(context.Background(), "j9", []byte("%PDF-1.4 truncated"), "")
	assert.Error(t, err)
}

func glyphs(y float64, startX float64, s string) []lpdf.Text {
	out := make([]lpdf.Text, 0, len(s))
	x := startX
	for _, ch := range s {
		out = append(out, lpdf.Text{S: string(ch), X: x, Y: y, W: 5, FontSize: 10})
		x += 5
	}
	return out
}

func TestGroupTextsIntoRows(t *testing.T) {
	var texts []lpdf.Text
	// Second line first, glyphs out of order, slight baseline jitter
	texts = append(texts, glyphs(700, 100, "Smith")...)
	texts = append(texts, glyphs(720.5, 60, "1-101")...)
	texts = append(texts, glyphs(720, 10, "101")...)
	texts = append(texts, glyphs(700, 10, "102")...)

	rows := groupTextsIntoRows(texts)
	require.Len(t, rows, 2)

	assert.Equal(t, "101 1-101\n102 Smith\n", joinRows(rows))
}

func TestJoinRowsKeepsWordsTogether(t *testing.T) {
	rows := groupTextsIntoRows(glyphs(500, 0, "Vacant"))
	assert.Equal(t, "Vacant\n", joinRows(rows))
}

const textLayerFixture = "Sunrise Apartments Rent Roll\n" +
	"Unit Occupancy Status Resident MoveIn LeaseExp BaseRent PetFee MTM ST Vacancy Total\n" +
	"101 1-101 Occ Active Jane Doe 2023-01-01 2024-01-01 1000 50 0 0 0 1050\n" +
	"102 1-102 Vac Vacant Smith 2023-02-01 2024-02-01 900 0 0 0 0\n"

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

// scannedPDF builds a one-page PDF whose only content is a PNG, like a scan
func scannedPDF(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 120, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 120; x++ {
			img.Set(x, y, color.White)
		}
	}
	for x := 10; x < 110; x++ {
		img.Set(x, 20, color.Black)
	}
	var pngData bytes.Buffer
	require.NoError(t, png.Encode(&pngData, img))

	conf := model.NewDefaultConfiguration()
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false

	var out bytes.Buffer
	require.NoError(t, api.ImportImages(nil, &out, []io.Reader{&pngData}, pdfcpu.DefaultImportConfig(), conf))
	return out.Bytes()
}

func TestTextLayer(t *testing.T) {
	pages, err := TextLayer(readFixture(t, "rentroll_text.pdf"))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, textLayerFixture, pages[0])
}

func TestReaderPDFTextLayer(t *testing.T) {
	ocr := &fakePageOCR{}
	r := NewReader(ocr)

	pages, err := r.Read(context.Background(), "j10", readFixture(t, "rentroll_text.pdf"), "")
	require.NoError(t, err)

	assert.Equal(t, MimePDF, pages.MimeType)
	assert.Equal(t, 1, pages.TextPages)
	assert.Equal(t, 0, pages.OCRPages)
	assert.Equal(t, 0, ocr.calls, "pages with a text layer never reach OCR")
	require.Len(t, pages.Pages, 1)
	assert.Equal(t, 1, pages.Pages[0].Number)
	assert.Equal(t, strings.Split(strings.TrimSpace(textLayerFixture), "\n"),
		strings.Split(strings.TrimSpace(pages.Pages[0].Text), "\n"))

	result := rentroll.NewExtractor(rentroll.ModeAuto).Extract(pages.Pages)
	require.Equal(t, 2, result.Table.Len())
	assert.Equal(t, "Jane Doe", result.Table.Records()[0].Resident)
	assert.Equal(t, "$1050.00", result.Table.Records()[0].TotalCharges.String())
}

func TestPageImages(t *testing.T) {
	data := scannedPDF(t)

	images, err := PageImages(data, []int{1, 7})
	require.NoError(t, err)
	require.Contains(t, images, 1)
	assert.NotContains(t, images, 7, "pages past the end are ignored")
	assert.NotEmpty(t, images[1].Data)
}

func TestReaderScannedPDFGoesThroughOCR(t *testing.T) {
	data := scannedPDF(t)

	texts, err := TextLayer(data)
	require.NoError(t, err)
	require.Len(t, texts, 1)
	assert.Empty(t, strings.TrimSpace(texts[0]))

	ocr := &fakePageOCR{pages: map[int]string{1: "101 1-101 Occ Active Smith 2023-01-01 2024-01-01 900 0 0 0 0 900"}}
	r := NewReader(ocr)

	pages, err := r.Read(context.Background(), "j11", data, "")
	require.NoError(t, err)

	assert.Equal(t, MimePDF, pages.MimeType)
	assert.Equal(t, 1, ocr.calls)
	assert.NotEmpty(t, ocr.images[1], "the embedded page image is handed to OCR")
	assert.Equal(t, 1, pages.OCRPages)
	assert.Equal(t, 0, pages.TextPages)
	require.Len(t, pages.Pages, 1)
	assert.Equal(t, ocr.pages[1], pages.Pages[0].Text)
	assert.False(t, pages.Pages[0].Skipped)
}
