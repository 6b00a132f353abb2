package rentroll

import (
	"fmt"
	"strings"

	"github.com/adverant/nexus/rentroll-worker/internal/logging"
)

// Mode selects the row-boundary strategy
type Mode string

const (
	// ModeAuto uses header mode when the document has a header line, anchor mode otherwise
	ModeAuto Mode = "auto"
	// ModeHeader splits rows by comparing token counts to the header
	ModeHeader Mode = "header"
	// ModeAnchor splits rows on the control-number/site-code anchor
	ModeAnchor Mode = "anchor"
)

// ParseMode validates a mode name; "" means auto
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAuto, "":
		return ModeAuto, nil
	case ModeHeader:
		return ModeHeader, nil
	case ModeAnchor:
		return ModeAnchor, nil
	}
	return "", fmt.Errorf("unknown extraction mode %q (want auto, header or anchor)", s)
}

// Extractor runs extraction passes. It holds no per-pass state and is safe
// for concurrent use across documents.
type Extractor struct {
	mode    Mode
	headers *HeaderDetector
	mapper  *FieldMapper
	logger  *logging.Logger
}

// Option configures an Extractor
type Option func(*Extractor)

// WithHeaderKeywords overrides the header keyword set
func WithHeaderKeywords(keywords ...string) Option {
	return func(e *Extractor) {
		e.headers = NewHeaderDetector(keywords...)
	}
}

// WithLogger sets the logger used for skipped-row diagnostics
func WithLogger(logger *logging.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor creates an extractor for mode
func NewExtractor(mode Mode, opts ...Option) *Extractor {
	e := &Extractor{
		mode:    mode,
		headers: NewHeaderDetector(),
		mapper:  NewFieldMapper(),
		logger:  logging.NewLogger("RentRollExtractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.mode == "" {
		e.mode = ModeAuto
	}
	return e
}

// Mode returns the configured mode
func (e *Extractor) Mode() Mode {
	return e.mode
}

// ExtractText runs a pass over plain text, treating form feeds as page breaks
func (e *Extractor) ExtractText(text string) *Result {
	return e.Extract(SplitPages(text))
}

// Extract runs one pass over pages in document order
func (e *Extractor) Extract(pages []Page) *Result {
	builder := NewTableBuilder()
	stats := builder.Stats()

	lines := make([]Line, 0)
	for _, p := range pages {
		if p.Skipped {
			stats.SkippedPages++
			continue
		}
		lines = append(lines, SplitLines(p.Number, p.Text)...)
	}
	stats.Lines = len(lines)

	mode := e.mode
	first, found := e.findHeader(lines)
	if mode == ModeAuto {
		if found {
			mode = ModeHeader
		} else {
			mode = ModeAnchor
		}
	}

	if mode == ModeHeader && !found {
		result := builder.Build(mode, Header{})
		result.Condition = ConditionNoHeader
		e.logger.Warn("No header line found", "lines", len(lines))
		return result
	}

	var header Header
	if mode == ModeHeader {
		header = e.runHeaderMode(lines, first, builder)
	} else {
		header = e.runAnchorMode(lines, builder)
	}

	result := builder.Build(mode, header)
	e.logger.Debug("Extraction pass complete",
		"mode", string(mode),
		"records", result.Table.Len(),
		"skipped_lines", result.Stats.SkippedLines,
		"skipped_pages", result.Stats.SkippedPages)
	return result
}

// findHeader returns the index of the first header line
func (e *Extractor) findHeader(lines []Line) (int, bool) {
	for i, l := range lines {
		if _, ok := e.headers.Detect(l); ok {
			return i, true
		}
	}
	return -1, false
}

// runHeaderMode splits rows by header width. Lines before the header are
// preamble. A later line repeating the header (page header) closes the
// pending row and is dropped; other keyword lines are data.
func (e *Extractor) runHeaderMode(lines []Line, first int, builder *TableBuilder) Header {
	stats := builder.Stats()
	stats.IgnoredLines += first

	header, _ := e.headers.Detect(lines[first])
	stats.HeaderLines++

	asm := NewAssembler(NewTokenCountDetector(header), e.mapper, builder, OrphanSkip, e.logger)

	for _, line := range lines[first+1:] {
		if header.Matches(line.Tokens()) {
			stats.HeaderLines++
			asm.Flush()
			continue
		}
		asm.Feed(line)
	}
	asm.Finish()

	return header
}

// runAnchorMode splits rows on the anchor pattern. Header lines close the
// pending row; the first one is kept for reporting only.
func (e *Extractor) runAnchorMode(lines []Line, builder *TableBuilder) Header {
	stats := builder.Stats()
	asm := NewAssembler(AnchorDetector{}, e.mapper, builder, OrphanIgnore, e.logger)

	var header Header
	for _, line := range lines {
		if h, ok := e.headers.Detect(line); ok {
			stats.HeaderLines++
			if header.IsZero() {
				header = h
			}
			asm.Flush()
			continue
		}
		asm.Feed(line)
	}
	asm.Finish()

	return header
}
