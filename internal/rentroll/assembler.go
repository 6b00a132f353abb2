package rentroll

import (
	"github.com/adverant/nexus/rentroll-worker/internal/logging"
)

// OrphanPolicy says what to do with a continuation line when no row is open
type OrphanPolicy int

const (
	// OrphanIgnore drops the line and counts it as ignored
	OrphanIgnore OrphanPolicy = iota
	// OrphanSkip drops the line and counts it as a skipped malformed line
	OrphanSkip
)

// Assembler joins physical lines into logical rows. It holds at most one
// pending row and never looks ahead.
type Assembler struct {
	detector BoundaryDetector
	mapper   *FieldMapper
	builder  *TableBuilder
	orphans  OrphanPolicy
	logger   *logging.Logger

	buffer []string
	start  Line
	lines  int // physical lines in buffer
}

// NewAssembler creates an assembler feeding builder
func NewAssembler(detector BoundaryDetector, mapper *FieldMapper, builder *TableBuilder, orphans OrphanPolicy, logger *logging.Logger) *Assembler {
	return &Assembler{
		detector: detector,
		mapper:   mapper,
		builder:  builder,
		orphans:  orphans,
		logger:   logger,
	}
}

// Open reports whether a row is pending
func (a *Assembler) Open() bool {
	return a.lines > 0
}

// Feed consumes one non-header line
func (a *Assembler) Feed(line Line) {
	tokens := line.Tokens()
	if len(tokens) == 0 {
		return
	}

	stats := a.builder.Stats()

	if a.detector.StartsRow(tokens) {
		stats.RowStarts++
		a.Flush()
		a.buffer = append(a.buffer[:0], tokens...)
		a.start = line
		a.lines = 1
		return
	}

	if !a.Open() {
		switch a.orphans {
		case OrphanSkip:
			stats.SkippedLines++
			a.logger.Debug("Skipping line outside any row", "page", line.Page, "line", line.Index, "tokens", len(tokens))
		default:
			stats.IgnoredLines++
		}
		return
	}

	// Wrapped name or address: keep token order
	a.buffer = append(a.buffer, tokens...)
	a.lines++
}

// Flush maps the pending row into a record, or counts it as malformed
func (a *Assembler) Flush() {
	if !a.Open() {
		return
	}

	rec, err := a.mapper.Map(a.buffer, a.start)
	if err != nil {
		stats := a.builder.Stats()
		stats.MalformedRows++
		stats.SkippedLines += a.lines
		a.logger.Debug("Skipping malformed row", "error", err.Error())
	} else {
		a.builder.Add(rec)
	}

	a.reset()
}

// Finish flushes the last pending row at end of input
func (a *Assembler) Finish() {
	a.Flush()
}

func (a *Assembler) reset() {
	a.buffer = a.buffer[:0]
	a.start = Line{}
	a.lines = 0
}
