package rentroll

import (
	"strings"
)

// DefaultHeaderKeywords mark a rent-roll column header line
var DefaultHeaderKeywords = []string{"Unit", "Occupancy", "Vacant"}

// Header is the ordered field list of the first header line in a document
type Header struct {
	Fields []string
}

// Len returns the number of header fields
func (h Header) Len() int {
	return len(h.Fields)
}

// IsZero reports whether no header has been established
func (h Header) IsZero() bool {
	return len(h.Fields) == 0
}

// Matches reports whether tokens repeat this header exactly
func (h Header) Matches(tokens []string) bool {
	if h.IsZero() || len(tokens) != len(h.Fields) {
		return false
	}
	for i := range tokens {
		if tokens[i] != h.Fields[i] {
			return false
		}
	}
	return true
}

// HeaderDetector recognizes header lines by keyword
type HeaderDetector struct {
	keywords []string
	anchor   AnchorDetector
}

// NewHeaderDetector creates a detector for the given keywords, or the defaults when none are given
func NewHeaderDetector(keywords ...string) *HeaderDetector {
	if len(keywords) == 0 {
		keywords = DefaultHeaderKeywords
	}
	return &HeaderDetector{keywords: keywords}
}

// Detect reports whether line is a header and returns its fields.
// A line that opens with the control-number/site-code anchor is data even
// when it mentions a keyword (e.g. a row whose status is "Vacant").
func (d *HeaderDetector) Detect(line Line) (Header, bool) {
	if !d.containsKeyword(line.Text) {
		return Header{}, false
	}

	tokens := line.Tokens()
	if d.anchor.StartsRow(tokens) {
		return Header{}, false
	}

	return Header{Fields: tokens}, true
}

func (d *HeaderDetector) containsKeyword(text string) bool {
	for _, kw := range d.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
