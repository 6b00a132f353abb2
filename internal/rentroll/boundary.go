package rentroll

import (
	"regexp"
)

// BoundaryDetector decides whether a line starts a new logical row.
// Lines that do not start a row continue the open one.
type BoundaryDetector interface {
	StartsRow(tokens []string) bool
	Name() string
}

// TokenCountDetector starts a row when a line is at least as wide as the header
type TokenCountDetector struct {
	FieldCount int
}

// NewTokenCountDetector creates a detector sized to header
func NewTokenCountDetector(header Header) TokenCountDetector {
	return TokenCountDetector{FieldCount: header.Len()}
}

// StartsRow implements BoundaryDetector
func (d TokenCountDetector) StartsRow(tokens []string) bool {
	return len(tokens) > 0 && len(tokens) >= d.FieldCount
}

// Name implements BoundaryDetector
func (d TokenCountDetector) Name() string {
	return "token-count"
}

var (
	controlNumberPattern = regexp.MustCompile(`^\d+$`)
	siteCodePattern      = regexp.MustCompile(`^\d+-\d+`)
)

// AnchorDetector starts a row on "<control number> <digits>-<digits>",
// which survives OCR noise better than column counts do.
type AnchorDetector struct{}

// StartsRow implements BoundaryDetector
func (AnchorDetector) StartsRow(tokens []string) bool {
	if len(tokens) < 2 {
		return false
	}
	return controlNumberPattern.MatchString(tokens[0]) && siteCodePattern.MatchString(tokens[1])
}

// Name implements BoundaryDetector
func (AnchorDetector) Name() string {
	return "anchor"
}
