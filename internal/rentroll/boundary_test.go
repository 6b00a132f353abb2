package rentroll

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnchorDetector(t *testing.T) {
	var d BoundaryDetector = AnchorDetector{}

	tests := []struct {
		line string
		want bool
	}{
		{"101 1-101 Occ Active Jane Doe", true},
		{"7 12-3", true},
		{"101 1-101a Occ", true},
		{"Jane Doe 2023-01-01", false},
		{"101 Occ 1-101", false},
		{"A1 1-101 Occ", false},
		{"101", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, d.StartsRow(Tokenize(tt.line)))
		})
	}
	assert.Equal(t, "anchor", d.Name())
}

func TestTokenCountDetector(t *testing.T) {
	header := Header{Fields: Tokenize("Unit Status Resident Rent")}
	var d BoundaryDetector = NewTokenCountDetector(header)

	assert.True(t, d.StartsRow(Tokenize("1 Occ Smith 900")))
	assert.True(t, d.StartsRow(Tokenize("1 Occ Jane Doe 900")))
	assert.False(t, d.StartsRow(Tokenize("Doe 900")))
	assert.False(t, d.StartsRow(nil))
	assert.Equal(t, "token-count", d.Name())
}

func TestHeaderDetector(t *testing.T) {
	d := NewHeaderDetector()

	h, ok := d.Detect(Line{Text: "Unit Occupancy Status Resident"})
	assert.True(t, ok)
	assert.Equal(t, 4, h.Len())

	_, ok = d.Detect(Line{Text: "Vacant Units Summary"})
	assert.True(t, ok)

	_, ok = d.Detect(Line{Text: "102 1-102 Vac Vacant Smith"})
	assert.False(t, ok, "anchored data rows are never headers")

	_, ok = d.Detect(Line{Text: "Rent Roll as of 2024-01-31"})
	assert.False(t, ok)

	custom := NewHeaderDetector("Ctl#")
	_, ok = custom.Detect(Line{Text: "Ctl# Site# Type"})
	assert.True(t, ok)
	_, ok = custom.Detect(Line{Text: "Unit Occupancy"})
	assert.False(t, ok)
}

func TestHeaderMatches(t *testing.T) {
	h := Header{Fields: []string{"Unit", "Rent"}}
	assert.True(t, h.Matches([]string{"Unit", "Rent"}))
	assert.False(t, h.Matches([]string{"Unit", "Rent", "Total"}))
	assert.False(t, h.Matches([]string{"Unit", "Fee"}))
	assert.False(t, Header{}.Matches(nil))
}

func TestSplitLines(t *testing.T) {
	lines := SplitLines(3, "  first line \r\n\n\t\nsecond   line\n")

	assert.Equal(t, []Line{
		{Page: 3, Index: 0, Text: "first line"},
		{Page: 3, Index: 3, Text: "second   line"},
	}, lines)
	assert.Equal(t, []string{"second", "line"}, lines[1].Tokens())
}

func TestSplitPages(t *testing.T) {
	pages := SplitPages("one\ftwo\f")
	assert.Len(t, pages, 3)
	assert.Equal(t, 2, pages[1].Number)
	assert.Equal(t, "two", pages[1].Text)
}
