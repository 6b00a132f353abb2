package rentroll

import (
	"strings"
)

// Page is the text of one document page, in document order.
// Skipped pages (OCR timeout or failure) carry the reason and no text.
type Page struct {
	Number  int
	Text    string
	Skipped bool
	Err     error
}

// Line is one trimmed, non-empty physical line of page text
type Line struct {
	Page  int
	Index int
	Text  string
}

// Tokens splits the line on whitespace
func (l Line) Tokens() []string {
	return Tokenize(l.Text)
}

// SplitLines splits raw page text into trimmed, non-empty lines.
// Index counts physical lines, so blank lines still advance it.
func SplitLines(page int, text string) []Line {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]Line, 0, len(raw))

	for i, r := range raw {
		trimmed := strings.TrimSpace(strings.TrimRight(r, "\r"))
		if trimmed == "" {
			continue
		}
		lines = append(lines, Line{Page: page, Index: i, Text: trimmed})
	}

	return lines
}

// Tokenize splits a line into whitespace-delimited tokens
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// SplitPages splits a plain-text document on form feeds, numbering pages from 1
func SplitPages(text string) []Page {
	parts := strings.Split(text, "\f")
	pages := make([]Page, 0, len(parts))
	for i, p := range parts {
		pages = append(pages, Page{Number: i + 1, Text: p})
	}
	return pages
}
