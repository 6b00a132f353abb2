// Package render writes extracted rent-roll tables as standalone HTML pages.
package render

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const stylesheet = `
table { border-collapse: collapse; width: 100%; font-family: Arial, sans-serif; }
th, td { border: 1px solid black; padding: 8px; text-align: left; }
th { background-color: #f2f2f2; }
td.amount { text-align: right; }
caption { caption-side: bottom; padding: 8px; color: #555; text-align: left; }
`

// Table is anything with a header and string rows
type Table interface {
	Columns() []string
	Rows() [][]string
}

// Options control the rendered page
type Options struct {
	Title   string
	Caption string
	// RightAlign marks columns rendered with class "amount"
	RightAlign func(column string) bool
}

// HTML writes table as a complete HTML document
func HTML(w io.Writer, table Table, opts Options) error {
	if opts.Title == "" {
		opts.Title = "Rent Roll"
	}
	return html.Render(w, document(table, opts))
}

// WriteFile renders into dir as processed_rent_roll_<timestamp>.html and returns the path
func WriteFile(dir string, now time.Time, table Table, opts Options) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("processed_rent_roll_%s.html", now.Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create HTML file: %w", err)
	}

	if err := HTML(f, table, opts); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write HTML file: %w", err)
	}
	return path, nil
}

func document(table Table, opts Options) *html.Node {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := element(atom.Html)
	doc.AppendChild(root)

	head := element(atom.Head)
	root.AppendChild(head)
	meta := element(atom.Meta)
	meta.Attr = []html.Attribute{{Key: "charset", Val: "utf-8"}}
	head.AppendChild(meta)
	head.AppendChild(withText(element(atom.Title), opts.Title))
	head.AppendChild(withText(element(atom.Style), stylesheet))

	body := element(atom.Body)
	root.AppendChild(body)
	body.AppendChild(tableNode(table, opts))

	return doc
}

func tableNode(table Table, opts Options) *html.Node {
	columns := table.Columns()
	right := make([]bool, len(columns))
	if opts.RightAlign != nil {
		for i, c := range columns {
			right[i] = opts.RightAlign(c)
		}
	}

	t := element(atom.Table)
	t.Attr = []html.Attribute{{Key: "class", Val: "data-table"}}

	if opts.Caption != "" {
		t.AppendChild(withText(element(atom.Caption), opts.Caption))
	}

	thead := element(atom.Thead)
	t.AppendChild(thead)
	hr := element(atom.Tr)
	thead.AppendChild(hr)
	for _, c := range columns {
		hr.AppendChild(withText(element(atom.Th), c))
	}

	tbody := element(atom.Tbody)
	t.AppendChild(tbody)
	for _, row := range table.Rows() {
		tr := element(atom.Tr)
		tbody.AppendChild(tr)
		for i, cell := range row {
			td := withText(element(atom.Td), cell)
			if i < len(right) && right[i] {
				td.Attr = []html.Attribute{{Key: "class", Val: "amount"}}
			}
			tr.AppendChild(td)
		}
	}

	return t
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}

func withText(n *html.Node, text string) *html.Node {
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return n
}
