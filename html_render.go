package edgar

import (
	"fmt"
	"strings"
)

// MarkdownConfig controls markdown rendering.
type MarkdownConfig struct {
	// IncludeMetadata appends a footer describing filtered content
	// (dropped empty columns, merged headers).
	IncludeMetadata bool
	// SuppressEmptyColumns omits columns flagged empty rather than
	// rendering blank cells.
	SuppressEmptyColumns bool
}

// RenderMarkdown renders a document's nodes as markdown, the form
// consumed by language-model pipelines. Headings map to ##, tables to
// pipe tables, page breaks to horizontal rules.
func (d *Document) RenderMarkdown(cfg MarkdownConfig) string {
	var b strings.Builder
	for i := range d.Nodes {
		n := &d.Nodes[i]
		switch n.Kind {
		case NodeHeading:
			b.WriteString("## ")
			b.WriteString(n.Text)
			b.WriteString("\n\n")
		case NodeParagraph:
			b.WriteString(n.Text)
			b.WriteString("\n\n")
		case NodePageBreak:
			b.WriteString("---\n\n")
		case NodeTable:
			if n.Table != nil {
				b.WriteString(n.Table.RenderMarkdown(cfg))
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

// RenderMarkdown renders the matrix as a pipe table. Multi-row headers
// merge top-down with " / " separators; spanned cells repeat their text
// in every covered slot so each column stays self-describing.
func (m *TableMatrix) RenderMarkdown(cfg MarkdownConfig) string {
	cols := m.visibleCols(cfg.SuppressEmptyColumns)
	if len(cols) == 0 {
		return ""
	}

	var b strings.Builder
	headers := m.mergedHeaders()
	writeRow := func(cells []string) {
		b.WriteByte('|')
		for _, c := range cells {
			b.WriteByte(' ')
			b.WriteString(strings.ReplaceAll(c, "|", "\\|"))
			b.WriteString(" |")
		}
		b.WriteByte('\n')
	}

	row := make([]string, 0, len(cols))
	for _, col := range cols {
		row = append(row, headers[col])
	}
	writeRow(row)

	b.WriteByte('|')
	for _, col := range cols {
		if m.NumericCols[col] {
			b.WriteString("---:|")
		} else {
			b.WriteString("---|")
		}
	}
	b.WriteByte('\n')

	for r := m.HeaderRows; r < m.Rows(); r++ {
		row = row[:0]
		for _, col := range cols {
			row = append(row, m.CellText(r, col))
		}
		writeRow(row)
	}

	if cfg.IncludeMetadata {
		dropped := 0
		for _, e := range m.EmptyCols {
			if e {
				dropped++
			}
		}
		if cfg.SuppressEmptyColumns && dropped > 0 {
			fmt.Fprintf(&b, "\n*%d empty column(s) omitted*\n", dropped)
		}
	}
	return b.String()
}

// RenderText renders the matrix as a borderless aligned text table:
// columns padded to content width, two spaces between columns, a single
// rule under the header. Numeric columns right-align.
func (m *TableMatrix) RenderText() string {
	cols := m.visibleCols(false)
	if len(cols) == 0 {
		return ""
	}
	headers := m.mergedHeaders()

	widths := make([]int, len(cols))
	for i, col := range cols {
		widths[i] = len([]rune(headers[col]))
		for r := m.HeaderRows; r < m.Rows(); r++ {
			if w := len([]rune(m.CellText(r, col))); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	pad := func(s string, i int, col int) {
		w := len([]rune(s))
		gap := widths[i] - w
		if m.NumericCols[col] {
			b.WriteString(strings.Repeat(" ", gap))
			b.WriteString(s)
		} else {
			b.WriteString(s)
			b.WriteString(strings.Repeat(" ", gap))
		}
	}

	for i, col := range cols {
		if i > 0 {
			b.WriteString("  ")
		}
		pad(headers[col], i, col)
	}
	b.WriteByte('\n')
	for i := range cols {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(strings.Repeat("-", widths[i]))
	}
	b.WriteByte('\n')

	for r := m.HeaderRows; r < m.Rows(); r++ {
		for i, col := range cols {
			if i > 0 {
				b.WriteString("  ")
			}
			pad(m.CellText(r, col), i, col)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// mergedHeaders collapses the header rows into one label per column.
func (m *TableMatrix) mergedHeaders() []string {
	out := make([]string, m.Cols())
	for col := range out {
		var parts []string
		var last string
		for r := 0; r < m.HeaderRows; r++ {
			t := m.CellText(r, col)
			if t != "" && t != last {
				parts = append(parts, t)
				last = t
			}
		}
		out[col] = strings.Join(parts, " / ")
	}
	return out
}

func (m *TableMatrix) visibleCols(suppressEmpty bool) []int {
	var cols []int
	for col := 0; col < m.Cols(); col++ {
		if suppressEmpty && m.EmptyCols[col] {
			continue
		}
		cols = append(cols, col)
	}
	return cols
}
