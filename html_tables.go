package edgar

import (
	"strconv"

	"golang.org/x/net/html"
)

// TableCell is one original HTML cell. Grid positions covered by a
// colspan/rowspan all point at the same TableCell, so expansion
// preserves cell identity.
type TableCell struct {
	Text    string
	Row     int // origin position
	Col     int
	ColSpan int
	RowSpan int

	IsHeader  bool
	IsNumeric bool
	Quality   DataQuality
}

// TableMatrix is a rectangular expansion of an HTML table. Every grid
// slot holds a cell pointer; slots under a span share the origin cell.
type TableMatrix struct {
	Grid [][]*TableCell
	// HeaderRows counts leading header rows. Each header row is kept
	// separately; renderers merge them.
	HeaderRows int
	// NumericCols marks columns where numeric values are the majority of
	// non-empty cells.
	NumericCols []bool
	// EmptyCols marks columns with no content at all. They are kept in
	// the grid so column positions stay aligned with the source document.
	EmptyCols []bool
}

// Rows returns the row count.
func (m *TableMatrix) Rows() int { return len(m.Grid) }

// Cols returns the column count; the grid is rectangular.
func (m *TableMatrix) Cols() int {
	if len(m.Grid) == 0 {
		return 0
	}
	return len(m.Grid[0])
}

// Cell returns the origin cell covering a grid slot, nil when the slot
// is empty.
func (m *TableMatrix) Cell(row, col int) *TableCell {
	if row < 0 || row >= len(m.Grid) || col < 0 || col >= len(m.Grid[row]) {
		return nil
	}
	return m.Grid[row][col]
}

// CellText returns the text at a grid slot, empty for uncovered slots.
func (m *TableMatrix) CellText(row, col int) string {
	if c := m.Cell(row, col); c != nil {
		return c.Text
	}
	return ""
}

// extractTableMatrix expands an HTML table element into a TableMatrix.
// Returns nil for tables with no rows.
func extractTableMatrix(table *html.Node) *TableMatrix {
	rows := findTableRows(table)
	if len(rows) == 0 {
		return nil
	}

	m := &TableMatrix{}
	// spanFill[col] holds a cell whose rowspan still covers upcoming rows,
	// with the remaining count.
	type carry struct {
		cell *TableCell
		left int
	}
	var spanFill []carry

	for rowIdx, tr := range rows {
		var row []*TableCell
		col := 0
		nextCell := tr.FirstChild

		takeCarry := func() bool {
			if col < len(spanFill) && spanFill[col].left > 0 {
				row = append(row, spanFill[col].cell)
				spanFill[col].left--
				col++
				return true
			}
			return false
		}

		for nextCell != nil || (col < len(spanFill) && spanFill[col].left > 0) {
			if takeCarry() {
				continue
			}
			n := nextCell
			for n != nil && !(n.Type == html.ElementNode && (n.Data == "td" || n.Data == "th")) {
				n = n.NextSibling
			}
			if n == nil {
				if col < len(spanFill) && spanFill[col].left > 0 {
					continue
				}
				break
			}
			nextCell = n.NextSibling

			cell := &TableCell{
				Text:     CleanExtractedText(extractText(n)),
				Row:      rowIdx,
				Col:      col,
				ColSpan:  spanAttr(n, "colspan"),
				RowSpan:  spanAttr(n, "rowspan"),
				IsHeader: n.Data == "th",
				Quality:  QualityHigh,
			}
			for i := 0; i < cell.ColSpan; i++ {
				row = append(row, cell)
				for col >= len(spanFill) {
					spanFill = append(spanFill, carry{})
				}
				if cell.RowSpan > 1 {
					spanFill[col] = carry{cell: cell, left: cell.RowSpan - 1}
				}
				col++
			}
		}
		// Rowspan carries past the row's last cell still occupy their
		// columns
		for ; col < len(spanFill); col++ {
			if spanFill[col].left > 0 {
				row = append(row, spanFill[col].cell)
				spanFill[col].left--
			} else {
				row = append(row, nil)
			}
		}
		m.Grid = append(m.Grid, row)
	}

	squareOff(m)
	m.HeaderRows = countHeaderRows(m)
	mergeCurrencyColumns(m)
	classifyColumns(m)
	return m
}

// findTableRows returns the direct tr elements of a table, descending
// through thead/tbody/tfoot but not into nested tables.
func findTableRows(table *html.Node) []*html.Node {
	var rows []*html.Node
	var f func(*html.Node)
	f = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "tr":
				rows = append(rows, c)
			case "thead", "tbody", "tfoot":
				f(c)
			}
		}
	}
	f(table)
	return rows
}

func spanAttr(n *html.Node, key string) int {
	v, err := strconv.Atoi(htmlAttr(n, key))
	if err != nil || v < 1 {
		return 1
	}
	// Span bombs appear in malformed filings
	if v > 1000 {
		return 1
	}
	return v
}

// squareOff pads short rows so the grid is rectangular.
func squareOff(m *TableMatrix) {
	width := 0
	for _, row := range m.Grid {
		if len(row) > width {
			width = len(row)
		}
	}
	for i, row := range m.Grid {
		for len(row) < width {
			row = append(row, nil)
		}
		m.Grid[i] = row
	}
}

// countHeaderRows counts leading rows that are all-th or all
// non-numeric, capped at 3. Multi-row headers are common in statement
// tables (period label over date over unit note).
func countHeaderRows(m *TableMatrix) int {
	count := 0
	for _, row := range m.Grid {
		if count == 3 {
			break
		}
		nonEmpty, headerish := 0, 0
		for _, c := range row {
			if c == nil || c.Text == "" {
				continue
			}
			nonEmpty++
			if _, ok := parseNumeric(c.Text); c.IsHeader || !ok {
				headerish++
			}
		}
		if nonEmpty == 0 || headerish < nonEmpty {
			break
		}
		count++
		for _, c := range row {
			if c != nil {
				c.IsHeader = true
			}
		}
	}
	return count
}

// mergeCurrencyColumns folds a column that holds only "$" (or ")" on
// the other side) into its numeric neighbor, the layout filings use to
// align currency symbols.
func mergeCurrencyColumns(m *TableMatrix) {
	cols := m.Cols()
	drop := make([]bool, cols)
	for col := 0; col < cols-1; col++ {
		if !isSymbolColumn(m, col, "$") {
			continue
		}
		drop[col] = true
		for row := m.HeaderRows; row < len(m.Grid); row++ {
			sym := m.Grid[row][col]
			val := m.Grid[row][col+1]
			if sym != nil && sym.Text != "" && val != nil && val.Text != "" {
				val.Text = sym.Text + val.Text
			}
		}
	}
	for col := 1; col < cols; col++ {
		if isSymbolColumn(m, col, ")") && !drop[col] {
			drop[col] = true
			for row := m.HeaderRows; row < len(m.Grid); row++ {
				sym := m.Grid[row][col]
				val := m.Grid[row][col-1]
				if sym != nil && sym.Text != "" && val != nil && val.Text != "" {
					val.Text += sym.Text
				}
			}
		}
	}
	if !anyTrue(drop) {
		return
	}
	for i, row := range m.Grid {
		var kept []*TableCell
		for col, c := range row {
			if !drop[col] {
				kept = append(kept, c)
			}
		}
		m.Grid[i] = kept
	}
}

func isSymbolColumn(m *TableMatrix, col int, sym string) bool {
	nonEmpty, matches := 0, 0
	for row := m.HeaderRows; row < len(m.Grid); row++ {
		c := m.Grid[row][col]
		if c == nil || c.Text == "" {
			continue
		}
		nonEmpty++
		if c.Text == sym {
			matches++
		}
	}
	return nonEmpty > 0 && matches == nonEmpty
}

func anyTrue(bs []bool) bool {
	for _, b := range bs {
		if b {
			return true
		}
	}
	return false
}

// classifyColumns computes the numeric-majority and empty flags. A
// column that is entirely empty below the headers keeps its place and
// its cells grade quality LOW; dropping it would misalign period
// columns against the header row.
func classifyColumns(m *TableMatrix) {
	cols := m.Cols()
	m.NumericCols = make([]bool, cols)
	m.EmptyCols = make([]bool, cols)
	for col := 0; col < cols; col++ {
		nonEmpty, numeric := 0, 0
		for row := m.HeaderRows; row < len(m.Grid); row++ {
			c := m.Grid[row][col]
			if c == nil || c.Text == "" {
				continue
			}
			nonEmpty++
			if _, ok := parseNumeric(c.Text); ok {
				numeric++
				c.IsNumeric = true
			}
		}
		if nonEmpty == 0 {
			m.EmptyCols[col] = true
			for row := range m.Grid {
				if c := m.Grid[row][col]; c != nil {
					c.Quality = QualityLow
				}
			}
			continue
		}
		m.NumericCols[col] = numeric*2 > nonEmpty
	}
}
