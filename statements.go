package edgar

import (
	"fmt"
	"sort"
	"time"
)

// PeriodView names a reporting-period selection policy for statement
// assembly.
type PeriodView int

const (
	// CurrentPeriod selects only the most recent period.
	CurrentPeriod PeriodView = iota
	// ThreeYearAnnual selects up to three annual periods.
	ThreeYearAnnual
	// QuarterlyComparison selects up to four quarterly periods.
	QuarterlyComparison
	// AnnualComparison selects up to two annual periods.
	AnnualComparison
	// AllPeriods selects every distinct period.
	AllPeriods
)

// StatementRow is one line of an assembled statement: a concept bound to
// one cell per selected period. Abstract rows are section headers with
// blank cells.
type StatementRow struct {
	Concept    string
	Label      string
	Depth      int
	IsAbstract bool
	IsTotal    bool
	Cells      []*Fact // parallel to Statement.Periods; nil when empty
}

// Statement is a single-filing statement view for one role.
type Statement struct {
	Role    string
	Type    StatementType
	Entity  string
	Periods []time.Time
	Rows    []StatementRow
}

// Statement assembles the statement for a role under the given period
// view. A role with no presentation tree returns ErrNoPresentation.
// A role with a tree but no matching facts returns an empty statement,
// not an error.
func (d *XBRLDocument) Statement(role string, view PeriodView) (*Statement, error) {
	tree, ok := d.Presentation[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPresentation, role)
	}
	stmtType := classifyRole(role)
	calc := d.Calculation[role]

	stmt := &Statement{
		Role:   role,
		Type:   stmtType,
		Entity: d.Entity,
	}
	stmt.Periods = d.selectPeriods(tree, stmtType, view)

	tree.Walk(func(id TreeNodeID, n *PresentationNode) {
		row := StatementRow{
			Concept: n.Concept,
			Label:   d.Label(n.Concept, n.PreferredLabel),
			Depth:   n.Depth,
			Cells:   make([]*Fact, len(stmt.Periods)),
		}
		if meta, ok := d.Concepts[n.Concept]; ok && meta.Abstract {
			row.IsAbstract = true
		} else if len(n.Children) > 0 && len(d.Facts.FactsByConcept(n.Concept)) == 0 {
			// Parents without facts act as headers even when the schema
			// is unavailable
			row.IsAbstract = true
		}

		if !row.IsAbstract {
			for i, end := range stmt.Periods {
				row.Cells[i] = d.bindFact(n.Concept, end, stmtType, view)
			}
			row.IsTotal = d.isTotalRow(tree, calc, id, n)
		}
		stmt.Rows = append(stmt.Rows, row)
	})
	return stmt, nil
}

// selectPeriods chooses up to N period end dates for the statement,
// descending by period end. Balance-sheet statements consider only
// instant dates.
func (d *XBRLDocument) selectPeriods(tree *PresentationTree, stmtType StatementType, view PeriodView) []time.Time {
	wantInstant := stmtType == StatementBalance

	inTree := make(map[string]bool)
	tree.Walk(func(_ TreeNodeID, n *PresentationNode) { inTree[n.Concept] = true })

	type candidate struct {
		end    time.Time
		filed  time.Time
		bucket DurationBucket
	}
	seen := make(map[time.Time]*candidate)
	for _, f := range d.Facts.All() {
		if !inTree[f.Concept] || f.HasDimensions() {
			continue
		}
		if wantInstant != f.IsInstant() {
			continue
		}
		c, ok := seen[f.PeriodEnd]
		if !ok {
			c = &candidate{end: f.PeriodEnd, bucket: f.DurationBucket()}
			seen[f.PeriodEnd] = c
		}
		if f.FilingDate.After(c.filed) {
			c.filed = f.FilingDate
		}
		// Prefer the longest bucket reported at this end date so annual
		// views don't mistake an end date for quarterly-only
		if f.DurationBucket() > c.bucket {
			c.bucket = f.DurationBucket()
		}
	}

	var candidates []*candidate
	for _, c := range seen {
		candidates = append(candidates, c)
	}
	// Descending by period end, ties by later filing date
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].end.Equal(candidates[j].end) {
			return candidates[i].end.After(candidates[j].end)
		}
		return candidates[i].filed.After(candidates[j].filed)
	})

	limit := len(candidates)
	var want DurationBucket
	switch view {
	case CurrentPeriod:
		limit = 1
	case ThreeYearAnnual:
		limit = 3
		want = BucketAnnual
	case AnnualComparison:
		limit = 2
		want = BucketAnnual
	case QuarterlyComparison:
		limit = 4
		want = BucketQuarter
	}

	var out []time.Time
	for _, c := range candidates {
		if want != BucketOther && !wantInstant && c.bucket != want {
			continue
		}
		out = append(out, c.end)
		if len(out) == limit {
			break
		}
	}
	return out
}

// bindFact finds the fact for (concept, period end) projecting the
// default dimension member only. Duration statements prefer the bucket
// the view asks for; ties break by later filing date.
func (d *XBRLDocument) bindFact(concept string, end time.Time, stmtType StatementType, view PeriodView) *Fact {
	var want DurationBucket
	switch view {
	case ThreeYearAnnual, AnnualComparison:
		want = BucketAnnual
	case QuarterlyComparison:
		want = BucketQuarter
	}

	var best *Fact
	for _, f := range d.Facts.FactsByConcept(concept) {
		if !f.PeriodEnd.Equal(end) || f.HasDimensions() {
			continue
		}
		if stmtType == StatementBalance && !f.IsInstant() {
			continue
		}
		if best == nil {
			best = f
			continue
		}
		if want != BucketOther {
			bw, fw := best.DurationBucket() == want, f.DurationBucket() == want
			if fw && !bw {
				best = f
				continue
			}
			if bw && !fw {
				continue
			}
		}
		if f.FilingDate.After(best.FilingDate) {
			best = f
		}
	}
	return best
}

// isTotalRow applies the last-sibling-at-level heuristic, confirmed by
// the calculation tree when one is loaded for the role.
func (d *XBRLDocument) isTotalRow(tree *PresentationTree, calc *CalculationTree, id TreeNodeID, n *PresentationNode) bool {
	lastSibling := false
	if n.Parent >= 0 {
		siblings := tree.Nodes[n.Parent].Children
		lastSibling = len(siblings) > 0 && siblings[len(siblings)-1] == id
	}
	if n.PreferredLabel == LabelTotal {
		return true
	}
	if !lastSibling {
		return false
	}
	if calc != nil {
		return calc.IsTotal(n.Concept)
	}
	return true
}
