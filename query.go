package edgar

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FactQuery is an immutable fluent query over a FactStore. Every filter
// returns a new builder; a builder can be terminalized any number of
// times and always produces the same result. No filter mutates the
// store.
type FactQuery struct {
	store   *FactStore
	labeler func(concept string) string

	concept      string
	conceptExact bool
	label        string
	labelFuzzy   bool

	fiscalYear   int
	fiscalPeriod FiscalPeriod

	dateFrom time.Time
	dateTo   time.Time
	asOf     time.Time

	highQuality   bool
	minConfidence float64
	hasMinConf    bool

	statementType StatementType
	hasStatement  bool
	formTypes     []string

	limit         int
	latestPeriods int
}

// clone copies the builder so filters never mutate shared state.
func (q *FactQuery) clone() *FactQuery {
	c := *q
	c.formTypes = append([]string(nil), q.formTypes...)
	return &c
}

// WithLabeler installs a concept-to-label resolver used by ByLabel and
// the rendering terminals. Defaults to pretty-printing the local name.
func (q *FactQuery) WithLabeler(fn func(concept string) string) *FactQuery {
	c := q.clone()
	c.labeler = fn
	return c
}

// ByConcept filters by concept name. With exact=false the match is
// smart: exact first, then case-insensitive, then substring on the
// local name.
func (q *FactQuery) ByConcept(concept string, exact bool) *FactQuery {
	c := q.clone()
	c.concept = concept
	c.conceptExact = exact
	return c
}

// ByLabel filters by resolved label. Fuzzy matching is case-insensitive
// substring over the label text.
func (q *FactQuery) ByLabel(label string, fuzzy bool) *FactQuery {
	c := q.clone()
	c.label = label
	c.labelFuzzy = fuzzy
	return c
}

// ByFiscalYear keeps facts for one fiscal year.
func (q *FactQuery) ByFiscalYear(year int) *FactQuery {
	c := q.clone()
	c.fiscalYear = year
	return c
}

// ByFiscalPeriod keeps facts for one fiscal period (FY, Q1..Q4).
func (q *FactQuery) ByFiscalPeriod(p FiscalPeriod) *FactQuery {
	c := q.clone()
	c.fiscalPeriod = p
	return c
}

// DateRange keeps facts whose period end falls in [from, to].
func (q *FactQuery) DateRange(from, to time.Time) *FactQuery {
	c := q.clone()
	c.dateFrom = from
	c.dateTo = to
	return c
}

// AsOf keeps facts filed on or before d: the store as it would have
// looked at that date.
func (q *FactQuery) AsOf(d time.Time) *FactQuery {
	c := q.clone()
	c.asOf = d
	return c
}

// HighQualityOnly keeps facts graded HIGH.
func (q *FactQuery) HighQualityOnly() *FactQuery {
	c := q.clone()
	c.highQuality = true
	return c
}

// MinConfidence keeps facts with confidence >= t.
func (q *FactQuery) MinConfidence(t float64) *FactQuery {
	c := q.clone()
	c.minConfidence = t
	c.hasMinConf = true
	return c
}

// ByStatementType keeps facts classified under one statement.
func (q *FactQuery) ByStatementType(st StatementType) *FactQuery {
	c := q.clone()
	c.statementType = st
	c.hasStatement = true
	return c
}

// ByFormType keeps facts from the given form types.
func (q *FactQuery) ByFormType(forms ...string) *FactQuery {
	c := q.clone()
	c.formTypes = append(c.formTypes, forms...)
	return c
}

// Latest keeps the n facts with the most recent period ends.
func (q *FactQuery) Latest(n int) *FactQuery {
	c := q.clone()
	c.limit = n
	return c
}

// LatestPeriods keeps facts belonging to the n most recent distinct
// period end dates.
func (q *FactQuery) LatestPeriods(n int) *FactQuery {
	c := q.clone()
	c.latestPeriods = n
	return c
}

func (q *FactQuery) labelFor(concept string) string {
	if q.labeler != nil {
		return q.labeler(concept)
	}
	return PrettyLabel(concept)
}

func (q *FactQuery) matches(f *Fact) bool {
	if q.concept != "" {
		if q.conceptExact {
			if f.Concept != q.concept {
				return false
			}
		} else if !smartConceptMatch(f.Concept, q.concept) {
			return false
		}
	}
	if q.label != "" {
		lbl := q.labelFor(f.Concept)
		if q.labelFuzzy {
			if !strings.Contains(strings.ToLower(lbl), strings.ToLower(q.label)) {
				return false
			}
		} else if lbl != q.label {
			return false
		}
	}
	if q.fiscalYear != 0 && f.FiscalYear != q.fiscalYear {
		return false
	}
	if q.fiscalPeriod != "" && f.FiscalPeriod != q.fiscalPeriod {
		return false
	}
	if !q.dateFrom.IsZero() && f.PeriodEnd.Before(q.dateFrom) {
		return false
	}
	if !q.dateTo.IsZero() && f.PeriodEnd.After(q.dateTo) {
		return false
	}
	if !q.asOf.IsZero() && f.FilingDate.After(q.asOf) {
		return false
	}
	if q.highQuality && f.Quality != QualityHigh {
		return false
	}
	if q.hasMinConf && f.Confidence < q.minConfidence {
		return false
	}
	if q.hasStatement && f.StatementType != q.statementType {
		return false
	}
	if len(q.formTypes) > 0 {
		found := false
		for _, ft := range q.formTypes {
			if f.FormType == ft {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// candidates picks the narrowest index available before falling back to
// a full scan.
func (q *FactQuery) candidates() []*Fact {
	s := q.store
	if q.concept != "" && q.conceptExact {
		return s.FactsByConcept(q.concept)
	}
	if q.fiscalYear != 0 && q.fiscalPeriod != "" {
		return s.FactsByFiscal(q.fiscalYear, q.fiscalPeriod)
	}
	if q.hasStatement {
		return s.FactsByStatement(q.statementType)
	}
	if len(q.formTypes) == 1 {
		return s.FactsByForm(q.formTypes[0])
	}
	return s.All()
}

// Execute runs the query. Results are ordered by period end descending,
// ties broken by later filing date.
func (q *FactQuery) Execute() []*Fact {
	var out []*Fact
	for _, f := range q.candidates() {
		if q.matches(f) {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PeriodEnd.Equal(out[j].PeriodEnd) {
			return out[i].PeriodEnd.After(out[j].PeriodEnd)
		}
		return out[i].FilingDate.After(out[j].FilingDate)
	})

	if q.latestPeriods > 0 {
		seen := make(map[time.Time]bool)
		var trimmed []*Fact
		for _, f := range out {
			if !seen[f.PeriodEnd] {
				if len(seen) == q.latestPeriods {
					continue
				}
				seen[f.PeriodEnd] = true
			}
			if seen[f.PeriodEnd] {
				trimmed = append(trimmed, f)
			}
		}
		out = trimmed
	}
	if q.limit > 0 && len(out) > q.limit {
		out = out[:q.limit]
	}
	return out
}

// First returns the first result, or an error if the query is empty.
func (q *FactQuery) First() (*Fact, error) {
	res := q.Execute()
	if len(res) == 0 {
		return nil, fmt.Errorf("no facts found")
	}
	return res[0], nil
}

// MostRecent is First over results already ordered newest-first.
func (q *FactQuery) MostRecent() (*Fact, error) { return q.First() }

// PivotByPeriod groups results into label rows with one column per
// distinct period end, newest first.
func (q *FactQuery) PivotByPeriod() *Pivot {
	results := q.Execute()

	var periods []time.Time
	seen := make(map[time.Time]bool)
	for _, f := range results {
		if !seen[f.PeriodEnd] {
			seen[f.PeriodEnd] = true
			periods = append(periods, f.PeriodEnd)
		}
	}

	colOf := make(map[time.Time]int, len(periods))
	for i, p := range periods {
		colOf[p] = i
	}

	p := &Pivot{Periods: periods}
	rowOf := make(map[string]int)
	for _, f := range results {
		label := q.labelFor(f.Concept)
		ri, ok := rowOf[label]
		if !ok {
			ri = len(p.Rows)
			rowOf[label] = ri
			p.Rows = append(p.Rows, PivotRow{
				Label:   label,
				Concept: f.Concept,
				Cells:   make([]*Fact, len(periods)),
			})
		}
		ci := colOf[f.PeriodEnd]
		// Newest filing wins; Execute ordering guarantees the first
		// fact seen per cell is the latest-filed one.
		if p.Rows[ri].Cells[ci] == nil {
			p.Rows[ri].Cells[ci] = f
		}
	}
	return p
}

// Pivot is a label-by-period view of query results.
type Pivot struct {
	Periods []time.Time
	Rows    []PivotRow
}

// PivotRow is one concept across the pivot's periods.
type PivotRow struct {
	Label   string
	Concept string
	Cells   []*Fact
}

// ToCSV renders results as CSV: label plus one column per period.
func (q *FactQuery) ToCSV() string {
	p := q.PivotByPeriod()
	var b strings.Builder
	b.WriteString("label")
	for _, period := range p.Periods {
		b.WriteByte(',')
		b.WriteString(period.Format("2006-01-02"))
	}
	b.WriteByte('\n')
	for _, row := range p.Rows {
		b.WriteString(csvEscape(row.Label))
		for _, cell := range row.Cells {
			b.WriteByte(',')
			if cell != nil {
				if v, ok := cell.Value.Float64(); ok {
					b.WriteString(formatNumber(v))
				} else {
					b.WriteString(csvEscape(cell.RawValue))
				}
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// ToLLMContext renders results as a compact markdown block suitable for
// prompting: one line per fact with concept, period, value and
// provenance.
func (q *FactQuery) ToLLMContext() string {
	results := q.Execute()
	var b strings.Builder
	for _, f := range results {
		b.WriteString("- ")
		b.WriteString(q.labelFor(f.Concept))
		b.WriteString(" (")
		b.WriteString(f.PeriodLabel())
		b.WriteString("): ")
		if v, ok := f.Value.Float64(); ok {
			b.WriteString(formatNumber(v))
			if f.Unit.Canonical != "" {
				b.WriteByte(' ')
				b.WriteString(f.Unit.Canonical)
			}
		} else {
			b.WriteString(f.RawValue)
		}
		if f.FormType != "" {
			fmt.Fprintf(&b, " [%s filed %s]", f.FormType, f.FilingDate.Format("2006-01-02"))
		}
		if f.CalculationContext != "" {
			fmt.Fprintf(&b, " (derived: %s)", f.CalculationContext)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// smartConceptMatch implements non-exact concept matching: exact, then
// case-insensitive, then substring on the local name.
func smartConceptMatch(concept, pattern string) bool {
	if concept == pattern {
		return true
	}
	if strings.EqualFold(concept, pattern) {
		return true
	}
	local := concept
	if i := strings.Index(local, ":"); i >= 0 {
		local = local[i+1:]
	}
	return strings.Contains(strings.ToLower(local), strings.ToLower(pattern))
}

// PrettyLabel turns an XBRL local name into a readable label:
// "us-gaap:AccountsPayableCurrent" -> "Accounts Payable Current".
func PrettyLabel(concept string) string {
	local := concept
	if i := strings.Index(local, ":"); i >= 0 {
		local = local[i+1:]
	}
	var b strings.Builder
	for i, r := range local {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := rune(local[i-1])
			if prev < 'A' || prev > 'Z' {
				b.WriteByte(' ')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

func csvEscape(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
