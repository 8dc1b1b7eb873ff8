package edgar

import (
	"fmt"
	"sort"
	"time"
)

type periodKey struct {
	start time.Time
	end   time.Time
}

type fiscalKey struct {
	year   int
	period FiscalPeriod
}

// FactStore is an in-memory, index-backed collection of facts. It is
// append-only during ingestion of a single filing or one entity-facts
// download; after Freeze it is immutable and safe to share across
// goroutines for reads.
type FactStore struct {
	facts  []Fact
	frozen bool

	byConcept   map[string][]int
	byPeriod    map[periodKey][]int
	byStatement map[StatementType][]int
	byForm      map[string][]int
	byFiscal    map[fiscalKey][]int

	// numericSeen enforces the single-filing uniqueness invariant:
	// at most one numeric fact per (concept, context, unit).
	numericSeen map[string]int
}

// NewFactStore returns an empty store ready for ingestion.
func NewFactStore() *FactStore {
	return &FactStore{
		byConcept:   make(map[string][]int),
		byPeriod:    make(map[periodKey][]int),
		byStatement: make(map[StatementType][]int),
		byForm:      make(map[string][]int),
		byFiscal:    make(map[fiscalKey][]int),
		numericSeen: make(map[string]int),
	}
}

// ErrFrozen is returned by Add after the store has been frozen.
var ErrFrozen = fmt.Errorf("fact store is frozen")

// Add appends a fact and updates every index. Within one store a numeric
// (concept, context, unit) may appear only once; a collision with a
// different value is a parse error. Identical duplicates (common when a
// value renders twice in an iXBRL document) are silently dropped.
func (s *FactStore) Add(f Fact) error {
	if s.frozen {
		return ErrFrozen
	}

	if f.Value.IsNumeric() {
		key := f.dedupKey()
		if prev, ok := s.numericSeen[key]; ok {
			if s.facts[prev].RawValue == f.RawValue {
				return nil
			}
			return fmt.Errorf("duplicate numeric fact %s for period %s with conflicting values %q and %q",
				f.Concept, f.PeriodLabel(), s.facts[prev].RawValue, f.RawValue)
		}
		s.numericSeen[key] = len(s.facts)
	}

	id := len(s.facts)
	s.facts = append(s.facts, f)

	s.byConcept[f.Concept] = append(s.byConcept[f.Concept], id)
	s.byPeriod[periodKey{f.PeriodStart, f.PeriodEnd}] = append(s.byPeriod[periodKey{f.PeriodStart, f.PeriodEnd}], id)
	s.byStatement[f.StatementType] = append(s.byStatement[f.StatementType], id)
	if f.FormType != "" {
		s.byForm[f.FormType] = append(s.byForm[f.FormType], id)
	}
	if f.FiscalYear != 0 && f.FiscalPeriod != "" {
		fk := fiscalKey{f.FiscalYear, f.FiscalPeriod}
		s.byFiscal[fk] = append(s.byFiscal[fk], id)
	}
	return nil
}

// Freeze ends ingestion. Subsequent Add calls fail with ErrFrozen.
func (s *FactStore) Freeze() { s.frozen = true }

// Frozen reports whether ingestion has ended.
func (s *FactStore) Frozen() bool { return s.frozen }

// Len returns the number of facts in the store.
func (s *FactStore) Len() int { return len(s.facts) }

// Fact returns the fact with the given id. Ids are dense and stable.
func (s *FactStore) Fact(id int) *Fact {
	return &s.facts[id]
}

// All returns every fact in document order.
func (s *FactStore) All() []*Fact {
	out := make([]*Fact, len(s.facts))
	for i := range s.facts {
		out[i] = &s.facts[i]
	}
	return out
}

// Concepts returns the distinct concept names present, sorted.
func (s *FactStore) Concepts() []string {
	out := make([]string, 0, len(s.byConcept))
	for c := range s.byConcept {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// FactsByConcept returns the facts reported against a concept in
// document order. Missing concepts yield an empty slice, not an error.
func (s *FactStore) FactsByConcept(concept string) []*Fact {
	return s.resolve(s.byConcept[concept])
}

// FactsByFiscal returns facts for a fiscal (year, period) pair.
func (s *FactStore) FactsByFiscal(year int, period FiscalPeriod) []*Fact {
	return s.resolve(s.byFiscal[fiscalKey{year, period}])
}

// FactsByStatement returns facts classified under a statement type.
func (s *FactStore) FactsByStatement(st StatementType) []*Fact {
	return s.resolve(s.byStatement[st])
}

// FactsByForm returns facts with the given filing form type.
func (s *FactStore) FactsByForm(form string) []*Fact {
	return s.resolve(s.byForm[form])
}

// FactsByPeriod returns facts for an exact (start, end) period.
func (s *FactStore) FactsByPeriod(start, end time.Time) []*Fact {
	return s.resolve(s.byPeriod[periodKey{start, end}])
}

// PeriodEnds returns the distinct period end dates, descending.
func (s *FactStore) PeriodEnds() []time.Time {
	seen := make(map[time.Time]bool)
	var ends []time.Time
	for k := range s.byPeriod {
		if !seen[k.end] && !k.end.IsZero() {
			seen[k.end] = true
			ends = append(ends, k.end)
		}
	}
	sort.Slice(ends, func(i, j int) bool { return ends[i].After(ends[j]) })
	return ends
}

func (s *FactStore) resolve(ids []int) []*Fact {
	out := make([]*Fact, 0, len(ids))
	for _, id := range ids {
		out = append(out, &s.facts[id])
	}
	return out
}

// reindexFiscal rebuilds the fiscal index after parse-time enrichment
// (dei document focus is only known once the whole instance is read).
func (s *FactStore) reindexFiscal() {
	s.byFiscal = make(map[fiscalKey][]int)
	for id := range s.facts {
		f := &s.facts[id]
		if f.FiscalYear != 0 && f.FiscalPeriod != "" {
			fk := fiscalKey{f.FiscalYear, f.FiscalPeriod}
			s.byFiscal[fk] = append(s.byFiscal[fk], id)
		}
	}
}

// Query starts a fluent query over the store. See FactQuery.
func (s *FactStore) Query() *FactQuery {
	return &FactQuery{store: s}
}
