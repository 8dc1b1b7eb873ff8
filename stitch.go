package edgar

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// StitchConfig configures multi-filing stitching.
type StitchConfig struct {
	// DeriveQ4 enables fourth-quarter derivation from annual and YTD
	// facts.
	DeriveQ4 bool
	// ApplySplitAdjustments retrospectively adjusts per-share and
	// share-count facts for detected stock splits.
	ApplySplitAdjustments bool
	// PreferAnnual resolves Q4 ambiguity toward FY - YTD9 over summing
	// discrete quarters.
	PreferAnnual bool
	// Periods caps the number of distinct periods kept per concept;
	// zero means unlimited.
	Periods int

	Logger *slog.Logger
}

// DefaultStitchConfig returns the production defaults.
func DefaultStitchConfig() StitchConfig {
	return StitchConfig{
		DeriveQ4:              true,
		ApplySplitAdjustments: true,
		PreferAnnual:          true,
	}
}

// Stitch merges the facts of multiple filings of one entity into a
// single continuous store. The inputs are not modified; stitching the
// same inputs twice produces identical output.
//
// For each (concept, context, unit) key every fact is kept, but all
// except the latest-filed carry IsRestated; the visible value in any
// view is therefore always the latest filing's. Quarterization and
// split adjustment add derived facts that carry a CalculationContext
// naming the method.
func Stitch(stores []*FactStore, cfg StitchConfig) *FactStore {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Collect and order: period end descending, then filing date
	// descending, the total order the stitched view is defined over.
	var all []Fact
	for _, s := range stores {
		for _, f := range s.All() {
			all = append(all, *f)
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].PeriodEnd.Equal(all[j].PeriodEnd) {
			return all[i].PeriodEnd.After(all[j].PeriodEnd)
		}
		return all[i].FilingDate.After(all[j].FilingDate)
	})

	// Dedup pass: the first fact seen per key is the latest-filed one.
	latest := make(map[string]bool)
	for i := range all {
		key := all[i].dedupKey()
		if latest[key] {
			all[i].IsRestated = true
		} else {
			latest[key] = true
		}
	}

	if cfg.ApplySplitAdjustments {
		splits := DetectSplits(all)
		all = AdjustForSplits(all, splits)
	}

	if cfg.DeriveQ4 {
		all = append(all, deriveQuarters(all, cfg, logger)...)
	}

	out := NewFactStore()
	for _, f := range all {
		out.addStitched(f)
	}
	out.Freeze()
	return out
}

// addStitched appends without the single-filing uniqueness check:
// cross-filing duplicates are expected and already restatement-tagged.
func (s *FactStore) addStitched(f Fact) {
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
}

// yearSlot gathers one concept's duration facts for one fiscal year.
type yearSlot struct {
	q1, q2, q3, q4 *Fact
	ytd6, ytd9, fy *Fact
}

// deriveQuarters derives missing discrete quarters by subtraction:
// Q2 = YTD6 - Q1, Q3 = YTD9 - YTD6, Q4 = FY - YTD9 (fallback
// FY - (Q1+Q2+Q3)). Derivation is gated by IsAdditive; derived EPS is
// handled separately because per-share values cannot be subtracted.
func deriveQuarters(all []Fact, cfg StitchConfig, logger *slog.Logger) []Fact {
	slots := collectYearSlots(all)

	var derived []Fact
	for key, slot := range slots {
		if slot.q4 == nil && slot.fy != nil {
			if q4 := deriveQ4(slot, cfg); q4 != nil {
				derived = append(derived, *q4)
			}
		}
		if slot.q2 == nil && slot.ytd6 != nil && slot.q1 != nil {
			if f := deriveBySubtraction(slot.ytd6, slot.q1, Q2, "derived_q2_ytd6_minus_q1"); f != nil {
				derived = append(derived, *f)
			}
		}
		if slot.q3 == nil && slot.ytd9 != nil && slot.ytd6 != nil {
			if f := deriveBySubtraction(slot.ytd9, slot.ytd6, Q3, "derived_q3_ytd9_minus_ytd6"); f != nil {
				derived = append(derived, *f)
			}
		}
		_ = key
	}

	derived = append(derived, deriveQ4EPS(all, slots)...)
	if len(derived) > 0 {
		logger.Debug("quarterization complete", "derived", len(derived))
	}
	return derived
}

type slotKey struct {
	concept string
	unit    string
	year    int
}

// collectYearSlots indexes visible (non-restated, default-member)
// duration facts by concept, unit and fiscal year.
func collectYearSlots(all []Fact) map[slotKey]*yearSlot {
	slots := make(map[slotKey]*yearSlot)
	for i := range all {
		f := &all[i]
		if f.IsRestated || f.HasDimensions() || !f.IsDuration() || !f.Value.IsNumeric() {
			continue
		}
		key := slotKey{f.Concept, f.Unit.Canonical, f.FiscalYear}
		slot := slots[key]
		if slot == nil {
			slot = &yearSlot{}
			slots[key] = slot
		}
		switch f.DurationBucket() {
		case BucketAnnual:
			slot.fy = pick(slot.fy, f)
		case BucketYTD9M:
			slot.ytd9 = pick(slot.ytd9, f)
		case BucketYTD6M:
			if f.FiscalPeriod == Q2 || f.FiscalPeriod == "" {
				slot.ytd6 = pick(slot.ytd6, f)
			}
		case BucketQuarter:
			switch f.FiscalPeriod {
			case Q1:
				slot.q1 = pick(slot.q1, f)
			case Q2:
				slot.q2 = pick(slot.q2, f)
			case Q3:
				slot.q3 = pick(slot.q3, f)
			case Q4:
				slot.q4 = pick(slot.q4, f)
			}
		}
	}
	return slots
}

// pick keeps the latest-filed of two candidates.
func pick(cur, f *Fact) *Fact {
	if cur == nil || f.FilingDate.After(cur.FilingDate) {
		return f
	}
	return cur
}

// deriveQ4 computes the fourth quarter for one slot. FY - YTD9 is
// preferred; FY - (Q1+Q2+Q3) is the fallback when no YTD9 exists.
func deriveQ4(slot *yearSlot, cfg StitchConfig) *Fact {
	if !IsAdditive(slot.fy) {
		return nil
	}
	fyVal, _ := slot.fy.Value.Float64()

	if slot.ytd9 != nil && (cfg.PreferAnnual || slot.q1 == nil || slot.q2 == nil || slot.q3 == nil) {
		ytd9Val, _ := slot.ytd9.Value.Float64()
		return newDerived(slot.fy, slot.ytd9.PeriodEnd, fyVal-ytd9Val, Q4, "derived_q4_fy_minus_ytd9")
	}
	if slot.q1 != nil && slot.q2 != nil && slot.q3 != nil {
		v1, _ := slot.q1.Value.Float64()
		v2, _ := slot.q2.Value.Float64()
		v3, _ := slot.q3.Value.Float64()
		return newDerived(slot.fy, slot.q3.PeriodEnd, fyVal-v1-v2-v3, Q4, "derived_q4_fy_minus_q1q2q3")
	}
	if slot.ytd9 != nil {
		ytd9Val, _ := slot.ytd9.Value.Float64()
		return newDerived(slot.fy, slot.ytd9.PeriodEnd, fyVal-ytd9Val, Q4, "derived_q4_fy_minus_ytd9")
	}
	return nil
}

// deriveBySubtraction derives a discrete quarter as whole - part. The
// part must start the same fiscal year as the whole.
func deriveBySubtraction(whole, part *Fact, period FiscalPeriod, calcContext string) *Fact {
	if !IsAdditive(whole) {
		return nil
	}
	if !whole.PeriodStart.Equal(part.PeriodStart) {
		return nil
	}
	wv, _ := whole.Value.Float64()
	pv, _ := part.Value.Float64()
	return newDerived(whole, part.PeriodEnd, wv-pv, period, calcContext)
}

// newDerived builds a derived fact covering (prevEnd, base.PeriodEnd],
// carrying the base fact's full provenance plus the calculation context.
func newDerived(base *Fact, prevEnd time.Time, value float64, period FiscalPeriod, calcContext string) *Fact {
	f := *base
	f.Context = nil
	f.PeriodStart = prevEnd.AddDate(0, 0, 1)
	f.FiscalPeriod = period
	f.RawValue = formatNumber(value)
	f.Value = Value{Kind: base.Value.Kind, Num: value}
	f.IsRestated = false
	f.IsEstimated = true
	f.Quality = QualityMedium
	f.CalculationContext = fmt.Sprintf("%s accessions=%s", calcContext, base.Accession)
	return &f
}

// Weighted-average-share and EPS concepts involved in derived Q4 EPS.
var (
	epsConcepts = map[string]string{
		"us-gaap:EarningsPerShareBasic":   "us-gaap:WeightedAverageNumberOfSharesOutstandingBasic",
		"us-gaap:EarningsPerShareDiluted": "us-gaap:WeightedAverageNumberOfDilutedSharesOutstanding",
	}
	netIncomeConcept = "us-gaap:NetIncomeLoss"
)

// deriveQ4EPS computes fourth-quarter EPS, which cannot be derived by
// subtraction. Q4 net income comes from the additive derivation; Q4
// weighted average shares is 4*FY - 3*YTD9 (falling back to FY shares
// when no YTD9 shares exist). Non-positive derived shares flag the
// result quality LOW.
func deriveQ4EPS(all []Fact, slots map[slotKey]*yearSlot) []Fact {
	// Index derived and reported Q4 net income by (unit, year)
	years := make(map[int]bool)
	for key := range slots {
		years[key.year] = true
	}

	var out []Fact
	for epsConcept, wasConcept := range epsConcepts {
		for year := range years {
			epsSlot := findSlot(slots, epsConcept, year)
			if epsSlot == nil || epsSlot.q4 != nil || epsSlot.fy == nil {
				continue
			}
			niSlot := findSlot(slots, netIncomeConcept, year)
			if niSlot == nil || niSlot.fy == nil || niSlot.ytd9 == nil {
				continue
			}
			wasSlot := findSlot(slots, wasConcept, year)
			if wasSlot == nil || wasSlot.fy == nil {
				continue
			}

			fyNI, _ := niSlot.fy.Value.Float64()
			ytd9NI, _ := niSlot.ytd9.Value.Float64()
			q4NI := fyNI - ytd9NI

			fyWAS, _ := wasSlot.fy.Value.Float64()
			var q4WAS float64
			method := "derived_q4_eps_fy_minus_ytd9"
			if wasSlot.ytd9 != nil {
				ytd9WAS, _ := wasSlot.ytd9.Value.Float64()
				q4WAS = 4*fyWAS - 3*ytd9WAS
			} else {
				q4WAS = fyWAS
				method = "derived_q4_eps_fy_shares_fallback"
			}

			f := newDerived(epsSlot.fy, niSlot.ytd9.PeriodEnd, 0, Q4, method)
			if q4WAS <= 0 {
				f.Quality = QualityLow
				f.Value = PerShareValue(0)
				f.RawValue = "0"
			} else {
				eps := q4NI / q4WAS
				f.Value = PerShareValue(eps)
				f.RawValue = formatNumber(eps)
			}
			out = append(out, *f)
		}
	}
	return out
}

func findSlot(slots map[slotKey]*yearSlot, concept string, year int) *yearSlot {
	for key, slot := range slots {
		if key.year == year && key.concept == concept {
			return slot
		}
	}
	return nil
}

// TrailingTwelveMonths sums the four most recent visible quarterly
// values of a concept, using a derived Q4 when the latest period is
// annual. Returns false when fewer than four additive quarters exist.
func TrailingTwelveMonths(store *FactStore, concept string) (float64, bool) {
	var quarters []*Fact
	for _, f := range store.FactsByConcept(concept) {
		if f.IsRestated || f.HasDimensions() || !f.Value.IsNumeric() {
			continue
		}
		if f.DurationBucket() != BucketQuarter {
			continue
		}
		if !IsAdditive(f) {
			return 0, false
		}
		quarters = append(quarters, f)
	}
	sort.Slice(quarters, func(i, j int) bool {
		return quarters[i].PeriodEnd.After(quarters[j].PeriodEnd)
	})
	// Keep one fact per period end (latest filed first is already the
	// visible one)
	var distinct []*Fact
	seen := make(map[time.Time]bool)
	for _, f := range quarters {
		if !seen[f.PeriodEnd] {
			seen[f.PeriodEnd] = true
			distinct = append(distinct, f)
		}
	}
	if len(distinct) < 4 {
		return 0, false
	}
	sum := 0.0
	for _, f := range distinct[:4] {
		v, _ := f.Value.Float64()
		sum += v
	}
	return sum, true
}

// StitchedCalculationContexts lists the distinct derivation methods
// present in a store, useful for auditing.
func StitchedCalculationContexts(store *FactStore) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range store.All() {
		if f.CalculationContext == "" {
			continue
		}
		method := f.CalculationContext
		if i := strings.Index(method, " "); i > 0 {
			method = method[:i]
		}
		if !seen[method] {
			seen[method] = true
			out = append(out, method)
		}
	}
	sort.Strings(out)
	return out
}
