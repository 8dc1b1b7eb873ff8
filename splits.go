package edgar

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Concepts filers use to report a stock split ratio.
var splitRatioConcepts = map[string]bool{
	"us-gaap:StockholdersEquityNoteStockSplitConversionRatio1": true,
	"us-gaap:StockholdersEquityNoteStockSplitConversionRatio":  true,
	"us-gaap:StockSplitConversionRatio":                        true,
}

// StockSplit is one detected split event.
type StockSplit struct {
	// Effective is the split date, taken from the reporting fact's
	// period end.
	Effective time.Time
	// Ratio is new shares per old share; 10 for a 10-for-1 split.
	Ratio float64
	// Accession of the filing that reported the split.
	Accession string
}

// maxSplitReportingLag bounds how stale a split-ratio fact may be.
// Filers restate the ratio in later filings' comparative periods; only
// the contemporaneous report marks the actual event.
const maxSplitReportingLag = 280 * 24 * time.Hour

// DetectSplits scans facts for split-ratio reports and returns the
// distinct split events, ascending by effective date.
//
// A ratio fact qualifies only when it was filed within 280 days of its
// period end and its period is an instant or at most 31 days long.
// Ratios of 1 or less are ignored. Re-reports of the same event in
// later filings dedupe on (effective year, ratio).
func DetectSplits(facts []Fact) []StockSplit {
	type eventKey struct {
		year  int
		ratio float64
	}
	seen := make(map[eventKey]bool)

	var splits []StockSplit
	for i := range facts {
		f := &facts[i]
		if !splitRatioConcepts[f.Concept] {
			continue
		}
		ratio, ok := f.Value.Float64()
		if !ok || ratio <= 1 {
			continue
		}
		if f.IsDuration() && f.PeriodEnd.Sub(f.PeriodStart) > 31*24*time.Hour {
			continue
		}
		if f.FilingDate.Sub(f.PeriodEnd) > maxSplitReportingLag {
			continue
		}
		key := eventKey{f.PeriodEnd.Year(), ratio}
		if seen[key] {
			continue
		}
		seen[key] = true
		splits = append(splits, StockSplit{
			Effective: f.PeriodEnd,
			Ratio:     ratio,
			Accession: f.Accession,
		})
	}
	sort.Slice(splits, func(i, j int) bool {
		return splits[i].Effective.Before(splits[j].Effective)
	})
	return splits
}

// AdjustForSplits restates per-share and share-count facts filed before
// a split onto the post-split basis. The original as-filed fact is
// retained and marked IsRestated; the adjusted value is appended as a
// new visible fact carrying a CalculationContext of the form
// "split_adj_ratio_10.00".
//
// A fact is adjusted by the cumulative ratio of every split effective
// after its period end, unless the fact was filed after the split:
// issuers restate post-split filings on the new basis themselves.
// Per-share values divide by the ratio; share counts multiply.
// Already-adjusted and already-restated facts are skipped, so the
// operation is idempotent.
func AdjustForSplits(facts []Fact, splits []StockSplit) []Fact {
	if len(splits) == 0 {
		return facts
	}
	out := make([]Fact, len(facts))
	copy(out, facts)

	var adjustedFacts []Fact
	for i := range out {
		f := &out[i]
		if f.IsRestated || strings.HasPrefix(f.CalculationContext, "split_adj_") {
			continue
		}
		if !f.Value.IsNumeric() {
			continue
		}
		var direction float64
		switch f.Unit.Kind {
		case UnitPerShare:
			direction = -1
		case UnitShares:
			direction = 1
		default:
			continue
		}

		ratio := 1.0
		for _, s := range splits {
			if !s.Effective.After(f.PeriodEnd) {
				continue
			}
			if !f.FilingDate.IsZero() && f.FilingDate.After(s.Effective) {
				continue
			}
			ratio *= s.Ratio
		}
		if ratio == 1 {
			continue
		}

		v, _ := f.Value.Float64()
		if direction < 0 {
			v /= ratio
		} else {
			v *= ratio
		}
		adjusted := *f
		adjusted.Value.Num = v
		adjusted.RawValue = formatNumber(v)
		adjusted.CalculationContext = fmt.Sprintf("split_adj_ratio_%.2f", ratio)
		f.IsRestated = true
		adjustedFacts = append(adjustedFacts, adjusted)
	}
	return append(out, adjustedFacts...)
}

// SplitAdjust is the store-level convenience: detect splits among the
// store's own facts and return a new frozen store with the history on
// the current share basis.
func SplitAdjust(store *FactStore) *FactStore {
	all := make([]Fact, 0, store.Len())
	for _, f := range store.All() {
		all = append(all, *f)
	}
	adjusted := AdjustForSplits(all, DetectSplits(all))
	out := NewFactStore()
	for _, f := range adjusted {
		out.addStitched(f)
	}
	out.Freeze()
	return out
}
