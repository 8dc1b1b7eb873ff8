package edgar

import (
	"strings"
	"time"
)

// UnitKind classifies a canonical unit for additivity and rendering decisions.
type UnitKind int

const (
	UnitUnknown UnitKind = iota
	UnitMonetary
	UnitShares
	UnitPerShare
	UnitRatio
	UnitCompound
)

// Unit is a canonicalized XBRL measure. Canonical forms look like
// "USD", "shares", "USD/share", "pure", or "USD * shares".
type Unit struct {
	Canonical string
	Kind      UnitKind

	// For divide units: numerator and denominator canonical measures.
	Numerator   string
	Denominator string
}

// CanonicalMeasure strips taxonomy prefixes from a single XBRL measure and
// folds currency codes to upper case.
// Examples: "iso4217:USD" -> "USD", "xbrli:shares" -> "shares",
// "xbrli:pure" -> "pure".
func CanonicalMeasure(measure string) string {
	m := strings.TrimSpace(measure)
	if i := strings.LastIndex(m, ":"); i >= 0 {
		prefix := m[:i]
		local := m[i+1:]
		// ISO currency codes are always upper case
		if strings.Contains(strings.ToLower(prefix), "iso4217") {
			return strings.ToUpper(local)
		}
		m = local
	}
	switch strings.ToLower(m) {
	case "shares", "share":
		return "shares"
	case "pure":
		return "pure"
	}
	// Bare three-letter currency codes ("usd") appear in older filings
	if len(m) == 3 && m == strings.ToLower(m) {
		return strings.ToUpper(m)
	}
	return m
}

// ParseUnit builds a canonical Unit from an XBRL measure expression.
// divide is non-nil for ratio units (unitNumerator/unitDenominator).
func ParseUnit(measure string, divide *Divide) Unit {
	if divide != nil {
		num := CanonicalMeasure(divide.Numerator)
		den := CanonicalMeasure(divide.Denominator)
		u := Unit{
			Canonical:   num + "/" + strings.TrimSuffix(den, "s"),
			Numerator:   num,
			Denominator: den,
		}
		if den == "shares" {
			u.Kind = UnitPerShare
		} else {
			u.Kind = UnitRatio
		}
		return u
	}

	m := CanonicalMeasure(measure)
	u := Unit{Canonical: m}
	switch {
	case m == "shares":
		u.Kind = UnitShares
	case m == "pure":
		u.Kind = UnitRatio
	case isCurrencyCode(m):
		u.Kind = UnitMonetary
	case strings.Contains(m, "*"):
		u.Kind = UnitCompound
	default:
		u.Kind = UnitUnknown
	}
	return u
}

// isCurrencyCode reports whether s looks like an ISO 4217 code.
func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// DurationBucket classifies reporting period lengths. The bands are wide
// on purpose: 13-week fiscal quarters and 52/53-week fiscal years drift
// well away from calendar boundaries.
type DurationBucket int

const (
	BucketOther DurationBucket = iota
	BucketQuarter
	BucketYTD6M
	BucketYTD9M
	BucketAnnual
)

func (b DurationBucket) String() string {
	switch b {
	case BucketQuarter:
		return "QUARTER"
	case BucketYTD6M:
		return "YTD_6M"
	case BucketYTD9M:
		return "YTD_9M"
	case BucketAnnual:
		return "ANNUAL"
	default:
		return "OTHER"
	}
}

// ClassifyDuration buckets the period [start, end] by day count:
// QUARTER 70-120, YTD_6M 140-240, YTD_9M 230-330, ANNUAL 330-420.
// Overlapping bands resolve in favor of the longer bucket, matching how
// issuers label YTD periods. Unclassifiable durations return BucketOther
// and are excluded from quarterization.
func ClassifyDuration(start, end time.Time) DurationBucket {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return BucketOther
	}
	days := int(end.Sub(start).Hours() / 24)
	switch {
	case days >= 330 && days <= 420:
		return BucketAnnual
	case days >= 230 && days <= 330:
		return BucketYTD9M
	case days >= 140 && days <= 240:
		return BucketYTD6M
	case days >= 70 && days <= 120:
		return BucketQuarter
	default:
		return BucketOther
	}
}

// nonAdditiveConcepts lists concept name fragments whose values never sum
// across periods (rates, averages, per-share quantities). Matching is
// case-insensitive substring over the local name.
var nonAdditiveConcepts = []string{
	"EarningsPerShare",
	"IncomeLossFromContinuingOperationsPerBasicShare",
	"IncomeLossFromContinuingOperationsPerDilutedShare",
	"WeightedAverageNumberOfShares",
	"WeightedAverageNumberOfDilutedShares",
	"CommonStockDividendsPerShare",
	"EffectiveIncomeTaxRate",
	"SharePrice",
	"Ratio",
	"Percentage",
	"Average",
}

// IsAdditive reports whether a fact may participate in derivation by
// subtraction (the stitching engine's quarterization). Instants, share
// counts, ratios, and per-share quantities are never additive.
func IsAdditive(f *Fact) bool {
	if f.PeriodType == PeriodInstant {
		return false
	}
	switch f.Unit.Kind {
	case UnitShares, UnitPerShare, UnitRatio:
		return false
	}
	local := f.Concept
	if i := strings.Index(local, ":"); i >= 0 {
		local = local[i+1:]
	}
	lower := strings.ToLower(local)
	for _, frag := range nonAdditiveConcepts {
		if strings.Contains(lower, strings.ToLower(frag)) {
			return false
		}
	}
	return true
}
