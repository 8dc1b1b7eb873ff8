package edgar

import (
	"os"
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

var (
	usd      = Unit{Canonical: "USD", Kind: UnitMonetary}
	shares   = Unit{Canonical: "shares", Kind: UnitShares}
	perShare = Unit{Canonical: "USD/share", Kind: UnitPerShare, Numerator: "USD", Denominator: "shares"}
	pure     = Unit{Canonical: "pure", Kind: UnitRatio}
)

// durationFact builds a duration fact with sensible defaults for tests.
func durationFact(concept string, unit Unit, value float64, start, end, filed string) Fact {
	f := Fact{
		Concept:     concept,
		Unit:        unit,
		PeriodStart: day(start),
		PeriodEnd:   day(end),
		PeriodType:  PeriodDuration,
		FilingDate:  day(filed),
		Quality:     QualityHigh,
		Confidence:  1,
	}
	switch unit.Kind {
	case UnitShares:
		f.Value = SharesValue(value)
	case UnitPerShare:
		f.Value = PerShareValue(value)
	case UnitRatio:
		f.Value = RatioValue(value)
	default:
		f.Value = MonetaryValue(value)
	}
	f.RawValue = formatNumber(value)
	f.FiscalYear, f.FiscalPeriod = fiscalPeriodFor(f.PeriodEnd, f.DurationBucket())
	f.StatementType = inferStatementType(concept, f.PeriodType)
	return f
}

// instantFact builds an instant fact.
func instantFact(concept string, unit Unit, value float64, at, filed string) Fact {
	f := Fact{
		Concept:    concept,
		Unit:       unit,
		Value:      MonetaryValue(value),
		RawValue:   formatNumber(value),
		PeriodEnd:  day(at),
		PeriodType: PeriodInstant,
		FilingDate: day(filed),
		Quality:    QualityHigh,
		Confidence: 1,
	}
	if unit.Kind == UnitShares {
		f.Value = SharesValue(value)
	}
	f.StatementType = inferStatementType(concept, f.PeriodType)
	return f
}

func writeTestFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func mustStore(t *testing.T, facts ...Fact) *FactStore {
	t.Helper()
	s := NewFactStore()
	for _, f := range facts {
		if err := s.Add(f); err != nil {
			t.Fatalf("Add(%s): %v", f.Concept, err)
		}
	}
	s.Freeze()
	return s
}
