package edgar

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// EntityFacts is the parsed form of a companyfacts JSON document: the
// complete reported history of one entity across all its filings,
// loaded into a queryable store.
type EntityFacts struct {
	CIK        int64
	EntityName string
	Facts      *FactStore
}

type efDocument struct {
	CIK        json.Number                        `json:"cik"`
	EntityName string                             `json:"entityName"`
	Facts      map[string]map[string]efConceptDoc `json:"facts"`
}

type efConceptDoc struct {
	Label       string                `json:"label"`
	Description string                `json:"description"`
	Units       map[string][]efReport `json:"units"`
}

type efReport struct {
	Start string      `json:"start"`
	End   string      `json:"end"`
	Val   json.Number `json:"val"`
	Accn  string      `json:"accn"`
	FY    int         `json:"fy"`
	FP    string      `json:"fp"`
	Form  string      `json:"form"`
	Filed string      `json:"filed"`
	Frame string      `json:"frame"`
}

// ParseEntityFacts decodes a companyfacts JSON document. Reports keep
// their stated fiscal year and period; where the same value appears in
// several filings, every report is retained and all but the
// latest-filed carry IsRestated, matching the stitched-store contract.
func ParseEntityFacts(data []byte) (*EntityFacts, error) {
	var doc efDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse entity facts: %w", err)
	}
	cik, _ := doc.CIK.Int64()

	ef := &EntityFacts{
		CIK:        cik,
		EntityName: doc.EntityName,
		Facts:      NewFactStore(),
	}

	var all []Fact
	for taxonomy, concepts := range doc.Facts {
		for local, cdoc := range concepts {
			concept := taxonomy + ":" + local
			for unitKey, reports := range cdoc.Units {
				unit := parseUnitKey(unitKey)
				for _, r := range reports {
					f, err := factFromReport(concept, unit, r)
					if err != nil {
						continue // malformed individual reports are dropped
					}
					all = append(all, f)
				}
			}
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].PeriodEnd.Equal(all[j].PeriodEnd) {
			return all[i].PeriodEnd.After(all[j].PeriodEnd)
		}
		return all[i].FilingDate.After(all[j].FilingDate)
	})
	latest := make(map[string]bool)
	for i := range all {
		key := all[i].dedupKey()
		if latest[key] {
			all[i].IsRestated = true
		} else {
			latest[key] = true
		}
		ef.Facts.addStitched(all[i])
	}
	ef.Facts.Freeze()
	return ef, nil
}

func factFromReport(concept string, unit Unit, r efReport) (Fact, error) {
	end, err := time.Parse("2006-01-02", r.End)
	if err != nil {
		return Fact{}, fmt.Errorf("report for %s has bad end date %q: %w", concept, r.End, err)
	}
	f := Fact{
		Concept:    concept,
		Unit:       unit,
		RawValue:   r.Val.String(),
		Decimals:   DecimalsInf,
		PeriodEnd:  end,
		FiscalYear: r.FY,
		FormType:   r.Form,
		Accession:  r.Accn,
		Quality:    QualityHigh,
		Confidence: 1,
	}
	if r.Start != "" {
		start, err := time.Parse("2006-01-02", r.Start)
		if err != nil {
			return Fact{}, fmt.Errorf("report for %s has bad start date %q: %w", concept, r.Start, err)
		}
		f.PeriodStart = start
		f.PeriodType = PeriodDuration
	} else {
		f.PeriodType = PeriodInstant
	}
	if r.Filed != "" {
		if filed, err := time.Parse("2006-01-02", r.Filed); err == nil {
			f.FilingDate = filed
		}
	}
	switch r.FP {
	case "FY", "Q1", "Q2", "Q3", "Q4":
		f.FiscalPeriod = FiscalPeriod(r.FP)
	default:
		f.FiscalYear, f.FiscalPeriod = fiscalPeriodFor(end, f.DurationBucket())
	}

	if v, err := r.Val.Float64(); err == nil {
		switch unit.Kind {
		case UnitMonetary:
			f.Value = MonetaryValue(v)
		case UnitShares:
			f.Value = SharesValue(v)
		case UnitPerShare:
			f.Value = PerShareValue(v)
		case UnitRatio:
			f.Value = RatioValue(v)
		default:
			f.Value = Value{Kind: ValueUnknown, Num: v}
		}
	} else {
		f.Value = TextValue(r.Val.String())
	}

	f.IsAudited = strings.HasPrefix(r.Form, "10-K")
	if r.Frame != "" {
		f.SemanticTags = []string{"frame:" + r.Frame}
	}
	f.StatementType = inferStatementType(concept, f.PeriodType)
	return f, nil
}

// parseUnitKey canonicalizes a companyfacts unit key such as "USD",
// "shares", "USD/shares" or "pure".
func parseUnitKey(key string) Unit {
	if num, den, ok := strings.Cut(key, "/"); ok {
		return ParseUnit("", &Divide{Numerator: num, Denominator: den})
	}
	return ParseUnit(key, nil)
}
