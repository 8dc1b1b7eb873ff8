package edgar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const companyFactsJSON = `{
	"cik": 320193,
	"entityName": "Apple Inc.",
	"facts": {
		"us-gaap": {
			"RevenueFromContractWithCustomerExcludingAssessedTax": {
				"label": "Revenue from Contract with Customer",
				"units": {
					"USD": [
						{"start": "2022-09-25", "end": "2023-09-30", "val": 383285000000, "accn": "0000320193-23-000106", "fy": 2023, "fp": "FY", "form": "10-K", "filed": "2023-11-03", "frame": "CY2023"},
						{"start": "2022-09-25", "end": "2023-09-30", "val": 383285000000, "accn": "0000320193-24-000123", "fy": 2024, "fp": "FY", "form": "10-K", "filed": "2024-11-01"}
					]
				}
			},
			"EarningsPerShareBasic": {
				"label": "Earnings Per Share, Basic",
				"units": {
					"USD/shares": [
						{"start": "2022-09-25", "end": "2023-09-30", "val": 6.16, "accn": "0000320193-23-000106", "fy": 2023, "fp": "FY", "form": "10-K", "filed": "2023-11-03"}
					]
				}
			},
			"CashAndCashEquivalentsAtCarryingValue": {
				"label": "Cash and Cash Equivalents",
				"units": {
					"USD": [
						{"end": "2023-09-30", "val": 29965000000, "accn": "0000320193-23-000106", "fy": 2023, "fp": "FY", "form": "10-K", "filed": "2023-11-03"}
					]
				}
			},
			"CommonStockSharesOutstanding": {
				"label": "Common Stock, Shares, Outstanding",
				"units": {
					"shares": [
						{"end": "2023-10-20", "val": 15552752000, "accn": "0000320193-23-000106", "fy": 2023, "fp": "", "form": "10-K", "filed": "2023-11-03"}
					]
				}
			}
		},
		"dei": {
			"EntityCommonStockSharesOutstanding": {
				"label": "Entity Common Stock, Shares Outstanding",
				"units": {
					"shares": [
						{"end": "2023-10-20", "val": 15552752000, "accn": "0000320193-23-000106", "fy": 2023, "fp": "FY", "form": "10-K", "filed": "2023-11-03"}
					]
				}
			}
		}
	}
}`

func TestParseEntityFacts(t *testing.T) {
	ef, err := ParseEntityFacts([]byte(companyFactsJSON))
	require.NoError(t, err)

	assert.Equal(t, int64(320193), ef.CIK)
	assert.Equal(t, "Apple Inc.", ef.EntityName)
	assert.True(t, ef.Facts.Frozen())
	assert.Equal(t, 6, ef.Facts.Len())

	// Taxonomy prefixes are preserved in concept names
	assert.Len(t, ef.Facts.FactsByConcept("us-gaap:EarningsPerShareBasic"), 1)
	assert.Len(t, ef.Facts.FactsByConcept("dei:EntityCommonStockSharesOutstanding"), 1)
}

func TestParseEntityFactsUnits(t *testing.T) {
	ef, err := ParseEntityFacts([]byte(companyFactsJSON))
	require.NoError(t, err)

	eps := ef.Facts.FactsByConcept("us-gaap:EarningsPerShareBasic")[0]
	assert.Equal(t, UnitPerShare, eps.Unit.Kind)
	assert.Equal(t, "USD/share", eps.Unit.Canonical)
	assert.Equal(t, ValuePerShare, eps.Value.Kind)

	sh := ef.Facts.FactsByConcept("us-gaap:CommonStockSharesOutstanding")[0]
	assert.Equal(t, UnitShares, sh.Unit.Kind)
	assert.Equal(t, ValueShares, sh.Value.Kind)

	rev := ef.Facts.FactsByConcept("us-gaap:RevenueFromContractWithCustomerExcludingAssessedTax")
	require.NotEmpty(t, rev)
	assert.Equal(t, UnitMonetary, rev[0].Unit.Kind)
}

func TestParseEntityFactsPeriodsAndProvenance(t *testing.T) {
	ef, err := ParseEntityFacts([]byte(companyFactsJSON))
	require.NoError(t, err)

	cash := ef.Facts.FactsByConcept("us-gaap:CashAndCashEquivalentsAtCarryingValue")[0]
	assert.True(t, cash.IsInstant(), "reports without a start date are instants")
	assert.Equal(t, day("2023-09-30"), cash.PeriodEnd)
	assert.True(t, cash.IsAudited, "10-K facts are audited")
	assert.Equal(t, "0000320193-23-000106", cash.Accession)
	assert.Equal(t, day("2023-11-03"), cash.FilingDate)

	eps := ef.Facts.FactsByConcept("us-gaap:EarningsPerShareBasic")[0]
	assert.True(t, eps.IsDuration())
	assert.Equal(t, 2023, eps.FiscalYear)
	assert.Equal(t, FY, eps.FiscalPeriod)
}

func TestParseEntityFactsRestatementTagging(t *testing.T) {
	ef, err := ParseEntityFacts([]byte(companyFactsJSON))
	require.NoError(t, err)

	// FY2023 revenue appears in the 2023 and 2024 10-Ks; only the
	// latest-filed report stays visible.
	rev := ef.Facts.FactsByConcept("us-gaap:RevenueFromContractWithCustomerExcludingAssessedTax")
	require.Len(t, rev, 2)

	var visible int
	for _, f := range rev {
		if !f.IsRestated {
			visible++
			assert.Equal(t, "0000320193-24-000123", f.Accession)
		}
	}
	assert.Equal(t, 1, visible)
}

func TestParseEntityFactsFiscalPeriodFallback(t *testing.T) {
	ef, err := ParseEntityFacts([]byte(companyFactsJSON))
	require.NoError(t, err)

	// The shares-outstanding report carries no valid fp; the period is
	// derived from the date instead.
	sh := ef.Facts.FactsByConcept("us-gaap:CommonStockSharesOutstanding")[0]
	assert.Equal(t, 2023, sh.FiscalYear)
}

func TestParseEntityFactsSemanticTags(t *testing.T) {
	ef, err := ParseEntityFacts([]byte(companyFactsJSON))
	require.NoError(t, err)

	rev := ef.Facts.FactsByConcept("us-gaap:RevenueFromContractWithCustomerExcludingAssessedTax")
	var tagged bool
	for _, f := range rev {
		for _, tag := range f.SemanticTags {
			if tag == "frame:CY2023" {
				tagged = true
			}
		}
	}
	assert.True(t, tagged)
}

func TestParseEntityFactsMalformed(t *testing.T) {
	_, err := ParseEntityFacts([]byte("{not json"))
	require.Error(t, err)

	// A bad individual report is dropped, not fatal
	ef, err := ParseEntityFacts([]byte(`{
		"cik": 1, "entityName": "X",
		"facts": {"us-gaap": {"Revenues": {"units": {"USD": [
			{"end": "not-a-date", "val": 5, "form": "10-K"},
			{"end": "2023-12-31", "val": 5, "form": "10-K", "filed": "2024-02-01", "fy": 2023, "fp": "FY"}
		]}}}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, 1, ef.Facts.Len())
}
