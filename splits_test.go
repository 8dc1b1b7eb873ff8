package edgar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitRatioFact(ratio float64, at, filed string) Fact {
	f := instantFact("us-gaap:StockholdersEquityNoteStockSplitConversionRatio1", pure, ratio, at, filed)
	f.Value = RatioValue(ratio)
	f.Accession = "split-acc"
	return f
}

func TestDetectSplits(t *testing.T) {
	facts := []Fact{
		// NVIDIA's 2024 ten-for-one, reported in the following 10-Q
		splitRatioFact(10, "2024-06-07", "2024-08-28"),
		// Same event re-reported in the next quarter's filing
		splitRatioFact(10, "2024-06-07", "2024-11-20"),
		// Reverse-split style ratio at or below 1 is ignored
		splitRatioFact(1, "2023-06-01", "2023-08-01"),
		// Too stale: filed more than 280 days after the period
		splitRatioFact(4, "2021-07-19", "2023-02-24"),
	}

	splits := DetectSplits(facts)
	require.Len(t, splits, 1)
	assert.Equal(t, 10.0, splits[0].Ratio)
	assert.Equal(t, day("2024-06-07"), splits[0].Effective)
	assert.Equal(t, "split-acc", splits[0].Accession)
}

func TestDetectSplitsRejectsLongDurations(t *testing.T) {
	f := durationFact("us-gaap:StockholdersEquityNoteStockSplitConversionRatio1", pure, 10, "2024-01-29", "2024-07-28", "2024-08-28")
	assert.Empty(t, DetectSplits([]Fact{f}))

	short := durationFact("us-gaap:StockholdersEquityNoteStockSplitConversionRatio1", pure, 10, "2024-06-01", "2024-06-10", "2024-08-28")
	assert.Len(t, DetectSplits([]Fact{short}), 1)
}

func TestAdjustForSplits(t *testing.T) {
	splits := []StockSplit{{Effective: day("2024-06-07"), Ratio: 10, Accession: "split-acc"}}

	preEPS := durationFact("us-gaap:EarningsPerShareBasic", perShare, 6.00, "2023-01-30", "2024-01-28", "2024-02-21")
	preShares := instantFact("us-gaap:CommonStockSharesOutstanding", shares, 2.464e9, "2024-01-28", "2024-02-21")
	preRevenue := durationFact("us-gaap:Revenues", usd, 60.922e9, "2023-01-30", "2024-01-28", "2024-02-21")
	// Period straddles the split but the filing is post-split, so the
	// issuer already stated it on the new basis.
	postEPS := durationFact("us-gaap:EarningsPerShareBasic", perShare, 0.67, "2024-04-29", "2024-07-28", "2024-08-28")

	out := AdjustForSplits([]Fact{preEPS, preShares, preRevenue, postEPS}, splits)
	require.Len(t, out, 6, "adjusted values are appended, originals kept")

	// Originals keep their as-filed values and move to the restated chain
	v, _ := out[0].Float64()
	assert.InDelta(t, 6.00, v, 1e-9)
	assert.True(t, out[0].IsRestated)
	assert.Empty(t, out[0].CalculationContext)
	assert.True(t, out[1].IsRestated)

	v, _ = out[2].Float64()
	assert.InDelta(t, 60.922e9, v, 1, "monetary facts are untouched")
	assert.False(t, out[2].IsRestated)
	assert.Empty(t, out[2].CalculationContext)

	v, _ = out[3].Float64()
	assert.InDelta(t, 0.67, v, 1e-9, "post-split filings are already on the new basis")
	assert.False(t, out[3].IsRestated)
	assert.Empty(t, out[3].CalculationContext)

	adjEPS, adjShares := out[4], out[5]
	v, _ = adjEPS.Float64()
	assert.InDelta(t, 0.60, v, 1e-9, "per-share values divide by the ratio")
	assert.Equal(t, "split_adj_ratio_10.00", adjEPS.CalculationContext)
	assert.False(t, adjEPS.IsRestated)

	v, _ = adjShares.Float64()
	assert.InDelta(t, 24.64e9, v, 1, "share counts multiply by the ratio")
	assert.False(t, adjShares.IsRestated)

	// Inputs are not mutated
	v, _ = preEPS.Float64()
	assert.InDelta(t, 6.00, v, 1e-9)
	assert.False(t, preEPS.IsRestated)
}

func TestAdjustForSplitsIsIdempotent(t *testing.T) {
	splits := []StockSplit{{Effective: day("2024-06-07"), Ratio: 10}}
	eps := durationFact("us-gaap:EarningsPerShareBasic", perShare, 6.00, "2023-01-30", "2024-01-28", "2024-02-21")

	once := AdjustForSplits([]Fact{eps}, splits)
	require.Len(t, once, 2)
	twice := AdjustForSplits(once, splits)
	require.Len(t, twice, 2, "restated originals and adjusted facts are not re-adjusted")

	var visible []Fact
	for _, f := range twice {
		if !f.IsRestated {
			visible = append(visible, f)
		}
	}
	require.Len(t, visible, 1)
	v, _ := visible[0].Float64()
	assert.InDelta(t, 0.60, v, 1e-9)
}

func TestAdjustForSplitsCumulativeRatio(t *testing.T) {
	splits := []StockSplit{
		{Effective: day("2021-07-19"), Ratio: 4},
		{Effective: day("2024-06-07"), Ratio: 10},
	}
	// Filed before both splits: both apply
	eps := durationFact("us-gaap:EarningsPerShareBasic", perShare, 8.00, "2020-01-27", "2021-01-31", "2021-02-24")
	// Filed between the splits: only the later one applies
	mid := durationFact("us-gaap:EarningsPerShareBasic", perShare, 1.00, "2022-01-31", "2023-01-29", "2023-02-24")

	out := AdjustForSplits([]Fact{eps, mid}, splits)
	require.Len(t, out, 4)

	v, _ := out[2].Float64()
	assert.InDelta(t, 0.20, v, 1e-9)
	assert.Equal(t, "split_adj_ratio_40.00", out[2].CalculationContext)

	v, _ = out[3].Float64()
	assert.InDelta(t, 0.10, v, 1e-9)
	assert.Equal(t, "split_adj_ratio_10.00", out[3].CalculationContext)
}

func TestSplitAdjustStore(t *testing.T) {
	ratio := splitRatioFact(10, "2024-06-07", "2024-08-28")
	eps := durationFact("us-gaap:EarningsPerShareBasic", perShare, 6.00, "2023-01-30", "2024-01-28", "2024-02-21")

	adjusted := SplitAdjust(mustStore(t, ratio, eps))
	require.True(t, adjusted.Frozen())

	facts := adjusted.FactsByConcept("us-gaap:EarningsPerShareBasic")
	require.Len(t, facts, 2)

	var visible, restated *Fact
	for _, f := range facts {
		if f.IsRestated {
			restated = f
		} else {
			visible = f
		}
	}
	require.NotNil(t, visible)
	require.NotNil(t, restated)

	v, _ := visible.Float64()
	assert.InDelta(t, 0.60, v, 1e-9)
	v, _ = restated.Float64()
	assert.InDelta(t, 6.00, v, 1e-9, "the as-filed value stays queryable")
}
