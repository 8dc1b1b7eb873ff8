package edgar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStandardizer(t *testing.T) *Standardizer {
	t.Helper()
	std, err := NewStandardizer(StandardizerConfig{})
	require.NoError(t, err)
	return std
}

func TestStandardizeBankRevenue(t *testing.T) {
	std := newStandardizer(t)

	// Banks report interest and noninterest income separately; neither
	// alone is revenue.
	store := mustStore(t,
		durationFact("us-gaap:InterestAndDividendIncomeOperating", usd, 101.9e9, "2023-01-01", "2023-12-31", "2024-02-20"),
		durationFact("us-gaap:NoninterestIncome", usd, 45.8e9, "2023-01-01", "2023-12-31", "2024-02-20"),
		durationFact("us-gaap:NetIncomeLoss", usd, 26.5e9, "2023-01-01", "2023-12-31", "2024-02-20"),
	)

	result := std.StandardizeStatement(store, "income", StandardizerConfig{IndustryHint: "National Commercial Banks"})
	rev, ok := result.Values["revenue"]
	require.True(t, ok, "bank revenue should resolve")
	assert.InDelta(t, 147.7e9, rev.Value, 1e3)
	assert.Equal(t, "bank_revenue_interest_plus_noninterest", rev.Rule)
	assert.Empty(t, rev.Concept, "computed values have no single source concept")
}

func TestStandardizeIndustryRuleRequiresHint(t *testing.T) {
	std := newStandardizer(t)

	store := mustStore(t,
		durationFact("us-gaap:InterestAndDividendIncomeOperating", usd, 101.9e9, "2023-01-01", "2023-12-31", "2024-02-20"),
		durationFact("us-gaap:NoninterestIncome", usd, 45.8e9, "2023-01-01", "2023-12-31", "2024-02-20"),
	)

	// Without the hint the bank rule is skipped and no generic revenue
	// concept is present.
	result := std.StandardizeStatement(store, "income", StandardizerConfig{})
	_, ok := result.Values["revenue"]
	assert.False(t, ok)
}

func TestStandardizeAggregateBeforeComponent(t *testing.T) {
	std := newStandardizer(t)

	// Both the aggregate and a component are tagged; selectAny order
	// prefers the aggregate.
	store := mustStore(t,
		durationFact("us-gaap:Revenues", usd, 400e9, "2023-01-01", "2023-12-31", "2024-02-01"),
		durationFact("us-gaap:RevenueFromContractWithCustomerExcludingAssessedTax", usd, 390e9, "2023-01-01", "2023-12-31", "2024-02-01"),
	)

	result := std.StandardizeStatement(store, "income", StandardizerConfig{})
	rev := result.Values["revenue"]
	assert.Equal(t, 400e9, rev.Value)
	assert.Equal(t, "us-gaap:Revenues", rev.Concept)
	assert.Equal(t, "generic_revenue", rev.Rule)
}

func TestStandardizeComputedFallback(t *testing.T) {
	std := newStandardizer(t)

	// No revenue concept at all; it falls out of grossProfit + costOfRevenue.
	store := mustStore(t,
		durationFact("us-gaap:GrossProfit", usd, 170e9, "2023-01-01", "2023-12-31", "2024-02-01"),
		durationFact("us-gaap:CostOfGoodsAndServicesSold", usd, 214e9, "2023-01-01", "2023-12-31", "2024-02-01"),
	)

	result := std.StandardizeStatement(store, "income", StandardizerConfig{})
	rev, ok := result.Values["revenue"]
	require.True(t, ok)
	assert.InDelta(t, 384e9, rev.Value, 1)
	assert.Equal(t, "revenue_from_gross_profit", rev.Rule)
}

func TestStandardizeNetIncomeComputed(t *testing.T) {
	std := newStandardizer(t)

	store := mustStore(t,
		durationFact("us-gaap:IncomeLossFromContinuingOperationsBeforeIncomeTaxesExtraordinaryItemsNoncontrollingInterest", usd, 113.7e9, "2023-01-01", "2023-12-31", "2024-02-01"),
		durationFact("us-gaap:IncomeTaxExpenseBenefit", usd, 16.7e9, "2023-01-01", "2023-12-31", "2024-02-01"),
	)

	result := std.StandardizeStatement(store, "income", StandardizerConfig{})
	ni, ok := result.Values["netIncome"]
	require.True(t, ok)
	assert.InDelta(t, 97e9, ni.Value, 1e3)
	assert.Equal(t, "net_income_computed", ni.Rule)
}

func TestStandardizeCoverage(t *testing.T) {
	std := newStandardizer(t)

	store := mustStore(t,
		instantFact("us-gaap:Assets", usd, 352.583e9, "2023-09-30", "2023-11-03"),
		instantFact("us-gaap:StockholdersEquity", usd, 62.146e9, "2023-09-30", "2023-11-03"),
	)

	result := std.StandardizeStatement(store, "balance", StandardizerConfig{})
	assert.Greater(t, result.Coverage, 0.0)
	assert.Less(t, result.Coverage, 1.0)

	// Liabilities resolves from assets minus equity even though the
	// concept itself is missing.
	liab, ok := result.Values["totalLiabilities"]
	require.True(t, ok)
	assert.InDelta(t, 290.437e9, liab.Value, 1e3)
	assert.Equal(t, "liabilities_computed", liab.Rule)
}

func TestStandardizePeriodPinning(t *testing.T) {
	std := newStandardizer(t)

	store := mustStore(t,
		durationFact("us-gaap:Revenues", usd, 394.328e9, "2021-09-26", "2022-09-24", "2022-10-28"),
		durationFact("us-gaap:Revenues", usd, 383.285e9, "2022-09-25", "2023-09-30", "2023-11-03"),
	)

	// Unpinned resolution takes the most recent period
	result := std.StandardizeStatement(store, "income", StandardizerConfig{})
	assert.Equal(t, 383.285e9, result.Values["revenue"].Value)

	// Pinned resolution takes the named one
	pinned := std.StandardizeStatement(store, "income", StandardizerConfig{PeriodEnd: day("2022-09-24")})
	assert.Equal(t, 394.328e9, pinned.Values["revenue"].Value)
}

func TestStandardizeAllStatements(t *testing.T) {
	std := newStandardizer(t)

	store := mustStore(t,
		durationFact("us-gaap:Revenues", usd, 383.285e9, "2022-09-25", "2023-09-30", "2023-11-03"),
		instantFact("us-gaap:Assets", usd, 352.583e9, "2023-09-30", "2023-11-03"),
		durationFact("us-gaap:NetCashProvidedByUsedInOperatingActivities", usd, 110.543e9, "2022-09-25", "2023-09-30", "2023-11-03"),
		durationFact("us-gaap:PaymentsToAcquirePropertyPlantAndEquipment", usd, 10.959e9, "2022-09-25", "2023-09-30", "2023-11-03"),
	)

	all := std.Standardize(store, StandardizerConfig{})
	require.Contains(t, all, "income")
	require.Contains(t, all, "balance")
	require.Contains(t, all, "cashflow")

	fcf, ok := all["cashflow"].Values["freeCashFlow"]
	require.True(t, ok)
	assert.InDelta(t, 99.584e9, fcf.Value, 1e3)
}

func TestStandardizerRejectsMalformedSchemas(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/bad.json"
	bad := `{"version":"1.0","statements":{"income":{"fields":[{"name":"revenue","rules":[{"name":"broken","priority":100}]}]}}}`
	require.NoError(t, writeTestFile(path, bad))

	_, err := NewStandardizer(StandardizerConfig{MappingSchemaPath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no resolution")
}
