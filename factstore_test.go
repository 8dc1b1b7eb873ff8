package edgar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactStoreAddAndIndices(t *testing.T) {
	revenue := durationFact("us-gaap:Revenues", usd, 100e9, "2023-01-01", "2023-12-31", "2024-02-01")
	revenue.FormType = "10-K"
	cash := instantFact("us-gaap:CashAndCashEquivalentsAtCarryingValue", usd, 20e9, "2023-12-31", "2024-02-01")
	cash.FormType = "10-K"

	s := mustStore(t, revenue, cash)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{
		"us-gaap:CashAndCashEquivalentsAtCarryingValue",
		"us-gaap:Revenues",
	}, s.Concepts())

	byConcept := s.FactsByConcept("us-gaap:Revenues")
	require.Len(t, byConcept, 1)
	v, err := byConcept[0].Float64()
	require.NoError(t, err)
	assert.Equal(t, 100e9, v)

	assert.Len(t, s.FactsByStatement(StatementBalance), 1)
	assert.Len(t, s.FactsByForm("10-K"), 2)
	assert.Len(t, s.FactsByPeriod(day("2023-01-01"), day("2023-12-31")), 1)
	assert.Len(t, s.FactsByFiscal(2023, FY), 1)
	assert.Empty(t, s.FactsByConcept("us-gaap:Nonexistent"))
}

func TestFactStoreFreeze(t *testing.T) {
	s := NewFactStore()
	require.NoError(t, s.Add(durationFact("us-gaap:Revenues", usd, 1, "2023-01-01", "2023-03-31", "2023-05-01")))
	s.Freeze()
	assert.True(t, s.Frozen())

	err := s.Add(durationFact("us-gaap:Revenues", usd, 2, "2023-04-01", "2023-06-30", "2023-08-01"))
	assert.ErrorIs(t, err, ErrFrozen)
	assert.Equal(t, 1, s.Len())
}

func TestFactStoreDuplicateNumeric(t *testing.T) {
	s := NewFactStore()
	f := durationFact("us-gaap:Revenues", usd, 100, "2023-01-01", "2023-03-31", "2023-05-01")
	require.NoError(t, s.Add(f))

	// Identical re-report (iXBRL often renders a value twice) is dropped
	require.NoError(t, s.Add(f))
	assert.Equal(t, 1, s.Len())

	// Same key with a different value is a parse error
	conflicting := f
	conflicting.Value = MonetaryValue(200)
	conflicting.RawValue = "200"
	err := s.Add(conflicting)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflicting values")
}

func TestFactStoreDuplicateScopedByUnitAndPeriod(t *testing.T) {
	s := NewFactStore()
	f := durationFact("us-gaap:Revenues", usd, 100, "2023-01-01", "2023-03-31", "2023-05-01")
	require.NoError(t, s.Add(f))

	// Same concept, different unit: no collision
	eur := f
	eur.Unit = Unit{Canonical: "EUR", Kind: UnitMonetary}
	require.NoError(t, s.Add(eur))

	// Same concept, different period: no collision
	q2 := durationFact("us-gaap:Revenues", usd, 110, "2023-04-01", "2023-06-30", "2023-08-01")
	require.NoError(t, s.Add(q2))

	assert.Equal(t, 3, s.Len())
}

func TestFactStorePeriodEnds(t *testing.T) {
	s := mustStore(t,
		durationFact("us-gaap:Revenues", usd, 1, "2022-01-01", "2022-12-31", "2023-02-01"),
		durationFact("us-gaap:Revenues", usd, 2, "2023-01-01", "2023-12-31", "2024-02-01"),
		durationFact("us-gaap:Revenues", usd, 3, "2021-01-01", "2021-12-31", "2022-02-01"),
	)
	ends := s.PeriodEnds()
	require.Len(t, ends, 3)
	assert.Equal(t, day("2023-12-31"), ends[0])
	assert.Equal(t, day("2022-12-31"), ends[1])
	assert.Equal(t, day("2021-12-31"), ends[2])
}
