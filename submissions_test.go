package edgar

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const submissionsSample = `{
	"cik": "320193",
	"entityType": "operating",
	"sic": "3571",
	"sicDescription": "Electronic Computers",
	"name": "Apple Inc.",
	"tickers": ["AAPL"],
	"exchanges": ["Nasdaq"],
	"fiscalYearEnd": "0930",
	"filings": {
		"recent": {
			"accessionNumber": ["0000320193-23-000106", "0000320193-23-000077", "0000320193-23-000064", "0000921669-23-000012"],
			"filingDate": ["2023-11-03", "2023-08-04", "2023-05-05", "2023-07-10"],
			"reportDate": ["2023-09-30", "2023-07-01", "2023-04-01", ""],
			"form": ["10-K", "10-Q", "10-Q", "SC 13D/A"],
			"primaryDocument": ["aapl-20230930.htm", "aapl-20230701.htm", "xslF345X05/aapl-20230401.htm", "sc13da.htm"],
			"isXBRL": [1, 1, 1, 0],
			"size": [10000, 9000, 8000, 500]
		},
		"files": [
			{"name": "CIK0000320193-submissions-001.json", "filingCount": 1000, "filingFrom": "1994-01-26", "filingTo": "2013-10-30"}
		]
	}
}`

func TestParseSubmissions(t *testing.T) {
	subs, err := ParseSubmissions(strings.NewReader(submissionsSample))
	require.NoError(t, err)

	assert.Equal(t, "Apple Inc.", subs.Name)
	assert.Equal(t, []string{"AAPL"}, subs.Tickers)
	assert.Equal(t, "0930", subs.FiscalYearEnd)
	require.Len(t, subs.Filings.Files, 1)
	assert.Equal(t, "CIK0000320193-submissions-001.json", subs.Filings.Files[0].Name)

	filings := subs.GetRecentFilings()
	require.Len(t, filings, 4)
	assert.Equal(t, "10-K", filings[0].Form)
	assert.Equal(t, "320193", filings[0].CIK)
	assert.True(t, filings[0].IsXBRL)
	assert.False(t, filings[3].IsXBRL)
}

func TestBuildURL(t *testing.T) {
	filings, err := ParseSubmissions(strings.NewReader(submissionsSample))
	require.NoError(t, err)
	recent := filings.GetRecentFilings()

	assert.Equal(t,
		"https://www.sec.gov/Archives/edgar/data/320193/000032019323000106/aapl-20230930.htm",
		recent[0].URL)

	// XSL rendering prefixes are stripped down to the real document
	assert.Equal(t,
		"https://www.sec.gov/Archives/edgar/data/320193/000032019323000064/aapl-20230401.htm",
		recent[2].URL)
}

func TestFilingDateTime(t *testing.T) {
	f := Filing{FilingDate: "2023-11-03"}
	ts, err := f.FilingDateTime()
	require.NoError(t, err)
	assert.Equal(t, day("2023-11-03"), ts)

	_, err = (&Filing{FilingDate: "bad"}).FilingDateTime()
	assert.Error(t, err)
}

func TestFilterByForm(t *testing.T) {
	filings := []Filing{
		{Form: "10-K"},
		{Form: "10-K/A"},
		{Form: "10-Q"},
		{Form: "SC 13D"},
		{Form: "SC 13D/A"},
		{Form: "SC 13G"},
	}

	assert.Len(t, FilterByForm(filings, "10-K"), 1, "amendments need an explicit request")
	assert.Len(t, FilterByForm(filings, "10-K/A"), 1)

	// Friendly schedule names normalize and include amendments
	thirteenD := FilterByForm(filings, "13D")
	require.Len(t, thirteenD, 2)
	assert.Equal(t, "SC 13D", thirteenD[0].Form)
	assert.Equal(t, "SC 13D/A", thirteenD[1].Form)

	// "13" is the wildcard over every schedule variant
	assert.Len(t, FilterByForm(filings, "13"), 3)
}

func TestFilterByDateRange(t *testing.T) {
	filings := []Filing{
		{FilingDate: "2023-05-05"},
		{FilingDate: "2023-08-04"},
		{FilingDate: "2023-11-03"},
	}
	kept := FilterByDateRange(filings, "2023-06-01", "2023-09-30")
	require.Len(t, kept, 1)
	assert.Equal(t, "2023-08-04", kept[0].FilingDate)
}

func TestGetFilingsShortArrays(t *testing.T) {
	// The feed occasionally ships arrays shorter than accessionNumber
	fa := &FilingArrays{
		AccessionNumber: []string{"a-1", "a-2"},
		Form:            []string{"10-K"},
	}
	filings := fa.GetFilings("320193")
	require.Len(t, filings, 2)
	assert.Equal(t, "10-K", filings[0].Form)
	assert.Empty(t, filings[1].Form)
}
