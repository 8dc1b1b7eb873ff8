package edgar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schedule13DXMLSample = `<?xml version="1.0" encoding="UTF-8"?>
<edgarSubmission xmlns="http://www.sec.gov/edgar/schedule13D">
  <headerData>
    <submissionType>SC 13D</submissionType>
    <filerInfo>
      <filer>
        <filerCredentials>
          <cik>0000921669</cik>
        </filerCredentials>
      </filer>
    </filerInfo>
  </headerData>
  <formData>
    <coverPageHeader>
      <securitiesClassTitle>Common Stock, par value $0.01 per share</securitiesClassTitle>
      <dateOfEvent>2023-07-10</dateOfEvent>
      <issuerInfo>
        <issuerCIK>0000034088</issuerCIK>
        <issuerCUSIP>30231G102</issuerCUSIP>
        <issuerName>Example Energy Corp</issuerName>
      </issuerInfo>
    </coverPageHeader>
    <reportingPersons>
      <reportingPersonInfo>
        <reportingPersonName>Icahn Partners LP</reportingPersonName>
        <citizenshipOrOrganization>Delaware</citizenshipOrOrganization>
        <soleVotingPower>20,500,000</soleVotingPower>
        <sharedVotingPower>0</sharedVotingPower>
        <soleDispositivePower>20,500,000</soleDispositivePower>
        <sharedDispositivePower>0</sharedDispositivePower>
        <aggregateAmountOwned>36,847,842</aggregateAmountOwned>
        <percentOfClass>8.6</percentOfClass>
        <typeOfReportingPerson>OO</typeOfReportingPerson>
        <memberOfGroup>a</memberOfGroup>
      </reportingPersonInfo>
      <reportingPersonInfo>
        <reportingPersonName>Carl C. Icahn</reportingPersonName>
        <reportingPersonNoCIK>Y</reportingPersonNoCIK>
        <citizenshipOrOrganization>United States of America</citizenshipOrOrganization>
        <soleVotingPower>16,347,842</soleVotingPower>
        <sharedVotingPower>0</sharedVotingPower>
        <soleDispositivePower>16,347,842</soleDispositivePower>
        <sharedDispositivePower>0</sharedDispositivePower>
        <aggregateAmountOwned>36,847,842</aggregateAmountOwned>
        <percentOfClass>8.6</percentOfClass>
        <typeOfReportingPerson>IN</typeOfReportingPerson>
        <memberOfGroup>a</memberOfGroup>
      </reportingPersonInfo>
    </reportingPersons>
    <items1To7>
      <item4>
        <transactionPurpose>The Reporting Persons acquired the shares to influence the composition of the board.</transactionPurpose>
      </item4>
    </items1To7>
  </formData>
</edgarSubmission>`

func TestParseSchedule13DXML(t *testing.T) {
	f, err := ParseSchedule13([]byte(schedule13DXMLSample))
	require.NoError(t, err)

	assert.Equal(t, "SC 13D", f.FormType)
	assert.False(t, f.IsAmendment)
	assert.True(t, f.IsActivist())
	assert.Equal(t, "Example Energy Corp", f.IssuerName)
	assert.Equal(t, "30231G102", f.IssuerCUSIP)
	assert.Equal(t, "2023-07-10", f.EventDate)
	assert.Contains(t, f.PurposeOfTransaction, "composition of the board")

	require.Len(t, f.ReportingPersons, 2)
	p0, p1 := f.ReportingPersons[0], f.ReportingPersons[1]

	assert.Equal(t, "Icahn Partners LP", p0.Name)
	assert.Equal(t, int64(20500000), p0.SoleVotingPower)
	assert.Equal(t, int64(36847842), p0.AggregateAmountOwned)
	assert.Equal(t, 8.6, p0.PercentOfClass)
	assert.Equal(t, "OO", p0.TypeOfReportingPerson)
	assert.Equal(t, "0000921669", p0.CIK, "missing person CIK falls back to the filer")

	assert.Equal(t, "IN", p1.TypeOfReportingPerson)
	assert.True(t, p1.NoCIK)
	assert.Empty(t, p1.CIK)
	assert.Equal(t, int64(16347842), p1.TotalVotingPower())
}

func TestCalculateTotalSharesJointFilers(t *testing.T) {
	f, err := ParseSchedule13([]byte(schedule13DXMLSample))
	require.NoError(t, err)

	// Both persons report the same 36,847,842-share block as group
	// members; summing would double-count.
	assert.Equal(t, int64(36847842), f.CalculateTotalShares())
	assert.Equal(t, 8.6, f.CalculateTotalPercent())
}

func TestCalculateTotalSharesIndependentFilers(t *testing.T) {
	f := &Schedule13Filing{ReportingPersons: []ReportingPerson13{
		{Name: "Fund A", AggregateAmountOwned: 1_000_000},
		{Name: "Fund B", AggregateAmountOwned: 2_000_000},
		{Name: "Excluded", AggregateAmountOwned: 9_000_000, IsAggregateExclude: true},
	}}
	assert.Equal(t, int64(3_000_000), f.CalculateTotalShares())
}

const schedule13GXMLSample = `<?xml version="1.0" encoding="UTF-8"?>
<edgarSubmission xmlns="http://www.sec.gov/edgar/schedule13g">
  <headerData>
    <submissionType>SC 13G/A</submissionType>
    <filerInfo>
      <filer>
        <filerCredentials>
          <cik>0000102909</cik>
        </filerCredentials>
      </filer>
    </filerInfo>
  </headerData>
  <formData>
    <coverPageHeader>
      <securitiesClassTitle>Common Stock</securitiesClassTitle>
      <eventDateRequiresFilingThisStatement>2023-12-29</eventDateRequiresFilingThisStatement>
      <issuerInfo>
        <issuerCik>0000320193</issuerCik>
        <issuerName>Apple Inc.</issuerName>
        <issuerCusip>037833100</issuerCusip>
      </issuerInfo>
      <designateRulesPursuantThisScheduleFiled>
        <designateRulePursuantThisScheduleFiled>Rule 13d-1(b)</designateRulePursuantThisScheduleFiled>
      </designateRulesPursuantThisScheduleFiled>
    </coverPageHeader>
    <coverPageHeaderReportingPersonDetails>
      <reportingPersonName>Vanguard Group Inc</reportingPersonName>
      <citizenshipOrOrganization>Pennsylvania</citizenshipOrOrganization>
      <reportingPersonBeneficiallyOwnedNumberOfShares>
        <soleVotingPower>0</soleVotingPower>
        <sharedVotingPower>18,369,355</sharedVotingPower>
        <soleDispositivePower>1,247,805,460</soleDispositivePower>
        <sharedDispositivePower>58,129,883</sharedDispositivePower>
      </reportingPersonBeneficiallyOwnedNumberOfShares>
      <reportingPersonBeneficiallyOwnedAggregateNumberOfShares>1,305,935,343</reportingPersonBeneficiallyOwnedAggregateNumberOfShares>
      <classPercent>8.39</classPercent>
      <typeOfReportingPerson>IA</typeOfReportingPerson>
    </coverPageHeaderReportingPersonDetails>
    <items>
      <item10>
        <certifications>The securities were acquired and are held in the ordinary course of business.</certifications>
      </item10>
    </items>
  </formData>
</edgarSubmission>`

func TestParseSchedule13GXML(t *testing.T) {
	f, err := ParseSchedule13([]byte(schedule13GXMLSample))
	require.NoError(t, err)

	assert.Equal(t, "SC 13G/A", f.FormType)
	assert.True(t, f.IsAmendment)
	assert.Nil(t, f.AmendmentNumber)
	assert.False(t, f.IsActivist())
	assert.Equal(t, "Apple Inc.", f.IssuerName)
	assert.Equal(t, []string{"Rule 13d-1(b)"}, f.RuleDesignations)
	assert.Contains(t, f.Certification, "ordinary course of business")

	require.Len(t, f.ReportingPersons, 1)
	p := f.ReportingPersons[0]
	assert.Equal(t, "Vanguard Group Inc", p.Name)
	assert.Equal(t, int64(1305935343), p.AggregateAmountOwned)
	assert.Equal(t, 8.39, p.PercentOfClass)
	assert.Equal(t, int64(18369355), p.TotalVotingPower())
}

func TestParseSchedule13HTML(t *testing.T) {
	src := `<html><body>
	<p>SCHEDULE 13D</p>
	<p>Example Energy Corp</p>
	<p>(Name of Issuer)</p>
	<p>Common Stock, par value $0.01</p>
	<p>(Title of Class of Securities)</p>
	<p>30231G102</p>
	<p>(CUSIP Number)</p>
	<table>
		<tr><td>NAMES OF REPORTING PERSONS</td><td>Icahn Partners LP</td></tr>
		<tr><td>SOLE VOTING POWER</td><td>20,500,000</td></tr>
		<tr><td>SHARED VOTING POWER</td><td>-0-</td></tr>
		<tr><td>SOLE DISPOSITIVE POWER</td><td>20,500,000</td></tr>
		<tr><td>AGGREGATE AMOUNT BENEFICIALLY OWNED BY EACH REPORTING PERSON</td><td>36,847,842</td></tr>
		<tr><td>PERCENT OF CLASS REPRESENTED BY AMOUNT IN ROW (11)</td><td>8.6% (1)</td></tr>
		<tr><td>TYPE OF REPORTING PERSON</td><td>OO</td></tr>
		<tr><td>CHECK IF A MEMBER OF A GROUP</td><td>(a) X</td></tr>
	</table>
	</body></html>`

	f, err := ParseSchedule13([]byte(src))
	require.NoError(t, err)

	assert.Equal(t, "SC 13D", f.FormType)
	assert.Equal(t, "Example Energy Corp", f.IssuerName)
	assert.Equal(t, "30231G102", f.IssuerCUSIP)

	require.Len(t, f.ReportingPersons, 1)
	p := f.ReportingPersons[0]
	assert.Equal(t, "Icahn Partners LP", p.Name)
	assert.Equal(t, int64(20500000), p.SoleVotingPower)
	assert.Equal(t, int64(0), p.SharedVotingPower)
	assert.Equal(t, int64(36847842), p.AggregateAmountOwned)
	assert.Equal(t, 8.6, p.PercentOfClass)
	assert.Equal(t, "OO", p.TypeOfReportingPerson)
	assert.Equal(t, "a", p.MemberOfGroup)
}

func TestExtractAmendmentInfo(t *testing.T) {
	isAmend, n := ExtractAmendmentInfo("SC 13D")
	assert.False(t, isAmend)
	assert.Nil(t, n)

	isAmend, n = ExtractAmendmentInfo("SC 13D/A")
	assert.True(t, isAmend)
	assert.Nil(t, n)

	isAmend, n = ExtractAmendmentInfo("SC 13D/A #3")
	assert.True(t, isAmend)
	require.NotNil(t, n)
	assert.Equal(t, 3, *n)
}

func TestExtractNumbers(t *testing.T) {
	assert.Equal(t, int64(36847842), extractInt64("36,847,842"))
	assert.Equal(t, int64(0), extractInt64("-0-"))
	assert.Equal(t, int64(0), extractInt64(""))
	assert.Equal(t, int64(20500000), extractInt64("20,500,000 shares"))

	assert.Equal(t, 8.6, extractFloat64("8.6% (1)"))
	assert.Equal(t, 0.0, extractFloat64("-0-"))
}

func TestParseFilingDispatch(t *testing.T) {
	out, err := ParseFiling([]byte(schedule13DXMLSample), Filing{Form: "SC 13D", FilingDate: "2023-07-14"})
	require.NoError(t, err)
	f, ok := out.(*Schedule13Filing)
	require.True(t, ok)
	assert.Equal(t, "2023-07-14", f.FilingDate)

	// Amendments resolve to the base form's parser
	_, err = ParseFiling([]byte(schedule13DXMLSample), Filing{Form: "SC 13D/A"})
	require.NoError(t, err)

	_, err = ParseFiling([]byte("{}"), Filing{Form: "424B2"})
	require.Error(t, err)
}
