package edgar

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FormParser turns one filing's primary document into a typed record.
// Implementations register for the form types they understand.
type FormParser interface {
	// FormTypes lists SEC form names this parser accepts ("SC 13D").
	FormTypes() []string
	// Parse decodes the document. The Filing provides provenance the
	// document itself may lack.
	Parse(data []byte, filing Filing) (any, error)
}

var formParsers = map[string]FormParser{}

// RegisterFormParser installs a parser for its form types. Later
// registrations win, which lets callers override the built-ins.
func RegisterFormParser(p FormParser) {
	for _, ft := range p.FormTypes() {
		formParsers[ft] = p
	}
}

func init() {
	RegisterFormParser(Schedule13Parser{})
}

// ParseFiling dispatches a filing's document to the registered parser
// for its form type. Amendments resolve to their base form's parser.
func ParseFiling(data []byte, filing Filing) (any, error) {
	form := filing.Form
	if i := strings.Index(form, "/"); i > 0 {
		form = form[:i]
	}
	p, ok := formParsers[form]
	if !ok {
		return nil, fmt.Errorf("no parser registered for form %q", filing.Form)
	}
	return p.Parse(data, filing)
}

// Schedule13Filing is a parsed SC 13D or SC 13G beneficial-ownership
// report. 13D filers are active investors; 13G filers certify passive
// intent.
type Schedule13Filing struct {
	FormType        string
	IsAmendment     bool
	AmendmentNumber *int // nil when unnumbered
	FilingDate      string

	IssuerCIK   string
	IssuerName  string
	IssuerCUSIP string

	SecurityTitle string
	EventDate     string

	ReportingPersons []ReportingPerson13

	// 13D purpose narrative (Item 4) and 13G passive certification
	// (Item 10), the two analytically relevant narratives.
	PurposeOfTransaction string
	Certification        string
	RuleDesignations     []string

	FilerCIK string
}

// ReportingPerson13 is one cover-page reporting person.
type ReportingPerson13 struct {
	CIK   string
	Name  string
	NoCIK bool

	AggregateAmountOwned int64
	PercentOfClass       float64

	SoleVotingPower        int64
	SharedVotingPower      int64
	SoleDispositivePower   int64
	SharedDispositivePower int64

	// MemberOfGroup "a" marks a joint filer reporting the same block of
	// shares as the other group members.
	MemberOfGroup      string
	IsAggregateExclude bool

	TypeOfReportingPerson string
	Citizenship           string
}

// TotalVotingPower returns sole plus shared voting power.
func (r *ReportingPerson13) TotalVotingPower() int64 {
	return r.SoleVotingPower + r.SharedVotingPower
}

// CalculateTotalShares aggregates shares across reporting persons.
// Joint filers (memberOfGroup "a") all report the same block, so the
// group contributes its maximum, not its sum.
func (s *Schedule13Filing) CalculateTotalShares() int64 {
	var included []ReportingPerson13
	for _, p := range s.ReportingPersons {
		if !p.IsAggregateExclude {
			included = append(included, p)
		}
	}

	var groupMax int64
	grouped := false
	for _, p := range included {
		if p.MemberOfGroup == "a" {
			grouped = true
			if p.AggregateAmountOwned > groupMax {
				groupMax = p.AggregateAmountOwned
			}
		}
	}
	if grouped {
		return groupMax
	}

	var total int64
	for _, p := range included {
		total += p.AggregateAmountOwned
	}
	return total
}

// CalculateTotalPercent returns the maximum reported class percentage.
func (s *Schedule13Filing) CalculateTotalPercent() float64 {
	pct := 0.0
	for _, p := range s.ReportingPersons {
		if p.PercentOfClass > pct {
			pct = p.PercentOfClass
		}
	}
	return pct
}

// IsActivist reports whether this is a 13D.
func (s *Schedule13Filing) IsActivist() bool { return strings.Contains(s.FormType, "13D") }

var (
	amendmentNoRE  = regexp.MustCompile(`Amendment\s+No\.\s+(\d+)`)
	amendmentTagRE = regexp.MustCompile(`/A\s*#?(\d+)`)
)

// ExtractAmendmentInfo parses "/A" markers and amendment numbers out of
// a form type string.
func ExtractAmendmentInfo(formType string) (bool, *int) {
	if !strings.Contains(formType, "/A") {
		return false, nil
	}
	for _, re := range []*regexp.Regexp{amendmentNoRE, amendmentTagRE} {
		if m := re.FindStringSubmatch(formType); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return true, &n
			}
		}
	}
	return true, nil
}

// Schedule13Parser handles SC 13D and SC 13G, both the XML submission
// format and the older rendered-HTML format.
type Schedule13Parser struct{}

func (Schedule13Parser) FormTypes() []string {
	return []string{"SC 13D", "SC 13G"}
}

func (Schedule13Parser) Parse(data []byte, filing Filing) (any, error) {
	f, err := ParseSchedule13(data)
	if err != nil {
		return nil, err
	}
	f.FilingDate = filing.FilingDate
	return f, nil
}

// ParseSchedule13 detects the document format and dispatches. XML
// submissions declare an edgarSubmission root with a schedule13D or
// schedule13g namespace; everything else goes through the HTML path.
func ParseSchedule13(data []byte) (*Schedule13Filing, error) {
	text := string(data)
	if strings.HasPrefix(strings.TrimSpace(text), "<?xml") &&
		strings.Contains(text, "<edgarSubmission") &&
		!strings.Contains(text, "<!DOCTYPE html") {
		if strings.Contains(text, "schedule13D") {
			return parseSchedule13DXML(data)
		}
		if strings.Contains(text, "schedule13g") {
			return parseSchedule13GXML(data)
		}
	}
	return parseSchedule13HTML(data)
}

// XML wire structures. 13D and 13G use different element names for the
// same fields (issuerCIK vs issuerCik, memberOfGroup vs memberGroup),
// hence two mirrors.

type sched13DXML struct {
	XMLName    xml.Name `xml:"edgarSubmission"`
	HeaderData struct {
		SubmissionType string `xml:"submissionType"`
		FilerInfo      struct {
			Filer struct {
				FilerCredentials struct {
					CIK string `xml:"cik"`
				} `xml:"filerCredentials"`
			} `xml:"filer"`
		} `xml:"filerInfo"`
	} `xml:"headerData"`
	FormData struct {
		CoverPageHeader struct {
			SecuritiesClassTitle string `xml:"securitiesClassTitle"`
			DateOfEvent          string `xml:"dateOfEvent"`
			IssuerInfo           struct {
				IssuerCIK   string `xml:"issuerCIK"`
				IssuerCUSIP string `xml:"issuerCUSIP"`
				IssuerName  string `xml:"issuerName"`
			} `xml:"issuerInfo"`
		} `xml:"coverPageHeader"`
		ReportingPersons struct {
			ReportingPersonInfo []sched13DPerson `xml:"reportingPersonInfo"`
		} `xml:"reportingPersons"`
		Items1To7 struct {
			Item4 struct {
				TransactionPurpose string `xml:"transactionPurpose"`
			} `xml:"item4"`
		} `xml:"items1To7"`
	} `xml:"formData"`
}

type sched13DPerson struct {
	ReportingPersonCIK        string `xml:"reportingPersonCIK"`
	ReportingPersonName       string `xml:"reportingPersonName"`
	ReportingPersonNoCIK      string `xml:"reportingPersonNoCIK"`
	CitizenshipOrOrganization string `xml:"citizenshipOrOrganization"`
	SoleVotingPower           string `xml:"soleVotingPower"`
	SharedVotingPower         string `xml:"sharedVotingPower"`
	SoleDispositivePower      string `xml:"soleDispositivePower"`
	SharedDispositivePower    string `xml:"sharedDispositivePower"`
	AggregateAmountOwned      string `xml:"aggregateAmountOwned"`
	IsAggregateExcludeShares  string `xml:"isAggregateExcludeShares"`
	PercentOfClass            string `xml:"percentOfClass"`
	TypeOfReportingPerson     string `xml:"typeOfReportingPerson"`
	MemberOfGroup             string `xml:"memberOfGroup"`
}

func parseSchedule13DXML(data []byte) (*Schedule13Filing, error) {
	var doc sched13DXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse Schedule 13D XML: %w", err)
	}

	filing := &Schedule13Filing{
		FormType:             doc.HeaderData.SubmissionType,
		FilerCIK:             doc.HeaderData.FilerInfo.Filer.FilerCredentials.CIK,
		IssuerCIK:            doc.FormData.CoverPageHeader.IssuerInfo.IssuerCIK,
		IssuerName:           doc.FormData.CoverPageHeader.IssuerInfo.IssuerName,
		IssuerCUSIP:          doc.FormData.CoverPageHeader.IssuerInfo.IssuerCUSIP,
		SecurityTitle:        doc.FormData.CoverPageHeader.SecuritiesClassTitle,
		EventDate:            doc.FormData.CoverPageHeader.DateOfEvent,
		PurposeOfTransaction: doc.FormData.Items1To7.Item4.TransactionPurpose,
	}
	filing.IsAmendment, filing.AmendmentNumber = ExtractAmendmentInfo(filing.FormType)

	for _, px := range doc.FormData.ReportingPersons.ReportingPersonInfo {
		p := ReportingPerson13{
			CIK:                    px.ReportingPersonCIK,
			Name:                   px.ReportingPersonName,
			NoCIK:                  strings.EqualFold(px.ReportingPersonNoCIK, "Y"),
			Citizenship:            px.CitizenshipOrOrganization,
			TypeOfReportingPerson:  px.TypeOfReportingPerson,
			MemberOfGroup:          px.MemberOfGroup,
			IsAggregateExclude:     strings.EqualFold(px.IsAggregateExcludeShares, "Y"),
			SoleVotingPower:        extractInt64(px.SoleVotingPower),
			SharedVotingPower:      extractInt64(px.SharedVotingPower),
			SoleDispositivePower:   extractInt64(px.SoleDispositivePower),
			SharedDispositivePower: extractInt64(px.SharedDispositivePower),
			AggregateAmountOwned:   extractInt64(px.AggregateAmountOwned),
			PercentOfClass:         extractFloat64(px.PercentOfClass),
		}
		if p.CIK == "" && !p.NoCIK {
			p.CIK = filing.FilerCIK
		}
		filing.ReportingPersons = append(filing.ReportingPersons, p)
	}
	return filing, nil
}

type sched13GXML struct {
	XMLName    xml.Name `xml:"edgarSubmission"`
	HeaderData struct {
		SubmissionType string `xml:"submissionType"`
		FilerInfo      struct {
			Filer struct {
				FilerCredentials struct {
					CIK string `xml:"cik"`
				} `xml:"filerCredentials"`
			} `xml:"filer"`
		} `xml:"filerInfo"`
	} `xml:"headerData"`
	FormData struct {
		CoverPageHeader struct {
			SecuritiesClassTitle                 string `xml:"securitiesClassTitle"`
			EventDateRequiresFilingThisStatement string `xml:"eventDateRequiresFilingThisStatement"`
			IssuerInfo                           struct {
				IssuerCik   string `xml:"issuerCik"`
				IssuerName  string `xml:"issuerName"`
				IssuerCusip string `xml:"issuerCusip"`
			} `xml:"issuerInfo"`
			DesignateRulesPursuantThisScheduleFiled struct {
				DesignateRulePursuantThisScheduleFiled []string `xml:"designateRulePursuantThisScheduleFiled"`
			} `xml:"designateRulesPursuantThisScheduleFiled"`
		} `xml:"coverPageHeader"`
		PersonDetails []sched13GPerson `xml:"coverPageHeaderReportingPersonDetails"`
		Items         struct {
			Item10 struct {
				Certifications string `xml:"certifications"`
			} `xml:"item10"`
		} `xml:"items"`
	} `xml:"formData"`
}

type sched13GPerson struct {
	ReportingPersonName       string `xml:"reportingPersonName"`
	ReportingPersonNoCIK      string `xml:"reportingPersonNoCIK"`
	CitizenshipOrOrganization string `xml:"citizenshipOrOrganization"`
	Shares                    struct {
		SoleVotingPower        string `xml:"soleVotingPower"`
		SharedVotingPower      string `xml:"sharedVotingPower"`
		SoleDispositivePower   string `xml:"soleDispositivePower"`
		SharedDispositivePower string `xml:"sharedDispositivePower"`
	} `xml:"reportingPersonBeneficiallyOwnedNumberOfShares"`
	AggregateShares          string `xml:"reportingPersonBeneficiallyOwnedAggregateNumberOfShares"`
	ClassPercent             string `xml:"classPercent"`
	MemberGroup              string `xml:"memberGroup"`
	TypeOfReportingPerson    string `xml:"typeOfReportingPerson"`
	IsAggregateExcludeShares string `xml:"isAggregateExcludeShares"`
}

func parseSchedule13GXML(data []byte) (*Schedule13Filing, error) {
	var doc sched13GXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse Schedule 13G XML: %w", err)
	}

	cover := doc.FormData.CoverPageHeader
	filing := &Schedule13Filing{
		FormType:         doc.HeaderData.SubmissionType,
		FilerCIK:         doc.HeaderData.FilerInfo.Filer.FilerCredentials.CIK,
		IssuerCIK:        cover.IssuerInfo.IssuerCik,
		IssuerName:       cover.IssuerInfo.IssuerName,
		IssuerCUSIP:      cover.IssuerInfo.IssuerCusip,
		SecurityTitle:    cover.SecuritiesClassTitle,
		EventDate:        cover.EventDateRequiresFilingThisStatement,
		RuleDesignations: cover.DesignateRulesPursuantThisScheduleFiled.DesignateRulePursuantThisScheduleFiled,
		Certification:    doc.FormData.Items.Item10.Certifications,
	}
	filing.IsAmendment, filing.AmendmentNumber = ExtractAmendmentInfo(filing.FormType)

	for _, px := range doc.FormData.PersonDetails {
		p := ReportingPerson13{
			Name:                   px.ReportingPersonName,
			NoCIK:                  strings.EqualFold(px.ReportingPersonNoCIK, "Y"),
			Citizenship:            px.CitizenshipOrOrganization,
			TypeOfReportingPerson:  px.TypeOfReportingPerson,
			MemberOfGroup:          px.MemberGroup,
			IsAggregateExclude:     strings.EqualFold(px.IsAggregateExcludeShares, "Y"),
			SoleVotingPower:        extractInt64(px.Shares.SoleVotingPower),
			SharedVotingPower:      extractInt64(px.Shares.SharedVotingPower),
			SoleDispositivePower:   extractInt64(px.Shares.SoleDispositivePower),
			SharedDispositivePower: extractInt64(px.Shares.SharedDispositivePower),
			AggregateAmountOwned:   extractInt64(px.AggregateShares),
			PercentOfClass:         extractFloat64(px.ClassPercent),
		}
		if p.CIK == "" && !p.NoCIK {
			p.CIK = filing.FilerCIK
		}
		filing.ReportingPersons = append(filing.ReportingPersons, p)
	}
	return filing, nil
}

// parseSchedule13HTML handles the rendered HTML format: the cover page
// fields sit before parenthesized markers and each reporting person
// occupies a run of labeled table rows.
func parseSchedule13HTML(data []byte) (*Schedule13Filing, error) {
	doc, err := ParseHTMLDocument(data, ParserConfig{
		MaxDocumentSize:    100 << 20,
		StreamingThreshold: 100 << 20,
		TableExtraction:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse Schedule 13 HTML: %w", err)
	}
	text := doc.Text()

	filing := &Schedule13Filing{}
	switch {
	case strings.Contains(text, "SCHEDULE 13D"):
		filing.FormType = "SC 13D"
	case strings.Contains(text, "SCHEDULE 13G"):
		filing.FormType = "SC 13G"
	}
	if strings.Contains(text, "Amendment No.") {
		filing.IsAmendment, filing.AmendmentNumber = ExtractAmendmentInfo("/A " + textAfter(text, "Amendment No.", 8))
		filing.FormType += "/A"
	}

	filing.IssuerName = fieldBeforeMarker(text, "(Name of Issuer)")
	filing.SecurityTitle = fieldBeforeMarker(text, "(Title of Class of Securities)")
	filing.IssuerCUSIP = fieldBeforeMarker(text, "(CUSIP Number)")

	filing.ReportingPersons = personsFromTables(doc)
	return filing, nil
}

// personsFromTables extracts reporting persons from the cover-page
// tables, which label each row ("NAMES OF REPORTING PERSONS", "SOLE
// VOTING POWER", ...).
func personsFromTables(doc *Document) []ReportingPerson13 {
	var persons []ReportingPerson13
	var cur *ReportingPerson13

	flush := func() {
		if cur != nil && len(cur.Name) > 3 {
			persons = append(persons, *cur)
		}
		cur = nil
	}

	for _, t := range doc.Tables {
		for r := 0; r < t.Rows(); r++ {
			label := strings.ToUpper(t.CellText(r, 0))
			value := rowValue(t, r)
			switch {
			case strings.Contains(label, "NAMES OF REPORTING PERSON"):
				flush()
				cur = &ReportingPerson13{Name: cleanPersonName(value)}
			case cur == nil:
			case strings.Contains(label, "SOLE VOTING POWER"):
				cur.SoleVotingPower = extractInt64(value)
			case strings.Contains(label, "SHARED VOTING POWER"):
				cur.SharedVotingPower = extractInt64(value)
			case strings.Contains(label, "SOLE DISPOSITIVE POWER"):
				cur.SoleDispositivePower = extractInt64(value)
			case strings.Contains(label, "SHARED DISPOSITIVE POWER"):
				cur.SharedDispositivePower = extractInt64(value)
			case strings.Contains(label, "AGGREGATE AMOUNT"):
				cur.AggregateAmountOwned = extractInt64(value)
			case strings.Contains(label, "PERCENT OF CLASS"):
				cur.PercentOfClass = extractFloat64(value)
			case strings.Contains(label, "TYPE OF REPORTING PERSON"):
				cur.TypeOfReportingPerson = cleanTypeCode(value)
			case strings.Contains(label, "CITIZENSHIP"):
				cur.Citizenship = value
			case strings.Contains(label, "MEMBER OF A GROUP"):
				if strings.Contains(value, "(a)") || strings.EqualFold(value, "a") {
					cur.MemberOfGroup = "a"
				}
			}
		}
	}
	flush()
	return persons
}

// rowValue joins a row's cells after the label cell.
func rowValue(t *TableMatrix, r int) string {
	var parts []string
	var last *TableCell
	for c := 1; c < t.Cols(); c++ {
		cell := t.Cell(r, c)
		if cell == nil || cell == last || cell.Text == "" {
			continue
		}
		last = cell
		parts = append(parts, cell.Text)
	}
	v := strings.Join(parts, " ")
	if v == "" {
		// Single-column layouts put label and value in one cell
		v = t.CellText(r, 0)
		if i := strings.Index(v, "\n"); i > 0 {
			v = v[i+1:]
		}
	}
	return strings.TrimSpace(v)
}

var trailingRowNumberRE = regexp.MustCompile(`\s+\d+\s*$`)

func cleanPersonName(s string) string {
	s = trailingRowNumberRE.ReplaceAllString(s, "")
	for _, cut := range []string{"NAMES OF REPORTING PERSONS", "CHECK THE APPROPRIATE BOX"} {
		if i := strings.Index(strings.ToUpper(s), cut); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

func cleanTypeCode(s string) string {
	s = strings.ReplaceAll(s, "(See Instructions)", "")
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && len(line) < 30 && !strings.Contains(line, "Page") && !strings.Contains(line, "CUSIP") {
			return line
		}
	}
	return strings.TrimSpace(s)
}

var (
	intRunRE   = regexp.MustCompile(`[0-9,]+`)
	floatRunRE = regexp.MustCompile(`[0-9,]+\.?[0-9]*`)
)

// extractInt64 pulls the first integer out of free text; "-0-" and
// empty mean zero.
func extractInt64(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "-0-") {
		return 0
	}
	match := strings.ReplaceAll(intRunRE.FindString(s), ",", "")
	if match == "" {
		return 0
	}
	if v, err := strconv.ParseInt(match, 10, 64); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(match, 64); err == nil {
		return int64(f)
	}
	return 0
}

// extractFloat64 pulls the first decimal out of free text ("8.6% (1)").
func extractFloat64(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "-0-") {
		return 0
	}
	match := strings.ReplaceAll(floatRunRE.FindString(s), ",", "")
	if match == "" {
		return 0
	}
	f, _ := strconv.ParseFloat(match, 64)
	return f
}

// fieldBeforeMarker returns the last non-empty line before a marker
// such as "(Name of Issuer)".
func fieldBeforeMarker(text, marker string) string {
	idx := strings.Index(text, marker)
	if idx < 0 {
		return ""
	}
	start := idx - 200
	if start < 0 {
		start = 0
	}
	lines := strings.Split(text[start:idx], "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" && !strings.HasPrefix(line, "(") && len(line) > 2 {
			return line
		}
	}
	return ""
}

func textAfter(text, marker string, n int) string {
	idx := strings.Index(text, marker)
	if idx < 0 {
		return ""
	}
	start := idx + len(marker)
	end := start + n
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(text[start:end])
}
