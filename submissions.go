package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Submissions is the parsed submissions feed for one CIK.
type Submissions struct {
	CIK            string      `json:"cik"`
	EntityType     string      `json:"entityType"`
	SIC            string      `json:"sic"`
	SICDescription string      `json:"sicDescription"`
	Name           string      `json:"name"`
	Tickers        []string    `json:"tickers"`
	Exchanges      []string    `json:"exchanges"`
	EIN            string      `json:"ein"`
	Description    string      `json:"description"`
	Category       string      `json:"category"`
	FiscalYearEnd  string      `json:"fiscalYearEnd"`
	Filings        FilingsData `json:"filings"`
}

// FilingsData holds the recent window plus pointers to paginated files
// of older filings.
type FilingsData struct {
	Recent FilingArrays `json:"recent"`
	Files  []FilingFile `json:"files"`
}

// FilingFile points to one paginated file of older filings.
type FilingFile struct {
	Name        string `json:"name"`
	FilingCount int    `json:"filingCount"`
	FilingFrom  string `json:"filingFrom"`
	FilingTo    string `json:"filingTo"`
}

// FilingArrays is the feed's parallel-array encoding; index i across
// every array describes one filing.
type FilingArrays struct {
	AccessionNumber       []string `json:"accessionNumber"`
	FilingDate            []string `json:"filingDate"`
	ReportDate            []string `json:"reportDate"`
	AcceptanceDateTime    []string `json:"acceptanceDateTime"`
	Act                   []string `json:"act"`
	Form                  []string `json:"form"`
	FileNumber            []string `json:"fileNumber"`
	FilmNumber            []string `json:"filmNumber"`
	Items                 []string `json:"items"`
	Size                  []int    `json:"size"`
	IsXBRL                []int    `json:"isXBRL"`
	IsInlineXBRL          []int    `json:"isInlineXBRL"`
	PrimaryDocument       []string `json:"primaryDocument"`
	PrimaryDocDescription []string `json:"primaryDocDescription"`
}

// Filing is one filing with derived CIK and URL fields.
type Filing struct {
	AccessionNumber       string
	FilingDate            string
	ReportDate            string
	AcceptanceDateTime    string
	Act                   string
	Form                  string
	FileNumber            string
	FilmNumber            string
	Items                 string
	Size                  int
	IsXBRL                bool
	IsInlineXBRL          bool
	PrimaryDocument       string
	PrimaryDocDescription string

	CIK string
	URL string
}

// FetchSubmissions retrieves and parses the submissions feed for a CIK.
func FetchSubmissions(ctx context.Context, fetcher Fetcher, cik string) (*Submissions, error) {
	url := fmt.Sprintf("https://data.sec.gov/submissions/CIK%010s.json", cik)
	res, err := fetcher.Fetch(ctx, url, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch submissions for CIK %s: %w", cik, err)
	}
	var subs Submissions
	if err := json.Unmarshal(res.Body, &subs); err != nil {
		return nil, fmt.Errorf("failed to parse submissions JSON: %w", err)
	}
	return &subs, nil
}

// ParseSubmissions parses a submissions feed from a reader, for local
// files and tests.
func ParseSubmissions(r io.Reader) (*Submissions, error) {
	var subs Submissions
	if err := json.NewDecoder(r).Decode(&subs); err != nil {
		return nil, fmt.Errorf("failed to parse submissions JSON: %w", err)
	}
	return &subs, nil
}

// GetFilings flattens the parallel arrays into Filing values. Optional
// arrays are bounds-checked; the feed occasionally ships short ones.
func (fa *FilingArrays) GetFilings(cik string) []Filing {
	count := len(fa.AccessionNumber)
	filings := make([]Filing, count)

	for i := 0; i < count; i++ {
		f := Filing{
			CIK:             cik,
			AccessionNumber: fa.AccessionNumber[i],
		}
		if i < len(fa.FilingDate) {
			f.FilingDate = fa.FilingDate[i]
		}
		if i < len(fa.Form) {
			f.Form = fa.Form[i]
		}
		if i < len(fa.PrimaryDocument) {
			f.PrimaryDocument = fa.PrimaryDocument[i]
		}
		if i < len(fa.ReportDate) {
			f.ReportDate = fa.ReportDate[i]
		}
		if i < len(fa.AcceptanceDateTime) {
			f.AcceptanceDateTime = fa.AcceptanceDateTime[i]
		}
		if i < len(fa.Act) {
			f.Act = fa.Act[i]
		}
		if i < len(fa.FileNumber) {
			f.FileNumber = fa.FileNumber[i]
		}
		if i < len(fa.FilmNumber) {
			f.FilmNumber = fa.FilmNumber[i]
		}
		if i < len(fa.Items) {
			f.Items = fa.Items[i]
		}
		if i < len(fa.Size) {
			f.Size = fa.Size[i]
		}
		if i < len(fa.IsXBRL) {
			f.IsXBRL = fa.IsXBRL[i] != 0
		}
		if i < len(fa.IsInlineXBRL) {
			f.IsInlineXBRL = fa.IsInlineXBRL[i] != 0
		}
		if i < len(fa.PrimaryDocDescription) {
			f.PrimaryDocDescription = fa.PrimaryDocDescription[i]
		}
		f.URL = f.BuildURL()
		filings[i] = f
	}
	return filings
}

// BuildURL constructs the archive URL for the filing's primary
// document.
func (f *Filing) BuildURL() string {
	accessionPath := strings.ReplaceAll(f.AccessionNumber, "-", "")

	// primaryDocument sometimes points at an XSL rendering path
	// ("xslF345X05/doc.xml"); the real document is the final element
	doc := f.PrimaryDocument
	if i := strings.LastIndex(doc, "/"); i >= 0 {
		doc = doc[i+1:]
	}
	return fmt.Sprintf("https://www.sec.gov/Archives/edgar/data/%s/%s/%s",
		strings.TrimLeft(f.CIK, "0"), accessionPath, doc)
}

// FilingDateTime parses the filing date.
func (f *Filing) FilingDateTime() (time.Time, error) {
	return time.Parse("2006-01-02", f.FilingDate)
}

// GetRecentFilings returns the recent window as Filing values.
func (s *Submissions) GetRecentFilings() []Filing {
	return s.Filings.Recent.GetFilings(s.CIK)
}

// FilterByForm filters filings by form type. Schedule 13 requests
// normalize to their "SC" names and include amendments; other forms
// match exactly ("10-K/A" must be requested explicitly).
func FilterByForm(filings []Filing, formType string) []Filing {
	var filtered []Filing
	for _, f := range filings {
		if matchesFormType(f.Form, formType) {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

func matchesFormType(filingForm, requestedForm string) bool {
	normalized := normalizeFormType(requestedForm)

	// "13" is a wildcard over all Schedule 13 variants
	if requestedForm == "13" {
		return strings.HasPrefix(filingForm, "SC 13D") || strings.HasPrefix(filingForm, "SC 13G")
	}
	if filingForm == normalized {
		return true
	}
	if strings.HasPrefix(normalized, "SC 13") {
		return strings.HasPrefix(filingForm, normalized+"/")
	}
	return false
}

// normalizeFormType maps user-friendly names ("13D") to SEC form names
// ("SC 13D"). Non-schedule forms pass through unchanged.
func normalizeFormType(formType string) string {
	formType = strings.TrimSpace(formType)
	if strings.HasPrefix(formType, "SC ") {
		return formType
	}
	if formType == "13D" || formType == "13G" ||
		strings.HasPrefix(formType, "13D/") || strings.HasPrefix(formType, "13G/") {
		return "SC " + formType
	}
	return formType
}

// FilterByDateRange keeps filings whose filing date falls in
// [from, to], both YYYY-MM-DD.
func FilterByDateRange(filings []Filing, from, to string) []Filing {
	var filtered []Filing
	for _, f := range filings {
		if f.FilingDate >= from && f.FilingDate <= to {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// FetchPaginatedFilings retrieves one paginated file of older filings.
func FetchPaginatedFilings(ctx context.Context, fetcher Fetcher, filename string) (*FilingArrays, error) {
	url := "https://data.sec.gov/submissions/" + filename
	res, err := fetcher.Fetch(ctx, url, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch paginated filings %s: %w", filename, err)
	}
	var filings FilingArrays
	if err := json.Unmarshal(res.Body, &filings); err != nil {
		return nil, fmt.Errorf("failed to parse paginated filings JSON: %w", err)
	}
	return &filings, nil
}

// GetAllFilings returns the recent window plus every paginated file.
// The fetcher's limiter paces the requests.
func (s *Submissions) GetAllFilings(ctx context.Context, fetcher Fetcher) ([]Filing, error) {
	all := s.GetRecentFilings()
	for _, fileInfo := range s.Filings.Files {
		filings, err := FetchPaginatedFilings(ctx, fetcher, fileInfo.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", fileInfo.Name, err)
		}
		all = append(all, filings.GetFilings(s.CIK)...)
	}
	return all, nil
}
