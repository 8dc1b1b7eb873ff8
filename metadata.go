package edgar

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// FilingMetadata is identity information extracted from URLs, SGML
// headers, or index files.
type FilingMetadata struct {
	CIK        string
	Accession  string
	FormType   string
	Company    string
	FilingDate string // YYYY-MM-DD
}

var urlMetaRE = regexp.MustCompile(`/edgar/data/(\d+)/(\d+)/`)

// ExtractMetadataFromURL parses an EDGAR archive URL.
// Example: https://www.sec.gov/Archives/edgar/data/320193/000032019323000106/aapl-20230930.htm
func ExtractMetadataFromURL(url string) (*FilingMetadata, error) {
	matches := urlMetaRE.FindStringSubmatch(url)
	if len(matches) < 3 {
		return nil, fmt.Errorf("could not extract CIK and accession from URL %s", url)
	}
	return &FilingMetadata{
		CIK:       matches[1],
		Accession: formatAccession(matches[2]),
	}, nil
}

// formatAccession inserts the dashes: 000032019323000106 ->
// 0000320193-23-000106.
func formatAccession(acc string) string {
	if len(acc) == 18 {
		return acc[:10] + "-" + acc[10:12] + "-" + acc[12:]
	}
	return acc
}

// ParseSECHeader reads the SGML <SEC-HEADER> block that prefixes full
// submission text files. Only the fields the loader needs are pulled;
// the block is line-oriented TAG:VALUE text, not XML.
func ParseSECHeader(data []byte) (*FilingMetadata, error) {
	start := bytes.Index(data, []byte("<SEC-HEADER>"))
	if start < 0 {
		return nil, fmt.Errorf("no SEC-HEADER block found")
	}
	end := bytes.Index(data[start:], []byte("</SEC-HEADER>"))
	block := data[start:]
	if end >= 0 {
		block = data[start : start+end]
	}

	meta := &FilingMetadata{}
	sc := bufio.NewScanner(bytes.NewReader(block))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		tag, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(tag) {
		case "ACCESSION NUMBER":
			meta.Accession = val
		case "CONFORMED SUBMISSION TYPE":
			meta.FormType = val
		case "FILED AS OF DATE":
			if len(val) == 8 {
				meta.FilingDate = val[:4] + "-" + val[4:6] + "-" + val[6:]
			}
		case "COMPANY CONFORMED NAME":
			if meta.Company == "" {
				meta.Company = val
			}
		case "CENTRAL INDEX KEY":
			if meta.CIK == "" {
				meta.CIK = strings.TrimLeft(val, "0")
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan SEC header: %w", err)
	}
	if meta.Accession == "" {
		return nil, fmt.Errorf("SEC-HEADER block missing accession number")
	}
	return meta, nil
}

// IndexEntry is one line of a quarterly form index.
type IndexEntry struct {
	FormType   string
	Company    string
	CIK        string
	FilingDate string
	FileName   string
}

// ParseQuarterlyIndex parses an EDGAR form.idx quarterly index: a
// preamble, a column caption line, a dashed separator, then fixed-width
// columns Form Type / Company Name / CIK / Date Filed / File Name.
// Fields are cut at the caption line's column offsets; form types and
// company names both contain spaces, so whitespace splitting cannot
// recover them.
func ParseQuarterlyIndex(data []byte) ([]IndexEntry, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 1<<20), 1<<20)

	cut := func(line string, from, to int) string {
		if from >= len(line) {
			return ""
		}
		if to < 0 || to > len(line) {
			to = len(line)
		}
		return strings.TrimSpace(line[from:to])
	}

	var header string
	var company, cik, date, file int
	inBody := false
	var entries []IndexEntry
	for sc.Scan() {
		line := sc.Text()
		if !inBody {
			if strings.HasPrefix(line, "---") {
				company = strings.Index(header, "Company Name")
				cik = strings.Index(header, "CIK")
				date = strings.Index(header, "Date Filed")
				file = strings.Index(header, "File Name")
				if company <= 0 || cik <= company || date <= cik || file <= date {
					return nil, fmt.Errorf("index caption line not recognized: %q", header)
				}
				inBody = true
			} else if strings.TrimSpace(line) != "" {
				header = line
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry := IndexEntry{
			FormType:   cut(line, 0, company),
			Company:    cut(line, company, cik),
			CIK:        cut(line, cik, date),
			FilingDate: cut(line, date, file),
			FileName:   cut(line, file, -1),
		}
		if entry.FormType == "" || entry.CIK == "" || entry.FileName == "" {
			continue
		}
		entries = append(entries, entry)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan index: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("index contains no entries")
	}
	return entries, nil
}

// MergeMetadata combines URL-derived and content-derived metadata,
// preferring the URL for identity fields.
func MergeMetadata(urlMeta, contentMeta *FilingMetadata) *FilingMetadata {
	merged := &FilingMetadata{}
	if urlMeta != nil {
		*merged = *urlMeta
	}
	if contentMeta != nil {
		if merged.CIK == "" {
			merged.CIK = contentMeta.CIK
		}
		if merged.Accession == "" {
			merged.Accession = contentMeta.Accession
		}
		if merged.FormType == "" {
			merged.FormType = contentMeta.FormType
		}
		if merged.Company == "" {
			merged.Company = contentMeta.Company
		}
		if merged.FilingDate == "" {
			merged.FilingDate = contentMeta.FilingDate
		}
	}
	return merged
}
