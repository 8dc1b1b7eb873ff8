package edgar

import (
	"strings"
)

// parseInline extracts facts from an inline XBRL (iXBRL) document:
// XHTML with contexts and units under ix:resources and facts wrapped in
// ix:nonFraction / ix:nonNumeric elements carrying scale, decimals and
// sign attributes.
func parseInline(data []byte, doc *XBRLDocument, prov Provenance) error {
	if err := collectResources(data, doc, "ixbrl"); err != nil {
		return err
	}
	return extractFactElements(data, doc, prov, true)
}

// XBRLFormat identifies how XBRL data is packaged in a document.
type XBRLFormat int

const (
	FormatUnknown XBRLFormat = iota
	FormatInstance
	FormatInline
)

// DetectXBRLFormat determines whether data is inline XBRL, a standalone
// instance, or neither. Detection is marker-based so it works on the
// non-well-formed HTML SEC accepts.
func DetectXBRLFormat(data []byte) XBRLFormat {
	head := data
	if len(head) > 1<<20 {
		head = head[:1<<20]
	}
	content := string(head)

	if strings.Contains(content, "xmlns:ix=") ||
		strings.Contains(content, "<ix:") ||
		strings.Contains(content, "inlineXBRL") {
		return FormatInline
	}
	if strings.Contains(content, "<xbrl") ||
		strings.Contains(content, "xmlns:xbrli=") {
		return FormatInstance
	}
	return FormatUnknown
}
