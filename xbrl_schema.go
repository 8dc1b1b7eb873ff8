package edgar

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
)

// Concept is a taxonomy element: the (namespace, local name) pair plus
// the typing attributes the schema declares for it.
type Concept struct {
	Name      string // prefixed name, e.g. "us-gaap:Revenues"
	Namespace string
	Local     string

	DataType          string // e.g. "xbrli:monetaryItemType"
	PeriodType        PeriodType
	Balance           string // "debit", "credit" or ""
	Abstract          bool
	SubstitutionGroup string
}

// Kind maps the schema data type onto the value taxonomy used by the
// unit normalizer.
func (c *Concept) Kind() ValueKind {
	dt := strings.ToLower(c.DataType)
	switch {
	case strings.Contains(dt, "monetary"):
		return ValueMonetary
	case strings.Contains(dt, "shares"):
		return ValueShares
	case strings.Contains(dt, "pershare"):
		return ValuePerShare
	case strings.Contains(dt, "percent"), strings.Contains(dt, "pure"):
		return ValueRatio
	case strings.Contains(dt, "date"):
		return ValueDate
	case strings.Contains(dt, "string"), strings.Contains(dt, "textblock"):
		return ValueText
	default:
		return ValueUnknown
	}
}

// parseSchema reads an XBRL taxonomy schema (.xsd) and returns the
// element table keyed by prefixed concept name. The target namespace
// prefix is derived from the namespace URI the way the instance parser
// derives it, so the two agree.
func parseSchema(data []byte) (map[string]*Concept, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = asciiCompatible

	concepts := make(map[string]*Concept)
	var targetNS string

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Doc: "schema", Offset: decoder.InputOffset(), Reason: "malformed-xml", Err: err}
		}

		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "schema":
			targetNS = getAttr(start.Attr, "targetNamespace")
		case "element":
			name := getAttr(start.Attr, "name")
			if name == "" {
				continue
			}
			ns := targetNS
			prefix := namespacePrefix(ns)
			c := &Concept{
				Name:              prefix + ":" + name,
				Namespace:         ns,
				Local:             name,
				DataType:          getAttr(start.Attr, "type"),
				Balance:           getAttrNS(start.Attr, "balance"),
				Abstract:          getAttr(start.Attr, "abstract") == "true",
				SubstitutionGroup: getAttr(start.Attr, "substitutionGroup"),
			}
			if getAttrNS(start.Attr, "periodType") == "instant" {
				c.PeriodType = PeriodInstant
			} else {
				c.PeriodType = PeriodDuration
			}
			concepts[c.Name] = c
		}
	}
	return concepts, nil
}

// getAttrNS matches an attribute by local name regardless of namespace
// prefix (xbrli:balance, xbrli:periodType).
func getAttrNS(attrs []xml.Attr, local string) string {
	for _, a := range attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// namespacePrefix derives the conventional prefix from a namespace URI.
// "http://fasb.org/us-gaap/2023" -> "us-gaap".
func namespacePrefix(namespace string) string {
	switch {
	case strings.Contains(namespace, "us-gaap"):
		return "us-gaap"
	case strings.Contains(namespace, "ifrs"):
		return "ifrs-full"
	case strings.Contains(namespace, "/dei"):
		return "dei"
	case strings.Contains(namespace, "/srt"):
		return "srt"
	case strings.Contains(namespace, "xbrl.org/2003/instance"):
		return "xbrli"
	case strings.Contains(namespace, "/country"):
		return "country"
	}
	// Company extension namespaces look like http://www.apple.com/20230930;
	// use the registrable domain label as the prefix.
	trimmed := strings.TrimPrefix(strings.TrimPrefix(namespace, "http://"), "https://")
	trimmed = strings.TrimPrefix(trimmed, "www.")
	if i := strings.IndexAny(trimmed, "./"); i > 0 {
		return trimmed[:i]
	}
	parts := strings.Split(namespace, "/")
	if len(parts) > 0 && parts[len(parts)-1] != "" {
		return parts[len(parts)-1]
	}
	return "unknown"
}

// conceptFromHref resolves a locator href fragment to a prefixed concept
// name. Fragments follow the "{prefix}_{LocalName}" convention:
// "us-gaap-2023.xsd#us-gaap_Revenues" -> "us-gaap:Revenues".
func conceptFromHref(href string) string {
	frag := href
	if i := strings.Index(frag, "#"); i >= 0 {
		frag = frag[i+1:]
	}
	if i := strings.Index(frag, "_"); i >= 0 {
		return frag[:i] + ":" + frag[i+1:]
	}
	return frag
}

// asciiCompatible treats any declared charset as UTF-8 compatible; SEC
// documents declare ascii, us-ascii and windows-1252 but are readable
// as UTF-8 for the token structure we consume.
func asciiCompatible(charset string, input io.Reader) (io.Reader, error) {
	return input, nil
}
