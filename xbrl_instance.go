package edgar

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
	"time"
)

// Divide represents a ratio unit (numerator/denominator).
type Divide struct {
	Numerator   string `xml:"unitNumerator>measure"`
	Denominator string `xml:"unitDenominator>measure"`
}

// xmlMember is one explicit dimension member inside a context segment.
type xmlMember struct {
	Dimension string `xml:"dimension,attr"`
	Value     string `xml:",chardata"`
}

// xmlContext mirrors the xbrli:context element including dimensional
// segments and scenarios.
type xmlContext struct {
	ID     string `xml:"id,attr"`
	Entity struct {
		Identifier string `xml:"identifier"`
		Segment    struct {
			Members []xmlMember `xml:"explicitMember"`
		} `xml:"segment"`
	} `xml:"entity"`
	Scenario struct {
		Members []xmlMember `xml:"explicitMember"`
	} `xml:"scenario"`
	Period struct {
		Instant   string `xml:"instant"`
		StartDate string `xml:"startDate"`
		EndDate   string `xml:"endDate"`
	} `xml:"period"`
}

// xmlUnit mirrors the xbrli:unit element.
type xmlUnit struct {
	ID      string  `xml:"id,attr"`
	Measure string  `xml:"measure"`
	Divide  *Divide `xml:"divide"`
}

// toContext converts the XML form into the interned Context model.
func (x *xmlContext) toContext() *Context {
	ctx := &Context{
		ID:     x.ID,
		Entity: strings.TrimSpace(x.Entity.Identifier),
	}
	parse := func(s string) time.Time {
		t, _ := time.Parse("2006-01-02", strings.TrimSpace(s))
		return t
	}
	ctx.Instant = parse(x.Period.Instant)
	ctx.Start = parse(x.Period.StartDate)
	ctx.End = parse(x.Period.EndDate)

	members := append(append([]xmlMember(nil), x.Entity.Segment.Members...), x.Scenario.Members...)
	if len(members) > 0 {
		ctx.Dimensions = make(map[string]string, len(members))
		for _, m := range members {
			ctx.Dimensions[strings.TrimSpace(m.Dimension)] = strings.TrimSpace(m.Value)
		}
	}
	return ctx
}

// Provenance identifies the filing a fact came from.
type Provenance struct {
	FilingDate time.Time
	FormType   string
	Accession  string
}

// deiInfo collects Document and Entity Information facts that scope the
// rest of the document.
type deiInfo struct {
	RegistrantName string
	CIK            string
	DocumentType   string
	FiscalYear     int
	FiscalPeriod   FiscalPeriod
	PeriodEndDate  time.Time
}

// parseInstance walks an XBRL instance document, interning contexts and
// units, then extracting every fact element into the document's store.
// Facts are emitted in document order. A malformed instance is a
// surfaced *ParseError; an individual fact that fails to resolve is
// skipped with a warning.
func parseInstance(data []byte, doc *XBRLDocument, prov Provenance) error {
	if err := collectResources(data, doc, "instance"); err != nil {
		return err
	}
	return extractFactElements(data, doc, prov, false)
}

// collectResources gathers contexts and units. For iXBRL they live under
// ix:resources; for plain instances they are direct children of xbrl.
func collectResources(data []byte, doc *XBRLDocument, docName string) error {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = asciiCompatible
	decoder.Strict = false

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &ParseError{Doc: docName, Offset: decoder.InputOffset(), Reason: "malformed-xml", Err: err}
		}

		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "context":
			var xc xmlContext
			if err := decoder.DecodeElement(&xc, &start); err != nil {
				continue // skip malformed contexts
			}
			doc.contexts.Intern(xc.toContext())
		case "unit":
			var xu xmlUnit
			if err := decoder.DecodeElement(&xu, &start); err != nil {
				continue
			}
			doc.units[xu.ID] = ParseUnit(xu.Measure, xu.Divide)
		}
	}
	return nil
}

// extractFactElements finds fact elements (anything carrying contextRef)
// and adds them to the store. inline selects iXBRL nonFraction and
// nonNumeric handling; otherwise any namespaced element with a
// contextRef is a fact.
func extractFactElements(data []byte, doc *XBRLDocument, prov Provenance, inline bool) error {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = asciiCompatible
	decoder.Strict = false

	dei := &deiInfo{}

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &ParseError{Doc: "instance", Offset: decoder.InputOffset(), Reason: "malformed-xml", Err: err}
		}

		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		var concept string
		var scale int
		var sign string

		if inline {
			if start.Name.Local != "nonFraction" && start.Name.Local != "nonNumeric" {
				continue
			}
			concept = getAttr(start.Attr, "name")
			if s := getAttr(start.Attr, "scale"); s != "" {
				scale, _ = strconv.Atoi(s)
			}
			sign = getAttr(start.Attr, "sign")
		} else {
			switch start.Name.Local {
			case "context", "unit", "schemaRef", "xbrl":
				continue
			}
			concept = start.Name.Local
			if start.Name.Space != "" {
				concept = namespacePrefix(start.Name.Space) + ":" + start.Name.Local
			}
		}

		contextRef := getAttr(start.Attr, "contextRef")
		if contextRef == "" || concept == "" {
			continue
		}

		var raw string
		if err := decoder.DecodeElement(&raw, &start); err != nil {
			continue
		}
		raw = strings.TrimSpace(raw)

		ctx, ok := doc.contexts.Lookup(contextRef)
		if !ok {
			doc.warn("unresolved contextRef", "context", contextRef, "concept", concept)
			continue
		}

		unitRef := getAttr(start.Attr, "unitRef")
		unit, hasUnit := doc.units[unitRef]
		if unitRef != "" && !hasUnit {
			doc.warn("unknown unit", "unitRef", unitRef, "concept", concept)
			unit = Unit{Canonical: unitRef, Kind: UnitUnknown}
		}

		decimals := 0
		if d := getAttr(start.Attr, "decimals"); d != "" {
			if d == "INF" {
				decimals = DecimalsInf
			} else {
				decimals, _ = strconv.Atoi(d)
			}
		}

		f := buildFact(doc, concept, raw, ctx, unit, decimals, scale, sign, prov)
		captureDEI(dei, concept, raw)
		if err := doc.Facts.Add(f); err != nil {
			doc.warn("fact rejected", "concept", concept, "err", err)
		}
	}

	applyDEI(doc, dei)
	return nil
}

// buildFact assembles an immutable Fact from parsed parts. Schema
// metadata, when available, refines the value tag and statement type.
func buildFact(doc *XBRLDocument, concept, raw string, ctx *Context, unit Unit, decimals, scale int, sign string, prov Provenance) Fact {
	f := Fact{
		Concept:    concept,
		Context:    ctx,
		Unit:       unit,
		RawValue:   raw,
		Decimals:   decimals,
		FilingDate: prov.FilingDate,
		FormType:   prov.FormType,
		Accession:  prov.Accession,
		Dimensions: ctx.Dimensions,
		Confidence: 1.0,
		Quality:    QualityHigh,
	}
	if ctx.IsInstant() {
		f.PeriodType = PeriodInstant
		f.PeriodEnd = ctx.Instant
	} else {
		f.PeriodType = PeriodDuration
		f.PeriodStart = ctx.Start
		f.PeriodEnd = ctx.End
	}

	f.Value = TypedValue(raw, unit, scale, sign)
	if meta, ok := doc.Concepts[concept]; ok {
		// Per-share concepts sometimes carry a bare currency unit;
		// the schema's data type wins over the unit guess.
		if n, isNum := f.Value.Float64(); isNum {
			switch meta.Kind() {
			case ValuePerShare:
				f.Value = PerShareValue(n)
			case ValueShares:
				f.Value = SharesValue(n)
			case ValueRatio:
				f.Value = RatioValue(n)
			}
		}
	}
	if f.Value.Kind == ValueUnknown && unit.Kind == UnitUnknown && unit.Canonical != "" {
		f.Quality = QualityLow
	}

	f.StatementType = doc.statementTypeFor(concept, f.PeriodType)
	bucket := f.DurationBucket()
	if f.PeriodType == PeriodInstant {
		f.FiscalYear = f.PeriodEnd.Year()
	} else {
		f.FiscalYear, f.FiscalPeriod = fiscalPeriodFor(f.PeriodEnd, bucket)
	}
	if prov.FormType == "10-K" {
		f.IsAudited = true
	}
	return f
}

func captureDEI(dei *deiInfo, concept, raw string) {
	switch concept {
	case "dei:EntityRegistrantName":
		dei.RegistrantName = raw
	case "dei:EntityCentralIndexKey":
		dei.CIK = raw
	case "dei:DocumentType":
		dei.DocumentType = raw
	case "dei:DocumentFiscalPeriodFocus":
		dei.FiscalPeriod = FiscalPeriod(raw)
	case "dei:DocumentFiscalYearFocus":
		if y, err := strconv.Atoi(raw); err == nil {
			dei.FiscalYear = y
		}
	case "dei:DocumentPeriodEndDate":
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			dei.PeriodEndDate = t
		}
	}
}

// applyDEI stamps document-level fiscal focus onto the facts of the
// primary reporting period; derived calendar guesses stand elsewhere.
func applyDEI(doc *XBRLDocument, dei *deiInfo) {
	doc.Entity = dei.RegistrantName
	doc.CIK = dei.CIK
	if dei.DocumentType != "" {
		doc.DocumentType = dei.DocumentType
	}
	if dei.FiscalYear == 0 || dei.FiscalPeriod == "" || dei.PeriodEndDate.IsZero() {
		return
	}
	defer doc.Facts.reindexFiscal()
	for i := range doc.Facts.facts {
		f := &doc.Facts.facts[i]
		if f.PeriodEnd.Equal(dei.PeriodEndDate) {
			f.FiscalYear = dei.FiscalYear
			if f.PeriodType == PeriodDuration {
				// The document focus names the discrete period; YTD
				// cumulatives keep their bucket-derived period.
				if b := f.DurationBucket(); b == BucketQuarter || b == BucketAnnual {
					f.FiscalPeriod = dei.FiscalPeriod
				}
			}
		}
	}
}

// getAttr gets an attribute value by local name.
func getAttr(attrs []xml.Attr, name string) string {
	for _, attr := range attrs {
		if attr.Name.Local == name {
			return attr.Value
		}
	}
	return ""
}
