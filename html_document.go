package edgar

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// NodeID indexes into a Document's node arena.
type NodeID int

// NodeKind classifies semantic document nodes.
type NodeKind int

const (
	NodeParagraph NodeKind = iota
	NodeHeading
	NodeTable
	NodePageBreak
	NodeXBRLFact
)

// NodeStyle holds the style attributes the header detector votes on.
type NodeStyle struct {
	Bold     bool
	Italic   bool
	AllCaps  bool
	Centered bool
	FontSize float64 // points; 0 when unstated
}

// DocNode is one semantic node. Nodes live in the Document arena and
// reference each other by ID; there are no pointers to chase and the
// whole tree serializes trivially.
type DocNode struct {
	ID     NodeID
	Kind   NodeKind
	Parent NodeID // -1 for roots
	Text   string
	Offset int // running character offset in the flattened text
	Style  NodeStyle

	// Table is set for NodeTable nodes when table extraction is on.
	Table *TableMatrix

	// Concept and Fact index for NodeXBRLFact nodes.
	Concept string
	FactID  int
}

// ParserConfig controls the HTML document pipeline.
type ParserConfig struct {
	// MaxDocumentSize is the hard limit; above it parsing fails with
	// ErrDocumentTooLarge.
	MaxDocumentSize int
	// StreamingThreshold switches to the tokenizer path, which keeps no
	// DOM and skips style interning.
	StreamingThreshold int

	TableExtraction          bool
	DetectSections           bool
	ExtractXBRL              bool
	CrossReferenceExtraction bool

	Logger *slog.Logger
}

// DefaultParserConfig returns the production defaults.
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		MaxDocumentSize:    500 << 20,
		StreamingThreshold: 50 << 20,
		TableExtraction:    true,
		DetectSections:     true,
		ExtractXBRL:        true,
	}
}

// Document is a parsed filing document: the node arena, extracted
// tables, detected sections, and any inline-XBRL facts found while
// parsing.
type Document struct {
	Nodes    []DocNode
	Tables   []*TableMatrix
	Sections map[string]*Section
	Facts    *FactStore

	text    strings.Builder
	pending pendingBlock
	logger  *slog.Logger
}

// Text returns the document's flattened text. Node offsets index into
// this string.
func (d *Document) Text() string { return d.text.String() }

// Node returns the arena node for an ID.
func (d *Document) Node(id NodeID) *DocNode { return &d.Nodes[id] }

// ParseHTMLDocument runs the three-phase pipeline: preprocess
// (normalization, size checks), parse (DOM or streaming tokenizer into
// the node arena), postprocess (tables, sections, fact linking).
func ParseHTMLDocument(data []byte, cfg ParserConfig) (*Document, error) {
	if cfg.MaxDocumentSize == 0 {
		cfg = DefaultParserConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(data) > cfg.MaxDocumentSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrDocumentTooLarge, len(data))
	}

	data = NormalizeText(data)

	doc := &Document{
		Sections: make(map[string]*Section),
		Facts:    NewFactStore(),
		logger:   logger,
	}

	var err error
	if len(data) > cfg.StreamingThreshold {
		logger.Warn("document above streaming threshold; using tokenizer path", "bytes", len(data))
		err = doc.parseStreaming(data, cfg)
	} else {
		err = doc.parseDOM(data, cfg)
	}
	if err != nil {
		return nil, err
	}

	if cfg.DetectSections {
		doc.Sections = detectSections(doc, data, cfg)
	}
	doc.Facts.Freeze()
	return doc, nil
}

// Tags that terminate a text run and start a new block node.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "tr": true, "li": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

var headingTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// parseDOM builds the arena from a full x/net/html parse.
func (d *Document) parseDOM(data []byte, cfg ParserConfig) error {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return &ParseError{Reason: "html-parse", Err: err}
	}

	styles := newStylePool()
	var walk func(n *html.Node, inherited NodeStyle)
	walk = func(n *html.Node, inherited NodeStyle) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "table":
				d.addTable(n, cfg)
				return
			case isPageBreak(n):
				d.appendNode(DocNode{Kind: NodePageBreak})
				return
			case cfg.ExtractXBRL && isInlineFactTag(n.Data):
				d.addInlineFact(n)
				// fall through so the rendered text still appears
			case n.Data == "script" || n.Data == "style" || n.Data == "head":
				return
			}
			style := styles.resolve(n, inherited)
			if blockTags[n.Data] {
				d.flushBlock(n, style)
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walk(c, style)
				}
				return
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c, style)
			}
			return
		}
		if n.Type == html.TextNode {
			d.appendText(n.Data)
		}
		if n.Type == html.DocumentNode {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c, inherited)
			}
		}
	}
	walk(root, NodeStyle{})
	d.closeOpenBlock()
	return nil
}

// parseStreaming is the large-document path: one pass over the token
// stream, flat blocks only, no style pool and no DOM retained.
func (d *Document) parseStreaming(data []byte, cfg ParserConfig) error {
	z := html.NewTokenizer(bytes.NewReader(data))
	var skipDepth int
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// EOF and malformed-markup errors both end the best-effort pass
			d.closeOpenBlock()
			if err := z.Err(); err != nil && err != io.EOF {
				d.logger.Warn("tokenizer stopped early", "err", err)
			}
			return nil
		case html.StartTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				skipDepth++
				continue
			}
			if blockTags[tag] {
				d.flushStreamingBlock(tag)
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if skipDepth == 0 {
				d.appendText(string(z.Text()))
			}
		}
	}
}

// pendingBlock accumulates text for the block node being built. Parsing
// a single document is single-threaded, so one slot suffices.
type pendingBlock struct {
	open  bool
	kind  NodeKind
	style NodeStyle
	start int
	buf   strings.Builder
}

func (d *Document) flushBlock(n *html.Node, style NodeStyle) {
	d.closeOpenBlock()
	kind := NodeParagraph
	if headingTags[n.Data] {
		kind = NodeHeading
	}
	d.pending = pendingBlock{open: true, kind: kind, style: style, start: d.text.Len()}
}

func (d *Document) flushStreamingBlock(tag string) {
	d.closeOpenBlock()
	kind := NodeParagraph
	if headingTags[tag] {
		kind = NodeHeading
	}
	d.pending = pendingBlock{open: true, kind: kind, start: d.text.Len()}
}

func (d *Document) appendText(s string) {
	if !d.pending.open {
		d.pending = pendingBlock{open: true, kind: NodeParagraph, start: d.text.Len()}
	}
	d.pending.buf.WriteString(s)
}

func (d *Document) closeOpenBlock() {
	if !d.pending.open {
		return
	}
	text := CleanExtractedText(d.pending.buf.String())
	style := d.pending.style
	kind := d.pending.kind
	start := d.pending.start
	d.pending = pendingBlock{}
	if text == "" {
		return
	}
	d.text.WriteString(text)
	d.text.WriteByte('\n')
	if kind == NodeParagraph && looksLikeHeading(text, style) {
		kind = NodeHeading
	}
	d.appendNode(DocNode{Kind: kind, Text: text, Offset: start, Style: style})
}

func (d *Document) appendNode(n DocNode) NodeID {
	n.ID = NodeID(len(d.Nodes))
	n.Parent = -1
	d.Nodes = append(d.Nodes, n)
	return n.ID
}

func (d *Document) addTable(n *html.Node, cfg ParserConfig) {
	d.closeOpenBlock()
	if !cfg.TableExtraction {
		// Table text still contributes to section content
		d.appendText(extractText(n))
		d.closeOpenBlock()
		return
	}
	m := extractTableMatrix(n)
	if m == nil {
		return
	}
	d.Tables = append(d.Tables, m)
	d.appendNode(DocNode{Kind: NodeTable, Offset: d.text.Len(), Table: m})
}

// addInlineFact turns an ix:nonFraction / ix:nonNumeric element into a
// fact. Context refs cannot be resolved here (the document carries no
// xbrli resources inline in the body); the unit is read off the unitRef
// id, which filers conventionally name after the measure.
func (d *Document) addInlineFact(n *html.Node) {
	concept := htmlAttr(n, "name")
	if concept == "" {
		return
	}
	raw := CleanExtractedText(extractText(n))
	scale, _ := strconv.Atoi(htmlAttr(n, "scale"))
	sign := htmlAttr(n, "sign")

	unit := Unit{Kind: UnitUnknown}
	if tag := strings.ToLower(n.Data); tag != "ix:nonnumeric" && tag != "nonnumeric" {
		if ref := htmlAttr(n, "unitref"); ref != "" {
			unit = inlineUnitFromRef(ref)
		}
	}

	f := Fact{
		Concept:  concept,
		RawValue: raw,
		Unit:     unit,
		Value:    TypedValue(raw, unit, scale, sign),
		Quality:  QualityMedium,
	}
	if err := d.Facts.Add(f); err == nil {
		d.appendNode(DocNode{
			Kind:    NodeXBRLFact,
			Concept: concept,
			FactID:  d.Facts.Len() - 1,
			Offset:  d.text.Len(),
		})
	}
}

// inlineUnitFromRef maps an inline fact's unitRef id to a unit
// ("usd", "u-shares", "usd-per-share").
func inlineUnitFromRef(ref string) Unit {
	id := strings.ToLower(strings.TrimSpace(ref))
	id = strings.TrimPrefix(id, "u-")
	id = strings.TrimPrefix(id, "u_")
	for _, sep := range []string{"-per-", "_per_", "/"} {
		if num, den, ok := strings.Cut(id, sep); ok {
			return ParseUnit("", &Divide{Numerator: num, Denominator: den})
		}
	}
	return ParseUnit(id, nil)
}

func isInlineFactTag(tag string) bool {
	switch tag {
	case "ix:nonfraction", "ix:nonnumeric", "nonfraction", "nonnumeric":
		return true
	}
	return false
}

func isPageBreak(n *html.Node) bool {
	if n.Data == "hr" {
		return true
	}
	style := htmlAttr(n, "style")
	return strings.Contains(style, "page-break-before") || strings.Contains(style, "page-break-after")
}

// extractText flattens all text content under a node.
func extractText(n *html.Node) string {
	var buf strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			buf.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return buf.String()
}

func htmlAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// looksLikeHeading applies the style vote for blocks that are not
// heading elements: short, emphasized or all-caps runs.
func looksLikeHeading(text string, style NodeStyle) bool {
	if len(text) > 120 {
		return false
	}
	if style.Bold || style.FontSize >= 14 {
		return true
	}
	letters := 0
	upper := 0
	for _, r := range text {
		if r >= 'a' && r <= 'z' {
			letters++
		}
		if r >= 'A' && r <= 'Z' {
			letters++
			upper++
		}
	}
	return letters >= 8 && upper == letters
}

// stylePool interns parsed inline styles so repeated style attributes
// (SEC filings repeat them thousands of times) parse once.
type stylePool struct {
	cache map[string]NodeStyle
}

func newStylePool() *stylePool {
	return &stylePool{cache: make(map[string]NodeStyle)}
}

func (p *stylePool) resolve(n *html.Node, inherited NodeStyle) NodeStyle {
	style := inherited
	switch n.Data {
	case "b", "strong":
		style.Bold = true
	case "i", "em":
		style.Italic = true
	case "center":
		style.Centered = true
	}
	attr := htmlAttr(n, "style")
	if attr == "" {
		return style
	}
	parsed, ok := p.cache[attr]
	if !ok {
		parsed = parseInlineStyle(attr)
		if len(p.cache) < 4096 {
			p.cache[attr] = parsed
		}
	}
	if parsed.Bold {
		style.Bold = true
	}
	if parsed.Italic {
		style.Italic = true
	}
	if parsed.Centered {
		style.Centered = true
	}
	if parsed.FontSize > 0 {
		style.FontSize = parsed.FontSize
	}
	return style
}

func parseInlineStyle(attr string) NodeStyle {
	var style NodeStyle
	for _, decl := range strings.Split(attr, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		prop = strings.TrimSpace(strings.ToLower(prop))
		val = strings.TrimSpace(strings.ToLower(val))
		switch prop {
		case "font-weight":
			if val == "bold" || val == "bolder" || val == "700" || val == "800" || val == "900" {
				style.Bold = true
			}
		case "font-style":
			if val == "italic" {
				style.Italic = true
			}
		case "text-align":
			if val == "center" {
				style.Centered = true
			}
		case "text-transform":
			if val == "uppercase" {
				style.AllCaps = true
			}
		case "font-size":
			num := strings.TrimRight(val, "ptxem%")
			if f, err := strconv.ParseFloat(num, 64); err == nil {
				style.FontSize = f
			}
		}
	}
	return style
}
