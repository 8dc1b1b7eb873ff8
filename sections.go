package edgar

import (
	"bytes"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Section is one detected filing section, addressed by its canonical
// item name.
type Section struct {
	Name       string // canonical, e.g. "Item 1A"
	Title      string // caption, e.g. "Risk Factors"
	StartNode  NodeID
	Offset     int // character offset in Document.Text
	End        int // exclusive; extends to the next section or EOF
	Confidence float64
}

// Canonical 10-K item captions, used by the pattern strategy and to
// attach titles to sections found by other strategies.
var itemCaptions = map[string]string{
	"1":   "Business",
	"1A":  "Risk Factors",
	"1B":  "Unresolved Staff Comments",
	"1C":  "Cybersecurity",
	"2":   "Properties",
	"3":   "Legal Proceedings",
	"4":   "Mine Safety Disclosures",
	"5":   "Market for Registrant's Common Equity",
	"6":   "Selected Financial Data",
	"7":   "Management's Discussion and Analysis",
	"7A":  "Quantitative and Qualitative Disclosures About Market Risk",
	"8":   "Financial Statements and Supplementary Data",
	"9":   "Changes in and Disagreements with Accountants",
	"9A":  "Controls and Procedures",
	"9B":  "Other Information",
	"10":  "Directors, Executive Officers and Corporate Governance",
	"11":  "Executive Compensation",
	"12":  "Security Ownership of Certain Beneficial Owners",
	"13":  "Certain Relationships and Related Transactions",
	"14":  "Principal Accountant Fees and Services",
	"15":  "Exhibits, Financial Statement Schedules",
	"16":  "Form 10-K Summary",
}

var itemHeadingRE = regexp.MustCompile(`(?i)^item\s+(\d{1,2}[A-C]?)\b[.:\s]*(.*)$`)

// sectionCandidate is one strategy's claim that a section starts at a
// node.
type sectionCandidate struct {
	item   string
	node   NodeID
	offset int
	weight float64
	title  string
}

// acceptThreshold is the combined vote a candidate needs.
const acceptThreshold = 0.6

// Strategy weights. Pattern alone is below threshold on purpose: a
// heading that merely says "Item 7" needs confirmation from the TOC,
// the structure, or the cross-reference index before it starts a
// section, except when its caption also matches.
const (
	weightPattern    = 0.45
	weightCaption    = 0.25
	weightTOC        = 0.30
	weightStructural = 0.20
	weightCrossRef   = 0.40
)

// detectSections runs the strategies and resolves the weighted vote.
func detectSections(doc *Document, raw []byte, cfg ParserConfig) map[string]*Section {
	var candidates []sectionCandidate
	candidates = append(candidates, patternCandidates(doc)...)
	candidates = append(candidates, structuralCandidates(doc)...)
	candidates = append(candidates, tocCandidates(doc, raw)...)
	if cfg.CrossReferenceExtraction {
		candidates = append(candidates, crossRefCandidates(doc)...)
	}
	return resolveVote(doc, candidates)
}

// patternCandidates matches heading text against the item caption
// table. A bare "Item N" heading earns the pattern weight; matching the
// expected caption too earns the caption weight on top.
func patternCandidates(doc *Document) []sectionCandidate {
	var out []sectionCandidate
	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		if n.Kind != NodeHeading && n.Kind != NodeParagraph {
			continue
		}
		m := itemHeadingRE.FindStringSubmatch(n.Text)
		if m == nil {
			continue
		}
		item := strings.ToUpper(m[1])
		caption, known := itemCaptions[item]
		if !known {
			continue
		}
		c := sectionCandidate{
			item:   "Item " + item,
			node:   n.ID,
			offset: n.Offset,
			weight: weightPattern,
			title:  caption,
		}
		rest := strings.ToLower(m[2])
		if rest != "" && strings.Contains(rest, strings.ToLower(firstWords(caption, 2))) {
			c.weight += weightCaption
			c.title = strings.TrimSpace(m[2])
		}
		out = append(out, c)
	}
	return out
}

// structuralCandidates votes for item-like headings that carry heading
// styling, which separates true section starts from in-text references
// ("see Item 1A above").
func structuralCandidates(doc *Document) []sectionCandidate {
	var out []sectionCandidate
	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		if n.Kind != NodeHeading {
			continue
		}
		m := itemHeadingRE.FindStringSubmatch(n.Text)
		if m == nil {
			continue
		}
		item := strings.ToUpper(m[1])
		if _, known := itemCaptions[item]; !known {
			continue
		}
		out = append(out, sectionCandidate{
			item:   "Item " + item,
			node:   n.ID,
			offset: n.Offset,
			weight: weightStructural,
		})
	}
	return out
}

// tocCandidates finds a table-of-contents block in the raw HTML and
// votes for the heading nearest after the TOC that matches each listed
// item. The TOC itself (links, short rows) never becomes a section
// start.
func tocCandidates(doc *Document, raw []byte) []sectionCandidate {
	gq, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil
	}

	// Items listed in anchor text, in order of appearance
	var tocItems []string
	seen := make(map[string]bool)
	gq.Find("a[href^='#']").Each(func(_ int, sel *goquery.Selection) {
		text := CleanExtractedText(sel.Text())
		m := itemHeadingRE.FindStringSubmatch(text)
		if m == nil {
			return
		}
		item := strings.ToUpper(m[1])
		if _, known := itemCaptions[item]; known && !seen[item] {
			seen[item] = true
			tocItems = append(tocItems, item)
		}
	})
	if len(tocItems) < 3 {
		return nil
	}

	// The TOC anchors themselves appear near the top; a matching heading
	// later in the node stream gets the vote. "Later" means past the last
	// node whose text matches a TOC row (heuristic: first third of the
	// document).
	tocEnd := doc.text.Len() / 3

	var out []sectionCandidate
	for _, item := range tocItems {
		want := "ITEM " + item
		for i := range doc.Nodes {
			n := &doc.Nodes[i]
			if n.Offset < tocEnd {
				continue
			}
			if n.Kind != NodeHeading && n.Kind != NodeParagraph {
				continue
			}
			if !strings.HasPrefix(strings.ToUpper(n.Text), want) {
				continue
			}
			out = append(out, sectionCandidate{
				item:   "Item " + item,
				node:   n.ID,
				offset: n.Offset,
				weight: weightTOC,
			})
			break
		}
	}
	return out
}

// crossRefCandidates handles the index-table format where a front table
// maps items to page numbers. Page numbers correlate with page-break
// nodes; the first item-matching node after the computed break gets the
// vote.
func crossRefCandidates(doc *Document) []sectionCandidate {
	// Find the index table: a table whose first column is item labels and
	// second numeric.
	var index *TableMatrix
	for _, t := range doc.Tables {
		if t.Cols() < 2 {
			continue
		}
		itemRows := 0
		for r := t.HeaderRows; r < t.Rows(); r++ {
			if itemHeadingRE.MatchString(t.CellText(r, 0)) {
				itemRows++
			}
		}
		if itemRows >= 3 {
			index = t
			break
		}
	}
	if index == nil {
		return nil
	}

	// Page-break node offsets, in order; page N starts after break N-1
	var breaks []int
	for i := range doc.Nodes {
		if doc.Nodes[i].Kind == NodePageBreak {
			breaks = append(breaks, int(doc.Nodes[i].ID))
		}
	}
	if len(breaks) == 0 {
		return nil
	}

	var out []sectionCandidate
	for r := index.HeaderRows; r < index.Rows(); r++ {
		m := itemHeadingRE.FindStringSubmatch(index.CellText(r, 0))
		if m == nil {
			continue
		}
		item := strings.ToUpper(m[1])
		page, ok := parseNumeric(index.CellText(r, index.Cols()-1))
		if !ok || page < 1 || int(page) > len(breaks) {
			continue
		}
		startNode := breaks[int(page)-1]
		for i := startNode; i < len(doc.Nodes); i++ {
			n := &doc.Nodes[i]
			if itemHeadingRE.MatchString(n.Text) &&
				strings.HasPrefix(strings.ToUpper(n.Text), "ITEM "+item) {
				out = append(out, sectionCandidate{
					item:   "Item " + item,
					node:   n.ID,
					offset: n.Offset,
					weight: weightCrossRef,
				})
				break
			}
		}
	}
	return out
}

// resolveVote sums candidate weights per (item, node), accepts winners
// over the threshold, and assigns section extents.
func resolveVote(doc *Document, candidates []sectionCandidate) map[string]*Section {
	type slot struct {
		score  float64
		offset int
		node   NodeID
		title  string
	}
	votes := make(map[string]map[NodeID]*slot)
	for _, c := range candidates {
		byNode := votes[c.item]
		if byNode == nil {
			byNode = make(map[NodeID]*slot)
			votes[c.item] = byNode
		}
		s := byNode[c.node]
		if s == nil {
			s = &slot{offset: c.offset, node: c.node}
			byNode[c.node] = s
		}
		s.score += c.weight
		if s.title == "" {
			s.title = c.title
		}
	}

	sections := make(map[string]*Section)
	for item, byNode := range votes {
		var best *slot
		for _, s := range byNode {
			if s.score < acceptThreshold {
				continue
			}
			// Higher score wins; tied scores go to the earlier offset
			if best == nil || s.score > best.score ||
				(s.score == best.score && s.offset < best.offset) {
				best = s
			}
		}
		if best == nil {
			continue
		}
		title := best.title
		if title == "" {
			title = itemCaptions[strings.TrimPrefix(item, "Item ")]
		}
		sections[item] = &Section{
			Name:       item,
			Title:      title,
			StartNode:  best.node,
			Offset:     best.offset,
			Confidence: best.score,
		}
	}

	// Extents: each section runs to the next section's offset
	ordered := make([]*Section, 0, len(sections))
	for _, s := range sections {
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Offset < ordered[j].Offset })
	for i, s := range ordered {
		if i+1 < len(ordered) {
			s.End = ordered[i+1].Offset
		} else {
			s.End = doc.text.Len()
		}
	}
	return sections
}

// SectionText returns a section's flattened text.
func (d *Document) SectionText(s *Section) string {
	text := d.Text()
	if s.Offset >= len(text) {
		return ""
	}
	end := s.End
	if end > len(text) || end <= s.Offset {
		end = len(text)
	}
	return text[s.Offset:end]
}

// Chunk is one model-sized piece of a section.
type Chunk struct {
	Section string
	Index   int
	Text    string
}

// Chunker yields size-bounded chunks of the document's sections, each
// ending at a paragraph boundary. It is restartable: Reset rewinds to
// the first chunk.
type Chunker struct {
	doc      *Document
	maxBytes int
	sections []*Section
	sec      int
	pos      int
	index    int
}

// NewChunker returns a chunker over the document's detected sections in
// offset order. maxBytes bounds each chunk; sections smaller than the
// bound yield one chunk.
func (d *Document) NewChunker(maxBytes int) *Chunker {
	if maxBytes <= 0 {
		maxBytes = 8192
	}
	var secs []*Section
	for _, s := range d.Sections {
		secs = append(secs, s)
	}
	sort.Slice(secs, func(i, j int) bool { return secs[i].Offset < secs[j].Offset })
	return &Chunker{doc: d, maxBytes: maxBytes, sections: secs}
}

// Reset rewinds the iterator.
func (c *Chunker) Reset() {
	c.sec, c.pos, c.index = 0, 0, 0
}

// Next returns the next chunk; ok is false when exhausted.
func (c *Chunker) Next() (Chunk, bool) {
	for c.sec < len(c.sections) {
		s := c.sections[c.sec]
		text := c.doc.SectionText(s)
		if c.pos >= len(text) {
			c.sec++
			c.pos = 0
			continue
		}
		rest := text[c.pos:]
		size := len(rest)
		if size > c.maxBytes {
			size = c.maxBytes
			// Pull back to the last paragraph boundary within the window
			if cut := strings.LastIndex(rest[:size], "\n"); cut > 0 {
				size = cut + 1
			}
		}
		chunk := Chunk{Section: s.Name, Index: c.index, Text: strings.TrimSpace(rest[:size])}
		c.pos += size
		c.index++
		if chunk.Text == "" {
			continue
		}
		return chunk, true
	}
	return Chunk{}, false
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
