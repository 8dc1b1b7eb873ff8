package edgar

import (
	"bytes"
	"encoding/xml"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Standard label role URIs condensed to the short names used throughout
// the package.
const (
	LabelStandard      = "label"
	LabelTerse         = "terseLabel"
	LabelVerbose       = "verboseLabel"
	LabelNegated       = "negatedLabel"
	LabelTotal         = "totalLabel"
	LabelDocumentation = "documentation"
	LabelPeriodStart   = "periodStartLabel"
	LabelPeriodEnd     = "periodEndLabel"
)

// shortLabelRole maps a label/preferredLabel role URI to its short name.
func shortLabelRole(roleURI string) string {
	if roleURI == "" {
		return LabelStandard
	}
	if i := strings.LastIndex(roleURI, "/"); i >= 0 {
		return roleURI[i+1:]
	}
	return roleURI
}

// TreeNodeID indexes a node inside one tree's arena.
type TreeNodeID int

// PresentationNode is one row of a statement's layout: a concept at a
// depth with the label role the preparer chose for it.
type PresentationNode struct {
	Concept        string
	PreferredLabel string
	Order          float64
	Depth          int
	Parent         TreeNodeID // -1 for roots
	Children       []TreeNodeID
}

// PresentationTree is the per-role ordered layout of a statement.
type PresentationTree struct {
	Role  string
	Nodes []PresentationNode
	Roots []TreeNodeID
}

// Walk visits nodes depth-first in presentation order.
func (t *PresentationTree) Walk(fn func(id TreeNodeID, n *PresentationNode)) {
	var visit func(id TreeNodeID)
	visit = func(id TreeNodeID) {
		fn(id, &t.Nodes[id])
		for _, c := range t.Nodes[id].Children {
			visit(c)
		}
	}
	for _, r := range t.Roots {
		visit(r)
	}
}

// CalculationNode carries the summation weight of a child toward its
// parent. Retained for structure only; sums are not enforced.
type CalculationNode struct {
	Concept  string
	Weight   float64
	Order    float64
	Parent   TreeNodeID
	Children []TreeNodeID
}

// CalculationTree is the per-role weighted summation structure.
type CalculationTree struct {
	Role  string
	Nodes []CalculationNode
	Roots []TreeNodeID
}

// IsTotal reports whether concept has summation children in this role,
// which the statement assembler uses to confirm total rows.
func (t *CalculationTree) IsTotal(concept string) bool {
	for i := range t.Nodes {
		if t.Nodes[i].Concept == concept && len(t.Nodes[i].Children) > 0 {
			return true
		}
	}
	return false
}

// Definition arcroles that matter for dimensional resolution.
const (
	arcroleHypercubeDimension = "hypercube-dimension"
	arcroleDimensionDomain    = "dimension-domain"
	arcroleDimensionDefault   = "dimension-default"
	arcroleDomainMember       = "domain-member"
	arcroleAll                = "all"
)

// DefinitionTree encodes the dimensional relationships of one role:
// which axes apply, their domains, and the default member per axis.
type DefinitionTree struct {
	Role           string
	Axes           []string
	DomainOf       map[string][]string // axis -> domain members
	DefaultMember  map[string]string   // axis -> default member
	PrimaryConcept []string            // line items bound via "all" arcs
}

// rawArc is one arc before resolution through the locator table.
type rawArc struct {
	arcrole        string
	from, to       string
	order          float64
	weight         float64
	preferredLabel string
}

// linkbase is one extended link after locator resolution: arcs with
// from/to as prefixed concept names, grouped under a role URI.
type linkbase struct {
	role string
	arcs []rawArc
}

// parseLinkbase reads any of the five linkbase kinds into role-grouped,
// locator-resolved arc lists. arcName selects presentationArc,
// calculationArc, definitionArc or labelArc.
func parseLinkbase(data []byte, linkName string) ([]linkbase, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = asciiCompatible

	var links []linkbase
	var cur *linkbase
	locators := make(map[string]string) // xlink:label -> concept

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Doc: linkName, Offset: decoder.InputOffset(), Reason: "malformed-xml", Err: err}
		}

		switch elem := token.(type) {
		case xml.StartElement:
			switch elem.Name.Local {
			case linkName: // e.g. "presentationLink"
				links = append(links, linkbase{role: getAttr(elem.Attr, "role")})
				cur = &links[len(links)-1]
				locators = make(map[string]string)
			case "loc":
				label := getAttr(elem.Attr, "label")
				href := getAttr(elem.Attr, "href")
				if label != "" && href != "" {
					locators[label] = conceptFromHref(href)
				}
			case "presentationArc", "calculationArc", "definitionArc", "labelArc":
				if cur == nil {
					continue
				}
				arc := rawArc{
					arcrole:        shortArcrole(getAttr(elem.Attr, "arcrole")),
					from:           locators[getAttr(elem.Attr, "from")],
					to:             getAttr(elem.Attr, "to"),
					preferredLabel: shortLabelRole(getAttr(elem.Attr, "preferredLabel")),
				}
				if arc.from == "" {
					arc.from = getAttr(elem.Attr, "from")
				}
				// "to" resolves through locators for concept arcs but
				// stays a resource label for label arcs.
				if resolved, ok := locators[arc.to]; ok {
					arc.to = resolved
				}
				if o := getAttr(elem.Attr, "order"); o != "" {
					arc.order, _ = strconv.ParseFloat(o, 64)
				}
				if w := getAttr(elem.Attr, "weight"); w != "" {
					arc.weight, _ = strconv.ParseFloat(w, 64)
				}
				cur.arcs = append(cur.arcs, arc)
			}
		case xml.EndElement:
			if elem.Name.Local == linkName {
				cur = nil
			}
		}
	}
	return links, nil
}

func shortArcrole(uri string) string {
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

// buildPresentationTree assembles the arena tree for one role from
// parent-child arcs. Arcs that would close a cycle are dropped, keeping
// the per-role acyclicity invariant.
func buildPresentationTree(lb linkbase) *PresentationTree {
	tree := &PresentationTree{Role: lb.role}

	childrenOf := make(map[string][]rawArc)
	hasParent := make(map[string]bool)
	for _, a := range lb.arcs {
		if a.from == "" || a.to == "" {
			continue
		}
		childrenOf[a.from] = append(childrenOf[a.from], a)
		hasParent[a.to] = true
	}
	for c := range childrenOf {
		sort.SliceStable(childrenOf[c], func(i, j int) bool {
			return childrenOf[c][i].order < childrenOf[c][j].order
		})
	}

	var roots []string
	seenRoot := make(map[string]bool)
	for _, a := range lb.arcs {
		if a.from != "" && !hasParent[a.from] && !seenRoot[a.from] {
			seenRoot[a.from] = true
			roots = append(roots, a.from)
		}
	}

	var add func(concept, preferred string, order float64, depth int, parent TreeNodeID, path map[string]bool) TreeNodeID
	add = func(concept, preferred string, order float64, depth int, parent TreeNodeID, path map[string]bool) TreeNodeID {
		id := TreeNodeID(len(tree.Nodes))
		tree.Nodes = append(tree.Nodes, PresentationNode{
			Concept:        concept,
			PreferredLabel: preferred,
			Order:          order,
			Depth:          depth,
			Parent:         parent,
		})
		path[concept] = true
		for _, arc := range childrenOf[concept] {
			if path[arc.to] {
				continue // cycle
			}
			child := add(arc.to, arc.preferredLabel, arc.order, depth+1, id, path)
			tree.Nodes[id].Children = append(tree.Nodes[id].Children, child)
		}
		delete(path, concept)
		return id
	}

	for _, r := range roots {
		tree.Roots = append(tree.Roots, add(r, LabelStandard, 0, 0, -1, map[string]bool{}))
	}
	return tree
}

// buildCalculationTree assembles the weighted summation tree for a role.
func buildCalculationTree(lb linkbase) *CalculationTree {
	tree := &CalculationTree{Role: lb.role}

	childrenOf := make(map[string][]rawArc)
	hasParent := make(map[string]bool)
	for _, a := range lb.arcs {
		if a.from == "" || a.to == "" {
			continue
		}
		childrenOf[a.from] = append(childrenOf[a.from], a)
		hasParent[a.to] = true
	}

	var add func(concept string, weight, order float64, parent TreeNodeID, path map[string]bool) TreeNodeID
	add = func(concept string, weight, order float64, parent TreeNodeID, path map[string]bool) TreeNodeID {
		id := TreeNodeID(len(tree.Nodes))
		tree.Nodes = append(tree.Nodes, CalculationNode{
			Concept: concept,
			Weight:  weight,
			Order:   order,
			Parent:  parent,
		})
		path[concept] = true
		for _, arc := range childrenOf[concept] {
			if path[arc.to] {
				continue
			}
			child := add(arc.to, arc.weight, arc.order, id, path)
			tree.Nodes[id].Children = append(tree.Nodes[id].Children, child)
		}
		delete(path, concept)
		return id
	}

	for _, a := range lb.arcs {
		if a.from != "" && !hasParent[a.from] {
			already := false
			for _, r := range tree.Roots {
				if tree.Nodes[r].Concept == a.from {
					already = true
					break
				}
			}
			if !already {
				tree.Roots = append(tree.Roots, add(a.from, 1, 0, -1, map[string]bool{}))
			}
		}
	}
	return tree
}

// buildDefinitionTree extracts the dimensional structure of one role.
func buildDefinitionTree(lb linkbase) *DefinitionTree {
	tree := &DefinitionTree{
		Role:          lb.role,
		DomainOf:      make(map[string][]string),
		DefaultMember: make(map[string]string),
	}
	domainToAxis := make(map[string]string)

	for _, a := range lb.arcs {
		switch a.arcrole {
		case arcroleHypercubeDimension:
			tree.Axes = append(tree.Axes, a.to)
		case arcroleDimensionDomain:
			domainToAxis[a.to] = a.from
			tree.DomainOf[a.from] = append(tree.DomainOf[a.from], a.to)
		case arcroleDimensionDefault:
			tree.DefaultMember[a.from] = a.to
		case arcroleAll:
			tree.PrimaryConcept = append(tree.PrimaryConcept, a.from)
		}
	}
	// Members hang off domains via domain-member arcs
	for _, a := range lb.arcs {
		if a.arcrole == arcroleDomainMember {
			if axis, ok := domainToAxis[a.from]; ok {
				tree.DomainOf[axis] = append(tree.DomainOf[axis], a.to)
			}
		}
	}
	return tree
}

// parseLabelLinkbase resolves the label network: concept -> short label
// role -> text. Language defaults to en-US; other languages are keyed as
// "role@lang".
func parseLabelLinkbase(data []byte) (map[string]map[string]string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = asciiCompatible

	labels := make(map[string]map[string]string)
	locators := make(map[string]string)         // xlink:label -> concept
	resources := make(map[string][2]string)     // resource label -> (role, text)
	resourceLang := make(map[string]string)     // resource label -> lang
	arcs := make(map[string][]string)           // from locator label -> resource labels

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Doc: "label-linkbase", Offset: decoder.InputOffset(), Reason: "malformed-xml", Err: err}
		}

		switch elem := token.(type) {
		case xml.StartElement:
			switch elem.Name.Local {
			case "loc":
				label := getAttr(elem.Attr, "label")
				href := getAttr(elem.Attr, "href")
				if label != "" && href != "" {
					locators[label] = conceptFromHref(href)
				}
			case "labelArc":
				from := getAttr(elem.Attr, "from")
				to := getAttr(elem.Attr, "to")
				arcs[from] = append(arcs[from], to)
			case "label":
				resLabel := getAttr(elem.Attr, "label")
				role := shortLabelRole(getAttr(elem.Attr, "role"))
				lang := getAttr(elem.Attr, "lang")
				var text string
				if err := decoder.DecodeElement(&text, &elem); err != nil {
					continue
				}
				resources[resLabel] = [2]string{role, strings.TrimSpace(text)}
				resourceLang[resLabel] = lang
			}
		}
	}

	for locLabel, resLabels := range arcs {
		concept, ok := locators[locLabel]
		if !ok {
			continue
		}
		for _, resLabel := range resLabels {
			res, ok := resources[resLabel]
			if !ok {
				continue
			}
			role, text := res[0], res[1]
			lang := resourceLang[resLabel]
			if lang != "" && lang != "en-US" && lang != "en" {
				role = role + "@" + lang
			}
			if labels[concept] == nil {
				labels[concept] = make(map[string]string)
			}
			labels[concept][role] = text
		}
	}
	return labels, nil
}
