package edgar

import (
	"log/slog"
	"strings"
)

// XBRLFileSet holds the raw bytes of the six files that make up one
// XBRL filing. Instance is required; every other member may be nil, in
// which case the loader degrades with a warning.
type XBRLFileSet struct {
	Schema       []byte
	Label        []byte
	Presentation []byte
	Definition   []byte
	Calculation  []byte
	Instance     []byte
}

// XBRLDocument is a fully loaded filing: concept metadata, resolved
// labels, the three relationship trees per role, and the fact store.
// Everything is created at parse time; after loading the document is
// read-only and safe to share.
type XBRLDocument struct {
	Entity       string
	CIK          string
	DocumentType string

	Concepts     map[string]*Concept
	Labels       map[string]map[string]string // concept -> label role -> text
	Presentation map[string]*PresentationTree // keyed by role URI
	Definition   map[string]*DefinitionTree
	Calculation  map[string]*CalculationTree

	Facts *FactStore

	contexts      *contextPool
	units         map[string]Unit
	stmtRoleCache map[string]StatementType
	logger        *slog.Logger
}

func newXBRLDocument(logger *slog.Logger) *XBRLDocument {
	if logger == nil {
		logger = slog.Default()
	}
	return &XBRLDocument{
		Concepts:      make(map[string]*Concept),
		Labels:        make(map[string]map[string]string),
		Presentation:  make(map[string]*PresentationTree),
		Definition:    make(map[string]*DefinitionTree),
		Calculation:   make(map[string]*CalculationTree),
		Facts:         NewFactStore(),
		contexts:      newContextPool(),
		units:         make(map[string]Unit),
		stmtRoleCache: make(map[string]StatementType),
		logger:        logger,
	}
}

func (d *XBRLDocument) warn(msg string, args ...any) {
	d.logger.Warn(msg, args...)
}

// LoadXBRLDocument parses a filing's file set in the deterministic order
// schema, label, presentation, definition, calculation, instance.
// Missing linkbases degrade: labels fall back to pretty-printed local
// names, statements fall back to concept-name classification. A missing
// or malformed instance is fatal.
func LoadXBRLDocument(files XBRLFileSet, prov Provenance, logger *slog.Logger) (*XBRLDocument, error) {
	doc := newXBRLDocument(logger)

	if files.Schema != nil {
		concepts, err := parseSchema(files.Schema)
		if err != nil {
			return nil, err
		}
		doc.Concepts = concepts
	} else {
		doc.warn("missing schema; concept metadata unavailable")
	}

	if files.Label != nil {
		labels, err := parseLabelLinkbase(files.Label)
		if err != nil {
			return nil, err
		}
		doc.Labels = labels
	} else {
		doc.warn("missing label linkbase; falling back to concept names")
	}

	if files.Presentation != nil {
		links, err := parseLinkbase(files.Presentation, "presentationLink")
		if err != nil {
			return nil, err
		}
		for _, lb := range links {
			doc.Presentation[lb.role] = buildPresentationTree(lb)
		}
	} else {
		doc.warn("missing presentation linkbase; statements unavailable")
	}

	if files.Definition != nil {
		links, err := parseLinkbase(files.Definition, "definitionLink")
		if err != nil {
			return nil, err
		}
		for _, lb := range links {
			doc.Definition[lb.role] = buildDefinitionTree(lb)
		}
	} else {
		doc.warn("missing definition linkbase; dimensional defaults unavailable")
	}

	if files.Calculation != nil {
		links, err := parseLinkbase(files.Calculation, "calculationLink")
		if err != nil {
			return nil, err
		}
		for _, lb := range links {
			doc.Calculation[lb.role] = buildCalculationTree(lb)
		}
	} else {
		doc.warn("missing calculation linkbase; total confirmation degraded")
	}

	if files.Instance == nil {
		return nil, &ParseError{Doc: prov.Accession, Reason: "missing-instance"}
	}
	var err error
	switch DetectXBRLFormat(files.Instance) {
	case FormatInline:
		err = parseInline(files.Instance, doc, prov)
	case FormatInstance:
		err = parseInstance(files.Instance, doc, prov)
	default:
		err = &ParseError{Doc: prov.Accession, Reason: "unrecognized-instance-format"}
	}
	if err != nil {
		return nil, err
	}

	if err := doc.checkSchemaReferences(prov); err != nil {
		return nil, err
	}

	doc.classifyByPresentation()
	doc.Facts.Freeze()
	return doc, nil
}

// checkSchemaReferences surfaces instance facts whose concepts belong to
// the extension schema's namespace but are not declared there. Standard
// taxonomy namespaces (us-gaap, dei, ...) are not shipped with a filing
// and are exempt.
func (d *XBRLDocument) checkSchemaReferences(prov Provenance) error {
	if len(d.Concepts) == 0 {
		return nil
	}
	declared := make(map[string]bool)
	for name := range d.Concepts {
		if i := strings.Index(name, ":"); i > 0 {
			declared[name[:i]] = true
		}
	}
	for prefix := range declared {
		switch prefix {
		case "us-gaap", "dei", "srt", "ifrs-full", "country", "xbrli":
			delete(declared, prefix)
		}
	}
	for _, f := range d.Facts.All() {
		i := strings.Index(f.Concept, ":")
		if i <= 0 {
			continue
		}
		if declared[f.Concept[:i]] {
			if _, ok := d.Concepts[f.Concept]; !ok {
				return &ParseError{
					Doc:    prov.Accession,
					Reason: "schema-violation: concept " + f.Concept + " not declared in schema",
				}
			}
		}
	}
	return nil
}

// Label resolves a concept's label for the given role, walking the
// standard fallback chain and ending at the pretty-printed local name.
func (d *XBRLDocument) Label(concept, role string) string {
	if roles, ok := d.Labels[concept]; ok {
		if text, ok := roles[role]; ok && text != "" {
			return text
		}
		if text, ok := roles[LabelStandard]; ok && text != "" {
			return text
		}
	}
	return PrettyLabel(concept)
}

// StatementRoles returns role URIs that look like financial statements,
// classified by type.
func (d *XBRLDocument) StatementRoles() map[string]StatementType {
	out := make(map[string]StatementType)
	for role := range d.Presentation {
		if st := classifyRole(role); st != StatementOther {
			out[role] = st
		}
	}
	return out
}

// classifyRole infers the statement type from a role URI.
func classifyRole(role string) StatementType {
	lower := strings.ToLower(role)
	switch {
	case strings.Contains(lower, "balancesheet"), strings.Contains(lower, "financialposition"):
		return StatementBalance
	case strings.Contains(lower, "cashflow"):
		return StatementCashFlow
	case strings.Contains(lower, "stockholdersequity"), strings.Contains(lower, "shareholdersequity"),
		strings.Contains(lower, "changesinequity"):
		return StatementEquity
	case strings.Contains(lower, "incomestatement"), strings.Contains(lower, "operations"),
		strings.Contains(lower, "comprehensiveincome"), strings.Contains(lower, "earnings"):
		return StatementIncome
	default:
		return StatementOther
	}
}

// classifyByPresentation overrides the name-based statement inference
// with the presentation tree's assignment where one exists.
func (d *XBRLDocument) classifyByPresentation() {
	conceptStmt := make(map[string]StatementType)
	for role, tree := range d.Presentation {
		st := classifyRole(role)
		if st == StatementOther {
			continue
		}
		tree.Walk(func(_ TreeNodeID, n *PresentationNode) {
			if _, taken := conceptStmt[n.Concept]; !taken {
				conceptStmt[n.Concept] = st
			}
		})
	}
	if len(conceptStmt) == 0 {
		return
	}
	changed := false
	for i := range d.Facts.facts {
		f := &d.Facts.facts[i]
		if st, ok := conceptStmt[f.Concept]; ok && st != f.StatementType {
			f.StatementType = st
			changed = true
		}
	}
	if changed {
		d.reindexStatements()
	}
}

func (d *XBRLDocument) reindexStatements() {
	d.Facts.byStatement = make(map[StatementType][]int)
	for id := range d.Facts.facts {
		st := d.Facts.facts[id].StatementType
		d.Facts.byStatement[st] = append(d.Facts.byStatement[st], id)
	}
}

// statementTypeFor classifies a concept during fact construction: the
// presentation assignment when loaded, else the name heuristic.
func (d *XBRLDocument) statementTypeFor(concept string, pt PeriodType) StatementType {
	if st, ok := d.stmtRoleCache[concept]; ok {
		return st
	}
	st := inferStatementType(concept, pt)
	d.stmtRoleCache[concept] = st
	return st
}

// Query starts a fluent query over the document's facts with labels
// resolved through the label linkbase.
func (d *XBRLDocument) Query() *FactQuery {
	return d.Facts.Query().WithLabeler(func(concept string) string {
		return d.Label(concept, LabelStandard)
	})
}
