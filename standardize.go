package edgar

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

//go:embed mapping_schemas.json
var mappingSchemasJSON []byte

// MappingSchemas is the root of mapping_schemas.json: one schema per
// statement, each a list of canonical fields.
type MappingSchemas struct {
	Version    string                   `json:"version"`
	Statements map[string]MappingSchema `json:"statements"`
}

// MappingSchema lists the canonical fields of one statement.
type MappingSchema struct {
	Fields []FieldMapping `json:"fields"`
}

// FieldMapping is one canonical field (revenue, netIncome, ...) with
// its resolution rules in descending priority order.
type FieldMapping struct {
	Name  string        `json:"name"`
	Rules []MappingRule `json:"rules"`
}

// MappingRule resolves a field either by picking the first concept
// present (selectAny) or by evaluating arithmetic over other fields
// (computeAny). Exactly one of the two must be set. Industry-specific
// rules carry industryHints and by convention priority >= 150; generic
// rules sit at 110-120 and computed fallbacks at 80-100.
type MappingRule struct {
	Name          string   `json:"name"`
	Priority      int      `json:"priority"`
	IndustryHints []string `json:"industryHints,omitempty"`
	SelectAny     []string `json:"selectAny,omitempty"`
	ComputeAny    []Expr   `json:"computeAny,omitempty"`
}

// Expr is an arithmetic expression tree evaluated by a small
// interpreter; there is no runtime name resolution in the hot path.
type Expr struct {
	Op    string `json:"op"` // add, sub, mul, div, id
	Terms []Term `json:"terms"`
}

// Term is one operand: a field reference, an ordered concept list
// resolved to the first match, or a nested expression.
type Term struct {
	Field      string   `json:"field,omitempty"`
	ConceptAny []string `json:"conceptAny,omitempty"`
	Expr       *Expr    `json:"expr,omitempty"`
}

// StandardizerConfig configures field resolution.
type StandardizerConfig struct {
	// IndustryHint is matched case-insensitively as a substring against
	// each rule's industryHints.
	IndustryHint string
	// MappingSchemaPath overrides the embedded schemas.
	MappingSchemaPath string
	// PeriodEnd pins resolution to facts ending on this date; zero
	// means most recent.
	PeriodEnd time.Time
}

// Standardizer maps company-specific concepts onto canonical fields.
type Standardizer struct {
	schemas MappingSchemas
}

// NewStandardizer loads the mapping schemas (embedded by default) and
// validates the rule invariants.
func NewStandardizer(cfg StandardizerConfig) (*Standardizer, error) {
	data := mappingSchemasJSON
	if cfg.MappingSchemaPath != "" {
		var err error
		data, err = os.ReadFile(cfg.MappingSchemaPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read mapping schemas: %w", err)
		}
	}
	var schemas MappingSchemas
	if err := json.Unmarshal(data, &schemas); err != nil {
		return nil, fmt.Errorf("failed to parse mapping schemas: %w", err)
	}
	for stmt, schema := range schemas.Statements {
		for _, field := range schema.Fields {
			for _, rule := range field.Rules {
				if len(rule.SelectAny) > 0 && len(rule.ComputeAny) > 0 {
					return nil, fmt.Errorf("rule %s/%s/%s mixes selectAny and computeAny", stmt, field.Name, rule.Name)
				}
				if len(rule.SelectAny) == 0 && len(rule.ComputeAny) == 0 {
					return nil, fmt.Errorf("rule %s/%s/%s has no resolution", stmt, field.Name, rule.Name)
				}
			}
		}
	}
	return &Standardizer{schemas: schemas}, nil
}

// FieldValue is one resolved canonical field.
type FieldValue struct {
	Name  string
	Value float64
	// Rule that produced the value, for auditability.
	Rule string
	// Concept is set when selectAny resolved directly to one concept.
	Concept string
}

// StandardizedStatement holds the resolved fields of one statement.
// Unresolved fields are absent from Values; Coverage is the resolved
// fraction.
type StandardizedStatement struct {
	Statement string
	Values    map[string]FieldValue
	Coverage  float64
}

// Standardize resolves every statement schema against the store.
// Resolution never fails as a whole: unresolved fields are simply
// missing and the caller inspects Coverage.
func (s *Standardizer) Standardize(store *FactStore, cfg StandardizerConfig) map[string]*StandardizedStatement {
	out := make(map[string]*StandardizedStatement, len(s.schemas.Statements))
	for name := range s.schemas.Statements {
		out[name] = s.StandardizeStatement(store, name, cfg)
	}
	return out
}

// StandardizeStatement resolves one statement's schema.
func (s *Standardizer) StandardizeStatement(store *FactStore, statement string, cfg StandardizerConfig) *StandardizedStatement {
	schema, ok := s.schemas.Statements[statement]
	result := &StandardizedStatement{
		Statement: statement,
		Values:    make(map[string]FieldValue),
	}
	if !ok {
		return result
	}

	ev := &evaluator{
		std:      s,
		store:    store,
		schema:   schema,
		cfg:      cfg,
		resolved: make(map[string]*FieldValue),
		inFlight: make(map[string]bool),
	}
	for _, field := range schema.Fields {
		if fv := ev.resolveField(field.Name); fv != nil {
			result.Values[field.Name] = *fv
		}
	}
	if len(schema.Fields) > 0 {
		result.Coverage = float64(len(result.Values)) / float64(len(schema.Fields))
	}
	return result
}

// evaluator performs memoized field resolution with a cycle guard.
type evaluator struct {
	std      *Standardizer
	store    *FactStore
	schema   MappingSchema
	cfg      StandardizerConfig
	resolved map[string]*FieldValue
	inFlight map[string]bool
}

func (ev *evaluator) resolveField(name string) *FieldValue {
	if fv, ok := ev.resolved[name]; ok {
		return fv
	}
	if ev.inFlight[name] {
		return nil // cyclic computeAny reference
	}
	ev.inFlight[name] = true
	defer delete(ev.inFlight, name)

	var field *FieldMapping
	for i := range ev.schema.Fields {
		if ev.schema.Fields[i].Name == name {
			field = &ev.schema.Fields[i]
			break
		}
	}
	if field == nil {
		ev.resolved[name] = nil
		return nil
	}

	// Rules are iterated in descending priority; equal priorities keep
	// schema order.
	rules := append([]MappingRule(nil), field.Rules...)
	for i := 0; i < len(rules); i++ {
		for j := i + 1; j < len(rules); j++ {
			if rules[j].Priority > rules[i].Priority {
				rules[i], rules[j] = rules[j], rules[i]
			}
		}
	}

	for _, rule := range rules {
		if !ev.industryMatches(rule) {
			continue
		}
		if len(rule.SelectAny) > 0 {
			// Aggregate totals are listed before their components; the
			// first present concept wins.
			for _, concept := range rule.SelectAny {
				if v, ok := ev.conceptValue(concept); ok {
					fv := &FieldValue{Name: name, Value: v, Rule: rule.Name, Concept: concept}
					ev.resolved[name] = fv
					return fv
				}
			}
			continue
		}
		for _, expr := range rule.ComputeAny {
			if v, ok := ev.eval(&expr); ok {
				fv := &FieldValue{Name: name, Value: v, Rule: rule.Name}
				ev.resolved[name] = fv
				return fv
			}
		}
	}
	ev.resolved[name] = nil
	return nil
}

func (ev *evaluator) industryMatches(rule MappingRule) bool {
	if len(rule.IndustryHints) == 0 {
		return true
	}
	if ev.cfg.IndustryHint == "" {
		return false
	}
	industry := strings.ToLower(ev.cfg.IndustryHint)
	for _, hint := range rule.IndustryHints {
		if strings.Contains(industry, strings.ToLower(hint)) {
			return true
		}
	}
	return false
}

// conceptValue returns the numeric value of the best default-member fact
// for a concept: pinned to cfg.PeriodEnd when set, else the most recent
// period, ties by later filing date.
func (ev *evaluator) conceptValue(concept string) (float64, bool) {
	var best *Fact
	for _, f := range ev.store.FactsByConcept(concept) {
		if f.HasDimensions() || !f.Value.IsNumeric() {
			continue
		}
		if !ev.cfg.PeriodEnd.IsZero() && !f.PeriodEnd.Equal(ev.cfg.PeriodEnd) {
			continue
		}
		if best == nil ||
			f.PeriodEnd.After(best.PeriodEnd) ||
			(f.PeriodEnd.Equal(best.PeriodEnd) && f.FilingDate.After(best.FilingDate)) {
			best = f
		}
	}
	if best == nil {
		return 0, false
	}
	v, _ := best.Value.Float64()
	return v, true
}

// eval interprets an expression. An expression resolves only when every
// term resolves.
func (ev *evaluator) eval(e *Expr) (float64, bool) {
	if len(e.Terms) == 0 {
		return 0, false
	}
	vals := make([]float64, 0, len(e.Terms))
	for i := range e.Terms {
		v, ok := ev.evalTerm(&e.Terms[i])
		if !ok {
			return 0, false
		}
		vals = append(vals, v)
	}

	switch e.Op {
	case "id":
		return vals[0], true
	case "add":
		sum := 0.0
		for _, v := range vals {
			sum += v
		}
		return sum, true
	case "sub":
		acc := vals[0]
		for _, v := range vals[1:] {
			acc -= v
		}
		return acc, true
	case "mul":
		acc := 1.0
		for _, v := range vals {
			acc *= v
		}
		return acc, true
	case "div":
		if len(vals) != 2 || vals[1] == 0 {
			return 0, false
		}
		return vals[0] / vals[1], true
	default:
		return 0, false
	}
}

func (ev *evaluator) evalTerm(t *Term) (float64, bool) {
	switch {
	case t.Field != "":
		if fv := ev.resolveField(t.Field); fv != nil {
			return fv.Value, true
		}
		return 0, false
	case len(t.ConceptAny) > 0:
		for _, c := range t.ConceptAny {
			if v, ok := ev.conceptValue(c); ok {
				return v, true
			}
		}
		return 0, false
	case t.Expr != nil:
		return ev.eval(t.Expr)
	default:
		return 0, false
	}
}
