package edgar

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// PeriodType distinguishes point-in-time from duration facts.
type PeriodType int

const (
	PeriodInstant PeriodType = iota
	PeriodDuration
)

func (p PeriodType) String() string {
	if p == PeriodInstant {
		return "instant"
	}
	return "duration"
}

// FiscalPeriod is FY, Q1, Q2, Q3 or Q4.
type FiscalPeriod string

const (
	FY FiscalPeriod = "FY"
	Q1 FiscalPeriod = "Q1"
	Q2 FiscalPeriod = "Q2"
	Q3 FiscalPeriod = "Q3"
	Q4 FiscalPeriod = "Q4"
)

// StatementType classifies which financial statement a fact belongs to.
type StatementType int

const (
	StatementOther StatementType = iota
	StatementIncome
	StatementBalance
	StatementCashFlow
	StatementEquity
)

func (s StatementType) String() string {
	switch s {
	case StatementIncome:
		return "income"
	case StatementBalance:
		return "balance"
	case StatementCashFlow:
		return "cashflow"
	case StatementEquity:
		return "equity"
	default:
		return "other"
	}
}

// DataQuality grades a fact for downstream filtering.
type DataQuality int

const (
	QualityLow DataQuality = iota
	QualityMedium
	QualityHigh
)

func (q DataQuality) String() string {
	switch q {
	case QualityHigh:
		return "HIGH"
	case QualityMedium:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// Context scopes a fact: entity, period, and zero or more dimension
// members. Two contexts are equal iff all three components match.
type Context struct {
	ID         string
	Entity     string
	Instant    time.Time
	Start      time.Time
	End        time.Time
	Dimensions map[string]string // axis -> member; empty for default
}

// IsInstant reports whether the context asserts a point in time.
func (c *Context) IsInstant() bool { return !c.Instant.IsZero() }

// PeriodEnd returns the instant or the duration end.
func (c *Context) PeriodEnd() time.Time {
	if c.IsInstant() {
		return c.Instant
	}
	return c.End
}

// key produces the identity used for interning: entity + period +
// sorted dimension pairs. The document-assigned ID is excluded.
func (c *Context) key() string {
	var b strings.Builder
	b.WriteString(c.Entity)
	b.WriteByte('|')
	b.WriteString(c.Instant.Format("2006-01-02"))
	b.WriteByte('|')
	b.WriteString(c.Start.Format("2006-01-02"))
	b.WriteByte('|')
	b.WriteString(c.End.Format("2006-01-02"))
	if len(c.Dimensions) > 0 {
		axes := make([]string, 0, len(c.Dimensions))
		for axis := range c.Dimensions {
			axes = append(axes, axis)
		}
		sort.Strings(axes)
		for _, axis := range axes {
			b.WriteByte('|')
			b.WriteString(axis)
			b.WriteByte('=')
			b.WriteString(c.Dimensions[axis])
		}
	}
	return b.String()
}

// contextPool interns contexts within a single document so logically
// equal contexts share identity.
type contextPool struct {
	byKey map[string]*Context
	byID  map[string]*Context
}

func newContextPool() *contextPool {
	return &contextPool{
		byKey: make(map[string]*Context),
		byID:  make(map[string]*Context),
	}
}

// Intern returns the canonical instance for ctx, registering it under its
// document ID. Logically equal contexts with distinct IDs map to one
// instance; both IDs resolve to it.
func (p *contextPool) Intern(ctx *Context) *Context {
	k := ctx.key()
	if canon, ok := p.byKey[k]; ok {
		if ctx.ID != "" {
			p.byID[ctx.ID] = canon
		}
		return canon
	}
	p.byKey[k] = ctx
	if ctx.ID != "" {
		p.byID[ctx.ID] = ctx
	}
	return ctx
}

// Lookup resolves a document contextRef to its interned context.
func (p *contextPool) Lookup(id string) (*Context, bool) {
	ctx, ok := p.byID[id]
	return ctx, ok
}

// Fact is the atomic record: one value reported against a concept in a
// context with a unit. Facts are immutable once constructed; corrections
// create a new Fact.
type Fact struct {
	Concept string
	Context *Context
	Unit    Unit

	RawValue string
	Value    Value
	Decimals int // DecimalsInf for decimals="INF"

	PeriodStart time.Time // zero for instants
	PeriodEnd   time.Time
	PeriodType  PeriodType

	FiscalYear   int
	FiscalPeriod FiscalPeriod

	// Provenance
	FilingDate time.Time
	FormType   string
	Accession  string

	StatementType StatementType
	Dimensions    map[string]string

	Quality     DataQuality
	IsAudited   bool
	IsRestated  bool
	IsEstimated bool
	Confidence  float64 // 0..1

	SemanticTags []string

	// Non-empty only on derived facts, e.g. "derived_q4_fy_minus_ytd9"
	// or "split_adj_ratio_10.00".
	CalculationContext string
}

// Float64 returns the scaled numeric value.
func (f *Fact) Float64() (float64, error) {
	if v, ok := f.Value.Float64(); ok {
		return v, nil
	}
	return 0, fmt.Errorf("fact %s has no numeric value", f.Concept)
}

// IsInstant reports whether this fact is for a point in time.
func (f *Fact) IsInstant() bool { return f.PeriodType == PeriodInstant }

// IsDuration reports whether this fact covers a time period.
func (f *Fact) IsDuration() bool { return f.PeriodType == PeriodDuration }

// DurationBucket classifies the fact's period length.
func (f *Fact) DurationBucket() DurationBucket {
	if f.IsInstant() {
		return BucketOther
	}
	return ClassifyDuration(f.PeriodStart, f.PeriodEnd)
}

// HasDimensions reports whether the fact is scoped beyond the default
// member.
func (f *Fact) HasDimensions() bool { return len(f.Dimensions) > 0 }

// PeriodLabel returns a human-readable period label.
func (f *Fact) PeriodLabel() string {
	if f.IsInstant() {
		return f.PeriodEnd.Format("2006-01-02")
	}
	if !f.PeriodStart.IsZero() && !f.PeriodEnd.IsZero() {
		return fmt.Sprintf("%s to %s", f.PeriodStart.Format("2006-01-02"), f.PeriodEnd.Format("2006-01-02"))
	}
	return "Unknown"
}

// dedupKey identifies a fact for uniqueness and stitching: concept +
// context identity + unit.
func (f *Fact) dedupKey() string {
	ctxKey := ""
	if f.Context != nil {
		ctxKey = f.Context.key()
	} else {
		ctxKey = f.PeriodStart.Format("2006-01-02") + "|" + f.PeriodEnd.Format("2006-01-02")
	}
	return f.Concept + "\x00" + ctxKey + "\x00" + f.Unit.Canonical
}

// inferStatementType guesses the owning statement from the concept local
// name. The presentation tree overrides this when available.
func inferStatementType(concept string, periodType PeriodType) StatementType {
	local := concept
	if i := strings.Index(local, ":"); i >= 0 {
		local = local[i+1:]
	}
	lower := strings.ToLower(local)

	switch {
	case strings.Contains(lower, "cashflow"),
		strings.HasPrefix(lower, "paymentsto"),
		strings.HasPrefix(lower, "proceedsfrom"),
		strings.Contains(lower, "netcashprovidedbyusedin"):
		return StatementCashFlow
	case strings.Contains(lower, "stockholdersequity") && periodType == PeriodDuration,
		strings.Contains(lower, "treasurystock") && periodType == PeriodDuration,
		strings.Contains(lower, "dividendsdeclared"):
		return StatementEquity
	case periodType == PeriodInstant:
		return StatementBalance
	case strings.Contains(lower, "revenue"),
		strings.Contains(lower, "income"),
		strings.Contains(lower, "expense"),
		strings.Contains(lower, "earningspershare"),
		strings.Contains(lower, "costof"),
		strings.Contains(lower, "grossprofit"):
		return StatementIncome
	default:
		return StatementOther
	}
}

// fiscalPeriodFor derives (year, period) from a period end and bucket
// when the filer did not state them (instance documents carry them only
// in dei facts; companyfacts carries them explicitly).
func fiscalPeriodFor(end time.Time, bucket DurationBucket) (int, FiscalPeriod) {
	year := end.Year()
	switch bucket {
	case BucketAnnual:
		return year, FY
	case BucketYTD9M:
		return year, Q3
	case BucketYTD6M:
		return year, Q2
	case BucketQuarter:
		// Calendar-quarter approximation; explicit dei facts win when present
		switch (int(end.Month()) - 1) / 3 {
		case 0:
			return year, Q1
		case 1:
			return year, Q2
		case 2:
			return year, Q3
		default:
			return year, Q4
		}
	default:
		return year, ""
	}
}
