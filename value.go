package edgar

import (
	"strconv"
	"strings"
	"time"
)

// ValueKind tags a fact value. The tag is decided at parse time by the
// unit normalizer rather than inferred lazily by consumers.
type ValueKind int

const (
	ValueUnknown ValueKind = iota
	ValueMonetary
	ValueShares
	ValuePerShare
	ValueRatio
	ValueDate
	ValueText
)

// Value is the typed payload of a Fact.
type Value struct {
	Kind ValueKind
	Num  float64   // Monetary, Shares, PerShare, Ratio
	Date time.Time // Date
	Text string    // Text, Unknown (raw lexical)
}

// Float64 returns the numeric payload when the value carries one.
func (v Value) Float64() (float64, bool) {
	switch v.Kind {
	case ValueMonetary, ValueShares, ValuePerShare, ValueRatio:
		return v.Num, true
	}
	return 0, false
}

// IsNumeric reports whether the value carries a number.
func (v Value) IsNumeric() bool {
	_, ok := v.Float64()
	return ok
}

// DecimalsInf is the sentinel for decimals="INF" (exact values).
const DecimalsInf = 1 << 20

// MonetaryValue, SharesValue, PerShareValue, RatioValue construct typed
// numeric values.
func MonetaryValue(f float64) Value { return Value{Kind: ValueMonetary, Num: f} }
func SharesValue(f float64) Value   { return Value{Kind: ValueShares, Num: f} }
func PerShareValue(f float64) Value { return Value{Kind: ValuePerShare, Num: f} }
func RatioValue(f float64) Value    { return Value{Kind: ValueRatio, Num: f} }

// TextValue constructs a text value.
func TextValue(s string) Value { return Value{Kind: ValueText, Text: s} }

// TypedValue parses a raw lexical value against its unit and returns the
// tagged variant. Scale is the iXBRL scale exponent (0 for instance
// documents, where decimals alone governs precision but not magnitude).
// Sign is "-" when the iXBRL wrapper negates the rendered value.
func TypedValue(raw string, unit Unit, scale int, sign string) Value {
	trimmed := strings.TrimSpace(raw)

	// Dates appear as facts for dei concepts
	if d, err := time.Parse("2006-01-02", trimmed); err == nil && unit.Kind == UnitUnknown {
		return Value{Kind: ValueDate, Date: d}
	}

	num, ok := parseNumeric(trimmed)
	if !ok {
		if unit.Kind == UnitUnknown {
			return TextValue(trimmed)
		}
		return Value{Kind: ValueUnknown, Text: trimmed}
	}
	for i := 0; i < scale; i++ {
		num *= 10
	}
	for i := 0; i > scale; i-- {
		num /= 10
	}
	if sign == "-" {
		num = -num
	}

	switch unit.Kind {
	case UnitMonetary, UnitCompound:
		return MonetaryValue(num)
	case UnitShares:
		return SharesValue(num)
	case UnitPerShare:
		return PerShareValue(num)
	case UnitRatio:
		return RatioValue(num)
	default:
		return Value{Kind: ValueUnknown, Text: trimmed, Num: num}
	}
}

// parseNumeric handles the lexical forms SEC filings actually use:
// thousands separators, parenthesized negatives, and dash placeholders.
func parseNumeric(s string) (float64, bool) {
	cleaned := strings.ReplaceAll(s, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" || cleaned == "-" || cleaned == "—" || cleaned == "–" {
		return 0, false
	}

	neg := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		neg = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}

	val, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		val = -val
	}
	return val, true
}
