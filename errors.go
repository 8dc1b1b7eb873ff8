package edgar

import (
	"errors"
	"fmt"
)

// Sentinel errors for the over-limit and degradation kinds.
var (
	// ErrDocumentTooLarge is surfaced when an HTML document exceeds
	// ParserConfig.MaxDocumentSize.
	ErrDocumentTooLarge = errors.New("document exceeds maximum size")

	// ErrUnknownUnit marks an unparseable unit; the owning fact is kept
	// with quality LOW.
	ErrUnknownUnit = errors.New("unknown unit")

	// ErrNoPresentation is returned when a requested statement role has
	// no presentation tree.
	ErrNoPresentation = errors.New("no presentation tree for role")

	// ErrRateLimited is surfaced when a request exceeds the rate limiter
	// budget; callers may retry.
	ErrRateLimited = errors.New("rate limit budget exceeded")
)

// ParseError is a surfaced input-corruption or schema-violation error.
// It carries the document identifier, the byte or node offset where the
// problem was detected, and a brief reason code.
type ParseError struct {
	Doc    string // URL or document identifier
	Offset int64  // byte offset, or node index for tree-phase errors
	Reason string // short reason code, e.g. "malformed-xml"
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at offset %d in %s: %v", e.Reason, e.Offset, e.Doc, e.Err)
	}
	return fmt.Sprintf("%s at offset %d in %s", e.Reason, e.Offset, e.Doc)
}

func (e *ParseError) Unwrap() error { return e.Err }

// BatchError pairs a failed input with its error so batch operations can
// report per-input outcomes without aborting.
type BatchError struct {
	Accession string
	URL       string
	Err       error
}

func (e BatchError) Error() string {
	id := e.Accession
	if id == "" {
		id = e.URL
	}
	return fmt.Sprintf("%s: %v", id, e.Err)
}
