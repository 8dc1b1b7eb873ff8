package edgar

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// BatchConfig configures multi-filing loading.
type BatchConfig struct {
	// CIK of the entity; required.
	CIK string
	// FormType filters the submissions feed; required (e.g. "10-K").
	FormType string
	// DateFrom/DateTo bound the filing date, YYYY-MM-DD; empty means
	// unbounded.
	DateFrom string
	DateTo   string
	// Concurrency bounds concurrent fetches; the fetcher's shared rate
	// limiter still applies across all of them. Zero means 4.
	Concurrency int
	// IncludePaginated walks the older paginated filing files too.
	IncludePaginated bool

	Logger *slog.Logger
}

// BatchLoadDocuments fetches and parses every matching filing's primary
// document. One bad filing never aborts the batch: failures come back
// as BatchError values alongside the successes.
//
// Fetches run concurrently under an errgroup; parsing stays on the
// fetching goroutine (each document parse is single-threaded by
// contract). Cancellation is observed between filings.
func BatchLoadDocuments(ctx context.Context, fetcher Fetcher, cfg BatchConfig) ([]*Document, []BatchError, error) {
	filings, err := batchFilings(ctx, fetcher, cfg)
	if err != nil {
		return nil, nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	var mu sync.Mutex
	var docs []*Document
	var failures []BatchError

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, filing := range filings {
		filing := filing
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := fetcher.Fetch(gctx, filing.URL, "")
			if err != nil {
				mu.Lock()
				failures = append(failures, BatchError{Accession: filing.AccessionNumber, URL: filing.URL, Err: err})
				mu.Unlock()
				return nil
			}
			doc, err := ParseHTMLDocument(res.Body, DefaultParserConfig())
			if err != nil {
				mu.Lock()
				failures = append(failures, BatchError{Accession: filing.AccessionNumber, URL: filing.URL, Err: err})
				mu.Unlock()
				return nil
			}
			mu.Lock()
			docs = append(docs, doc)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return docs, failures, err
	}
	logger.Info("batch load complete",
		"cik", cfg.CIK, "form", cfg.FormType,
		"loaded", len(docs), "failed", len(failures))
	return docs, failures, nil
}

// BatchLoadFacts fetches every matching filing's companyfacts-style
// facts via per-filing fetch+parse functions supplied by the caller,
// then stitches them. It exists for pipelines that load XBRL file sets
// rather than HTML documents.
func BatchLoadFacts(ctx context.Context, fetcher Fetcher, cfg BatchConfig,
	load func(ctx context.Context, f Filing) (*FactStore, error)) (*FactStore, []BatchError, error) {

	filings, err := batchFilings(ctx, fetcher, cfg)
	if err != nil {
		return nil, nil, err
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	var mu sync.Mutex
	var stores []*FactStore
	var failures []BatchError

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, filing := range filings {
		filing := filing
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			store, err := load(gctx, filing)
			if err != nil {
				mu.Lock()
				failures = append(failures, BatchError{Accession: filing.AccessionNumber, URL: filing.URL, Err: err})
				mu.Unlock()
				return nil
			}
			mu.Lock()
			stores = append(stores, store)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, failures, err
	}
	return Stitch(stores, DefaultStitchConfig()), failures, nil
}

// batchFilings resolves the filing list for a batch config.
func batchFilings(ctx context.Context, fetcher Fetcher, cfg BatchConfig) ([]Filing, error) {
	if cfg.CIK == "" {
		return nil, fmt.Errorf("CIK is required")
	}
	if cfg.FormType == "" {
		return nil, fmt.Errorf("FormType is required")
	}

	subs, err := FetchSubmissions(ctx, fetcher, cfg.CIK)
	if err != nil {
		return nil, err
	}

	var all []Filing
	if cfg.IncludePaginated {
		all, err = subs.GetAllFilings(ctx, fetcher)
		if err != nil {
			return nil, err
		}
	} else {
		all = subs.GetRecentFilings()
	}

	filings := FilterByForm(all, cfg.FormType)
	if cfg.DateFrom != "" || cfg.DateTo != "" {
		from, to := cfg.DateFrom, cfg.DateTo
		if from == "" {
			from = "1900-01-01"
		}
		if to == "" {
			to = "2099-12-31"
		}
		filings = FilterByDateRange(filings, from, to)
	}
	return filings, nil
}
