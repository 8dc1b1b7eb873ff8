package edgar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const Version = "0.4.0"

// SEC fair-access policy: at most 10 requests per second, identified
// by a User-Agent carrying a contact address.
const (
	requestsPerSecond = 10
	fetchTimeout      = 30 * time.Second
)

// SecEmailEnvVar and SecNameEnvVar configure the request identity from
// the environment.
const (
	SecEmailEnvVar = "SEC_EMAIL"
	SecNameEnvVar  = "SEC_NAME"
)

// Identity identifies the caller to the SEC. Email is mandatory.
type Identity struct {
	Name  string
	Email string
}

var emailRE = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Validate checks the identity against SEC requirements.
func (id Identity) Validate() error {
	if id.Email == "" {
		return fmt.Errorf("SEC email required: set %s or pass an Identity", SecEmailEnvVar)
	}
	if !emailRE.MatchString(id.Email) {
		return fmt.Errorf("invalid email format: %s", id.Email)
	}
	if strings.HasSuffix(id.Email, "example.com") {
		return fmt.Errorf("use a real email address, not example.com: %s", id.Email)
	}
	return nil
}

// UserAgent builds the SEC-compliant User-Agent string.
func (id Identity) UserAgent() string {
	name := id.Name
	if name == "" {
		name = "edgar-analytics"
	}
	return fmt.Sprintf("%s/%s (%s)", name, Version, id.Email)
}

// IdentityFromEnv reads the identity from the environment.
func IdentityFromEnv() (Identity, error) {
	id := Identity{
		Name:  os.Getenv(SecNameEnvVar),
		Email: os.Getenv(SecEmailEnvVar),
	}
	return id, id.Validate()
}

// FetchResult is one fetch response. NotModified is true for a 304
// against the request etag, in which case Body is nil.
type FetchResult struct {
	Body        []byte
	ETag        string
	NotModified bool
}

// Fetcher retrieves filing bytes. Implementations must be safe for
// concurrent use; the batch loader shares one across goroutines.
type Fetcher interface {
	// Fetch retrieves url. A non-empty etag is sent as If-None-Match.
	Fetch(ctx context.Context, url, etag string) (*FetchResult, error)
}

// BlobStore caches fetched bytes between runs.
type BlobStore interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte) error
}

// HTTPFetcher is the default Fetcher: shared rate limiter, per-request
// timeout, SEC User-Agent.
type HTTPFetcher struct {
	identity Identity
	client   *http.Client
	limiter  *rate.Limiter
}

// NewHTTPFetcher validates the identity and returns a ready fetcher.
func NewHTTPFetcher(id Identity) (*HTTPFetcher, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return &HTTPFetcher{
		identity: id,
		client:   &http.Client{Timeout: fetchTimeout},
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}, nil
}

// Fetch implements Fetcher. The limiter blocks until a slot is free or
// the context is done.
func (f *HTTPFetcher) Fetch(ctx context.Context, url, etag string) (*FetchResult, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.identity.UserAgent())
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotModified:
		return &FetchResult{ETag: etag, NotModified: true}, nil
	case http.StatusTooManyRequests, http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d for %s", ErrRateLimited, resp.StatusCode, url)
	default:
		return nil, fmt.Errorf("SEC returned status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &FetchResult{Body: body, ETag: resp.Header.Get("ETag")}, nil
}

// CachingFetcher wraps a Fetcher with a BlobStore. Cache hits never
// touch the network.
type CachingFetcher struct {
	Inner Fetcher
	Store BlobStore
}

func (c *CachingFetcher) Fetch(ctx context.Context, url, etag string) (*FetchResult, error) {
	if data, ok := c.Store.Get(url); ok {
		return &FetchResult{Body: data}, nil
	}
	res, err := c.Inner.Fetch(ctx, url, etag)
	if err != nil {
		return nil, err
	}
	if !res.NotModified {
		if err := c.Store.Put(url, res.Body); err != nil {
			return nil, fmt.Errorf("cache write failed: %w", err)
		}
	}
	return res, nil
}

// MemoryBlobStore is an in-process BlobStore for tests and small runs.
// It is not safe for concurrent writers; wrap it if the batch loader
// shares one.
type MemoryBlobStore struct {
	blobs map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (m *MemoryBlobStore) Get(key string) ([]byte, bool) {
	data, ok := m.blobs[key]
	return data, ok
}

func (m *MemoryBlobStore) Put(key string, data []byte) error {
	m.blobs[key] = data
	return nil
}
