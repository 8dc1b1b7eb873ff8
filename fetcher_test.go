package edgar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityValidate(t *testing.T) {
	assert.Error(t, Identity{}.Validate())
	assert.Error(t, Identity{Email: "not-an-email"}.Validate())
	assert.Error(t, Identity{Email: "someone@example.com"}.Validate())
	assert.NoError(t, Identity{Email: "analyst@rxdatalab.com"}.Validate())
}

func TestIdentityUserAgent(t *testing.T) {
	id := Identity{Name: "ResearchBot", Email: "analyst@rxdatalab.com"}
	assert.Equal(t, "ResearchBot/"+Version+" (analyst@rxdatalab.com)", id.UserAgent())

	anon := Identity{Email: "analyst@rxdatalab.com"}
	assert.Equal(t, "edgar-analytics/"+Version+" (analyst@rxdatalab.com)", anon.UserAgent())
}

func TestIdentityFromEnv(t *testing.T) {
	t.Setenv(SecEmailEnvVar, "analyst@rxdatalab.com")
	t.Setenv(SecNameEnvVar, "ResearchBot")

	id, err := IdentityFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "analyst@rxdatalab.com", id.Email)
	assert.Equal(t, "ResearchBot", id.Name)

	t.Setenv(SecEmailEnvVar, "")
	_, err = IdentityFromEnv()
	assert.Error(t, err)
}

func TestNewHTTPFetcherRejectsBadIdentity(t *testing.T) {
	_, err := NewHTTPFetcher(Identity{})
	assert.Error(t, err)
}

func testFetcher(t *testing.T) *HTTPFetcher {
	t.Helper()
	f, err := NewHTTPFetcher(Identity{Name: "test", Email: "analyst@rxdatalab.com"})
	require.NoError(t, err)
	return f
}

func TestHTTPFetcherFetch(t *testing.T) {
	var gotUA, gotETag string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotETag = r.Header.Get("If-None-Match")
		w.Header().Set("ETag", `"abc123"`)
		w.Write([]byte("<html>filing</html>"))
	}))
	defer srv.Close()

	f := testFetcher(t)
	res, err := f.Fetch(context.Background(), srv.URL, `"old"`)
	require.NoError(t, err)
	assert.Equal(t, []byte("<html>filing</html>"), res.Body)
	assert.Equal(t, `"abc123"`, res.ETag)
	assert.False(t, res.NotModified)
	assert.Contains(t, gotUA, "analyst@rxdatalab.com")
	assert.Equal(t, `"old"`, gotETag)
}

func TestHTTPFetcherNotModified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	f := testFetcher(t)
	res, err := f.Fetch(context.Background(), srv.URL, `"abc123"`)
	require.NoError(t, err)
	assert.True(t, res.NotModified)
	assert.Equal(t, `"abc123"`, res.ETag)
	assert.Nil(t, res.Body)
}

func TestHTTPFetcherRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := testFetcher(t)
	_, err := f.Fetch(context.Background(), srv.URL, "")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestHTTPFetcherForbiddenIsRateLimited(t *testing.T) {
	// The SEC answers 403, not 429, when the fair-access policy trips
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := testFetcher(t)
	_, err := f.Fetch(context.Background(), srv.URL, "")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestHTTPFetcherContextCancelled(t *testing.T) {
	f := testFetcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, "http://127.0.0.1:0/never", "")
	assert.Error(t, err)
}

// stubFetcher counts calls and returns canned bytes.
type stubFetcher struct {
	calls int
	body  []byte
}

func (s *stubFetcher) Fetch(ctx context.Context, url, etag string) (*FetchResult, error) {
	s.calls++
	return &FetchResult{Body: s.body}, nil
}

func TestCachingFetcher(t *testing.T) {
	stub := &stubFetcher{body: []byte("payload")}
	cf := &CachingFetcher{Inner: stub, Store: NewMemoryBlobStore()}

	res, err := cf.Fetch(context.Background(), "https://example.test/doc", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), res.Body)
	assert.Equal(t, 1, stub.calls)

	// Second fetch is a pure cache hit
	res, err = cf.Fetch(context.Background(), "https://example.test/doc", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), res.Body)
	assert.Equal(t, 1, stub.calls)

	// Distinct URLs miss
	_, err = cf.Fetch(context.Background(), "https://example.test/other", "")
	require.NoError(t, err)
	assert.Equal(t, 2, stub.calls)
}
