package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unkn0wn-root/memocache"
)

func newRegistry(t *testing.T) *memocache.Registry {
	t.Helper()
	r, err := memocache.New(context.Background(), memocache.Options{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r
}

func TestGetIsCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("ETag", `"v1"`)
		_, _ = io.WriteString(w, "hello "+r.URL.Path)
	}))
	defer srv.Close()

	ctx := context.Background()
	f, err := New(ctx, newRegistry(t), Config{WriteThrough: true})
	require.NoError(t, err)

	first, err := f.Get(ctx, Request{URL: srv.URL + "/a", Client: srv.Client()})
	require.NoError(t, err)
	// a different client handle is still the same request
	second, err := f.Get(ctx, Request{URL: srv.URL + "/a", Client: &http.Client{}})
	require.NoError(t, err)

	assert.Equal(t, Response{Status: 200, Body: "hello /a", ETag: `"v1"`}, first)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, hits.Load())

	_, err = f.Get(ctx, Request{URL: srv.URL + "/b"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())
}

func TestHeadersAreKeyBearing(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, r.Header.Get("Accept"))
	}))
	defer srv.Close()

	ctx := context.Background()
	f, err := New(ctx, newRegistry(t), Config{})
	require.NoError(t, err)

	a, err := f.Get(ctx, Request{URL: srv.URL, Header: map[string]string{"Accept": "text/plain"}})
	require.NoError(t, err)
	b, err := f.Get(ctx, Request{URL: srv.URL, Header: map[string]string{"Accept": "application/json"}})
	require.NoError(t, err)
	assert.Equal(t, "text/plain", a.Body)
	assert.Equal(t, "application/json", b.Body)
	assert.EqualValues(t, 2, hits.Load())
}

func TestNon2xxIsNotCached(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	ctx := context.Background()
	f, err := New(ctx, newRegistry(t), Config{})
	require.NoError(t, err)

	_, err = f.Get(ctx, Request{URL: srv.URL})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Status)

	fail.Store(false)
	resp, err := f.Get(ctx, Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Body)
}

func TestOversizedBodyIsNotCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, strings.Repeat("x", 11))
	}))
	defer srv.Close()

	ctx := context.Background()
	r := newRegistry(t)
	f, err := New(ctx, r, Config{MaxBodyBytes: 10})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = f.Get(ctx, Request{URL: srv.URL})
		require.ErrorIs(t, err, ErrBodyTooLarge)
	}
	assert.EqualValues(t, 2, hits.Load(), "truncated body must not be cached")
	cache, err := r.GetCache(ctx, DefaultCacheName)
	require.NoError(t, err)
	assert.Empty(t, cache)

	exact, err := New(ctx, newRegistry(t), Config{MaxBodyBytes: 11})
	require.NoError(t, err)
	resp, err := exact.Get(ctx, Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Len(t, resp.Body, 11)
}

func TestDefaultBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, maxBodyBytes+10))
	}))
	defer srv.Close()

	ctx := context.Background()
	f, err := New(ctx, newRegistry(t), Config{})
	require.NoError(t, err)
	_, err = f.Get(ctx, Request{URL: srv.URL})
	require.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestGitHubHelper(t *testing.T) {
	var auth, accept, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth, accept, path = r.Header.Get("Authorization"), r.Header.Get("Accept"), r.URL.Path
		_, _ = io.WriteString(w, `{"full_name":"golang/go","stargazers_count":1}`)
	}))
	defer srv.Close()

	ctx := context.Background()
	r := newRegistry(t)
	f, err := New(ctx, r, Config{Name: "gh", GitHubBase: srv.URL + "/", GitHubToken: "tok", Format: memocache.FormatCBOR})
	require.NoError(t, err)

	resp, err := f.GitHub(ctx, "/repos/golang/go")
	require.NoError(t, err)
	assert.Contains(t, resp.Body, "golang/go")
	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, "application/vnd.github+json", accept)
	assert.Equal(t, "/repos/golang/go", path)

	cache, err := r.GetCache(ctx, "gh")
	require.NoError(t, err)
	require.Len(t, cache, 1)
	for k := range cache {
		assert.NotContains(t, k, "tok", "token leaked into key")
	}
}
