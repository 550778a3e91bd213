// Package fetch caches HTTP GET responses in a memocache Registry.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/unkn0wn-root/memocache"
)

const (
	DefaultCacheName = "http_get"
	githubAPI        = "https://api.github.com"
	maxBodyBytes     = 16 << 20
)

// ErrBodyTooLarge is returned, and nothing cached, when a response body
// exceeds Config.MaxBodyBytes.
var ErrBodyTooLarge = errors.New("fetch: response body too large")

// Request is the key-bearing argument of a GET. Client and Token never
// take part in the key.
type Request struct {
	URL    string            `json:"url"`
	Header map[string]string `json:"header,omitempty"`

	Client *http.Client `json:"-"`
	Token  string       `json:"-"`
}

// Response is what gets stored. Only 2xx answers are cached.
type Response struct {
	Status int    `json:"status" yaml:"status" msgpack:"status"`
	Body   string `json:"body" yaml:"body" msgpack:"body"`
	ETag   string `json:"etag,omitempty" yaml:"etag,omitempty" msgpack:"etag,omitempty"`
}

// StatusError is a non-2xx answer. It is returned, not cached.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch: GET %s: status %d", e.URL, e.Status)
}

type Config struct {
	Name         string           // "" => DefaultCacheName
	Format       memocache.Format // "" => json
	WriteThrough bool
	Client       *http.Client // used when Request.Client is nil
	GitHubToken  string       // used by GitHub when set
	GitHubBase   string       // "" => https://api.github.com
	MaxBodyBytes int64        // <= 0 => 16 MiB
}

type Fetcher struct {
	get  memocache.Func[Request, Response]
	cfg  Config
	base string
}

func New(ctx context.Context, r *memocache.Registry, cfg Config) (*Fetcher, error) {
	if cfg.Name == "" {
		cfg.Name = DefaultCacheName
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = maxBodyBytes
	}
	f := &Fetcher{cfg: cfg, base: strings.TrimRight(cfg.GitHubBase, "/")}
	if f.base == "" {
		f.base = githubAPI
	}
	get, err := memocache.Wrap(ctx, r, f.do, memocache.WrapConfig{
		Name:         cfg.Name,
		Format:       cfg.Format,
		WriteThrough: cfg.WriteThrough,
		Exclude:      []string{"Client", "Token"},
	})
	if err != nil {
		return nil, err
	}
	f.get = get
	return f, nil
}

// Get returns the cached response for req or performs the request.
func (f *Fetcher) Get(ctx context.Context, req Request) (Response, error) {
	return f.get(ctx, req)
}

// GitHub GETs path from the GitHub REST API, e.g. "/repos/golang/go".
func (f *Fetcher) GitHub(ctx context.Context, path string) (Response, error) {
	return f.Get(ctx, Request{
		URL:    f.base + "/" + strings.TrimLeft(path, "/"),
		Header: map[string]string{"Accept": "application/vnd.github+json"},
		Token:  f.cfg.GitHubToken,
	})
}

func (f *Fetcher) do(ctx context.Context, req Request) (Response, error) {
	hr, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return Response{}, fmt.Errorf("fetch: failed to create request: %w", err)
	}
	for k, v := range req.Header {
		hr.Header.Set(k, v)
	}
	if req.Token != "" {
		hr.Header.Set("Authorization", "Bearer "+req.Token)
	}

	client := req.Client
	if client == nil {
		client = f.cfg.Client
	}
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(hr)
	if err != nil {
		return Response{}, fmt.Errorf("fetch: GET %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, &StatusError{URL: req.URL, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return Response{}, fmt.Errorf("fetch: read %s: %w", req.URL, err)
	}
	if int64(len(body)) > f.cfg.MaxBodyBytes {
		return Response{}, fmt.Errorf("%w: GET %s exceeds %d bytes", ErrBodyTooLarge, req.URL, f.cfg.MaxBodyBytes)
	}
	return Response{Status: resp.StatusCode, Body: string(body), ETag: resp.Header.Get("ETag")}, nil
}
