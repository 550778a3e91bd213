package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unkn0wn-root/memocache"
)

type fakeCompleter struct {
	calls int
	err   error
}

func (f *fakeCompleter) Complete(_ context.Context, req Request) (Response, error) {
	f.calls++
	if f.err != nil {
		return Response{}, f.err
	}
	return Response{
		Model:   req.Model,
		Content: "re: " + req.Messages[len(req.Messages)-1].Content,
		Usage:   Usage{PromptTokens: 10, CompletionTokens: 5},
	}, nil
}

func newRegistry(t *testing.T) *memocache.Registry {
	t.Helper()
	r, err := memocache.New(context.Background(), memocache.Options{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r
}

var prices = PriceTable{"gpt-test": {InputCostPerToken: 0.01, OutputCostPerToken: 0.02}}

func ask(prompt, key string) Request {
	return Request{
		Model:    "gpt-test",
		Messages: []Message{{Role: "user", Content: prompt}},
		APIKey:   key,
	}
}

func TestClientChargesOnlyRealCalls(t *testing.T) {
	ctx := context.Background()
	fc := &fakeCompleter{}
	c, err := NewClient(ctx, newRegistry(t), ClientConfig{Completer: fc, Cost: prices, WriteThrough: true})
	require.NoError(t, err)

	first, err := c.Complete(ctx, ask("hello", "key-1"))
	require.NoError(t, err)
	second, err := c.Complete(ctx, ask("hello", "key-2"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, fc.calls, "api key must not be part of the cache key")
	assert.Equal(t, 1, c.Calls())
	assert.InDelta(t, 0.2, c.Spent(), 1e-9)

	_, err = c.Complete(ctx, ask("other", "key-1"))
	require.NoError(t, err)
	assert.InDelta(t, 0.4, c.Spent(), 1e-9)
}

func TestClientSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	open := func() *memocache.Registry {
		r, err := memocache.New(ctx, memocache.Options{Dir: dir})
		require.NoError(t, err)
		return r
	}

	for _, f := range []memocache.Format{memocache.FormatJSON, memocache.FormatMsgpack} {
		name := "complete_" + string(f)
		fc := &fakeCompleter{}
		c1, err := NewClient(ctx, open(), ClientConfig{Completer: fc, Name: name, Format: f, WriteThrough: true})
		require.NoError(t, err)
		want, err := c1.Complete(ctx, ask("hi", ""))
		require.NoError(t, err)

		c2, err := NewClient(ctx, open(), ClientConfig{Completer: fc, Name: name, Format: f})
		require.NoError(t, err)
		got, err := c2.Complete(ctx, ask("hi", ""))
		require.NoError(t, err)
		assert.Equal(t, want, got, f)
		assert.Equal(t, 1, fc.calls, f)
		assert.Zero(t, c2.Calls(), f)
	}
}

func TestClientDryRun(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)
	fc := &fakeCompleter{}
	c, err := NewClient(ctx, r, ClientConfig{Completer: fc, Cost: prices})
	require.NoError(t, err)
	require.NoError(t, r.SetProperty(ctx, memocache.ScopeUser, DefaultCacheName, memocache.PropReportOnMiss, true))

	_, err = c.Complete(ctx, ask("expensive", ""))
	assert.ErrorIs(t, err, memocache.ErrMissReported)
	assert.Zero(t, fc.calls)
	assert.Zero(t, c.Spent())
}

func TestClientErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("overloaded")
	fc := &fakeCompleter{err: boom}
	c, err := NewClient(ctx, newRegistry(t), ClientConfig{Completer: fc})
	require.NoError(t, err)

	_, err = c.Complete(ctx, ask("x", ""))
	assert.ErrorIs(t, err, boom)

	fc.err = nil
	_, err = c.Complete(ctx, ask("x", ""))
	require.NoError(t, err)
	assert.Equal(t, 2, fc.calls)
}

func TestClientUnknownModelPrice(t *testing.T) {
	ctx := context.Background()
	c, err := NewClient(ctx, newRegistry(t), ClientConfig{Completer: &fakeCompleter{}, Cost: PriceTable{}})
	require.NoError(t, err)
	_, err = c.Complete(ctx, ask("x", ""))
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestNewClientRequiresCompleter(t *testing.T) {
	_, err := NewClient(context.Background(), newRegistry(t), ClientConfig{})
	assert.Error(t, err)
}

func TestHTTPCompleter(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		_, _ = io.WriteString(w, `{
			"model": "gpt-test-0613",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "pong"}}],
			"usage": {"prompt_tokens": 7, "completion_tokens": 1, "total_tokens": 8}
		}`)
	}))
	defer srv.Close()

	h := &HTTPCompleter{BaseURL: srv.URL + "/v1/", APIKey: "default-key", Client: srv.Client()}
	resp, err := h.Complete(context.Background(), ask("ping", ""))
	require.NoError(t, err)

	assert.Equal(t, Response{Model: "gpt-test-0613", Content: "pong", Usage: Usage{PromptTokens: 7, CompletionTokens: 1}}, resp)
	assert.Equal(t, "Bearer default-key", gotAuth)
	assert.Equal(t, "gpt-test", gotBody["model"])
	assert.NotContains(t, gotBody, "APIKey")

	_, err = h.Complete(context.Background(), ask("ping", "override"))
	require.NoError(t, err)
	assert.Equal(t, "Bearer override", gotAuth)
}

func TestHTTPCompleterAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
	}))
	defer srv.Close()

	h := &HTTPCompleter{BaseURL: srv.URL}
	_, err := h.Complete(context.Background(), ask("ping", ""))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, "slow down", apiErr.Message)
}

func TestParseCompletionRejectsMalformed(t *testing.T) {
	_, err := parseCompletion([]byte(`not json`))
	assert.Error(t, err)
	_, err = parseCompletion([]byte(`{"choices":[]}`))
	assert.Error(t, err)
}

func TestParsePriceTable(t *testing.T) {
	doc := []byte(`{
		"sample_spec": {"mode": "chat"},
		"gpt-test": {"input_cost_per_token": 0.5, "output_cost_per_token": 1.5, "litellm_provider": "openai"},
		"dall-e": {"output_cost_per_pixel": 0.1}
	}`)
	pt, err := ParsePriceTable(doc)
	require.NoError(t, err)
	assert.Len(t, pt, 1)

	cost, err := pt.Cost(Response{Usage: Usage{PromptTokens: 2, CompletionTokens: 2}}, "gpt-test")
	require.NoError(t, err)
	assert.InDelta(t, 4.0, cost, 1e-9)

	// falls back to the served model name
	cost, err = pt.Cost(Response{Model: "gpt-test", Usage: Usage{PromptTokens: 1}}, "alias")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, cost, 1e-9)

	_, err = ParsePriceTable([]byte("{"))
	assert.Error(t, err)
}
