// Package llm puts a memocache Registry in front of chat completions so
// repeated prompts are answered from disk and only real calls cost money.
package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/unkn0wn-root/memocache"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role" yaml:"role" msgpack:"role"`
	Content string `json:"content" yaml:"content" msgpack:"content"`
}

// Request is the key-bearing argument of a completion. APIKey never takes
// part in the cache key.
type Request struct {
	Model       string    `json:"model" yaml:"model" msgpack:"model"`
	Messages    []Message `json:"messages" yaml:"messages" msgpack:"messages"`
	Temperature float64   `json:"temperature" yaml:"temperature" msgpack:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" msgpack:"max_tokens,omitempty"`
	APIKey      string    `json:"-" yaml:"-" msgpack:"-"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens" yaml:"prompt_tokens" msgpack:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens" yaml:"completion_tokens" msgpack:"completion_tokens"`
}

type Response struct {
	Model   string `json:"model" yaml:"model" msgpack:"model"`
	Content string `json:"content" yaml:"content" msgpack:"content"`
	Usage   Usage  `json:"usage" yaml:"usage" msgpack:"usage"`
}

// Completer performs one completion over the network.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// CostCalculator prices a finished completion.
type CostCalculator interface {
	Cost(resp Response, model string) (float64, error)
}

// DefaultCacheName is used when ClientConfig.Name is empty.
const DefaultCacheName = "llm_complete"

type ClientConfig struct {
	Completer Completer      // required
	Cost      CostCalculator // nil => completions are free

	Name         string           // cache name; "" => DefaultCacheName
	Format       memocache.Format // "" => json
	WriteThrough bool
	HashKeys     bool // digest long prompts
}

// Client is a cached Completer that keeps a running bill.
type Client struct {
	complete memocache.Func[Request, Response]

	mu    sync.Mutex
	spent float64
	calls int
}

var _ Completer = (*Client)(nil)

// NewClient registers the completion cache on r.
func NewClient(ctx context.Context, r *memocache.Registry, cfg ClientConfig) (*Client, error) {
	if cfg.Completer == nil {
		return nil, errors.New("llm: nil completer")
	}
	name := cfg.Name
	if name == "" {
		name = DefaultCacheName
	}

	c := &Client{}
	fn := func(ctx context.Context, req Request) (Response, error) {
		resp, err := cfg.Completer.Complete(ctx, req)
		if err != nil {
			return Response{}, err
		}
		var cost float64
		if cfg.Cost != nil {
			if cost, err = cfg.Cost.Cost(resp, req.Model); err != nil {
				return Response{}, fmt.Errorf("llm: price %s: %w", req.Model, err)
			}
		}
		c.mu.Lock()
		c.spent += cost
		c.calls++
		c.mu.Unlock()
		return resp, nil
	}

	wrapped, err := memocache.Wrap(ctx, r, fn, memocache.WrapConfig{
		Name:         name,
		Format:       cfg.Format,
		WriteThrough: cfg.WriteThrough,
		Exclude:      []string{"APIKey"},
		HashKeys:     cfg.HashKeys,
	})
	if err != nil {
		return nil, err
	}
	c.complete = wrapped
	return c, nil
}

// Complete answers from the cache or calls the underlying Completer.
// With report_on_cache_miss set, a miss returns memocache.ErrMissReported.
func (c *Client) Complete(ctx context.Context, req Request) (Response, error) {
	return c.complete(ctx, req)
}

// Spent is the total cost of completions actually performed.
func (c *Client) Spent() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.spent
}

// Calls is the number of completions actually performed.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
