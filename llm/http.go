package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

const maxResponseBytes = 8 << 20

// APIError is a non-2xx answer from the completion endpoint.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("llm: api status %d", e.Status)
	}
	return fmt.Sprintf("llm: api status %d: %s", e.Status, e.Message)
}

// HTTPCompleter calls an OpenAI-compatible /chat/completions endpoint.
type HTTPCompleter struct {
	BaseURL string       // e.g. https://api.openai.com/v1
	APIKey  string       // used when Request.APIKey is empty
	Client  *http.Client // nil => http.DefaultClient
}

var _ Completer = (*HTTPCompleter)(nil)

type chatBody struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

func (h *HTTPCompleter) Complete(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(chatBody{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return Response{}, fmt.Errorf("llm: encode request: %w", err)
	}

	url := strings.TrimRight(h.BaseURL, "/") + "/chat/completions"
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("llm: failed to create request: %w", err)
	}
	hr.Header.Set("Content-Type", "application/json")
	key := req.APIKey
	if key == "" {
		key = h.APIKey
	}
	if key != "" {
		hr.Header.Set("Authorization", "Bearer "+key)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(hr)
	if err != nil {
		return Response{}, fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, fmt.Errorf("llm: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, &APIError{Status: resp.StatusCode, Message: gjson.GetBytes(raw, "error.message").String()}
	}
	return parseCompletion(raw)
}

func parseCompletion(raw []byte) (Response, error) {
	if !gjson.ValidBytes(raw) {
		return Response{}, fmt.Errorf("llm: response is not JSON")
	}
	content := gjson.GetBytes(raw, "choices.0.message.content")
	if !content.Exists() {
		return Response{}, fmt.Errorf("llm: response has no choices")
	}
	usage := gjson.GetBytes(raw, "usage")
	return Response{
		Model:   gjson.GetBytes(raw, "model").String(),
		Content: content.String(),
		Usage: Usage{
			PromptTokens:     int(usage.Get("prompt_tokens").Int()),
			CompletionTokens: int(usage.Get("completion_tokens").Int()),
		},
	}, nil
}
