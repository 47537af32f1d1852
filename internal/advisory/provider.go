package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Request is a single completion request: a fixed role instruction plus the
// templated user prompt.
type Request struct {
	System string
	Prompt string
}

// Provider generates advisory text. Implementations must return a non-nil
// error instead of text whenever generation did not succeed.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ProviderError marks a failed or timed-out provider call. It is never
// rendered as advice and never cached.
type ProviderError struct {
	Reason string
	Status int
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return "advisory provider failure: " + e.Reason + ": " + e.Err.Error()
	}
	return "advisory provider failure: " + e.Reason
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ErrProviderDisabled is returned when no API key is configured.
var ErrProviderDisabled = errors.New("advisory provider not configured")

// ChatClient talks to an OpenAI-compatible /chat/completions endpoint.
type ChatClient struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// ChatOptions configures NewChatClient.
type ChatOptions struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// NewChatClient returns a client bound to opts. The timeout applies per call.
func NewChatClient(opts ChatOptions) *ChatClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &ChatClient{
		baseURL:     strings.TrimSuffix(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		httpClient:  &http.Client{Timeout: opts.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiErrorResponse struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends one non-streaming chat completion.
func (c *ChatClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", &ProviderError{Reason: "disabled", Err: ErrProviderDisabled}
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", &ProviderError{Reason: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &ProviderError{Reason: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &ProviderError{Reason: "send request", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &ProviderError{Reason: "read response", Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != nil {
			return "", &ProviderError{
				Reason: fmt.Sprintf("status %d", resp.StatusCode),
				Status: resp.StatusCode,
				Err:    fmt.Errorf("%s (type: %s)", apiErr.Error.Message, apiErr.Error.Type),
			}
		}
		return "", &ProviderError{Reason: fmt.Sprintf("status %d", resp.StatusCode), Status: resp.StatusCode}
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &ProviderError{Reason: "decode response", Status: resp.StatusCode, Err: err}
	}
	if len(out.Choices) == 0 {
		return "", &ProviderError{Reason: "empty response", Status: resp.StatusCode}
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", &ProviderError{Reason: "empty response", Status: resp.StatusCode}
	}
	return text, nil
}
