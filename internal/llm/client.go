// Package llm provides a minimal client for any API implementing the
// OpenAI chat completions wire format (OpenAI, Groq, OpenRouter, vLLM,
// Ollama, llama.cpp, etc.).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a single chat completions endpoint with a fixed model.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a chat completions client. baseURL is the API root
// (e.g. "https://api.groq.com/openai/v1"); the "/chat/completions" path
// is appended per request.
func NewClient(baseURL, apiKey, model string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends a system prompt plus a single user message and returns
// the assistant's reply text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	wireRequest := chatRequest{
		Model:       c.model,
		Temperature: 0,
	}
	if system != "" {
		wireRequest.Messages = append(wireRequest.Messages, chatMessage{Role: "system", Content: system})
	}
	wireRequest.Messages = append(wireRequest.Messages, chatMessage{Role: "user", Content: user})

	body, err := json.Marshal(wireRequest)
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("llm: read response: %w", err)
	}

	var wireResponse chatResponse
	if err := json.Unmarshal(raw, &wireResponse); err != nil {
		return "", fmt.Errorf("llm: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if wireResponse.Error != nil {
			return "", fmt.Errorf("llm: api error (status %d): %s", resp.StatusCode, wireResponse.Error.Message)
		}
		return "", fmt.Errorf("llm: unexpected status %d", resp.StatusCode)
	}
	if len(wireResponse.Choices) == 0 {
		return "", fmt.Errorf("llm: response contains no choices")
	}

	return strings.TrimSpace(wireResponse.Choices[0].Message.Content), nil
}
