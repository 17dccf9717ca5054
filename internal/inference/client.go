package inference

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Completer is the minimal completion surface agents depend on.
// Satisfied by *Client; tests substitute scripted fakes.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config holds the inference client configuration
type Config struct {
	BaseURL     string  // Default: http://localhost:11434
	Model       string  // Default: llama3.1:8b
	ContextSize int     // Default: 32768
	Temperature float64 // Default: 0.2
	Timeout     time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "http://localhost:11434",
		Model:       "llama3.1:8b",
		ContextSize: 32768,
		Temperature: 0.2, // Low temperature keeps SQL generation stable
		Timeout:     10 * time.Minute,
	}
}

// ChatMessage is a single turn in a chat completion request
type ChatMessage struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Client talks to an Ollama-compatible chat completion endpoint
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a new inference client
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type chatRequest struct {
	Model       string                 `json:"model"`
	Messages    []ChatMessage          `json:"messages"`
	Stream      bool                   `json:"stream"`
	Temperature float64                `json:"temperature,omitempty"`
	Options     map[string]interface{} `json:"options,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// Complete performs a non-streaming chat completion with a system and
// user prompt and returns the assistant content.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	msgs := make([]ChatMessage, 0, 2)
	if systemPrompt != "" {
		msgs = append(msgs, ChatMessage{Role: "system", Content: systemPrompt})
	}
	msgs = append(msgs, ChatMessage{Role: "user", Content: userPrompt})

	return c.CompleteMessages(ctx, msgs)
}

// CompleteMessages performs a non-streaming chat completion over a full
// message history.
func (c *Client) CompleteMessages(ctx context.Context, messages []ChatMessage) (string, error) {
	req := chatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Stream:      false,
		Temperature: c.config.Temperature,
		Options: map[string]interface{}{
			"num_ctx": c.config.ContextSize,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return strings.TrimSpace(chatResp.Message.Content), nil
}

// Stream performs a streaming chat completion. Tokens are delivered on
// the returned channel, which is closed when the model finishes or the
// context is cancelled.
func (c *Client) Stream(ctx context.Context, systemPrompt, userPrompt string) (<-chan string, error) {
	msgs := make([]ChatMessage, 0, 2)
	if systemPrompt != "" {
		msgs = append(msgs, ChatMessage{Role: "system", Content: systemPrompt})
	}
	msgs = append(msgs, ChatMessage{Role: "user", Content: userPrompt})

	req := chatRequest{
		Model:       c.config.Model,
		Messages:    msgs,
		Stream:      true,
		Temperature: c.config.Temperature,
		Options: map[string]interface{}{
			"num_ctx": c.config.ContextSize,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	tokens := make(chan string, 100)

	go func() {
		defer close(tokens)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			var chunk chatResponse
			if err := json.Unmarshal(scanner.Bytes(), &chunk); err != nil {
				continue
			}

			if chunk.Message.Content != "" {
				select {
				case tokens <- chunk.Message.Content:
				case <-ctx.Done():
					return
				}
			}

			if chunk.Done {
				return
			}
		}
	}()

	return tokens, nil
}

// ListModels lists models available on the endpoint
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	names := make([]string, len(result.Models))
	for i, m := range result.Models {
		names[i] = m.Name
	}

	return names, nil
}
