// Package httpllm provides reference HTTP-based implementations of the
// internal/llm capability interfaces, wired against OpenAI-compatible chat
// completion APIs (OpenAI, OpenRouter, and any self-hosted server that
// speaks the same wire format) and Ollama-compatible embedding APIs.
package httpllm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/menosai/menos/internal/llm"
)

// ChatGenerator implements llm.Generator against an OpenAI-compatible
// /chat/completions endpoint. OpenRouter and most self-hosted OpenAI-shim
// servers (vLLM, LiteLLM, llama.cpp's server mode) speak the same wire
// format, so a base URL and an optional extra header are enough to target
// any of them.
type ChatGenerator struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client

	// ExtraHeaders is applied to every request, e.g. OpenRouter's
	// HTTP-Referer.
	ExtraHeaders map[string]string
}

// NewChatGenerator constructs a ChatGenerator targeting baseURL (e.g.
// "https://api.openai.com/v1" or "https://openrouter.ai/api/v1") using the
// given API key and model.
func NewChatGenerator(baseURL, apiKey, model string) *ChatGenerator {
	return &ChatGenerator{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate implements llm.Generator. p.Timeout, if set, bounds the request
// via a derived context deadline.
func (c *ChatGenerator) Generate(ctx context.Context, p llm.GenerateParams) (string, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.Timeout*float64(time.Second)))
		defer cancel()
	}

	payload := chatCompletionRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: p.Prompt}},
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("httpllm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	for k, v := range c.ExtraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("httpllm: generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("httpllm: generate: status %d", resp.StatusCode)
	}

	var result chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("httpllm: decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("httpllm: generate: empty choices")
	}
	return result.Choices[0].Message.Content, nil
}
