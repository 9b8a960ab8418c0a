// Package genai generates meeting follow-up content with an LLM.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	nterrors "github.com/otherjamesbrown/notetakerd/pkg/errors"
	"github.com/otherjamesbrown/notetakerd/pkg/logging"
)

// Generator produces text from a prompt pair.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, prompt string) (string, error)
}

const (
	openAIDefaultBaseURL = "https://api.openai.com"
	openAIDefaultModel   = "gpt-4o"
	openAIDefaultTimeout = 60 * time.Second
	openAITemperature    = 0.7
)

// OpenAIConfig configures the OpenAI chat-completions client.
type OpenAIConfig struct {
	APIKey string
	// BaseURL overrides the API host. Used in tests.
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIClient implements Generator against the chat completions API.
type OpenAIClient struct {
	config     OpenAIConfig
	httpClient *http.Client
	logger     logging.Logger
}

// NewOpenAI creates an OpenAI client.
func NewOpenAI(cfg OpenAIConfig, logger logging.Logger) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = openAIDefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = openAIDefaultTimeout
	}
	return &OpenAIClient{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(logging.F("component", "openai_client")),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate runs one chat completion and returns the assistant's text.
func (c *OpenAIClient) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	if c.config.APIKey == "" {
		return "", fmt.Errorf("openai API key not set: %w", nterrors.ErrConfiguration)
	}

	var messages []chatMessage
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(chatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Temperature: openAITemperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create openai request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read openai response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &nterrors.VendorError{
			Provider:   "openai",
			StatusCode: resp.StatusCode,
			Body:       string(respData),
		}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respData, &chatResp); err != nil {
		return "", fmt.Errorf("parse openai response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("openai response has no choices")
	}

	c.logger.Debug("Completion generated",
		logging.F("model", c.config.Model),
		logging.F("latency_ms", time.Since(start).Milliseconds()))

	return chatResp.Choices[0].Message.Content, nil
}
