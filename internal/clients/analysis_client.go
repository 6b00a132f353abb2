/**
 * Analysis Client for the Rent-Roll Worker
 *
 * Sends the rendered rent-roll table to an OpenAI-compatible chat
 * completions endpoint and returns the model's structured summary.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/adverant/nexus/rentroll-worker/internal/logging"
)

const (
	analysisSystemPrompt = "You are an expert at analyzing rent roll data. Extract and structure the key information from the provided rent roll table."
	analysisUserPrompt   = "Analyze this rent roll data and provide a structured summary: "
)

// Analyzer summarizes a rendered rent-roll table
type Analyzer interface {
	Analyze(ctx context.Context, tableHTML string) (string, error)
}

// AnalysisConfig holds chat endpoint settings
type AnalysisConfig struct {
	URL         string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// AnalysisClient talks to a chat completions endpoint
type AnalysisClient struct {
	url         string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	logger      *logging.Logger
}

// NewAnalysisClient creates a new analysis client
func NewAnalysisClient(cfg AnalysisConfig) (*AnalysisClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("analysis API key is required")
	}
	if cfg.URL == "" {
		cfg.URL = "https://api.openai.com/v1/chat/completions"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-3.5-turbo"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}

	return &AnalysisClient{
		url:         cfg.URL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logging.NewLogger("AnalysisClient"),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// chatResponse is the subset of the completions response we read
type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Analyze implements Analyzer
func (c *AnalysisClient) Analyze(ctx context.Context, tableHTML string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: analysisSystemPrompt},
			{Role: "user", Content: analysisUserPrompt + tableHTML},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Info("Requesting rent-roll analysis",
		"model", c.model,
		"tableSize", len(tableHTML),
		"requestSize", len(body))
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Analysis request failed",
			"error", err.Error(),
			"duration", time.Since(start).String())
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Analysis API error",
			"statusCode", resp.StatusCode,
			"duration", time.Since(start).String())
		return "", fmt.Errorf("analysis API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("analysis API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}

	summary := strings.TrimSpace(parsed.Choices[0].Message.Content)
	c.logger.Info("Analysis complete",
		"statusCode", resp.StatusCode,
		"summaryLength", len(summary),
		"duration", time.Since(start).String())
	return summary, nil
}
