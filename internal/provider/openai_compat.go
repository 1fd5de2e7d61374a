package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"shopkeeper/internal/models"
)

// Defaults applied when a model config leaves sampling parameters unset.
const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 4096
)

// openAICompat is the shared bearer-token transport for gateways exposing an
// OpenAI-compatible surface. The unified and SiliconFlow clients embed it and
// only differ in base URL, key and image generation shape.
type openAICompat struct {
	name       models.Provider
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// postJSON sends an authenticated JSON request and returns the raw response
// body. Non-2xx responses become transport errors carrying the HTTP status.
func (c *openAICompat) postJSON(ctx context.Context, phase, path string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := strings.TrimSuffix(c.baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(c.name, phase, 0, "request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(c.name, phase, 0, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("⚠️ [PROVIDER] %s %s error: %d - %s", c.name, phase, resp.StatusCode, trimBody(string(respBody)))
		return nil, transportError(c.name, phase, resp.StatusCode, trimBody(string(respBody)), nil)
	}

	return respBody, nil
}

// chatCompletion runs a chat completion with arbitrary message content
// (plain strings or multimodal part lists) and extracts the first choice.
func (c *openAICompat) chatCompletion(ctx context.Context, phase, model string, messages []map[string]interface{}, temperature float64, maxTokens int) (string, error) {
	if temperature == 0 {
		temperature = defaultTemperature
	}
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	body := map[string]interface{}{
		"model":       model,
		"messages":    messages,
		"temperature": temperature,
		"max_tokens":  maxTokens,
	}

	respBody, err := c.postJSON(ctx, phase, "/chat/completions", body)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			Text string `json:"text"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", transportError(c.name, phase, 0, "failed to parse response", err)
	}

	if len(parsed.Choices) == 0 {
		return "", contentError(c.name, phase, "no choices in response")
	}
	content := parsed.Choices[0].Message.Content
	if content == "" {
		content = parsed.Choices[0].Text
	}
	if content == "" {
		return "", contentError(c.name, phase, "empty content in response")
	}
	return content, nil
}

// GenerateText implements Client.
func (c *openAICompat) GenerateText(ctx context.Context, model string, messages []models.ChatMessage, temperature float64, maxTokens int) (string, error) {
	wire := make([]map[string]interface{}, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, map[string]interface{}{"role": m.Role, "content": m.Content})
	}
	return c.chatCompletion(ctx, "text", model, wire, temperature, maxTokens)
}

// AnalyzeImages implements Client. All images go into a single multimodal
// user message alongside the prompt.
func (c *openAICompat) AnalyzeImages(ctx context.Context, model, prompt string, images []models.ImageRef, temperature float64, maxTokens int) (string, error) {
	if len(images) == 0 {
		return "", configError(c.name, "vision", "no images to analyze")
	}
	parts, err := multimodalContent(prompt, images)
	if err != nil {
		return "", configError(c.name, "vision", err.Error())
	}
	wire := []map[string]interface{}{
		{"role": "user", "content": parts},
	}
	return c.chatCompletion(ctx, "vision", model, wire, temperature, maxTokens)
}
