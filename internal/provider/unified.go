package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"shopkeeper/internal/models"
)

// UnifiedClient talks to the unified multi-model gateway. Text, vision and
// image generation all ride the OpenAI-compatible surface.
type UnifiedClient struct {
	openAICompat
}

// NewUnifiedClient creates a client for the unified gateway.
func NewUnifiedClient(baseURL, apiKey string, timeout time.Duration) *UnifiedClient {
	return &UnifiedClient{
		openAICompat: openAICompat{
			name:       models.ProviderUnified,
			baseURL:    baseURL,
			apiKey:     apiKey,
			httpClient: &http.Client{Timeout: timeout},
		},
	}
}

// GenerateImage implements Client via the /images/generations endpoint.
func (c *UnifiedClient) GenerateImage(ctx context.Context, model, prompt string) ([]string, error) {
	body := map[string]interface{}{
		"model":  model,
		"prompt": prompt,
		"n":      1,
		"size":   "1024x1024",
	}

	respBody, err := c.postJSON(ctx, "image", "/images/generations", body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Data []struct {
			URL     string `json:"url"`
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, transportError(c.name, "image", 0, "failed to parse response", err)
	}

	urls := make([]string, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		switch {
		case d.URL != "":
			urls = append(urls, d.URL)
		case d.B64JSON != "":
			urls = append(urls, "data:image/png;base64,"+d.B64JSON)
		}
	}
	if len(urls) == 0 {
		return nil, contentError(c.name, "image", "no images in response")
	}
	return urls, nil
}
