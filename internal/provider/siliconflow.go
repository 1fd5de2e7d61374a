package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"shopkeeper/internal/models"
)

// SiliconFlowClient talks to the SiliconFlow gateway. The chat surface is
// OpenAI-compatible; image generation uses SiliconFlow's own response shape.
type SiliconFlowClient struct {
	openAICompat
}

// NewSiliconFlowClient creates a client for the SiliconFlow gateway.
func NewSiliconFlowClient(baseURL, apiKey string, timeout time.Duration) *SiliconFlowClient {
	return &SiliconFlowClient{
		openAICompat: openAICompat{
			name:       models.ProviderSiliconFlow,
			baseURL:    baseURL,
			apiKey:     apiKey,
			httpClient: &http.Client{Timeout: timeout},
		},
	}
}

// GenerateImage implements Client. SiliconFlow returns generated images under
// an "images" array rather than the OpenAI "data" array.
func (c *SiliconFlowClient) GenerateImage(ctx context.Context, model, prompt string) ([]string, error) {
	body := map[string]interface{}{
		"model":      model,
		"prompt":     prompt,
		"batch_size": 1,
		"image_size": "1024x1024",
	}

	respBody, err := c.postJSON(ctx, "image", "/images/generations", body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, transportError(c.name, "image", 0, "failed to parse response", err)
	}

	urls := make([]string, 0, len(parsed.Images))
	for _, img := range parsed.Images {
		if img.URL != "" {
			urls = append(urls, img.URL)
		}
	}
	if len(urls) == 0 {
		return nil, contentError(c.name, "image", "no images in response")
	}
	return urls, nil
}
