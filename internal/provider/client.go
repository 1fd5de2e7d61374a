package provider

import (
	"context"
	"fmt"
	"strings"

	"shopkeeper/internal/models"
)

// Client is the capability set every provider family implements. All calls
// honor context cancellation; an aborted context cancels the in-flight HTTP
// request.
type Client interface {
	// GenerateText runs a chat completion and returns the assistant content.
	GenerateText(ctx context.Context, model string, messages []models.ChatMessage, temperature float64, maxTokens int) (string, error)

	// AnalyzeImages sends one multimodal request containing the prompt and
	// all images, and returns the model's analysis.
	AnalyzeImages(ctx context.Context, model, prompt string, images []models.ImageRef, temperature float64, maxTokens int) (string, error)

	// GenerateImage produces one or more image URLs for a prompt.
	GenerateImage(ctx context.Context, model, prompt string) ([]string, error)
}

// Set holds one client per provider family. Nil entries mean the provider is
// not configured in this deployment.
type Set struct {
	Unified     Client
	SiliconFlow Client
	Volc        Client
}

// ClientFor returns the client for a provider, or a config error when the
// provider is unknown or not configured.
func (s *Set) ClientFor(p models.Provider) (Client, error) {
	var c Client
	switch p {
	case models.ProviderUnified:
		c = s.Unified
	case models.ProviderSiliconFlow:
		c = s.SiliconFlow
	case models.ProviderVolc:
		c = s.Volc
	default:
		return nil, configError(p, "dispatch", fmt.Sprintf("unknown provider %q", p))
	}
	if c == nil {
		return nil, configError(p, "dispatch", "provider is not configured")
	}
	return c, nil
}

// NormalizeImageRef converts an image reference into a URI the chat
// completions multimodal format accepts: remote URLs pass through, inline
// base64 is wrapped in a data URI unless already prefixed.
func NormalizeImageRef(ref models.ImageRef) (string, error) {
	if ref.Base64 != "" {
		if strings.HasPrefix(ref.Base64, "data:") {
			return ref.Base64, nil
		}
		return "data:image/jpeg;base64," + ref.Base64, nil
	}
	if ref.URL != "" {
		return ref.URL, nil
	}
	return "", fmt.Errorf("image reference has neither url nor base64 data")
}

// multimodalContent builds the typed content parts list for a vision request:
// one text part followed by one image_url part per image.
func multimodalContent(prompt string, images []models.ImageRef) ([]map[string]interface{}, error) {
	parts := []map[string]interface{}{
		{"type": "text", "text": prompt},
	}
	for i, img := range images {
		uri, err := NormalizeImageRef(img)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		parts = append(parts, map[string]interface{}{
			"type": "image_url",
			"image_url": map[string]interface{}{
				"url": uri,
			},
		})
	}
	return parts, nil
}
