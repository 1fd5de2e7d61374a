package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"shopkeeper/internal/models"
)

// EmbeddingClient generates embedding vectors through the unified gateway's
// OpenAI-style /embeddings endpoint. Calls are rate limited so bulk document
// ingestion does not hammer the provider.
type EmbeddingClient struct {
	compat    openAICompat
	model     string
	dimension int
	limiter   *rate.Limiter
}

// NewEmbeddingClient creates an embedding client. rps bounds outbound
// requests per second; burst is pinned to 1 so ingestion paces evenly.
func NewEmbeddingClient(baseURL, apiKey, model string, dimension int, rps float64, timeout time.Duration) *EmbeddingClient {
	return &EmbeddingClient{
		compat: openAICompat{
			name:       models.ProviderUnified,
			baseURL:    baseURL,
			apiKey:     apiKey,
			httpClient: &http.Client{Timeout: timeout},
		},
		model:     model,
		dimension: dimension,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Dimension returns the configured vector width.
func (c *EmbeddingClient) Dimension() int {
	return c.dimension
}

// GenerateEmbedding returns the embedding vector for a text.
func (c *EmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, transportError(c.compat.name, "embedding", 0, "canceled while rate limited", err)
	}

	body := map[string]interface{}{
		"model":      c.model,
		"input":      text,
		"dimensions": c.dimension,
	}

	respBody, err := c.compat.postJSON(ctx, "embedding", "/embeddings", body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, transportError(c.compat.name, "embedding", 0, "failed to parse response", err)
	}

	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, contentError(c.compat.name, "embedding", "no embedding in response")
	}
	return parsed.Data[0].Embedding, nil
}
