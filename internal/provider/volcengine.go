package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"shopkeeper/internal/models"
)

const (
	volcService    = "cv"
	volcAPIVersion = "2022-08-31"

	volcSubmitAction = "CVSync2AsyncSubmitTask"
	volcResultAction = "CVSync2AsyncGetResult"

	volcImageReqKey = "jimeng_t2i_v40"

	// Non-HTTP application status: anything other than 10000 is a failure.
	volcCodeOK = 10000
)

// VolcClient talks to the Volcengine visual API using canonical-request
// signing. Only image generation is supported; the vendor has no chat
// completion surface.
type VolcClient struct {
	signer     *signer
	baseURL    string
	httpClient *http.Client

	pollInterval time.Duration
	maxPolls     int
}

// NewVolcClient creates a signing client for the Volcengine visual API.
func NewVolcClient(accessKeyID, secretAccessKey, host, region string, timeout time.Duration) *VolcClient {
	return &VolcClient{
		signer:       newSigner(accessKeyID, secretAccessKey, region, volcService, host),
		baseURL:      "https://" + host,
		httpClient:   &http.Client{Timeout: timeout},
		pollInterval: 2 * time.Second,
		maxPolls:     30,
	}
}

type volcResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	TaskID    string `json:"task_id"`
	Data      struct {
		Status    string   `json:"status"`
		ImageURLs []string `json:"image_urls"`
	} `json:"data"`
}

// call signs and sends one API action, decoding the envelope and checking the
// application status code.
func (c *VolcClient) call(ctx context.Context, action string, payload interface{}) (*volcResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	query := url.Values{}
	query.Set("Action", action)
	query.Set("Version", volcAPIVersion)

	headers := c.signer.sign("POST", "/", query, body)

	endpoint := c.baseURL + "/?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(models.ProviderVolc, "image", 0, "request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(models.ProviderVolc, "image", 0, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("⚠️ [PROVIDER] volcengine %s error: %d - %s", action, resp.StatusCode, trimBody(string(respBody)))
		return nil, transportError(models.ProviderVolc, "image", resp.StatusCode, trimBody(string(respBody)), nil)
	}

	var parsed volcResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, transportError(models.ProviderVolc, "image", 0, "failed to parse response", err)
	}

	if parsed.Code != volcCodeOK {
		return nil, contentError(models.ProviderVolc, "image", fmt.Sprintf("api code %d: %s", parsed.Code, parsed.Message))
	}

	return &parsed, nil
}

// GenerateImage implements Client via the async submit/poll task flow.
func (c *VolcClient) GenerateImage(ctx context.Context, model, prompt string) ([]string, error) {
	reqKey := model
	if reqKey == "" {
		reqKey = volcImageReqKey
	}

	reqJSON, _ := json.Marshal(map[string]interface{}{
		"logo_info":  map[string]interface{}{"add_logo": false},
		"return_url": true,
	})

	submitted, err := c.call(ctx, volcSubmitAction, map[string]interface{}{
		"req_key":  reqKey,
		"prompt":   prompt,
		"size":     1024 * 1024,
		"scale":    0.5,
		"seed":     -1,
		"req_json": string(reqJSON),
	})
	if err != nil {
		return nil, err
	}
	if submitted.TaskID == "" {
		return nil, contentError(models.ProviderVolc, "image", "no task_id in submit response")
	}

	log.Printf("🎨 [PROVIDER] volcengine task submitted: %s", submitted.TaskID)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for i := 0; i < c.maxPolls; i++ {
		select {
		case <-ctx.Done():
			return nil, transportError(models.ProviderVolc, "image", 0, "canceled while waiting for task", ctx.Err())
		case <-ticker.C:
		}

		result, err := c.call(ctx, volcResultAction, map[string]interface{}{
			"req_key": reqKey,
			"task_id": submitted.TaskID,
		})
		if err != nil {
			return nil, err
		}

		switch result.Data.Status {
		case "done":
			if len(result.Data.ImageURLs) == 0 {
				return nil, contentError(models.ProviderVolc, "image", "task finished with no images")
			}
			return result.Data.ImageURLs, nil
		case "failed":
			return nil, contentError(models.ProviderVolc, "image", "image generation task failed")
		}
	}

	return nil, transportError(models.ProviderVolc, "image", 0, "timed out waiting for image generation task", nil)
}

// GenerateText implements Client. The visual API has no text surface.
func (c *VolcClient) GenerateText(ctx context.Context, model string, messages []models.ChatMessage, temperature float64, maxTokens int) (string, error) {
	return "", configError(models.ProviderVolc, "text", "text generation is not supported by this provider")
}

// AnalyzeImages implements Client. The visual API has no vision-chat surface.
func (c *VolcClient) AnalyzeImages(ctx context.Context, model, prompt string, images []models.ImageRef, temperature float64, maxTokens int) (string, error) {
	return "", configError(models.ProviderVolc, "vision", "image analysis is not supported by this provider")
}
