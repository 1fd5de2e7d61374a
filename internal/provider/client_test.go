package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shopkeeper/internal/models"
)

func TestNormalizeImageRef(t *testing.T) {
	tests := []struct {
		name    string
		ref     models.ImageRef
		want    string
		wantErr bool
	}{
		{
			name: "remote URL passes through",
			ref:  models.ImageRef{URL: "https://example.com/a.jpg"},
			want: "https://example.com/a.jpg",
		},
		{
			name: "bare base64 gets data URI prefix",
			ref:  models.ImageRef{Base64: "aGVsbG8="},
			want: "data:image/jpeg;base64,aGVsbG8=",
		},
		{
			name: "prefixed data URI passes through",
			ref:  models.ImageRef{Base64: "data:image/png;base64,aGVsbG8="},
			want: "data:image/png;base64,aGVsbG8=",
		},
		{
			name: "base64 wins over URL",
			ref:  models.ImageRef{URL: "https://example.com/a.jpg", Base64: "aGVsbG8="},
			want: "data:image/jpeg;base64,aGVsbG8=",
		},
		{
			name:    "empty ref fails",
			ref:     models.ImageRef{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeImageRef(tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestClientForUnknownProvider(t *testing.T) {
	set := &Set{}

	if _, err := set.ClientFor(models.Provider("nope")); !IsConfig(err) {
		t.Errorf("Expected config error for unknown provider, got %v", err)
	}
	if _, err := set.ClientFor(models.ProviderVolc); !IsConfig(err) {
		t.Errorf("Expected config error for unconfigured provider, got %v", err)
	}
}

func TestUnifiedGenerateText(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": "hello there"}},
			},
		})
	}))
	defer server.Close()

	client := NewUnifiedClient(server.URL, "test-key", 5*time.Second)
	content, err := client.GenerateText(context.Background(), "gpt-test", []models.ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
	}, 0.3, 256)
	if err != nil {
		t.Fatalf("GenerateText failed: %v", err)
	}
	if content != "hello there" {
		t.Errorf("Expected 'hello there', got %q", content)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Expected bearer auth, got %q", gotAuth)
	}
	if gotBody["model"] != "gpt-test" {
		t.Errorf("Expected model gpt-test, got %v", gotBody["model"])
	}
	if gotBody["temperature"].(float64) != 0.3 {
		t.Errorf("Expected temperature 0.3, got %v", gotBody["temperature"])
	}
}

func TestGenerateTextAppliesDefaults(t *testing.T) {
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": "ok"}},
			},
		})
	}))
	defer server.Close()

	client := NewUnifiedClient(server.URL, "test-key", 5*time.Second)
	if _, err := client.GenerateText(context.Background(), "m", []models.ChatMessage{{Role: "user", Content: "hi"}}, 0, 0); err != nil {
		t.Fatalf("GenerateText failed: %v", err)
	}
	if gotBody["temperature"].(float64) != defaultTemperature {
		t.Errorf("Expected default temperature, got %v", gotBody["temperature"])
	}
	if gotBody["max_tokens"].(float64) != float64(defaultMaxTokens) {
		t.Errorf("Expected default max tokens, got %v", gotBody["max_tokens"])
	}
}

func TestGenerateTextTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"upstream down"}`))
	}))
	defer server.Close()

	client := NewUnifiedClient(server.URL, "test-key", 5*time.Second)
	_, err := client.GenerateText(context.Background(), "m", []models.ChatMessage{{Role: "user", Content: "hi"}}, 0, 0)
	if !IsTransport(err) {
		t.Fatalf("Expected transport error, got %v", err)
	}

	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatal("Expected *Error")
	}
	if pe.Status != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", pe.Status)
	}
}

func TestGenerateTextEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer server.Close()

	client := NewUnifiedClient(server.URL, "test-key", 5*time.Second)
	_, err := client.GenerateText(context.Background(), "m", []models.ChatMessage{{Role: "user", Content: "hi"}}, 0, 0)
	if !IsContent(err) {
		t.Fatalf("Expected content error, got %v", err)
	}
}

func TestAnalyzeImagesMultimodalBody(t *testing.T) {
	var gotBody struct {
		Messages []struct {
			Role    string                   `json:"role"`
			Content []map[string]interface{} `json:"content"`
		} `json:"messages"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": "a cat on a sofa"}},
			},
		})
	}))
	defer server.Close()

	client := NewUnifiedClient(server.URL, "test-key", 5*time.Second)
	images := []models.ImageRef{
		{URL: "https://example.com/cat.jpg"},
		{Base64: "aGVsbG8="},
	}
	content, err := client.AnalyzeImages(context.Background(), "vision-test", "describe", images, 0, 0)
	if err != nil {
		t.Fatalf("AnalyzeImages failed: %v", err)
	}
	if content != "a cat on a sofa" {
		t.Errorf("Unexpected content: %q", content)
	}

	if len(gotBody.Messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(gotBody.Messages))
	}
	parts := gotBody.Messages[0].Content
	if len(parts) != 3 {
		t.Fatalf("Expected text part + 2 image parts, got %d", len(parts))
	}
	if parts[0]["type"] != "text" {
		t.Errorf("Expected first part to be text, got %v", parts[0]["type"])
	}
	imageURL := parts[2]["image_url"].(map[string]interface{})["url"].(string)
	if !strings.HasPrefix(imageURL, "data:image/jpeg;base64,") {
		t.Errorf("Expected normalized data URI, got %q", imageURL)
	}
}

func TestAnalyzeImagesRequiresImages(t *testing.T) {
	client := NewUnifiedClient("http://unused", "test-key", 5*time.Second)
	_, err := client.AnalyzeImages(context.Background(), "m", "describe", nil, 0, 0)
	if !IsConfig(err) {
		t.Fatalf("Expected config error, got %v", err)
	}
}

func TestUnifiedGenerateImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"url": "https://cdn.example.com/gen.png"},
			},
		})
	}))
	defer server.Close()

	client := NewUnifiedClient(server.URL, "test-key", 5*time.Second)
	urls, err := client.GenerateImage(context.Background(), "img-model", "a red apple")
	if err != nil {
		t.Fatalf("GenerateImage failed: %v", err)
	}
	if len(urls) != 1 || urls[0] != "https://cdn.example.com/gen.png" {
		t.Errorf("Unexpected urls: %v", urls)
	}
}

func TestSiliconFlowGenerateImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"images": []map[string]interface{}{
				{"url": "https://sf.example.com/out.png"},
			},
		})
	}))
	defer server.Close()

	client := NewSiliconFlowClient(server.URL, "test-key", 5*time.Second)
	urls, err := client.GenerateImage(context.Background(), "sd-model", "a red apple")
	if err != nil {
		t.Fatalf("GenerateImage failed: %v", err)
	}
	if len(urls) != 1 || urls[0] != "https://sf.example.com/out.png" {
		t.Errorf("Unexpected urls: %v", urls)
	}
}

func TestEmbeddingClient(t *testing.T) {
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float64{0.1, 0.2, 0.3}},
			},
		})
	}))
	defer server.Close()

	client := NewEmbeddingClient(server.URL, "test-key", "embed-model", 3, 100, 5*time.Second)
	vec, err := client.GenerateEmbedding(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("GenerateEmbedding failed: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Errorf("Unexpected vector: %v", vec)
	}
	if gotBody["input"] != "hello world" {
		t.Errorf("Unexpected input: %v", gotBody["input"])
	}
	if gotBody["dimensions"].(float64) != 3 {
		t.Errorf("Unexpected dimensions: %v", gotBody["dimensions"])
	}
}

func TestVolcGenerateImageSubmitPoll(t *testing.T) {
	var calls []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		action := r.URL.Query().Get("Action")
		calls = append(calls, action)
		if r.Header.Get("Authorization") == "" {
			t.Error("Expected signed Authorization header")
		}

		switch action {
		case "CVSync2AsyncSubmitTask":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"code": 10000, "message": "ok", "task_id": "task-42",
			})
		case "CVSync2AsyncGetResult":
			status := "in_queue"
			var urls []string
			if len(calls) >= 3 {
				status = "done"
				urls = []string{"https://volc.example.com/img.png"}
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"code": 10000, "message": "ok",
				"data": map[string]interface{}{"status": status, "image_urls": urls},
			})
		default:
			t.Errorf("Unexpected action: %s", action)
		}
	}))
	defer server.Close()

	client := NewVolcClient("ak", "sk", strings.TrimPrefix(server.URL, "http://"), "cn-north-1", 5*time.Second)
	client.baseURL = server.URL
	client.pollInterval = time.Millisecond
	client.httpClient = server.Client()

	urls, err := client.GenerateImage(context.Background(), "", "a red apple")
	if err != nil {
		t.Fatalf("GenerateImage failed: %v", err)
	}
	if len(urls) != 1 || urls[0] != "https://volc.example.com/img.png" {
		t.Errorf("Unexpected urls: %v", urls)
	}
	if calls[0] != "CVSync2AsyncSubmitTask" {
		t.Errorf("Expected submit first, got %v", calls)
	}
}

func TestVolcApplicationErrorCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 50400, "message": "prompt rejected",
		})
	}))
	defer server.Close()

	client := NewVolcClient("ak", "sk", strings.TrimPrefix(server.URL, "http://"), "cn-north-1", 5*time.Second)
	client.baseURL = server.URL
	client.httpClient = server.Client()

	_, err := client.GenerateImage(context.Background(), "", "bad prompt")
	if !IsContent(err) {
		t.Fatalf("Expected content error for non-10000 code, got %v", err)
	}
}

func TestVolcTextUnsupported(t *testing.T) {
	client := NewVolcClient("ak", "sk", "visual.volcengineapi.com", "cn-north-1", 5*time.Second)

	if _, err := client.GenerateText(context.Background(), "m", nil, 0, 0); !IsConfig(err) {
		t.Errorf("Expected config error for text, got %v", err)
	}
	if _, err := client.AnalyzeImages(context.Background(), "m", "p", nil, 0, 0); !IsConfig(err) {
		t.Errorf("Expected config error for vision, got %v", err)
	}
}
