package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"shopkeeper/internal/knowledge"
	"shopkeeper/internal/logging"
	"shopkeeper/internal/models"
	"shopkeeper/internal/provider"
	"shopkeeper/internal/registry"
	"shopkeeper/internal/services"
)

// visionAnalysisPrompt is the fixed structured prompt for the image pre-pass.
// The analysis feeds the text model, so it asks for copy-writing-oriented
// detail rather than a flat caption.
const visionAnalysisPrompt = `Carefully analyze the attached image(s) and describe:

1. **Scene/setting**: where the image was taken and its atmosphere
2. **Subject**: the main people, objects or activities in the image
3. **Mood**: the emotion the image conveys
4. **Visual highlights**: color, composition, lighting
5. **Suggested direction**: based on the content, the style and theme the generated copy should take

Answer concisely; the description will be used to generate marketing copy.`

// KnowledgeRetriever is the slice of the knowledge subsystem the orchestrator
// needs for folding retrieved context into a system prompt.
type KnowledgeRetriever interface {
	RetrieveKnowledge(ctx context.Context, shopID, query string, opts knowledge.RetrievalOptions) *models.RetrievalResult
}

// Service routes dispatch requests: resolve the skill's model mapping, run
// the optional vision pre-pass, fold in retrieved knowledge, then walk the
// text fallback chain until a model answers.
type Service struct {
	registry  *registry.Registry
	clients   *provider.Set
	knowledge KnowledgeRetriever
	metrics   *services.Metrics
}

// NewService creates the orchestrator. knowledge and metrics may be nil.
func NewService(reg *registry.Registry, clients *provider.Set, kn KnowledgeRetriever, metrics *services.Metrics) *Service {
	return &Service{
		registry:  reg,
		clients:   clients,
		knowledge: kn,
		metrics:   metrics,
	}
}

// Dispatch runs one generation request. Per call: resolve, optional vision
// pre-pass, optional knowledge folding, then text generation with fallback
// traversal. Stateless across calls.
func (s *Service) Dispatch(ctx context.Context, req *models.DispatchRequest) (*models.DispatchResult, error) {
	mapping := s.registry.Resolve(req.SkillID)
	textCfg := mapping.Text

	if req.ModelOverride != "" {
		if cfg, ok := s.registry.LookupModel(req.ModelOverride); ok {
			textCfg = *cfg
			log.Printf("🔀 [DISPATCH] Using model override %s for skill %s", req.ModelOverride, req.SkillID)
		} else {
			log.Printf("⚠️ [DISPATCH] Unknown model override %q, using skill default", req.ModelOverride)
		}
	}

	systemPrompt := req.SystemPrompt
	if req.KnowledgeQuery != "" && req.ShopID != "" && s.knowledge != nil {
		retrieval := s.knowledge.RetrieveKnowledge(ctx, req.ShopID, req.KnowledgeQuery, knowledge.RetrievalOptions{})
		if retrieval.Context != "" {
			systemPrompt += "\n\n# Relevant Knowledge\n" + retrieval.Context
			log.Printf("📚 [DISPATCH] Added knowledge context (%d sources)", len(retrieval.Sources))
		}
	}

	userMessage := req.Message
	if len(req.Attachments) > 0 && mapping.Vision != nil {
		if analysis, err := s.analyzeAttachments(ctx, mapping.Vision, req.Attachments); err != nil {
			// Vision failure must never abort text generation.
			log.Printf("⚠️ [DISPATCH] Vision analysis failed, continuing without it: %v", err)
			s.metrics.RecordVisionFailure()
		} else {
			userMessage = fmt.Sprintf("[Image Analysis]\n%s\n\n[User Input]\n%s", analysis, req.Message)
		}
	}

	messages := make([]models.ChatMessage, 0, len(req.History)+2)
	if systemPrompt != "" {
		messages = append(messages, models.ChatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, req.History...)
	messages = append(messages, models.ChatMessage{Role: "user", Content: userMessage})

	return s.generateWithFallback(ctx, req.SkillID, &textCfg, messages)
}

// generateWithFallback walks the fallback chain, retrying on transport
// failures only. Configuration errors skip to the next entry; content errors
// surface immediately since a different model may not share the refusal
// semantics.
func (s *Service) generateWithFallback(ctx context.Context, skillID string, cfg *models.ModelConfig, messages []models.ChatMessage) (*models.DispatchResult, error) {
	chain := registry.FallbackChain(cfg)

	var lastErr error
	var lastProvider models.Provider

	for i, candidate := range chain {
		logger := logging.WithDispatch(skillID, string(candidate.Provider), candidate.Model)

		client, err := s.clients.ClientFor(candidate.Provider)
		if err != nil {
			logger.Warn("provider not configured, skipping")
			if lastErr == nil {
				lastErr = err
			}
			continue
		}

		if i > 0 {
			s.metrics.RecordFallback(string(lastProvider), string(candidate.Provider))
		}
		lastProvider = candidate.Provider

		start := time.Now()
		content, err := client.GenerateText(ctx, candidate.Model, messages, candidate.Temperature, candidate.MaxTokens)
		s.metrics.RecordDispatch(string(candidate.Provider), candidate.Model, time.Since(start), err == nil)

		if err == nil {
			logger.Info("dispatch succeeded")
			return &models.DispatchResult{
				Content:  content,
				Model:    candidate.Model,
				Provider: candidate.Provider,
			}, nil
		}

		if !provider.IsTransport(err) {
			logger.Error("dispatch failed", "error", err)
			return nil, err
		}

		logger.Warn("transport failure, trying fallback", "error", err)
		lastErr = err
	}

	if lastErr == nil {
		lastErr = provider.NewConfigError("", "text", fmt.Sprintf("no model configured for skill %s", skillID))
	}
	return nil, lastErr
}

func (s *Service) analyzeAttachments(ctx context.Context, cfg *models.ModelConfig, attachments []models.ImageRef) (string, error) {
	client, err := s.clients.ClientFor(cfg.Provider)
	if err != nil {
		return "", err
	}
	return client.AnalyzeImages(ctx, cfg.Model, visionAnalysisPrompt, attachments, cfg.Temperature, cfg.MaxTokens)
}

// GenerateImage resolves the skill's image model and dispatches to the
// matching client.
func (s *Service) GenerateImage(ctx context.Context, skillID, prompt string) ([]string, error) {
	mapping := s.registry.Resolve(skillID)
	if mapping.Image == nil {
		return nil, provider.NewConfigError("", "image", fmt.Sprintf("no image model configured for skill %s", skillID))
	}

	client, err := s.clients.ClientFor(mapping.Image.Provider)
	if err != nil {
		return nil, err
	}

	logger := logging.WithDispatch(skillID, string(mapping.Image.Provider), mapping.Image.Model)
	logger.Info("generating image")

	urls, err := client.GenerateImage(ctx, mapping.Image.Model, prompt)
	if err != nil {
		logger.Error("image generation failed", "error", err)
		return nil, err
	}
	return urls, nil
}
