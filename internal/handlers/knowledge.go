package handlers

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/gofiber/fiber/v2"

	"shopkeeper/internal/knowledge"
	"shopkeeper/internal/models"
	"shopkeeper/internal/services"
)

// KnowledgeHandler handles knowledge base HTTP requests
type KnowledgeHandler struct {
	service *knowledge.Service
	store   knowledge.Store
	metrics *services.Metrics
}

// NewKnowledgeHandler creates a new knowledge handler
func NewKnowledgeHandler(service *knowledge.Service, store knowledge.Store, metrics *services.Metrics) *KnowledgeHandler {
	return &KnowledgeHandler{service: service, store: store, metrics: metrics}
}

// CreateDocument ingests a new document: create, chunk, embed, persist
func (h *KnowledgeHandler) CreateDocument(c *fiber.Ctx) error {
	shopID := c.Params("shopId")

	var req struct {
		Title    string   `json:"title"`
		Content  string   `json:"content"`
		Category string   `json:"category"`
		Tags     []string `json:"tags"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Title == "" || req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "title and content are required",
		})
	}

	result, err := h.service.ProcessAndStoreDocument(c.Context(), shopID, req.Title, req.Content, &models.DocumentMeta{
		Category: req.Category,
		Tags:     req.Tags,
	})
	if err != nil {
		// The document row may exist with zero chunks; return it so the
		// caller can retry ingestion.
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":  "Document ingestion failed, please retry",
			"result": result,
		})
	}

	h.metrics.RecordIngestion(result.ChunkCount)
	return c.Status(fiber.StatusCreated).JSON(result)
}

// ListDocuments returns a shop's documents, optionally filtered by category
func (h *KnowledgeHandler) ListDocuments(c *fiber.Ctx) error {
	shopID := c.Params("shopId")
	category := c.Query("category", "")

	docs, err := h.store.ListDocuments(c.Context(), shopID, category)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list documents",
		})
	}

	return c.JSON(fiber.Map{
		"documents": docs,
		"total":     len(docs),
	})
}

// GetDocument returns a single document
func (h *KnowledgeHandler) GetDocument(c *fiber.Ctx) error {
	shopID := c.Params("shopId")

	id, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid document id",
		})
	}

	doc, err := h.store.GetDocument(c.Context(), shopID, id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch document",
		})
	}
	if doc == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Document not found",
		})
	}

	return c.JSON(doc)
}

// UpdateDocument edits a document's content and metadata. The version
// increments; chunks are regenerated from the new content.
func (h *KnowledgeHandler) UpdateDocument(c *fiber.Ctx) error {
	shopID := c.Params("shopId")

	id, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid document id",
		})
	}

	var req struct {
		Title    string   `json:"title"`
		Content  string   `json:"content"`
		Category string   `json:"category"`
		Tags     []string `json:"tags"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	doc, err := h.store.GetDocument(c.Context(), shopID, id)
	if err != nil || doc == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Document not found",
		})
	}

	if req.Title != "" {
		doc.Title = req.Title
	}
	if req.Content != "" {
		doc.Content = req.Content
	}
	if req.Category != "" {
		doc.Category = req.Category
	}
	if req.Tags != nil {
		doc.Tags = req.Tags
	}

	if err := h.store.UpdateDocument(c.Context(), doc); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update document",
		})
	}

	chunkCount, err := h.service.RechunkDocument(c.Context(), shopID, id)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":    "Document saved but re-chunking failed, please retry",
			"document": doc,
		})
	}

	return c.JSON(fiber.Map{
		"document":    doc,
		"chunk_count": chunkCount,
	})
}

// DeleteDocument removes a document and all its chunks
func (h *KnowledgeHandler) DeleteDocument(c *fiber.Ctx) error {
	shopID := c.Params("shopId")

	id, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid document id",
		})
	}

	if err := h.store.DeleteDocument(c.Context(), shopID, id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Document not found",
		})
	}

	return c.JSON(fiber.Map{
		"deleted": true,
	})
}

// RAGQuery retrieves shop knowledge and returns an augmented prompt pair
func (h *KnowledgeHandler) RAGQuery(c *fiber.Ctx) error {
	shopID := c.Params("shopId")

	var req struct {
		Query         string  `json:"query"`
		TopK          int     `json:"top_k"`
		MinSimilarity float64 `json:"min_similarity"`
		Category      string  `json:"category"`
		SystemPrompt  string  `json:"system_prompt"`
		MaxTokens     int     `json:"max_tokens"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "query is required",
		})
	}

	result := h.service.RAGQuery(c.Context(), shopID, req.Query, knowledge.RAGOptions{
		RetrievalOptions: knowledge.RetrievalOptions{
			TopK:          req.TopK,
			MinSimilarity: req.MinSimilarity,
			Category:      req.Category,
		},
		SystemPrompt:     req.SystemPrompt,
		MaxContextTokens: req.MaxTokens,
	})

	h.metrics.RecordRAGQuery()
	return c.JSON(result)
}
