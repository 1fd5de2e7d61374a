package knowledge

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"shopkeeper/internal/logging"
	"shopkeeper/internal/models"
)

// Embedder turns text into a vector. Implemented by the embedding client.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float64, error)
	Dimension() int
}

// EmbeddingCache is an optional cross-process cache for embedding vectors.
// A nil cache disables caching; lookups never fail ingestion.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, text string) ([]float64, bool)
	SetEmbedding(ctx context.Context, text string, embedding []float64)
}

// RetrievalOptions narrows a knowledge retrieval.
type RetrievalOptions struct {
	TopK          int
	MinSimilarity float64
	Category      string
}

// RAGOptions extends retrieval with prompt assembly controls.
type RAGOptions struct {
	RetrievalOptions
	SystemPrompt     string
	MaxContextTokens int
}

func (o *RetrievalOptions) applyDefaults() {
	if o.TopK <= 0 {
		o.TopK = 5
	}
	if o.MinSimilarity <= 0 {
		o.MinSimilarity = 0.7
	}
}

// Service is the knowledge subsystem: chunking, embedding, shop-scoped
// retrieval and RAG prompt assembly.
type Service struct {
	store      Store
	embedder   Embedder
	embedCache EmbeddingCache
	queryCache *gocache.Cache
	estimator  TokenEstimator
	chunkCfg   ChunkConfig
}

// NewService creates the knowledge service. embedCache may be nil.
func NewService(store Store, embedder Embedder, embedCache EmbeddingCache) *Service {
	return &Service{
		store:      store,
		embedder:   embedder,
		embedCache: embedCache,
		queryCache: gocache.New(5*time.Minute, 10*time.Minute),
		estimator:  CJKEstimator{},
		chunkCfg:   DefaultChunkConfig,
	}
}

// embed generates one embedding, consulting the cache first and validating
// dimensionality. A vector of the wrong width would silently poison
// similarity scores for the whole shop, so it is rejected here.
func (s *Service) embed(ctx context.Context, text string) ([]float64, error) {
	if s.embedCache != nil {
		if vec, ok := s.embedCache.GetEmbedding(ctx, text); ok {
			return vec, nil
		}
	}

	vec, err := s.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}

	if want := s.embedder.Dimension(); want > 0 && len(vec) != want {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(vec), want)
	}

	if s.embedCache != nil {
		s.embedCache.SetEmbedding(ctx, text, vec)
	}
	return vec, nil
}

// ProcessAndStoreDocument ingests one document: create the record, chunk the
// content, embed each chunk, bulk-persist. A result with ChunkCount 0 and a
// non-nil Document means the record exists but ingestion must be retried.
func (s *Service) ProcessAndStoreDocument(ctx context.Context, shopID, title, content string, meta *models.DocumentMeta) (*models.IngestResult, error) {
	logger := logging.WithShop(slog.Default(), shopID)
	logger.Info("processing document", "title", title, "content_length", len(content))

	doc := &models.KnowledgeDocument{
		ShopID:  shopID,
		Title:   title,
		Content: content,
	}
	if meta != nil {
		doc.Category = meta.Category
		doc.Tags = meta.Tags
	}

	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return &models.IngestResult{}, fmt.Errorf("failed to create document record: %w", err)
	}

	chunkCount, err := s.chunkAndEmbed(ctx, doc)
	if err != nil {
		log.Printf("⚠️ [RAG] Ingestion incomplete for document %s: %v", doc.ID.Hex(), err)
		return &models.IngestResult{Document: doc, ChunkCount: 0, Success: false}, err
	}

	logger.Info("document processed", "document_id", doc.ID.Hex(), "chunks", chunkCount)
	return &models.IngestResult{Document: doc, ChunkCount: chunkCount, Success: true}, nil
}

// RechunkDocument regenerates a document's chunks from its current content.
// Used after edits, since versioning does not migrate chunks automatically.
func (s *Service) RechunkDocument(ctx context.Context, shopID string, id primitive.ObjectID) (int, error) {
	doc, err := s.store.GetDocument(ctx, shopID, id)
	if err != nil {
		return 0, err
	}
	if doc == nil {
		return 0, fmt.Errorf("document not found")
	}
	return s.chunkAndEmbed(ctx, doc)
}

func (s *Service) chunkAndEmbed(ctx context.Context, doc *models.KnowledgeDocument) (int, error) {
	textChunks := SplitTextIntoChunks(doc.Content, s.chunkCfg)
	log.Printf("📄 [RAG] Split document %s into %d chunks", doc.ID.Hex(), len(textChunks))

	chunks := make([]models.KnowledgeChunk, 0, len(textChunks))
	for i, text := range textChunks {
		embedding, err := s.embed(ctx, text)
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunk %d: %w", i, err)
		}
		chunks = append(chunks, models.KnowledgeChunk{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			ChunkIndex: i,
			ChunkText:  text,
			Embedding:  embedding,
			CreatedAt:  time.Now(),
		})
	}

	if err := s.store.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return 0, fmt.Errorf("failed to persist chunks: %w", err)
	}
	return len(chunks), nil
}

// RetrieveKnowledge embeds the query and runs a shop-scoped similarity
// search, assembling ranked results into a context string. Retrieval
// failures degrade to an empty result rather than erroring: answering
// without context beats not answering.
func (s *Service) RetrieveKnowledge(ctx context.Context, shopID, query string, opts RetrievalOptions) *models.RetrievalResult {
	opts.applyDefaults()

	cacheKey := fmt.Sprintf("%s|%s|%d|%g|%s", shopID, query, opts.TopK, opts.MinSimilarity, opts.Category)
	if cached, ok := s.queryCache.Get(cacheKey); ok {
		return cached.(*models.RetrievalResult)
	}

	empty := &models.RetrievalResult{Chunks: nil, Context: "", Sources: nil}

	queryEmbedding, err := s.embed(ctx, query)
	if err != nil {
		log.Printf("⚠️ [RAG] Query embedding failed for shop %s: %v", shopID, err)
		return empty
	}

	results, err := s.store.SearchChunks(ctx, shopID, queryEmbedding, SearchOptions{
		Limit:     opts.TopK,
		Threshold: opts.MinSimilarity,
		Category:  opts.Category,
	})
	if err != nil {
		log.Printf("⚠️ [RAG] Similarity search failed for shop %s: %v", shopID, err)
		return empty
	}

	sources := make([]models.SourceRef, 0, len(results))
	for _, r := range results {
		sources = append(sources, models.SourceRef{
			DocumentID: r.DocumentID,
			Title:      r.Title,
			Similarity: r.Similarity,
		})
	}

	result := &models.RetrievalResult{
		Chunks:  results,
		Context: BuildContext(results),
		Sources: sources,
	}
	s.queryCache.Set(cacheKey, result, gocache.DefaultExpiration)
	return result
}

// RAGQuery composes retrieval and prompt assembly into one call: retrieve,
// trim the context to the token budget, and build the prompt pair.
func (s *Service) RAGQuery(ctx context.Context, shopID, query string, opts RAGOptions) *models.RAGQueryResult {
	retrieval := s.RetrieveKnowledge(ctx, shopID, query, opts.RetrievalOptions)

	context := OptimizeContext(retrieval.Context, opts.MaxContextTokens, s.estimator)
	systemPrompt, userPrompt := BuildRAGPrompt(query, context, opts.SystemPrompt)

	return &models.RAGQueryResult{
		Context:      context,
		Sources:      retrieval.Sources,
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
	}
}
