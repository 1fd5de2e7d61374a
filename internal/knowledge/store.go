package knowledge

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"shopkeeper/internal/database"
	"shopkeeper/internal/models"
)

// SearchOptions narrows a similarity search.
type SearchOptions struct {
	Limit     int
	Threshold float64
	Category  string
}

// Store is the persistence boundary for documents and chunks. Similarity
// search is always scoped to one shop, never global.
type Store interface {
	CreateDocument(ctx context.Context, doc *models.KnowledgeDocument) error
	GetDocument(ctx context.Context, shopID string, id primitive.ObjectID) (*models.KnowledgeDocument, error)
	ListDocuments(ctx context.Context, shopID, category string) ([]models.KnowledgeDocument, error)
	UpdateDocument(ctx context.Context, doc *models.KnowledgeDocument) error
	DeleteDocument(ctx context.Context, shopID string, id primitive.ObjectID) error
	ReplaceChunks(ctx context.Context, documentID primitive.ObjectID, chunks []models.KnowledgeChunk) error
	SearchChunks(ctx context.Context, shopID string, queryEmbedding []float64, opts SearchOptions) ([]models.KnowledgeSearchResult, error)
}

// MongoStore persists documents and chunks in MongoDB. Similarity search
// ranks shop-scoped chunks by in-process cosine similarity.
type MongoStore struct {
	db *database.MongoDB
}

// NewMongoStore creates a store backed by the given database.
func NewMongoStore(db *database.MongoDB) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) documents() *mongo.Collection {
	return s.db.Collection(database.CollectionKnowledgeDocuments)
}

func (s *MongoStore) chunks() *mongo.Collection {
	return s.db.Collection(database.CollectionKnowledgeChunks)
}

// CreateDocument inserts a new document, stamping id, version and timestamps.
func (s *MongoStore) CreateDocument(ctx context.Context, doc *models.KnowledgeDocument) error {
	now := time.Now()
	doc.ID = primitive.NewObjectID()
	doc.Version = 1
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if _, err := s.documents().InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// GetDocument fetches one document, scoped to the owning shop.
func (s *MongoStore) GetDocument(ctx context.Context, shopID string, id primitive.ObjectID) (*models.KnowledgeDocument, error) {
	var doc models.KnowledgeDocument
	err := s.documents().FindOne(ctx, bson.M{"_id": id, "shopId": shopID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document: %w", err)
	}
	return &doc, nil
}

// ListDocuments returns a shop's documents, newest first, optionally filtered
// by category.
func (s *MongoStore) ListDocuments(ctx context.Context, shopID, category string) ([]models.KnowledgeDocument, error) {
	filter := bson.M{"shopId": shopID}
	if category != "" {
		filter["category"] = category
	}

	cursor, err := s.documents().Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []models.KnowledgeDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}
	return docs, nil
}

// UpdateDocument saves edited content and bumps the version. Old chunks stay
// until the caller re-chunks explicitly.
func (s *MongoStore) UpdateDocument(ctx context.Context, doc *models.KnowledgeDocument) error {
	doc.Version++
	doc.UpdatedAt = time.Now()

	result, err := s.documents().UpdateOne(ctx,
		bson.M{"_id": doc.ID, "shopId": doc.ShopID},
		bson.M{"$set": bson.M{
			"title":     doc.Title,
			"content":   doc.Content,
			"category":  doc.Category,
			"tags":      doc.Tags,
			"version":   doc.Version,
			"updatedAt": doc.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("document not found")
	}
	return nil
}

// DeleteDocument removes a document and all its chunks.
func (s *MongoStore) DeleteDocument(ctx context.Context, shopID string, id primitive.ObjectID) error {
	result, err := s.documents().DeleteOne(ctx, bson.M{"_id": id, "shopId": shopID})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("document not found")
	}

	if _, err := s.chunks().DeleteMany(ctx, bson.M{"documentId": id}); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// ReplaceChunks atomically swaps a document's chunk set: old chunks are
// removed, then the new batch is bulk-inserted.
func (s *MongoStore) ReplaceChunks(ctx context.Context, documentID primitive.ObjectID, chunks []models.KnowledgeChunk) error {
	if _, err := s.chunks().DeleteMany(ctx, bson.M{"documentId": documentID}); err != nil {
		return fmt.Errorf("failed to clear old chunks: %w", err)
	}

	if len(chunks) == 0 {
		return nil
	}

	docs := make([]interface{}, len(chunks))
	for i := range chunks {
		docs[i] = chunks[i]
	}
	if _, err := s.chunks().InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return nil
}

// SearchChunks ranks a shop's chunks by cosine similarity against the query
// embedding. Results above the threshold come back in descending similarity
// order, ties broken by insertion order.
func (s *MongoStore) SearchChunks(ctx context.Context, shopID string, queryEmbedding []float64, opts SearchOptions) ([]models.KnowledgeSearchResult, error) {
	docFilter := bson.M{"shopId": shopID}
	if opts.Category != "" {
		docFilter["category"] = opts.Category
	}

	cursor, err := s.documents().Find(ctx, docFilter,
		options.Find().SetProjection(bson.M{"_id": 1, "title": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to load shop documents: %w", err)
	}

	titles := make(map[primitive.ObjectID]string)
	docIDs := make([]primitive.ObjectID, 0)
	var docRefs []struct {
		ID    primitive.ObjectID `bson:"_id"`
		Title string             `bson:"title"`
	}
	if err := cursor.All(ctx, &docRefs); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}
	for _, d := range docRefs {
		titles[d.ID] = d.Title
		docIDs = append(docIDs, d.ID)
	}

	if len(docIDs) == 0 {
		return nil, nil
	}

	chunkCursor, err := s.chunks().Find(ctx, bson.M{"documentId": bson.M{"$in": docIDs}})
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	defer chunkCursor.Close(ctx)

	var results []models.KnowledgeSearchResult
	for chunkCursor.Next(ctx) {
		var chunk models.KnowledgeChunk
		if err := chunkCursor.Decode(&chunk); err != nil {
			return nil, fmt.Errorf("failed to decode chunk: %w", err)
		}

		similarity := CosineSimilarity(queryEmbedding, chunk.Embedding)
		if similarity < opts.Threshold {
			continue
		}

		results = append(results, models.KnowledgeSearchResult{
			ID:         chunk.ID,
			DocumentID: chunk.DocumentID.Hex(),
			Title:      titles[chunk.DocumentID],
			Content:    chunk.ChunkText,
			Similarity: similarity,
		})
	}
	if err := chunkCursor.Err(); err != nil {
		return nil, fmt.Errorf("chunk scan failed: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or zero vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
