package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// KnowledgeDocument is a shop-owned source document. Version increments on
// re-chunking; chunks always belong to exactly one document version.
type KnowledgeDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ShopID    string             `bson:"shopId" json:"shop_id"`
	Title     string             `bson:"title" json:"title"`
	Content   string             `bson:"content" json:"content"`
	Category  string             `bson:"category,omitempty" json:"category,omitempty"`
	Tags      []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	Version   int                `bson:"version" json:"version"`
	CreatedAt time.Time          `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updated_at"`
}

// KnowledgeChunk is the unit of embedding and retrieval. Chunks are deleted
// in bulk when their document is deleted or re-chunked.
type KnowledgeChunk struct {
	ID         string             `bson:"_id" json:"id"`
	DocumentID primitive.ObjectID `bson:"documentId" json:"document_id"`
	ChunkIndex int                `bson:"chunkIndex" json:"chunk_index"`
	ChunkText  string             `bson:"chunkText" json:"chunk_text"`
	Embedding  []float64          `bson:"embedding" json:"-"`
	CreatedAt  time.Time          `bson:"createdAt" json:"created_at"`
}

// KnowledgeSearchResult is one ranked chunk from a similarity search.
type KnowledgeSearchResult struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// SourceRef points a generated answer back at the document it came from.
type SourceRef struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity"`
}

// RetrievalResult is the transient output of a knowledge retrieval. Never
// persisted.
type RetrievalResult struct {
	Chunks  []KnowledgeSearchResult `json:"chunks"`
	Context string                  `json:"context"`
	Sources []SourceRef             `json:"sources"`
}

// IngestResult reports the outcome of document ingestion. ChunkCount == 0
// with a non-nil Document means the document row exists but chunking or
// embedding failed; the caller should re-ingest.
type IngestResult struct {
	Document   *KnowledgeDocument `json:"document,omitempty"`
	ChunkCount int                `json:"chunk_count"`
	Success    bool               `json:"success"`
}

// DocumentMeta carries optional ingestion metadata.
type DocumentMeta struct {
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// RAGQueryResult bundles retrieved context with the prompt pair a caller
// feeds into text generation.
type RAGQueryResult struct {
	Context      string      `json:"context"`
	Sources      []SourceRef `json:"sources"`
	SystemPrompt string      `json:"system_prompt"`
	UserPrompt   string      `json:"user_prompt"`
}
