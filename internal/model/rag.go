// Package model defines the data models for the application.
package model

import (
	"time"

	"github.com/kart-io/ragserve/pkg/llm"
)

// Document represents an uploaded source file in the knowledge base.
// Each document owns exactly one vector-store collection.
type Document struct {
	FileID      string    `json:"file_id" bson:"file_id"`
	Name        string    `json:"name" bson:"name"`
	Size        int64     `json:"size" bson:"size"`
	ContentType string    `json:"content_type,omitempty" bson:"content_type,omitempty"`
	ChunkNum    int       `json:"chunk_num" bson:"chunk_num"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// Chunk represents a text chunk produced from a document. Order is 1-based
// and assigned at split time.
type Chunk struct {
	Text     string         `json:"text" bson:"text"`
	Metadata map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Order    int            `json:"order" bson:"order"`
	FileID   string         `json:"file_id" bson:"file_id"`
}

// RetrievedDocument represents a single similarity search hit. Results are
// ordered descending by score as returned by the vector store.
type RetrievedDocument struct {
	Text  string  `json:"text"`
	Score float32 `json:"score"`
}

// Answer represents the outcome of a retrieval-augmented generation call.
// FullPrompt and History are populated even when generation returned an
// empty Text, so callers can inspect what was sent to the model.
type Answer struct {
	Text       string        `json:"text"`
	FullPrompt string        `json:"full_prompt"`
	History    []llm.Message `json:"history"`
}

// CollectionInfo describes a vector-store collection.
type CollectionInfo struct {
	Name          string `json:"name"`
	EmbeddingSize int    `json:"embedding_size"`
	VectorCount   int64  `json:"vector_count"`
}
