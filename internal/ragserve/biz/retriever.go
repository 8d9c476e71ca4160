package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/ragserve/internal/model"
	"github.com/kart-io/ragserve/internal/ragserve/store"
	"github.com/kart-io/ragserve/pkg/llm"
)

// Retriever performs similarity search against a document's collection.
type Retriever struct {
	store    store.VectorStore
	embedder llm.EmbeddingProvider
	topK     int
}

// NewRetriever creates a Retriever. topK is the default result count when
// the caller passes a non-positive limit.
func NewRetriever(vectorStore store.VectorStore, embedder llm.EmbeddingProvider, topK int) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{
		store:    vectorStore,
		embedder: embedder,
		topK:     topK,
	}
}

// Retrieve embeds the query text and searches the collection owned by
// fileID. Zero hits and an empty query embedding both yield (nil, nil).
func (r *Retriever) Retrieve(ctx context.Context, fileID, text string, limit int) ([]model.RetrievedDocument, error) {
	if limit <= 0 {
		limit = r.topK
	}

	vector, err := r.embedder.EmbedSingle(ctx, text, llm.IntentQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vector) == 0 {
		logger.Warnw("empty query embedding", "file_id", fileID)
		return nil, nil
	}

	collection := store.CollectionName(fileID)
	return r.store.Search(ctx, collection, vector, limit)
}
