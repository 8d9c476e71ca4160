// Package biz provides business logic for the RAG service.
package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/ragserve/internal/model"
	"github.com/kart-io/ragserve/internal/ragserve/store"
	"github.com/kart-io/ragserve/pkg/llm"
)

// Indexer embeds document chunks and writes them into the per-document
// vector collection.
type Indexer struct {
	store     store.VectorStore
	embedder  llm.EmbeddingProvider
	batchSize int
}

// NewIndexer creates an Indexer. batchSize bounds one bulk write to the
// vector store; non-positive values fall back to the store default.
func NewIndexer(vectorStore store.VectorStore, embedder llm.EmbeddingProvider, batchSize int) *Indexer {
	return &Indexer{
		store:     vectorStore,
		embedder:  embedder,
		batchSize: batchSize,
	}
}

// Index embeds chunks and inserts them into the collection owned by fileID.
// The collection is created lazily; reset drops any existing collection
// first. chunkIDs may be nil, in which case sequential IDs are assigned.
func (ix *Indexer) Index(ctx context.Context, fileID string, chunks []model.Chunk, chunkIDs []int64, reset bool) error {
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks to index for document %s", fileID)
	}
	if chunkIDs != nil && len(chunkIDs) != len(chunks) {
		return fmt.Errorf("chunk ids length mismatch: %d != %d", len(chunkIDs), len(chunks))
	}

	texts := make([]string, len(chunks))
	metadatas := make([]map[string]any, len(chunks))
	for i, chunk := range chunks {
		if chunk.Text == "" {
			return fmt.Errorf("empty chunk text at index %d", i)
		}
		if chunk.Order <= 0 {
			return fmt.Errorf("non-positive chunk order %d at index %d", chunk.Order, i)
		}
		texts[i] = chunk.Text
		metadatas[i] = chunk.Metadata
	}

	vectors, err := ix.embedder.Embed(ctx, texts, llm.IntentDocument)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("embedding count mismatch: %d != %d", len(vectors), len(texts))
	}

	collection := store.CollectionName(fileID)

	created, err := ix.store.CreateCollection(ctx, collection, ix.embedder.EmbeddingSize(), reset)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", collection, err)
	}
	if created {
		logger.Infow("created collection", "collection", collection, "embedding_size", ix.embedder.EmbeddingSize())
	}

	if err := ix.store.InsertMany(ctx, collection, texts, vectors, metadatas, chunkIDs, ix.batchSize); err != nil {
		return fmt.Errorf("insert chunks into %s: %w", collection, err)
	}

	logger.Infow("indexed document", "file_id", fileID, "collection", collection, "chunks", len(chunks))
	return nil
}
