// Package repo provides MongoDB persistence for documents and chunks.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	driveropts "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kart-io/ragserve/internal/model"
	"github.com/kart-io/ragserve/pkg/component/mongodb"
)

// Collection names.
const (
	documentCollection = "documents"
	chunkCollection    = "chunks"
)

// chunkInsertBatchSize bounds one bulk write to the chunks collection.
const chunkInsertBatchSize = 100

// DocumentRepo persists document metadata.
type DocumentRepo struct {
	coll *mongo.Collection
}

// NewDocumentRepo creates a DocumentRepo backed by the "documents" collection.
func NewDocumentRepo(client *mongodb.Client) *DocumentRepo {
	return &DocumentRepo{coll: client.Collection(documentCollection)}
}

// Upsert inserts or replaces the document record keyed by file_id.
func (r *DocumentRepo) Upsert(ctx context.Context, doc *model.Document) error {
	now := time.Now().UTC()
	doc.UpdatedAt = now
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}

	_, err := r.coll.ReplaceOne(ctx,
		bson.M{"file_id": doc.FileID},
		doc,
		driveropts.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.FileID, err)
	}
	return nil
}

// Get returns the document with the given file_id, or nil when absent.
func (r *DocumentRepo) Get(ctx context.Context, fileID string) (*model.Document, error) {
	var doc model.Document
	err := r.coll.FindOne(ctx, bson.M{"file_id": fileID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document %s: %w", fileID, err)
	}
	return &doc, nil
}

// List returns up to limit documents ordered by creation time descending.
func (r *DocumentRepo) List(ctx context.Context, limit int64) ([]model.Document, error) {
	if limit <= 0 {
		limit = 50
	}

	cursor, err := r.coll.Find(ctx, bson.M{},
		driveropts.Find().SetSort(bson.M{"created_at": -1}).SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []model.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	return docs, nil
}

// SetChunkNum updates the chunk counter on a document record.
func (r *DocumentRepo) SetChunkNum(ctx context.Context, fileID string, n int) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"file_id": fileID},
		bson.M{"$set": bson.M{"chunk_num": n, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("set chunk_num for %s: %w", fileID, err)
	}
	return nil
}

// Delete removes the document record. Missing records are not an error.
func (r *DocumentRepo) Delete(ctx context.Context, fileID string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"file_id": fileID}); err != nil {
		return fmt.Errorf("delete document %s: %w", fileID, err)
	}
	return nil
}

// Count returns the number of registered documents.
func (r *DocumentRepo) Count(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// ChunkRepo persists document chunks.
type ChunkRepo struct {
	coll *mongo.Collection
}

// NewChunkRepo creates a ChunkRepo backed by the "chunks" collection.
func NewChunkRepo(client *mongodb.Client) *ChunkRepo {
	return &ChunkRepo{coll: client.Collection(chunkCollection)}
}

// InsertMany writes chunks in bulk-write batches and returns the number of
// inserted chunks.
func (r *ChunkRepo) InsertMany(ctx context.Context, chunks []model.Chunk) (int, error) {
	inserted := 0
	for start := 0; start < len(chunks); start += chunkInsertBatchSize {
		end := start + chunkInsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		ops := make([]mongo.WriteModel, 0, end-start)
		for _, chunk := range chunks[start:end] {
			ops = append(ops, mongo.NewInsertOneModel().SetDocument(chunk))
		}

		if _, err := r.coll.BulkWrite(ctx, ops); err != nil {
			return inserted, fmt.Errorf("bulk write chunks [%d:%d]: %w", start, end, err)
		}
		inserted += end - start
	}
	return inserted, nil
}

// GetByFileID returns all chunks of a document ordered by chunk order.
func (r *ChunkRepo) GetByFileID(ctx context.Context, fileID string) ([]model.Chunk, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"file_id": fileID},
		driveropts.Find().SetSort(bson.M{"order": 1}))
	if err != nil {
		return nil, fmt.Errorf("find chunks for %s: %w", fileID, err)
	}
	defer cursor.Close(ctx)

	var chunks []model.Chunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("decode chunks: %w", err)
	}
	return chunks, nil
}

// DeleteByFileID removes all chunks of a document and returns how many were
// deleted.
func (r *ChunkRepo) DeleteByFileID(ctx context.Context, fileID string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"file_id": fileID})
	if err != nil {
		return 0, fmt.Errorf("delete chunks for %s: %w", fileID, err)
	}
	return res.DeletedCount, nil
}

// Count returns the total number of stored chunks.
func (r *ChunkRepo) Count(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// CountByFileID returns the number of stored chunks for a document.
func (r *ChunkRepo) CountByFileID(ctx context.Context, fileID string) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"file_id": fileID})
	if err != nil {
		return 0, fmt.Errorf("count chunks for %s: %w", fileID, err)
	}
	return n, nil
}
