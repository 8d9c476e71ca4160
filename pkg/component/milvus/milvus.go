// Package milvus wraps the Milvus SDK client for vector collection management.
package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/kart-io/ragserve/pkg/options/milvus"
)

// Field names of the collection schema shared by all RAG collections.
const (
	FieldID        = "id"
	FieldEmbedding = "embedding"
	FieldText      = "text"
	FieldMetadata  = "metadata"

	textMaxLength = 65535
)

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New creates a new Milvus client.
func New(opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{
		client: c,
		opts:   opts,
	}, nil
}

// Close closes the Milvus client connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// RawClient returns the underlying Milvus client.
func (c *Client) RawClient() *milvusclient.Client {
	return c.client
}

// HasCollection reports whether the collection exists.
func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return exists, nil
}

// CreateCollection creates a collection with the fixed RAG schema: an
// explicit int64 primary key, a float vector of the given dimension, the
// chunk text and a JSON-encoded metadata string. The vector field gets an
// IVF_FLAT cosine index and the collection is loaded into memory.
func (c *Client) CreateCollection(ctx context.Context, name string, dimension int) error {
	collSchema := entity.NewSchema().
		WithName(name).
		WithDescription("RAG chunk collection").
		WithAutoID(false)

	collSchema.WithField(
		entity.NewField().
			WithName(FieldID).
			WithDataType(entity.FieldTypeInt64).
			WithIsPrimaryKey(true),
	)
	collSchema.WithField(
		entity.NewField().
			WithName(FieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(dimension)),
	)
	collSchema.WithField(
		entity.NewField().
			WithName(FieldText).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(textMaxLength),
	)
	collSchema.WithField(
		entity.NewField().
			WithName(FieldMetadata).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(textMaxLength),
	)

	if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(name, collSchema)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx := index.NewIvfFlatIndex(entity.COSINE, 128)
	createIdxTask, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, FieldEmbedding, idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := createIdxTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}

	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}

	return nil
}

// DropCollection drops a collection.
func (c *Client) DropCollection(ctx context.Context, name string) error {
	if err := c.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(name)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// GetDimension reads the vector field dimension back from the collection schema.
func (c *Client) GetDimension(ctx context.Context, name string) (int, error) {
	coll, err := c.client.DescribeCollection(ctx, milvusclient.NewDescribeCollectionOption(name))
	if err != nil {
		return 0, fmt.Errorf("failed to describe collection: %w", err)
	}

	for _, field := range coll.Schema.Fields {
		if field.Name != FieldEmbedding {
			continue
		}
		if dim, ok := field.TypeParams[entity.TypeParamDim]; ok {
			d, err := strconv.Atoi(dim)
			if err != nil {
				return 0, fmt.Errorf("invalid dimension %q: %w", dim, err)
			}
			return d, nil
		}
	}

	return 0, fmt.Errorf("collection %s has no %s field", name, FieldEmbedding)
}

// GetCollectionStats returns the number of entities in a collection.
func (c *Client) GetCollectionStats(ctx context.Context, name string) (int64, error) {
	stats, err := c.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(name))
	if err != nil {
		return 0, fmt.Errorf("failed to get collection stats: %w", err)
	}

	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}

// InsertData represents one bulk write into a collection. All slices must
// have equal length.
type InsertData struct {
	IDs        []int64
	Embeddings [][]float32
	Texts      []string
	Metadata   []string
}

// Insert writes records into the collection and flushes so the data is
// visible to searches immediately.
func (c *Client) Insert(ctx context.Context, name string, data *InsertData) error {
	if len(data.IDs) == 0 {
		return nil
	}

	columns := []column.Column{
		column.NewColumnInt64(FieldID, data.IDs),
		column.NewColumnFloatVector(FieldEmbedding, len(data.Embeddings[0]), data.Embeddings),
		column.NewColumnVarChar(FieldText, data.Texts),
		column.NewColumnVarChar(FieldMetadata, data.Metadata),
	}

	if _, err := c.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(name, columns...)); err != nil {
		return fmt.Errorf("failed to insert data: %w", err)
	}

	// Flush to ensure data is visible immediately. Frequent flushing can hurt
	// throughput but ingestion here is batch-oriented.
	flushTask, err := c.client.Flush(ctx, milvusclient.NewFlushOption(name))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}

	return nil
}

// SearchResult represents a single search result.
type SearchResult struct {
	ID    int64
	Score float32
	Text  string
}

// Search performs a vector similarity search and returns the chunk text of
// each hit.
func (c *Client) Search(ctx context.Context, name string, vector []float32, topK int) ([]SearchResult, error) {
	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for collection loading: %w", err)
	}

	searchVectors := []entity.Vector{entity.FloatVector(vector)}

	results, err := c.client.Search(ctx, milvusclient.NewSearchOption(
		name,
		topK,
		searchVectors,
	).WithANNSField(FieldEmbedding).
		WithSearchParam("nprobe", "16").
		WithOutputFields(FieldText))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	if len(results) == 0 {
		return []SearchResult{}, nil
	}

	searchResults := make([]SearchResult, 0, results[0].ResultCount)
	for i := 0; i < results[0].ResultCount; i++ {
		result := SearchResult{
			Score: results[0].Scores[i],
		}

		if idCol, ok := results[0].IDs.(*column.ColumnInt64); ok {
			result.ID = idCol.Data()[i]
		}

		for _, field := range results[0].Fields {
			if col, ok := field.(*column.ColumnVarChar); ok && col.Name() == FieldText {
				result.Text = col.Data()[i]
			}
		}

		searchResults = append(searchResults, result)
	}

	return searchResults, nil
}
