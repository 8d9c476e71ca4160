package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "collection_abc", CollectionName("abc"))

	// Deterministic: same input yields the same name.
	assert.Equal(t, CollectionName("abc"), CollectionName("abc"))

	// Surrounding whitespace is trimmed.
	assert.Equal(t, "collection_abc", CollectionName("abc  "))
}

func TestMemoryStoreCreateAndGetInfo(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	created, err := s.CreateCollection(ctx, "collection_a", 4, true)
	require.NoError(t, err)
	assert.True(t, created)

	exists, err := s.Exists(ctx, "collection_a")
	require.NoError(t, err)
	assert.True(t, exists)

	info, err := s.GetInfo(ctx, "collection_a")
	require.NoError(t, err)
	assert.Equal(t, 4, info.EmbeddingSize)
	assert.Equal(t, int64(0), info.VectorCount)
}

func TestMemoryStoreGetInfoNotFound(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.GetInfo(context.Background(), "collection_missing")
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestMemoryStoreCreateTwiceWithoutReset(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	created, err := s.CreateCollection(ctx, "collection_a", 3, false)
	require.NoError(t, err)
	assert.True(t, created)

	err = s.InsertOne(ctx, "collection_a", "hello", []float32{1, 0, 0}, nil, 1)
	require.NoError(t, err)

	// Second create without reset is a soft no-op.
	created, err = s.CreateCollection(ctx, "collection_a", 3, false)
	require.NoError(t, err)
	assert.False(t, created)

	// Existing data is unaffected.
	info, err := s.GetInfo(ctx, "collection_a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.VectorCount)
}

func TestMemoryStoreCreateWithReset(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.CreateCollection(ctx, "collection_a", 3, false)
	require.NoError(t, err)
	require.NoError(t, s.InsertOne(ctx, "collection_a", "hello", []float32{1, 0, 0}, nil, 1))

	created, err := s.CreateCollection(ctx, "collection_a", 3, true)
	require.NoError(t, err)
	assert.True(t, created)

	info, err := s.GetInfo(ctx, "collection_a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.VectorCount)
}

func TestMemoryStoreDeleteCollection(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	// Deleting a missing collection is a no-op, not a failure.
	deleted, err := s.DeleteCollection(ctx, "collection_missing")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = s.CreateCollection(ctx, "collection_a", 3, false)
	require.NoError(t, err)

	deleted, err = s.DeleteCollection(ctx, "collection_a")
	require.NoError(t, err)
	assert.True(t, deleted)

	exists, err := s.Exists(ctx, "collection_a")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.CreateCollection(ctx, "collection_a", 3, true)
	require.NoError(t, err)

	texts := []string{"alpha", "beta", "gamma"}
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}

	err = s.InsertMany(ctx, "collection_a", texts, vectors, nil, nil, 0)
	require.NoError(t, err)

	// Searching with the exact embedding of an inserted text returns it first.
	docs, err := s.Search(ctx, "collection_a", []float32{0, 1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "beta", docs[0].Text)
	assert.Greater(t, docs[0].Score, float32(0.9))
	assert.GreaterOrEqual(t, docs[0].Score, docs[1].Score)
}

func TestMemoryStoreSearchEmpty(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	// Missing collection: nil result, no error.
	docs, err := s.Search(ctx, "collection_missing", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Nil(t, docs)

	// Empty collection: nil result, no error.
	_, err = s.CreateCollection(ctx, "collection_a", 3, false)
	require.NoError(t, err)
	docs, err = s.Search(ctx, "collection_a", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Nil(t, docs)
}

func TestMemoryStoreInsertManyDefaults(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.CreateCollection(ctx, "collection_a", 2, false)
	require.NoError(t, err)

	// Five records with batch size 2 issues 3 batches; all must be written.
	texts := []string{"a", "b", "c", "d", "e"}
	vectors := [][]float32{{1, 0}, {0, 1}, {1, 1}, {1, 2}, {2, 1}}

	err = s.InsertMany(ctx, "collection_a", texts, vectors, nil, nil, 2)
	require.NoError(t, err)

	info, err := s.GetInfo(ctx, "collection_a")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.VectorCount)
}

func TestMemoryStoreInsertManyMissingCollection(t *testing.T) {
	s := NewMemoryStore()

	err := s.InsertMany(context.Background(), "collection_missing",
		[]string{"a"}, [][]float32{{1, 0}}, nil, nil, 0)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestMemoryStoreInsertVectorSizeMismatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.CreateCollection(ctx, "collection_a", 3, false)
	require.NoError(t, err)

	err = s.InsertOne(ctx, "collection_a", "hello", []float32{1, 0}, nil, 1)
	assert.Error(t, err)
}

func TestNormalizeInsertArgs(t *testing.T) {
	texts := []string{"a", "b", "c"}
	vectors := [][]float32{{1}, {2}, {3}}

	metadatas, ids, err := normalizeInsertArgs(texts, vectors, nil, nil)
	require.NoError(t, err)
	assert.Len(t, metadatas, 3)
	assert.Equal(t, []int64{0, 1, 2}, ids)

	_, _, err = normalizeInsertArgs(texts, vectors[:2], nil, nil)
	assert.Error(t, err)

	_, _, err = normalizeInsertArgs([]string{"a", ""}, [][]float32{{1}, {2}}, nil, nil)
	assert.Error(t, err)

	_, _, err = normalizeInsertArgs(texts, vectors, make([]map[string]any, 2), nil)
	assert.Error(t, err)

	_, _, err = normalizeInsertArgs(texts, vectors, nil, []int64{1})
	assert.Error(t, err)
}

func TestForEachBatchSplitsAndContinues(t *testing.T) {
	var calls [][2]int
	err := forEachBatch(5, 2, func(batch, start, end int) error {
		calls = append(calls, [2]int{start, end})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 2}, {2, 4}, {4, 5}}, calls)
}

func TestForEachBatchReportsFailedBatches(t *testing.T) {
	var attempted []int
	err := forEachBatch(5, 2, func(batch, start, end int) error {
		attempted = append(attempted, batch)
		if batch == 1 {
			return fmt.Errorf("boom")
		}
		return nil
	})

	// Every batch is attempted even after a failure.
	assert.Equal(t, []int{0, 1, 2}, attempted)

	var batchErr *BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, []int{1}, batchErr.Batches)
	assert.Contains(t, err.Error(), "boom")
}

func TestForEachBatchDefaultBatchSize(t *testing.T) {
	var calls int
	err := forEachBatch(DefaultBatchSize+1, 0, func(batch, start, end int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
