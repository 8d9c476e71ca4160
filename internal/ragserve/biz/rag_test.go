package biz

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragserve/internal/model"
	"github.com/kart-io/ragserve/internal/ragserve/store"
	"github.com/kart-io/ragserve/pkg/llm"
	"github.com/kart-io/ragserve/pkg/template"
)

// stubEmbedder 确定性嵌入：相同文本产生相同向量。
type stubEmbedder struct {
	dim int
}

func (e *stubEmbedder) vec(text string) []float32 {
	v := make([]float32, e.dim)
	for i, b := range []byte(text) {
		v[i%e.dim] += float32(b)
	}
	return v
}

func (e *stubEmbedder) Embed(_ context.Context, texts []string, _ llm.Intent) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vec(t)
	}
	return out, nil
}

func (e *stubEmbedder) EmbedSingle(ctx context.Context, text string, intent llm.Intent) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text}, intent)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *stubEmbedder) EmbeddingSize() int { return e.dim }
func (e *stubEmbedder) Name() string       { return "stub" }

// stubGenerator 记录收到的提示并返回固定回答。
type stubGenerator struct {
	reply       string
	err         error
	calls       int
	lastPrompt  string
	lastHistory []llm.Message
}

func (g *stubGenerator) Generate(_ context.Context, prompt string, history []llm.Message) (string, error) {
	g.calls++
	g.lastPrompt = prompt
	g.lastHistory = history
	return g.reply, g.err
}

func (g *stubGenerator) RoleToken(role llm.Role) string { return string(role) }
func (g *stubGenerator) Name() string                   { return "stub" }

func testChunks(fileID string, texts ...string) []model.Chunk {
	chunks := make([]model.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = model.Chunk{
			Text:   t,
			Order:  i + 1,
			FileID: fileID,
		}
	}
	return chunks
}

func TestIndexerIndexAndRetrieve(t *testing.T) {
	ctx := context.Background()
	memStore := store.NewMemoryStore()
	embedder := &stubEmbedder{dim: 8}

	indexer := NewIndexer(memStore, embedder, 2)
	chunks := testChunks("doc1", "the quick brown fox", "jumps over", "the lazy dog")

	err := indexer.Index(ctx, "doc1", chunks, nil, true)
	require.NoError(t, err)

	info, err := memStore.GetInfo(ctx, store.CollectionName("doc1"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.VectorCount)
	assert.Equal(t, 8, info.EmbeddingSize)

	retriever := NewRetriever(memStore, embedder, 5)
	docs, err := retriever.Retrieve(ctx, "doc1", "jumps over", 2)
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	assert.Equal(t, "jumps over", docs[0].Text)
	assert.Greater(t, docs[0].Score, float32(0.9))
}

func TestIndexerValidation(t *testing.T) {
	ctx := context.Background()
	indexer := NewIndexer(store.NewMemoryStore(), &stubEmbedder{dim: 4}, 0)

	err := indexer.Index(ctx, "doc1", nil, nil, false)
	assert.Error(t, err)

	chunks := testChunks("doc1", "a")
	chunks[0].Text = ""
	err = indexer.Index(ctx, "doc1", chunks, nil, false)
	assert.Error(t, err)

	chunks = testChunks("doc1", "a")
	chunks[0].Order = 0
	err = indexer.Index(ctx, "doc1", chunks, nil, false)
	assert.Error(t, err)

	chunks = testChunks("doc1", "a", "b")
	err = indexer.Index(ctx, "doc1", chunks, []int64{1}, false)
	assert.Error(t, err)
}

func TestIndexerReset(t *testing.T) {
	ctx := context.Background()
	memStore := store.NewMemoryStore()
	indexer := NewIndexer(memStore, &stubEmbedder{dim: 4}, 0)

	require.NoError(t, indexer.Index(ctx, "doc1", testChunks("doc1", "a", "b"), nil, false))
	require.NoError(t, indexer.Index(ctx, "doc1", testChunks("doc1", "c", "d", "e"), nil, true))

	info, err := memStore.GetInfo(ctx, store.CollectionName("doc1"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.VectorCount)
}

// failingStore 模拟部分批次写入失败的向量存储。
type failingStore struct {
	*store.MemoryStore
}

func (s *failingStore) InsertMany(context.Context, string, []string, [][]float32, []map[string]any, []int64, int) error {
	return store.NewBatchError([]int{1}, []error{fmt.Errorf("write timeout")})
}

func TestIndexerBatchFailure(t *testing.T) {
	ctx := context.Background()
	indexer := NewIndexer(&failingStore{store.NewMemoryStore()}, &stubEmbedder{dim: 4}, 2)

	err := indexer.Index(ctx, "doc1", testChunks("doc1", "a", "b", "c", "d", "e"), nil, true)
	require.Error(t, err)

	var batchErr *store.BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, []int{1}, batchErr.Batches)
}

func TestRetrieverEmptyCollection(t *testing.T) {
	ctx := context.Background()
	retriever := NewRetriever(store.NewMemoryStore(), &stubEmbedder{dim: 4}, 5)

	docs, err := retriever.Retrieve(ctx, "missing", "anything", 5)
	require.NoError(t, err)
	assert.Nil(t, docs)
}

func newTestAnswerer(t *testing.T, gen *stubGenerator) (*Answerer, *store.MemoryStore, *stubEmbedder) {
	t.Helper()

	memStore := store.NewMemoryStore()
	embedder := &stubEmbedder{dim: 8}
	retriever := NewRetriever(memStore, embedder, 5)

	resolver, err := template.NewResolver("en")
	require.NoError(t, err)

	return NewAnswerer(retriever, gen, resolver), memStore, embedder
}

func TestAnswererAnswer(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{reply: "the fox jumps"}
	answerer, memStore, embedder := newTestAnswerer(t, gen)

	indexer := NewIndexer(memStore, embedder, 0)
	require.NoError(t, indexer.Index(ctx, "doc1",
		testChunks("doc1", "the quick brown fox", "jumps over the lazy dog"), nil, true))

	answer, err := answerer.Answer(ctx, "doc1", "what does the fox do?", 2)
	require.NoError(t, err)
	require.NotNil(t, answer)

	assert.Equal(t, "the fox jumps", answer.Text)
	assert.Contains(t, answer.FullPrompt, "## Document No: 1")
	assert.Contains(t, answer.FullPrompt, "what does the fox do?")
	assert.Contains(t, answer.FullPrompt, "## Answer:")

	require.Len(t, answer.History, 1)
	assert.Equal(t, llm.RoleSystem, answer.History[0].Role)
	assert.NotEmpty(t, answer.History[0].Content)

	// The generator received the assembled prompt and the seed history.
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, answer.FullPrompt, gen.lastPrompt)
	assert.Equal(t, answer.History, gen.lastHistory)
}

func TestAnswererNoHits(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{reply: "should not be called"}
	answerer, _, _ := newTestAnswerer(t, gen)

	// Collection does not exist: no answer, no prompt, no generation call.
	answer, err := answerer.Answer(ctx, "missing", "anything", 5)
	require.NoError(t, err)
	assert.Nil(t, answer)
	assert.Equal(t, 0, gen.calls)
}

func TestAnswererEmptyGeneration(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{reply: ""}
	answerer, memStore, embedder := newTestAnswerer(t, gen)

	indexer := NewIndexer(memStore, embedder, 0)
	require.NoError(t, indexer.Index(ctx, "doc1", testChunks("doc1", "some content"), nil, true))

	// Empty generation output is returned as-is, with prompt and history kept.
	answer, err := answerer.Answer(ctx, "doc1", "question", 5)
	require.NoError(t, err)
	require.NotNil(t, answer)
	assert.Empty(t, answer.Text)
	assert.NotEmpty(t, answer.FullPrompt)
	assert.Len(t, answer.History, 1)
}

func TestAnswererGenerationFailure(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{err: fmt.Errorf("quota exceeded")}
	answerer, memStore, embedder := newTestAnswerer(t, gen)

	indexer := NewIndexer(memStore, embedder, 0)
	require.NoError(t, indexer.Index(ctx, "doc1", testChunks("doc1", "some content"), nil, true))

	answer, err := answerer.Answer(ctx, "doc1", "question", 5)
	require.Error(t, err)
	// The assembled prompt survives a failed generation call.
	require.NotNil(t, answer)
	assert.NotEmpty(t, answer.FullPrompt)
	assert.Len(t, answer.History, 1)
}
