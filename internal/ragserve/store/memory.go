package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kart-io/logger"

	"github.com/kart-io/ragserve/internal/model"
)

// MemoryStore 实现纯内存的向量存储，用于测试和本地开发。
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	embeddingSize int
	records       map[int64]memoryRecord
}

type memoryRecord struct {
	text     string
	vector   []float32
	metadata map[string]any
}

// NewMemoryStore 创建内存存储实例。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memoryCollection),
	}
}

// Exists 检查集合是否存在。
func (s *MemoryStore) Exists(_ context.Context, collection string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[collection]
	return ok, nil
}

// GetInfo 获取集合元信息。
func (s *MemoryStore) GetInfo(_ context.Context, collection string) (*model.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	return &model.CollectionInfo{
		Name:          collection,
		EmbeddingSize: coll.embeddingSize,
		VectorCount:   int64(len(coll.records)),
	}, nil
}

// CreateCollection 创建集合。reset 为 true 时先删除已有集合。
func (s *MemoryStore) CreateCollection(_ context.Context, collection string, embeddingSize int, reset bool) (bool, error) {
	if embeddingSize <= 0 {
		return false, fmt.Errorf("embedding size must be positive, got %d", embeddingSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if reset {
		delete(s.collections, collection)
	}

	if _, ok := s.collections[collection]; ok {
		logger.Warnw("collection already exists", "collection", collection)
		return false, nil
	}

	s.collections[collection] = &memoryCollection{
		embeddingSize: embeddingSize,
		records:       make(map[int64]memoryRecord),
	}
	return true, nil
}

// DeleteCollection 删除集合。集合不存在时为无操作。
func (s *MemoryStore) DeleteCollection(_ context.Context, collection string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection]; !ok {
		logger.Warnw("collection does not exist", "collection", collection)
		return false, nil
	}

	delete(s.collections, collection)
	return true, nil
}

// insert 写入一批记录，校验向量维度与集合一致。
func (s *MemoryStore) insert(collection string, texts []string, vectors [][]float32, metadatas []map[string]any, ids []int64, start, end int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	for i := start; i < end; i++ {
		if len(vectors[i]) != coll.embeddingSize {
			return fmt.Errorf("vector length %d does not match embedding size %d at index %d",
				len(vectors[i]), coll.embeddingSize, i)
		}
	}

	for i := start; i < end; i++ {
		coll.records[ids[i]] = memoryRecord{
			text:     texts[i],
			vector:   vectors[i],
			metadata: metadatas[i],
		}
	}
	return nil
}

// InsertOne 插入单条记录。
func (s *MemoryStore) InsertOne(_ context.Context, collection string, text string, vector []float32, metadata map[string]any, id int64) error {
	if text == "" {
		return fmt.Errorf("empty text")
	}
	return s.insert(collection, []string{text}, [][]float32{vector}, []map[string]any{metadata}, []int64{id}, 0, 1)
}

// InsertMany 分批插入多条记录，所有批次都会被尝试。
func (s *MemoryStore) InsertMany(_ context.Context, collection string, texts []string, vectors [][]float32, metadatas []map[string]any, ids []int64, batchSize int) error {
	metadatas, ids, err := normalizeInsertArgs(texts, vectors, metadatas, ids)
	if err != nil {
		return err
	}

	s.mu.RLock()
	_, ok := s.collections[collection]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	return forEachBatch(len(texts), batchSize, func(batch, start, end int) error {
		return s.insert(collection, texts, vectors, metadatas, ids, start, end)
	})
}

// Search 余弦相似度搜索。零命中返回 (nil, nil)。
func (s *MemoryStore) Search(_ context.Context, collection string, vector []float32, limit int) ([]model.RetrievedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[collection]
	if !ok {
		logger.Warnw("search against missing collection", "collection", collection)
		return nil, nil
	}

	if len(coll.records) == 0 || limit <= 0 {
		logger.Warnw("no results found", "collection", collection)
		return nil, nil
	}

	docs := make([]model.RetrievedDocument, 0, len(coll.records))
	for _, rec := range coll.records {
		docs = append(docs, model.RetrievedDocument{
			Text:  rec.text,
			Score: cosineSimilarity(vector, rec.vector),
		})
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Score > docs[j].Score
	})

	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// Close 释放资源。
func (s *MemoryStore) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = make(map[string]*memoryCollection)
	return nil
}

// cosineSimilarity 计算两个向量的余弦相似度。
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// 确保 MemoryStore 实现了 VectorStore 接口。
var _ VectorStore = (*MemoryStore)(nil)
