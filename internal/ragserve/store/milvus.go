package store

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/kart-io/logger"

	"github.com/kart-io/ragserve/internal/model"
	"github.com/kart-io/ragserve/pkg/component/milvus"
)

// MilvusStore 实现基于 Milvus 的向量存储。
type MilvusStore struct {
	client *milvus.Client
}

// NewMilvusStore 创建 Milvus 存储实例。
func NewMilvusStore(client *milvus.Client) *MilvusStore {
	return &MilvusStore{client: client}
}

// Exists 检查集合是否存在。
func (s *MilvusStore) Exists(ctx context.Context, collection string) (bool, error) {
	return s.client.HasCollection(ctx, collection)
}

// GetInfo 获取集合元信息。
func (s *MilvusStore) GetInfo(ctx context.Context, collection string) (*model.CollectionInfo, error) {
	exists, err := s.client.HasCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	dim, err := s.client.GetDimension(ctx, collection)
	if err != nil {
		return nil, err
	}

	count, err := s.client.GetCollectionStats(ctx, collection)
	if err != nil {
		return nil, err
	}

	return &model.CollectionInfo{
		Name:          collection,
		EmbeddingSize: dim,
		VectorCount:   count,
	}, nil
}

// CreateCollection 创建集合。reset 为 true 时先删除已有集合。
func (s *MilvusStore) CreateCollection(ctx context.Context, collection string, embeddingSize int, reset bool) (bool, error) {
	if reset {
		if _, err := s.DeleteCollection(ctx, collection); err != nil {
			return false, err
		}
	}

	exists, err := s.client.HasCollection(ctx, collection)
	if err != nil {
		return false, err
	}
	if exists {
		logger.Warnw("collection already exists", "collection", collection)
		return false, nil
	}

	if err := s.client.CreateCollection(ctx, collection, embeddingSize); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteCollection 删除集合。集合不存在时为无操作。
func (s *MilvusStore) DeleteCollection(ctx context.Context, collection string) (bool, error) {
	exists, err := s.client.HasCollection(ctx, collection)
	if err != nil {
		return false, err
	}
	if !exists {
		logger.Warnw("collection does not exist", "collection", collection)
		return false, nil
	}

	if err := s.client.DropCollection(ctx, collection); err != nil {
		return false, err
	}
	return true, nil
}

// InsertOne 插入单条记录。
func (s *MilvusStore) InsertOne(ctx context.Context, collection string, text string, vector []float32, metadata map[string]any, id int64) error {
	exists, err := s.client.HasCollection(ctx, collection)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	data, err := buildMilvusData([]string{text}, [][]float32{vector}, []map[string]any{metadata}, []int64{id}, 0, 1)
	if err != nil {
		return err
	}
	return s.client.Insert(ctx, collection, data)
}

// InsertMany 分批插入多条记录，所有批次都会被尝试。
func (s *MilvusStore) InsertMany(ctx context.Context, collection string, texts []string, vectors [][]float32, metadatas []map[string]any, ids []int64, batchSize int) error {
	metadatas, ids, err := normalizeInsertArgs(texts, vectors, metadatas, ids)
	if err != nil {
		return err
	}

	exists, err := s.client.HasCollection(ctx, collection)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	return forEachBatch(len(texts), batchSize, func(batch, start, end int) error {
		data, err := buildMilvusData(texts, vectors, metadatas, ids, start, end)
		if err != nil {
			return err
		}
		return s.client.Insert(ctx, collection, data)
	})
}

// buildMilvusData 将 [start, end) 范围内的记录转换为 Milvus 插入数据。
// metadata 序列化为 JSON 字符串存储。
func buildMilvusData(texts []string, vectors [][]float32, metadatas []map[string]any, ids []int64, start, end int) (*milvus.InsertData, error) {
	data := &milvus.InsertData{
		IDs:        ids[start:end],
		Embeddings: vectors[start:end],
		Texts:      texts[start:end],
		Metadata:   make([]string, 0, end-start),
	}

	for i := start; i < end; i++ {
		if metadatas[i] == nil {
			data.Metadata = append(data.Metadata, "{}")
			continue
		}
		raw, err := sonic.MarshalString(metadatas[i])
		if err != nil {
			return nil, fmt.Errorf("marshal metadata at index %d: %w", i, err)
		}
		data.Metadata = append(data.Metadata, raw)
	}

	return data, nil
}

// Search 向量相似度搜索。零命中返回 (nil, nil)。
func (s *MilvusStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]model.RetrievedDocument, error) {
	exists, err := s.client.HasCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		logger.Warnw("search against missing collection", "collection", collection)
		return nil, nil
	}

	results, err := s.client.Search(ctx, collection, vector, limit)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		logger.Warnw("no results found", "collection", collection)
		return nil, nil
	}

	docs := make([]model.RetrievedDocument, len(results))
	for i, r := range results {
		docs[i] = model.RetrievedDocument{
			Text:  r.Text,
			Score: r.Score,
		}
	}
	return docs, nil
}

// Close 关闭 Milvus 连接。
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// 确保 MilvusStore 实现了 VectorStore 接口。
var _ VectorStore = (*MilvusStore)(nil)
