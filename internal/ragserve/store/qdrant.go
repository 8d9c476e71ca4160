package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/kart-io/logger"

	"github.com/kart-io/ragserve/internal/model"
	qdrantopts "github.com/kart-io/ragserve/pkg/options/qdrant"
)

// QdrantStore 实现基于 Qdrant REST API 的向量存储。
type QdrantStore struct {
	opts   *qdrantopts.Options
	client *http.Client
}

// NewQdrantStore 创建 Qdrant 存储实例。
func NewQdrantStore(opts *qdrantopts.Options) (*QdrantStore, error) {
	if opts == nil {
		return nil, fmt.Errorf("qdrant options is nil")
	}

	return &QdrantStore{
		opts: opts,
		client: &http.Client{
			Timeout: opts.Timeout,
		},
	}, nil
}

// qdrantStatus Qdrant 响应状态，可能是字符串 "ok" 或 {"error": "..."}。
type qdrantStatus struct {
	State string
	Error string
}

func (s *qdrantStatus) UnmarshalJSON(data []byte) error {
	var state string
	if err := sonic.Unmarshal(data, &state); err == nil {
		s.State = state
		return nil
	}

	var obj struct {
		Error string `json:"error"`
	}
	if err := sonic.Unmarshal(data, &obj); err != nil {
		return err
	}
	s.Error = obj.Error
	return nil
}

// qdrantEnvelope Qdrant 响应外层结构。
type qdrantEnvelope[T any] struct {
	Status qdrantStatus `json:"status"`
	Result T            `json:"result"`
}

// qdrantCollectionInfo GET /collections/{name} 的 result 字段。
type qdrantCollectionInfo struct {
	PointsCount int64 `json:"points_count"`
	Config      struct {
		Params struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

// qdrantPoint 一条向量记录。
type qdrantPoint struct {
	ID      int64          `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// qdrantScoredPoint 搜索命中结果。
type qdrantScoredPoint struct {
	ID      int64          `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// notFoundError 标记 404 响应。
type notFoundError struct {
	body string
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("qdrant http 404: %s", e.body)
}

// do 执行一次 Qdrant REST 请求并解析响应。
func (s *QdrantStore) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := sonic.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.opts.URL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.opts.APIKey != "" {
		req.Header.Set("api-key", s.opts.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNotFound {
		return &notFoundError{body: string(payload)}
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("qdrant http %d: %s", resp.StatusCode, string(payload))
	}

	if out != nil && len(payload) > 0 {
		if err := sonic.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

func collectionPath(collection string) string {
	return "/collections/" + url.PathEscape(collection)
}

// Exists 检查集合是否存在。
func (s *QdrantStore) Exists(ctx context.Context, collection string) (bool, error) {
	var rsp qdrantEnvelope[qdrantCollectionInfo]
	err := s.do(ctx, http.MethodGet, collectionPath(collection), nil, &rsp)
	if err != nil {
		var nfe *notFoundError
		if errors.As(err, &nfe) {
			return false, nil
		}
		return false, err
	}
	return strings.EqualFold(rsp.Status.State, "ok"), nil
}

// GetInfo 获取集合元信息。
func (s *QdrantStore) GetInfo(ctx context.Context, collection string) (*model.CollectionInfo, error) {
	var rsp qdrantEnvelope[qdrantCollectionInfo]
	if err := s.do(ctx, http.MethodGet, collectionPath(collection), nil, &rsp); err != nil {
		var nfe *notFoundError
		if errors.As(err, &nfe) {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
		}
		return nil, err
	}

	return &model.CollectionInfo{
		Name:          collection,
		EmbeddingSize: rsp.Result.Config.Params.Vectors.Size,
		VectorCount:   rsp.Result.PointsCount,
	}, nil
}

// CreateCollection 创建集合。reset 为 true 时先删除已有集合。
func (s *QdrantStore) CreateCollection(ctx context.Context, collection string, embeddingSize int, reset bool) (bool, error) {
	if reset {
		if _, err := s.DeleteCollection(ctx, collection); err != nil {
			return false, err
		}
	}

	exists, err := s.Exists(ctx, collection)
	if err != nil {
		return false, err
	}
	if exists {
		logger.Warnw("collection already exists", "collection", collection)
		return false, nil
	}

	req := map[string]any{
		"vectors": map[string]any{
			"size":     embeddingSize,
			"distance": s.opts.Distance,
		},
	}

	var rsp qdrantEnvelope[bool]
	if err := s.do(ctx, http.MethodPut, collectionPath(collection), req, &rsp); err != nil {
		return false, err
	}
	if rsp.Status.Error != "" {
		return false, fmt.Errorf("create collection %s: %s", collection, rsp.Status.Error)
	}

	return true, nil
}

// DeleteCollection 删除集合。集合不存在时为无操作。
func (s *QdrantStore) DeleteCollection(ctx context.Context, collection string) (bool, error) {
	exists, err := s.Exists(ctx, collection)
	if err != nil {
		return false, err
	}
	if !exists {
		logger.Warnw("collection does not exist", "collection", collection)
		return false, nil
	}

	var rsp qdrantEnvelope[bool]
	if err := s.do(ctx, http.MethodDelete, collectionPath(collection), nil, &rsp); err != nil {
		return false, err
	}
	if rsp.Status.Error != "" {
		return false, fmt.Errorf("delete collection %s: %s", collection, rsp.Status.Error)
	}

	return true, nil
}

// upsertPoints 写入一批向量记录，wait=true 保证写入后立即可检索。
func (s *QdrantStore) upsertPoints(ctx context.Context, collection string, points []qdrantPoint) error {
	req := map[string]any{"points": points}

	var rsp qdrantEnvelope[map[string]any]
	if err := s.do(ctx, http.MethodPut, collectionPath(collection)+"/points?wait=true", req, &rsp); err != nil {
		return err
	}
	if rsp.Status.Error != "" {
		return fmt.Errorf("upsert points: %s", rsp.Status.Error)
	}
	return nil
}

func buildQdrantPoints(texts []string, vectors [][]float32, metadatas []map[string]any, ids []int64, start, end int) []qdrantPoint {
	points := make([]qdrantPoint, 0, end-start)
	for i := start; i < end; i++ {
		points = append(points, qdrantPoint{
			ID:     ids[i],
			Vector: vectors[i],
			Payload: map[string]any{
				"text":     texts[i],
				"metadata": metadatas[i],
			},
		})
	}
	return points
}

// InsertOne 插入单条记录。
func (s *QdrantStore) InsertOne(ctx context.Context, collection string, text string, vector []float32, metadata map[string]any, id int64) error {
	exists, err := s.Exists(ctx, collection)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	points := buildQdrantPoints([]string{text}, [][]float32{vector}, []map[string]any{metadata}, []int64{id}, 0, 1)
	return s.upsertPoints(ctx, collection, points)
}

// InsertMany 分批插入多条记录，所有批次都会被尝试。
func (s *QdrantStore) InsertMany(ctx context.Context, collection string, texts []string, vectors [][]float32, metadatas []map[string]any, ids []int64, batchSize int) error {
	metadatas, ids, err := normalizeInsertArgs(texts, vectors, metadatas, ids)
	if err != nil {
		return err
	}

	exists, err := s.Exists(ctx, collection)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	return forEachBatch(len(texts), batchSize, func(batch, start, end int) error {
		return s.upsertPoints(ctx, collection, buildQdrantPoints(texts, vectors, metadatas, ids, start, end))
	})
}

// Search 向量相似度搜索。零命中返回 (nil, nil)。
func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]model.RetrievedDocument, error) {
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}

	var rsp qdrantEnvelope[[]qdrantScoredPoint]
	if err := s.do(ctx, http.MethodPost, collectionPath(collection)+"/points/search", req, &rsp); err != nil {
		var nfe *notFoundError
		if errors.As(err, &nfe) {
			logger.Warnw("search against missing collection", "collection", collection)
			return nil, nil
		}
		return nil, err
	}

	if len(rsp.Result) == 0 {
		logger.Warnw("no results found", "collection", collection)
		return nil, nil
	}

	docs := make([]model.RetrievedDocument, 0, len(rsp.Result))
	for _, point := range rsp.Result {
		text, _ := point.Payload["text"].(string)
		docs = append(docs, model.RetrievedDocument{
			Text:  text,
			Score: point.Score,
		})
	}
	return docs, nil
}

// Close 释放底层连接。
func (s *QdrantStore) Close(_ context.Context) error {
	s.client.CloseIdleConnections()
	return nil
}

// 确保 QdrantStore 实现了 VectorStore 接口。
var _ VectorStore = (*QdrantStore)(nil)
