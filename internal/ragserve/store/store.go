// Package store 提供向量数据库抽象层。
// 支持 Milvus、Qdrant 和内存三种后端。
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/ragserve/internal/model"
)

// DefaultBatchSize 批量写入的默认批次大小。
const DefaultBatchSize = 50

// ErrCollectionNotFound 集合不存在。
var ErrCollectionNotFound = errors.New("collection not found")

// BatchError 批量写入失败，记录失败的批次序号。
// 所有批次都会被尝试写入，失败的批次被收集后统一上报。
type BatchError struct {
	// Batches 失败批次的序号（从 0 开始）。
	Batches []int
	err     error
}

// NewBatchError 创建批量写入错误。
func NewBatchError(batches []int, errs []error) *BatchError {
	return &BatchError{
		Batches: batches,
		err:     utilerrors.NewAggregate(errs),
	}
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("insert failed for batches %v: %v", e.Batches, e.err)
}

func (e *BatchError) Unwrap() error {
	return e.err
}

// CollectionName 根据文档 ID 生成确定性的集合名。
func CollectionName(fileID string) string {
	return strings.TrimSpace("collection_" + fileID)
}

// VectorStore 定义向量存储接口。
//
// 集合不存在、集合已存在和零命中属于预期内的软条件：
// 前两者通过布尔返回值表达，零命中返回 (nil, nil) 而不是错误。
type VectorStore interface {
	// Exists 检查集合是否存在。
	Exists(ctx context.Context, collection string) (bool, error)

	// GetInfo 获取集合元信息。集合不存在时返回 ErrCollectionNotFound。
	GetInfo(ctx context.Context, collection string) (*model.CollectionInfo, error)

	// CreateCollection 创建集合。reset 为 true 时先删除已有集合。
	// 集合已存在且 reset 为 false 时返回 (false, nil) 并记录日志。
	CreateCollection(ctx context.Context, collection string, embeddingSize int, reset bool) (bool, error)

	// DeleteCollection 删除集合。集合不存在时返回 (false, nil)。
	DeleteCollection(ctx context.Context, collection string) (bool, error)

	// InsertOne 插入单条记录。集合不存在时返回 ErrCollectionNotFound。
	InsertOne(ctx context.Context, collection string, text string, vector []float32, metadata map[string]any, id int64) error

	// InsertMany 分批插入多条记录。metadatas 为 nil 时填充空值，
	// ids 为 nil 时使用从 0 开始的序号，batchSize 非正时使用 DefaultBatchSize。
	// 所有批次都会被尝试，任一批次失败时返回 *BatchError。
	InsertMany(ctx context.Context, collection string, texts []string, vectors [][]float32, metadatas []map[string]any, ids []int64, batchSize int) error

	// Search 向量相似度搜索，结果按相似度降序。零命中返回 (nil, nil)。
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]model.RetrievedDocument, error)

	// Close 释放底层连接。
	Close(ctx context.Context) error
}

// normalizeInsertArgs 校验并补全批量插入参数。
// texts 与 vectors 必须等长且非空，metadatas/ids 省略时填充默认值。
func normalizeInsertArgs(texts []string, vectors [][]float32, metadatas []map[string]any, ids []int64) ([]map[string]any, []int64, error) {
	if len(texts) != len(vectors) {
		return nil, nil, fmt.Errorf("texts and vectors length mismatch: %d != %d", len(texts), len(vectors))
	}
	for i, text := range texts {
		if text == "" {
			return nil, nil, fmt.Errorf("empty text at index %d", i)
		}
	}

	if metadatas == nil {
		metadatas = make([]map[string]any, len(texts))
	} else if len(metadatas) != len(texts) {
		return nil, nil, fmt.Errorf("metadatas length mismatch: %d != %d", len(metadatas), len(texts))
	}

	if ids == nil {
		ids = make([]int64, len(texts))
		for i := range ids {
			ids[i] = int64(i)
		}
	} else if len(ids) != len(texts) {
		return nil, nil, fmt.Errorf("ids length mismatch: %d != %d", len(ids), len(texts))
	}

	return metadatas, ids, nil
}

// forEachBatch 按批次大小切分 [0, n) 并逐批调用 fn。
// 任一批次失败不会中断后续批次，全部执行后统一返回 *BatchError。
func forEachBatch(n, batchSize int, fn func(batch, start, end int) error) error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var (
		failed []int
		errs   []error
	)

	batch := 0
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}

		if err := fn(batch, start, end); err != nil {
			failed = append(failed, batch)
			errs = append(errs, fmt.Errorf("batch %d [%d:%d]: %w", batch, start, end, err))
		}
		batch++
	}

	if len(errs) > 0 {
		return NewBatchError(failed, errs)
	}
	return nil
}
