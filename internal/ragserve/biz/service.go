package biz

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/kart-io/logger"

	"github.com/kart-io/ragserve/internal/model"
	"github.com/kart-io/ragserve/internal/pkg/textutil"
	"github.com/kart-io/ragserve/internal/ragserve/repo"
	"github.com/kart-io/ragserve/internal/ragserve/store"
	"github.com/kart-io/ragserve/pkg/llm"
	"github.com/kart-io/ragserve/pkg/template"
)

// ErrDocumentNotFound 文档记录不存在。
var ErrDocumentNotFound = errors.New("document not found")

// Service 定义 RAG 服务接口。
type Service interface {
	// RegisterDocument 登记一个新上传的文档并分配 file_id。
	RegisterDocument(ctx context.Context, name string, size int64, contentType string) (*model.Document, error)
	// ListDocuments 列出已登记的文档。
	ListDocuments(ctx context.Context, limit int64) ([]model.Document, error)
	// ProcessDocument 读取上传文件并切分为块，返回块数量。
	ProcessDocument(ctx context.Context, fileID string, chunkSize, overlap int, reset bool) (int, error)
	// IndexDocument 将文档块嵌入并写入向量集合。
	IndexDocument(ctx context.Context, fileID string, reset bool) error
	// Search 在文档集合中执行相似度搜索。
	Search(ctx context.Context, fileID, text string, limit int) ([]model.RetrievedDocument, error)
	// Answer 执行检索增强问答。
	Answer(ctx context.Context, fileID, query string, limit int) (*model.Answer, error)
	// GetCollectionInfo 获取文档集合的元信息。
	GetCollectionInfo(ctx context.Context, fileID string) (*model.CollectionInfo, error)
	// ResetCollection 删除文档的向量集合。
	ResetCollection(ctx context.Context, fileID string) (bool, error)
	// DeleteDocument 删除文档及其块、集合和上传文件。
	DeleteDocument(ctx context.Context, fileID string) error
	// GetStats 返回服务统计信息。
	GetStats(ctx context.Context) (map[string]any, error)
}

// Config RAG 服务配置。
type Config struct {
	UploadDir       string
	ChunkSize       int
	ChunkOverlap    int
	TopK            int
	InsertBatchSize int
}

// RagService 组合 Indexer、Retriever 和 Answerer 提供完整的 RAG 服务。
type RagService struct {
	indexer   *Indexer
	retriever *Retriever
	answerer  *Answerer
	cache     *AnswerCache
	store     store.VectorStore
	docs      *repo.DocumentRepo
	chunks    *repo.ChunkRepo
	config    *Config
}

// NewRagService 创建 RAG 服务实例。
func NewRagService(
	vectorStore store.VectorStore,
	embedder llm.EmbeddingProvider,
	generator llm.GenerationProvider,
	templates *template.Resolver,
	cache *AnswerCache,
	docs *repo.DocumentRepo,
	chunks *repo.ChunkRepo,
	config *Config,
) *RagService {
	indexer := NewIndexer(vectorStore, embedder, config.InsertBatchSize)
	retriever := NewRetriever(vectorStore, embedder, config.TopK)
	answerer := NewAnswerer(retriever, generator, templates)

	return &RagService{
		indexer:   indexer,
		retriever: retriever,
		answerer:  answerer,
		cache:     cache,
		store:     vectorStore,
		docs:      docs,
		chunks:    chunks,
		config:    config,
	}
}

// RegisterDocument 登记一个新上传的文档并分配 file_id。
func (s *RagService) RegisterDocument(ctx context.Context, name string, size int64, contentType string) (*model.Document, error) {
	if s.docs == nil {
		return nil, fmt.Errorf("document repository not configured")
	}
	if name == "" {
		return nil, fmt.Errorf("document name is required")
	}

	doc := &model.Document{
		FileID:      uuid.NewString(),
		Name:        name,
		Size:        size,
		ContentType: contentType,
	}
	if err := s.docs.Upsert(ctx, doc); err != nil {
		return nil, err
	}

	logger.Infow("registered document", "file_id", doc.FileID, "name", name)
	return doc, nil
}

// ListDocuments 列出已登记的文档。
func (s *RagService) ListDocuments(ctx context.Context, limit int64) ([]model.Document, error) {
	if s.docs == nil {
		return nil, fmt.Errorf("document repository not configured")
	}
	return s.docs.List(ctx, limit)
}

// getDocument 获取文档记录，不存在时返回 ErrDocumentNotFound。
func (s *RagService) getDocument(ctx context.Context, fileID string) (*model.Document, error) {
	if s.docs == nil {
		return nil, fmt.Errorf("document repository not configured")
	}
	doc, err := s.docs.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, fileID)
	}
	return doc, nil
}

// uploadPath 返回上传文件的磁盘路径。
func (s *RagService) uploadPath(fileID string) string {
	return filepath.Join(s.config.UploadDir, fileID)
}

// ProcessDocument 读取上传文件，按配置切分为块并持久化。
// reset 为 true 时先删除旧的块记录。
func (s *RagService) ProcessDocument(ctx context.Context, fileID string, chunkSize, overlap int, reset bool) (int, error) {
	doc, err := s.getDocument(ctx, fileID)
	if err != nil {
		return 0, err
	}

	if chunkSize <= 0 {
		chunkSize = s.config.ChunkSize
	}
	if overlap <= 0 {
		overlap = s.config.ChunkOverlap
	}

	data, err := os.ReadFile(s.uploadPath(fileID))
	if err != nil {
		return 0, fmt.Errorf("read uploaded file for %s: %w", fileID, err)
	}

	pieces := textutil.SplitIntoChunks(string(data), chunkSize, overlap)
	if len(pieces) == 0 {
		return 0, fmt.Errorf("document %s produced no chunks", fileID)
	}

	chunks := make([]model.Chunk, len(pieces))
	for i, text := range pieces {
		chunks[i] = model.Chunk{
			Text:     text,
			Metadata: map[string]any{"source": doc.Name},
			Order:    i + 1,
			FileID:   fileID,
		}
	}

	if reset {
		deleted, err := s.chunks.DeleteByFileID(ctx, fileID)
		if err != nil {
			return 0, err
		}
		if deleted > 0 {
			logger.Infow("deleted old chunks", "file_id", fileID, "count", deleted)
		}
	}

	inserted, err := s.chunks.InsertMany(ctx, chunks)
	if err != nil {
		return inserted, err
	}

	if err := s.docs.SetChunkNum(ctx, fileID, inserted); err != nil {
		return inserted, err
	}

	logger.Infow("processed document", "file_id", fileID, "chunks", inserted)
	return inserted, nil
}

// IndexDocument 将文档块嵌入并写入向量集合。
func (s *RagService) IndexDocument(ctx context.Context, fileID string, reset bool) error {
	if _, err := s.getDocument(ctx, fileID); err != nil {
		return err
	}

	chunks, err := s.chunks.GetByFileID(ctx, fileID)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("document %s has no chunks, process it first", fileID)
	}

	ids := make([]int64, len(chunks))
	for i := range chunks {
		ids[i] = int64(i)
	}

	return s.indexer.Index(ctx, fileID, chunks, ids, reset)
}

// Search 在文档集合中执行相似度搜索。零命中返回 (nil, nil)。
func (s *RagService) Search(ctx context.Context, fileID, text string, limit int) ([]model.RetrievedDocument, error) {
	return s.retriever.Retrieve(ctx, fileID, text, limit)
}

// Answer 执行检索增强问答，结果写入缓存。
func (s *RagService) Answer(ctx context.Context, fileID, query string, limit int) (*model.Answer, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, fileID, query, limit)
		if err == nil && cached != nil {
			return cached, nil
		}
		// 缓存未命中或出错，继续正常流程
	}

	answer, err := s.answerer.Answer(ctx, fileID, query, limit)
	if err != nil {
		return answer, err
	}

	if s.cache != nil && answer != nil && answer.Text != "" {
		// 缓存写入失败不影响正常返回，错误已在 cache.Set 中记录
		_ = s.cache.Set(ctx, fileID, query, limit, answer)
	}

	return answer, nil
}

// GetCollectionInfo 获取文档集合的元信息。
func (s *RagService) GetCollectionInfo(ctx context.Context, fileID string) (*model.CollectionInfo, error) {
	return s.store.GetInfo(ctx, store.CollectionName(fileID))
}

// ResetCollection 删除文档的向量集合。集合不存在时返回 (false, nil)。
func (s *RagService) ResetCollection(ctx context.Context, fileID string) (bool, error) {
	return s.store.DeleteCollection(ctx, store.CollectionName(fileID))
}

// DeleteDocument 删除文档及其块、集合和上传文件。
func (s *RagService) DeleteDocument(ctx context.Context, fileID string) error {
	if _, err := s.getDocument(ctx, fileID); err != nil {
		return err
	}

	if _, err := s.store.DeleteCollection(ctx, store.CollectionName(fileID)); err != nil {
		return err
	}

	if _, err := s.chunks.DeleteByFileID(ctx, fileID); err != nil {
		return err
	}

	if err := s.docs.Delete(ctx, fileID); err != nil {
		return err
	}

	if err := os.Remove(s.uploadPath(fileID)); err != nil && !os.IsNotExist(err) {
		logger.Warnw("failed to remove uploaded file", "file_id", fileID, "error", err.Error())
	}

	logger.Infow("deleted document", "file_id", fileID)
	return nil
}

// GetStats 返回服务统计信息。
func (s *RagService) GetStats(ctx context.Context) (map[string]any, error) {
	stats := map[string]any{}

	if s.docs != nil {
		docCount, err := s.docs.Count(ctx)
		if err != nil {
			return nil, err
		}
		stats["document_count"] = docCount
	}
	if s.chunks != nil {
		chunkCount, err := s.chunks.Count(ctx)
		if err != nil {
			return nil, err
		}
		stats["chunk_count"] = chunkCount
	}

	if s.cache != nil {
		cacheStats, err := s.cache.GetStats(ctx)
		if err != nil {
			// 缓存统计失败不阻塞整体统计
			logger.Warnw("failed to collect cache stats", "error", err.Error())
		} else {
			stats["cache"] = cacheStats
		}
	}

	return stats, nil
}

// 确保 RagService 实现了 Service 接口。
var _ Service = (*RagService)(nil)
