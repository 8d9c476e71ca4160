// Package ragserve assembles and runs the RAG service.
package ragserve

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/ragserve/internal/ragserve/biz"
	"github.com/kart-io/ragserve/internal/ragserve/handler"
	"github.com/kart-io/ragserve/internal/ragserve/repo"
	"github.com/kart-io/ragserve/internal/ragserve/router"
	"github.com/kart-io/ragserve/internal/ragserve/store"
	"github.com/kart-io/ragserve/pkg/app"
	milvuscomp "github.com/kart-io/ragserve/pkg/component/milvus"
	"github.com/kart-io/ragserve/pkg/component/mongodb"
	"github.com/kart-io/ragserve/pkg/llm"
	"github.com/kart-io/ragserve/pkg/template"

	cacheopts "github.com/kart-io/ragserve/pkg/options/cache"
	httpopts "github.com/kart-io/ragserve/pkg/options/http"
	llmopts "github.com/kart-io/ragserve/pkg/options/llm"
	logopts "github.com/kart-io/ragserve/pkg/options/logger"
	milvusopts "github.com/kart-io/ragserve/pkg/options/milvus"
	mongoopts "github.com/kart-io/ragserve/pkg/options/mongodb"
	qdrantopts "github.com/kart-io/ragserve/pkg/options/qdrant"
	ragopts "github.com/kart-io/ragserve/pkg/options/rag"

	// Register LLM providers.
	_ "github.com/kart-io/ragserve/pkg/llm/cohere"
	_ "github.com/kart-io/ragserve/pkg/llm/ollama"
	_ "github.com/kart-io/ragserve/pkg/llm/openai"
)

// Config aggregates everything the server needs to start.
type Config struct {
	HTTP       *httpopts.Options
	Log        *logopts.Options
	Milvus     *milvusopts.Options
	Qdrant     *qdrantopts.Options
	Mongo      *mongoopts.Options
	Embedding  *llmopts.ProviderOptions
	Generation *llmopts.ProviderOptions
	RAG        *ragopts.Options
	Cache      *cacheopts.Options
}

// Server is the assembled RAG service.
type Server struct {
	config      *Config
	engine      *gin.Engine
	vectorStore store.VectorStore
	mongoClient *mongodb.Client
	redisClient *goredis.Client
}

// NewServer builds the server from config: logger, stores, providers,
// business services, handlers, and routes.
func NewServer(ctx context.Context, config *Config) (*Server, error) {
	if err := config.Log.Init(); err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	logger.Infow("starting ragserve",
		"version", app.GetVersion(),
		"vector_db", config.RAG.VectorDB,
	)

	vectorStore, err := newVectorStore(config)
	if err != nil {
		return nil, err
	}

	mongoClient, err := mongodb.New(ctx, config.Mongo)
	if err != nil {
		_ = vectorStore.Close(ctx)
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	docs := repo.NewDocumentRepo(mongoClient)
	chunks := repo.NewChunkRepo(mongoClient)

	var (
		redisClient *goredis.Client
		answerCache *biz.AnswerCache
	)
	if config.Cache.Enabled {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:     config.Cache.Addr,
			Password: config.Cache.Password,
			DB:       config.Cache.Database,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// 缓存不可用时降级为无缓存运行
			logger.Warnw("redis unavailable, answer cache disabled", "addr", config.Cache.Addr, "error", err.Error())
			_ = redisClient.Close()
			redisClient = nil
		} else {
			answerCache = biz.NewAnswerCache(redisClient, &biz.AnswerCacheConfig{
				Enabled:   true,
				TTL:       config.Cache.TTL,
				KeyPrefix: config.Cache.KeyPrefix,
			})
			logger.Infow("answer cache enabled", "addr", config.Cache.Addr, "ttl", config.Cache.TTL.String())
		}
	}

	embedder, err := llm.NewEmbeddingProvider(config.Embedding.Provider, config.Embedding.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("create embedding provider: %w", err)
	}
	generator, err := llm.NewGenerationProvider(config.Generation.Provider, config.Generation.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("create generation provider: %w", err)
	}
	logger.Infow("llm providers ready",
		"embedding", embedder.Name(), "embedding_model", config.Embedding.Model,
		"generation", generator.Name(), "generation_model", config.Generation.Model,
	)

	templates, err := template.NewResolver(config.RAG.Language)
	if err != nil {
		return nil, fmt.Errorf("build template resolver: %w", err)
	}

	service := biz.NewRagService(vectorStore, embedder, generator, templates, answerCache, docs, chunks, &biz.Config{
		UploadDir:       config.RAG.UploadDir,
		ChunkSize:       config.RAG.ChunkSize,
		ChunkOverlap:    config.RAG.ChunkOverlap,
		TopK:            config.RAG.TopK,
		InsertBatchSize: config.RAG.InsertBatchSize,
	})

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	router.Register(engine,
		handler.NewRAGHandler(service),
		handler.NewDataHandler(service, config.RAG.UploadDir),
	)

	return &Server{
		config:      config,
		engine:      engine,
		vectorStore: vectorStore,
		mongoClient: mongoClient,
		redisClient: redisClient,
	}, nil
}

// newVectorStore creates the vector store backend selected by config.
func newVectorStore(config *Config) (store.VectorStore, error) {
	switch config.RAG.VectorDB {
	case "milvus":
		client, err := milvuscomp.New(config.Milvus)
		if err != nil {
			return nil, fmt.Errorf("connect milvus: %w", err)
		}
		return store.NewMilvusStore(client), nil
	case "qdrant":
		qs, err := store.NewQdrantStore(config.Qdrant)
		if err != nil {
			return nil, fmt.Errorf("create qdrant store: %w", err)
		}
		return qs, nil
	case "memory":
		logger.Warnw("using in-memory vector store, data will not survive restarts")
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown vector-db backend: %s", config.RAG.VectorDB)
	}
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run() error {
	defer s.close()

	srv := &http.Server{
		Addr:         s.config.HTTP.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.config.HTTP.ReadTimeout,
		WriteTimeout: s.config.HTTP.WriteTimeout,
		IdleTimeout:  s.config.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		logger.Infow("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// close releases backend connections.
func (s *Server) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			logger.Warnw("failed to close redis client", "error", err.Error())
		}
	}
	if s.mongoClient != nil {
		if err := s.mongoClient.Close(); err != nil {
			logger.Warnw("failed to close mongodb client", "error", err.Error())
		}
	}
	if s.vectorStore != nil {
		if err := s.vectorStore.Close(ctx); err != nil {
			logger.Warnw("failed to close vector store", "error", err.Error())
		}
	}
}
