// Package ragopts provides RAG pipeline configuration options.
package ragopts

import (
	"fmt"

	"github.com/kart-io/ragserve/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// Options contains RAG pipeline configuration.
type Options struct {
	// VectorDB selects the vector store backend (milvus, qdrant, memory).
	VectorDB string `json:"vector-db" mapstructure:"vector-db"`

	// TopK is the default number of results from similarity search.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// InsertBatchSize is the number of records per bulk write to the vector store.
	InsertBatchSize int `json:"insert-batch-size" mapstructure:"insert-batch-size"`

	// ChunkSize is the default chunk size in runes for file processing.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the default overlap between consecutive chunks.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// UploadDir is the directory uploaded files are stored in.
	UploadDir string `json:"upload-dir" mapstructure:"upload-dir"`

	// Language selects the prompt template locale.
	Language string `json:"language" mapstructure:"language"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		VectorDB:        "milvus",
		TopK:            5,
		InsertBatchSize: 50,
		ChunkSize:       512,
		ChunkOverlap:    64,
		UploadDir:       "_output/uploads",
		Language:        "en",
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.VectorDB, p+"vector-db", o.VectorDB, "Vector store backend (milvus, qdrant, memory).")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Default number of results from similarity search.")
	fs.IntVar(&o.InsertBatchSize, p+"insert-batch-size", o.InsertBatchSize, "Records per bulk write to the vector store.")
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Default chunk size in runes.")
	fs.IntVar(&o.ChunkOverlap, p+"chunk-overlap", o.ChunkOverlap, "Default overlap between consecutive chunks.")
	fs.StringVar(&o.UploadDir, p+"upload-dir", o.UploadDir, "Directory for uploaded files.")
	fs.StringVar(&o.Language, p+"language", o.Language, "Prompt template locale.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.VectorDB {
	case "milvus", "qdrant", "memory":
	default:
		errs = append(errs, fmt.Errorf("rag.vector-db must be one of milvus, qdrant, memory"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("rag.top-k must be positive"))
	}
	if o.InsertBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.insert-batch-size must be positive"))
	}
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("rag.chunk-overlap must be non-negative and smaller than rag.chunk-size"))
	}
	return errs
}
