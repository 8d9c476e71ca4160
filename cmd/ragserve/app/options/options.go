// Package options aggregates all ragserve configuration options.
package options

import (
	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/ragserve/internal/ragserve"
	cacheopts "github.com/kart-io/ragserve/pkg/options/cache"
	httpopts "github.com/kart-io/ragserve/pkg/options/http"
	llmopts "github.com/kart-io/ragserve/pkg/options/llm"
	logopts "github.com/kart-io/ragserve/pkg/options/logger"
	milvusopts "github.com/kart-io/ragserve/pkg/options/milvus"
	mongoopts "github.com/kart-io/ragserve/pkg/options/mongodb"
	qdrantopts "github.com/kart-io/ragserve/pkg/options/qdrant"
	ragopts "github.com/kart-io/ragserve/pkg/options/rag"
)

// Options holds all configuration sections for the server.
type Options struct {
	HTTP       *httpopts.Options        `json:"server" mapstructure:"server"`
	Log        *logopts.Options         `json:"log" mapstructure:"log"`
	Milvus     *milvusopts.Options      `json:"milvus" mapstructure:"milvus"`
	Qdrant     *qdrantopts.Options      `json:"qdrant" mapstructure:"qdrant"`
	Mongo      *mongoopts.Options       `json:"mongo" mapstructure:"mongo"`
	Embedding  *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`
	Generation *llmopts.ProviderOptions `json:"generation" mapstructure:"generation"`
	RAG        *ragopts.Options         `json:"rag" mapstructure:"rag"`
	Cache      *cacheopts.Options       `json:"cache" mapstructure:"cache"`
}

// NewOptions creates Options with defaults for every section.
func NewOptions() *Options {
	return &Options{
		HTTP:       httpopts.NewOptions(),
		Log:        logopts.NewOptions(),
		Milvus:     milvusopts.NewOptions(),
		Qdrant:     qdrantopts.NewOptions(),
		Mongo:      mongoopts.NewOptions(),
		Embedding:  llmopts.NewEmbeddingOptions(),
		Generation: llmopts.NewGenerationOptions(),
		RAG:        ragopts.NewOptions(),
		Cache:      cacheopts.NewOptions(),
	}
}

// AddFlags adds all section flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.HTTP.AddFlags(fs)
	o.Log.AddFlags(fs)
	o.Milvus.AddFlags(fs)
	o.Qdrant.AddFlags(fs)
	o.Mongo.AddFlags(fs)
	o.Embedding.AddFlags(fs, "embedding")
	o.Generation.AddFlags(fs, "generation")
	o.RAG.AddFlags(fs, "rag")
	o.Cache.AddFlags(fs, "cache")
}

// Complete fills in defaults for sections left nil by config unmarshalling.
func (o *Options) Complete() error {
	defaults := NewOptions()
	if o.HTTP == nil {
		o.HTTP = defaults.HTTP
	}
	if o.Log == nil {
		o.Log = defaults.Log
	}
	if o.Milvus == nil {
		o.Milvus = defaults.Milvus
	}
	if o.Qdrant == nil {
		o.Qdrant = defaults.Qdrant
	}
	if o.Mongo == nil {
		o.Mongo = defaults.Mongo
	}
	if o.Embedding == nil {
		o.Embedding = defaults.Embedding
	}
	if o.Generation == nil {
		o.Generation = defaults.Generation
	}
	if o.RAG == nil {
		o.RAG = defaults.RAG
	}
	if o.Cache == nil {
		o.Cache = defaults.Cache
	}
	return nil
}

// Validate validates every section.
func (o *Options) Validate() error {
	var errs []error

	errs = append(errs, o.HTTP.Validate()...)
	if err := o.Log.Validate(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, o.Mongo.Validate()...)
	errs = append(errs, o.Embedding.Validate()...)
	errs = append(errs, o.Generation.Validate()...)
	errs = append(errs, o.RAG.Validate()...)
	errs = append(errs, o.Cache.Validate()...)

	// Only the selected vector store backend needs to validate.
	switch o.RAG.VectorDB {
	case "milvus":
		errs = append(errs, o.Milvus.Validate()...)
	case "qdrant":
		errs = append(errs, o.Qdrant.Validate()...)
	}

	return utilerrors.NewAggregate(errs)
}

// ServerConfig converts the options into a server config.
func (o *Options) ServerConfig() *ragserve.Config {
	return &ragserve.Config{
		HTTP:       o.HTTP,
		Log:        o.Log,
		Milvus:     o.Milvus,
		Qdrant:     o.Qdrant,
		Mongo:      o.Mongo,
		Embedding:  o.Embedding,
		Generation: o.Generation,
		RAG:        o.RAG,
		Cache:      o.Cache,
	}
}
