// Package mongoopts provides options for MongoDB client configuration.
package mongoopts

import (
	"fmt"
	"time"

	"github.com/kart-io/ragserve/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// Options contains MongoDB client configuration.
type Options struct {
	// URL is the MongoDB connection string.
	URL string `json:"url" mapstructure:"url"`

	// Database is the database holding document and chunk metadata.
	Database string `json:"database" mapstructure:"database"`

	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`

	// MaxPoolSize is the maximum number of pooled connections.
	MaxPoolSize uint64 `json:"max-pool-size" mapstructure:"max-pool-size"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		URL:            "mongodb://localhost:27017",
		Database:       "ragserve",
		ConnectTimeout: 10 * time.Second,
		MaxPoolSize:    100,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.URL, options.Join(prefixes...)+"mongo.url", o.URL, "MongoDB connection string.")
	fs.StringVar(&o.Database, options.Join(prefixes...)+"mongo.database", o.Database, "MongoDB database name.")
	fs.DurationVar(&o.ConnectTimeout, options.Join(prefixes...)+"mongo.connect-timeout", o.ConnectTimeout, "Connection establishment timeout.")
	fs.Uint64Var(&o.MaxPoolSize, options.Join(prefixes...)+"mongo.max-pool-size", o.MaxPoolSize, "Maximum number of pooled connections.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.URL == "" {
		errs = append(errs, fmt.Errorf("mongo url is required"))
	}
	if o.Database == "" {
		errs = append(errs, fmt.Errorf("mongo database is required"))
	}
	return errs
}
