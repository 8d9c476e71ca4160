// Package qdrantopts provides options for the Qdrant REST client.
package qdrantopts

import (
	"fmt"
	"time"

	"github.com/kart-io/ragserve/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Qdrant client configuration.
type Options struct {
	// URL is the Qdrant REST endpoint, e.g. http://localhost:6333.
	URL string `json:"url" mapstructure:"url"`

	// APIKey is the optional API key for Qdrant Cloud.
	APIKey string `json:"api-key" mapstructure:"api-key"`

	// Distance is the similarity metric for new collections (Cosine|Dot|Euclid).
	Distance string `json:"distance" mapstructure:"distance"`

	// Timeout for HTTP requests.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		URL:      "http://localhost:6333",
		Distance: "Cosine",
		Timeout:  15 * time.Second,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.URL, options.Join(prefixes...)+"qdrant.url", o.URL, "Qdrant REST endpoint URL.")
	fs.StringVar(&o.APIKey, options.Join(prefixes...)+"qdrant.api-key", o.APIKey, "Qdrant API key.")
	fs.StringVar(&o.Distance, options.Join(prefixes...)+"qdrant.distance", o.Distance, "Similarity metric for new collections (Cosine|Dot|Euclid).")
	fs.DurationVar(&o.Timeout, options.Join(prefixes...)+"qdrant.timeout", o.Timeout, "HTTP request timeout.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.URL == "" {
		errs = append(errs, fmt.Errorf("qdrant url is required"))
	}
	switch o.Distance {
	case "Cosine", "Dot", "Euclid":
	default:
		errs = append(errs, fmt.Errorf("qdrant distance must be one of Cosine, Dot, Euclid"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("qdrant timeout must be positive"))
	}
	return errs
}
