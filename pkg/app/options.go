package app

import "github.com/spf13/pflag"

// CliOptions is the interface application option structs implement to be
// wired into an App.
type CliOptions interface {
	// AddFlags adds flags to the flagset.
	AddFlags(fs *pflag.FlagSet)
	// Complete fills in defaults before validation.
	Complete() error
	// Validate validates the options.
	Validate() error
}
