// Package app builds the ragserve command.
package app

import (
	"context"

	"github.com/kart-io/ragserve/cmd/ragserve/app/options"
	"github.com/kart-io/ragserve/internal/ragserve"
	"github.com/kart-io/ragserve/pkg/app"
)

const (
	appName        = "ragserve"
	appDescription = `ragserve is a retrieval augmented generation service.

It manages document uploads, chunks and embeds their content into
per-document vector collections, and answers questions grounded in
the retrieved context.`
)

// NewApp creates the ragserve application.
func NewApp() *app.App {
	opts := options.NewOptions()

	return app.NewApp(
		app.WithName(appName),
		app.WithShortDescription("Retrieval augmented generation service"),
		app.WithDescription(appDescription),
		app.WithOptions(opts),
		app.WithRunFunc(func() error {
			return run(opts)
		}),
	)
}

func run(opts *options.Options) error {
	server, err := ragserve.NewServer(context.Background(), opts.ServerConfig())
	if err != nil {
		return err
	}
	return server.Run()
}
