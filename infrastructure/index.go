package infrastructure

import (
	"context"

	"gateman.io/infrastructure/biometric/liveness"
	messagequeue "gateman.io/infrastructure/message_queue"
	"golang.org/x/sync/errgroup"
)

type ServerOptions struct {
	Port     string `env:"PORT" envDefault:"8080"`
	Config   liveness.Config
	Lockouts LockoutReader
}

// StartServer runs the ops HTTP server and the audit queue worker until ctx is cancelled
// or either of them fails, in which case the other is stopped too.
func StartServer(ctx context.Context, opts ServerOptions) error {
	server := &ginServer{Port: opts.Port, Config: opts.Config, Lockouts: opts.Lockouts}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return messagequeue.StartQueue(ctx)
	})
	g.Go(func() error {
		return server.Start(ctx)
	})
	return g.Wait()
}
