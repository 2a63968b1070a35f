package main

import (
	"context"

	"github.com/agenthands/amane/pkg/bucket"
	"github.com/agenthands/amane/pkg/metrics"
	"github.com/agenthands/amane/pkg/server"
	"github.com/agenthands/amane/pkg/sweep"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the data directory over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	locks := bucket.NewKeyLocks()
	if a.cfg.Locking.Disabled {
		locks = nil
	}
	store, err := bucket.Open(ctx, a.cfg,
		bucket.WithLogger(a.log),
		bucket.WithMetrics(m),
		bucket.WithLocks(locks))
	if err != nil {
		return err
	}
	defer store.Close()

	a.log.Info("amane starting",
		zap.String("dir", a.cfg.Dir),
		zap.String("accessor", store.Accessor().String()),
		zap.Bool("index", a.cfg.Index.Enabled),
		zap.Bool("locking", locks != nil))

	if a.cfg.Sweep.Enabled {
		runner := sweep.NewRunner(a.cfg.Sweep, store.Accessor(),
			sweep.WithLogger(a.log.Named("sweep")),
			sweep.WithMetrics(m),
			sweep.WithLocks(locks))
		runner.Start(ctx)
		defer runner.Stop()
	}

	srv := server.New(store, a.cfg.Server,
		server.WithLogger(a.log.Named("http")),
		server.WithMetrics(m, reg))
	return srv.Run(ctx)
}
