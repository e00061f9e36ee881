package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	ctrl "sigs.k8s.io/controller-runtime"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the management API, the live event stream and health checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(ctrl.SetupSignalHandler(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg := opts.cfg
	log := ctrl.Log.WithName("console")

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		setupLog.Error(err, "unable to set up console")
		return err
	}
	defer a.close()

	setupLog.Info("starting console",
		"listenAddress", cfg.ListenAddress,
		"grpcAddress", cfg.GRPCAddress,
		"namespace", cfg.Namespace,
		"natsMirror", cfg.NATS.URL != "",
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.monitor.Run(gctx) })
	g.Go(func() error { return a.hub.Run(gctx) })
	if a.grpc != nil {
		g.Go(func() error { return a.grpc.Serve(gctx, cfg.GRPCAddress) })
	}
	g.Go(func() error { return a.server.Run(gctx, cfg.ListenAddress, cfg.ShutdownGrace+5*time.Second) })
	g.Go(func() error {
		<-gctx.Done()
		// Subscribers get the shutdown notice before their connections close.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace+time.Second)
		defer cancel()
		return a.hub.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		setupLog.Error(err, "console stopped with error")
		return err
	}
	setupLog.Info("console stopped")
	return nil
}
