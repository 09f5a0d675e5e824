package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gotrs-io/eventclone/internal/api"
	"github.com/gotrs-io/eventclone/internal/runner"
	"github.com/gotrs-io/eventclone/internal/services/cloneworker"
)

var serveNoWorkerFlag bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, clone workers and maintenance tasks",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoWorkerFlag, "no-worker", false, "Serve the API only; jobs are executed by separate worker processes")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.migrateIfEnabled(ctx); err != nil {
		return err
	}

	if a.cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	opts := []api.RouterOption{api.WithHealthCheck("database", a.db.PingContext)}
	if a.redis != nil {
		opts = append(opts, api.WithHealthCheck("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		}))
	}
	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	opts = append(opts, api.WithMetricsPath(metricsPath))
	router := api.NewRouter(nil, a.clones, opts...)
	router.SetupRoutes()

	srv := &http.Server{
		Addr:         a.cfg.Server.GetServerAddr(),
		Handler:      router.GetEngine(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	var (
		worker      *cloneworker.Service
		maintenance *runner.Runner
	)
	if !serveNoWorkerFlag {
		if worker, err = a.newWorker(ctx); err != nil {
			return err
		}
		if maintenance, err = a.newMaintenanceRunner(); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Starting eventclone API on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if worker != nil {
		g.Go(func() error { return worker.Run(gctx) })
		g.Go(func() error { return maintenance.Start(gctx) })
	}

	return g.Wait()
}
