package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerOnceFlag bool

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run clone workers and maintenance tasks without the HTTP API",
	RunE:  runWorker,
}

func init() {
	workerCmd.Flags().BoolVar(&workerOnceFlag, "once", false, "Claim and run at most one job, then exit")
}

func runWorker(cmd *cobra.Command, args []string) error {
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

	worker, err := a.newWorker(ctx)
	if err != nil {
		return err
	}

	if workerOnceFlag {
		processed, err := worker.ProcessNext(ctx)
		if err != nil {
			return err
		}
		if processed {
			fmt.Fprintln(cmd.OutOrStdout(), "processed one job")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "no claimable job")
		}
		return nil
	}

	maintenance, err := a.newMaintenanceRunner()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error { return maintenance.Start(gctx) })
	return g.Wait()
}
