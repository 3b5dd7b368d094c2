package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/BartekS5/ida/internal/etl"
	"github.com/BartekS5/ida/pkg/logger"
)

type runOptions struct {
	sessionID string
	companyID string
	batchSize int
	dryRun    bool
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import legacy records into a session",
	}

	var req etl.BatchRequest
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Run one import batch and print its result",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.engine.ImportBatch(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	batchCmd.Flags().StringVar(&req.SessionID, "session", "", "Session id (required)")
	batchCmd.Flags().StringVar(&req.CompanyID, "company", "", "Target company id (required)")
	batchCmd.Flags().IntVar(&req.Skip, "skip", 0, "Records to skip per entity type")
	batchCmd.Flags().IntVar(&req.Limit, "limit", 100, "Records to read per entity type")
	batchCmd.Flags().StringSliceVar(&req.SourceIDs, "ids", nil, "Import exactly these legacy ids instead of a page")
	_ = batchCmd.MarkFlagRequired("session")
	_ = batchCmd.MarkFlagRequired("company")

	var opts runOptions
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run batches until the session completes, resuming from the last checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			if opts.batchSize == 0 {
				opts.batchSize = a.cfg.BatchSize
			}
			if a.cfg.MetricsAddr != "" {
				stop := serveMetrics(a.cfg.MetricsAddr)
				defer stop()
			}

			runner := etl.NewRunner(a.engine, opts.batchSize, a.cfg.CheckpointDir, opts.dryRun)
			summary, err := runner.Run(cmd.Context(), opts.sessionID, opts.companyID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"batches":   summary.Batches,
				"imported":  summary.Delta.Imported,
				"skipped":   summary.Delta.Skipped,
				"errors":    summary.Delta.ErrorCount(),
				"status":    summary.Status,
				"remaining": summary.Remaining,
				"dryRun":    opts.dryRun,
			})
		},
	}
	runCmd.Flags().StringVar(&opts.sessionID, "session", "", "Session id (required)")
	runCmd.Flags().StringVar(&opts.companyID, "company", "", "Target company id (required)")
	runCmd.Flags().IntVarP(&opts.batchSize, "batch-size", "b", 0, "Batch size (default BATCH_SIZE)")
	runCmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Only report what is left to import")
	_ = runCmd.MarkFlagRequired("session")
	_ = runCmd.MarkFlagRequired("company")

	cmd.AddCommand(batchCmd, runCmd)
	return cmd
}

// serveMetrics exposes the Prometheus registry on addr until the returned
// func is called.
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Infof("Serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Metrics server: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
