package main

import (
	"context"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tracewell-health/ecg-cli/internal/fetcher"
	"github.com/tracewell-health/ecg-cli/internal/model"
	"github.com/tracewell-health/ecg-cli/internal/report"
)

var (
	batchFrom   string
	batchLimit  int
	batchReport string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Digitize every scan in a directory or FTP drop",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		inbox, err := initInbox(batchFrom)
		if err != nil {
			return err
		}

		entries, err := inbox.List(ctx)
		if err != nil {
			return eris.Wrap(err, "list inbox")
		}

		runs, err := processInbox(ctx, env, inbox, entries, batchLimit, cfg.Batch.MaxConcurrentScans)
		if err != nil {
			return err
		}

		if batchReport != "" {
			if err := writeReport(runs, batchReport); err != nil {
				return err
			}
			zap.L().Info("batch report written", zap.String("path", batchReport))
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFrom, "from", "", "scan source: local directory or ftp:// URL (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of scans to process (0 = all)")
	batchCmd.Flags().StringVar(&batchReport, "report", "", "write a summary report (.xlsx or .csv)")
	_ = batchCmd.MarkFlagRequired("from")
	rootCmd.AddCommand(batchCmd)
}

// processInbox fetches and digitizes entries concurrently. Individual scan
// failures do not abort the batch.
func processInbox(ctx context.Context, env *digitizeEnv, inbox fetcher.Inbox, entries []fetcher.Entry, limit, concurrency int) ([]*model.Run, error) {
	if len(entries) == 0 {
		zap.L().Info("no scans found in inbox")
		return nil, nil
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("scans", len(entries)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var mu sync.Mutex
	var runs []*model.Run
	var succeeded, failed atomic.Int64

	for _, entry := range entries {
		g.Go(func() error {
			log := zap.L().With(zap.String("scan", entry.Name))

			local, err := inbox.Fetch(gctx, entry.Name)
			if err != nil {
				failed.Add(1)
				log.Error("fetch failed", zap.Error(err))
				return nil
			}

			run, err := processScan(gctx, env, scanFor(local, sourceLabel()))
			if err != nil {
				failed.Add(1)
				log.Error("digitization failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			mu.Lock()
			runs = append(runs, run)
			mu.Unlock()

			if run.Status == model.RunStatusComplete {
				succeeded.Add(1)
			} else {
				failed.Add(1)
			}
			log.Info("scan done",
				zap.String("run_id", run.ID),
				zap.String("status", string(run.Status)),
				zap.Float64("confidence", run.Confidence()),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return runs, eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return runs, nil
}

func sourceLabel() string {
	if strings.HasPrefix(batchFrom, "ftp://") {
		return "ftp"
	}
	return "local"
}

func writeReport(runs []*model.Run, path string) error {
	switch {
	case strings.HasSuffix(path, ".xlsx"):
		return report.WriteXLSX(runs, path)
	case strings.HasSuffix(path, ".csv"):
		return report.WriteCSV(runs, path)
	default:
		return eris.Errorf("unsupported report format: %s (want .xlsx or .csv)", path)
	}
}
