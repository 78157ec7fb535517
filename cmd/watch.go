package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tracewell-health/ecg-cli/internal/imaging"
)

var (
	watchDir    string
	watchSettle time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a directory and digitize new scans as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return eris.Wrap(err, "create watcher")
		}
		defer watcher.Close() //nolint:errcheck

		if err := watcher.Add(watchDir); err != nil {
			return eris.Wrapf(err, "watch %s", watchDir)
		}
		zap.L().Info("watching for scans",
			zap.String("dir", watchDir),
			zap.Duration("settle", watchSettle),
		)

		return runWatch(ctx, env, watcher, watchSettle)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchDir, "dir", "", "directory to watch for new scan images (required)")
	watchCmd.Flags().DurationVar(&watchSettle, "settle", 2*time.Second, "wait for writes to settle before digitizing")
	_ = watchCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(watchCmd)
}

// runWatch consumes watcher events until ctx is cancelled. Each new or
// rewritten scan is digitized once its writes have settled, so half-copied
// files are not handed to the digitizer.
func runWatch(ctx context.Context, env *digitizeEnv, watcher *fsnotify.Watcher, settle time.Duration) error {
	ready := make(chan string)

	var mu sync.Mutex
	pending := make(map[string]*time.Timer)

	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := pending[path]; ok {
			t.Reset(settle)
			return
		}
		pending[path] = time.AfterFunc(settle, func() {
			mu.Lock()
			delete(pending, path)
			mu.Unlock()
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Batch.MaxConcurrentScans)

	for {
		select {
		case <-ctx.Done():
			err := g.Wait()
			if err != nil {
				return err
			}
			return nil

		case path := <-ready:
			g.Go(func() error {
				run, err := processScan(gctx, env, scanFor(path, "watch"))
				if err != nil {
					zap.L().Error("digitization failed", zap.String("scan", path), zap.Error(err))
					return nil // keep watching
				}
				zap.L().Info("scan done",
					zap.String("run_id", run.ID),
					zap.String("status", string(run.Status)),
					zap.Float64("confidence", run.Confidence()),
				)
				return nil
			})

		case event, ok := <-watcher.Events:
			if !ok {
				return g.Wait()
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !imaging.IsSupported(event.Name) {
				continue
			}
			schedule(event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return g.Wait()
			}
			zap.L().Warn("watcher error", zap.Error(err))
		}
	}
}
