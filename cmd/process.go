package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tracewell-health/ecg-cli/internal/imaging"
	"github.com/tracewell-health/ecg-cli/internal/model"
	"github.com/tracewell-health/ecg-cli/internal/orchestrator"
)

// scanFor builds the scan record for a local image file.
func scanFor(path, source string) model.Scan {
	scan := model.Scan{Path: path, Source: source}
	if info, err := os.Stat(path); err == nil {
		scan.SizeBytes = info.Size()
	}
	switch filepath.Ext(path) {
	case ".png":
		scan.MediaType = "image/png"
	case ".jpg", ".jpeg":
		scan.MediaType = "image/jpeg"
	case ".gif":
		scan.MediaType = "image/gif"
	case ".tif", ".tiff":
		scan.MediaType = "image/tiff"
	case ".bmp":
		scan.MediaType = "image/bmp"
	}
	return scan
}

// processScan digitizes one scan end to end: create the run record, drive
// the retry loop, persist every attempt and the final result, and queue the
// run for manual review when warranted.
func processScan(ctx context.Context, env *digitizeEnv, scan model.Scan) (*model.Run, error) {
	if !imaging.IsSupported(scan.Path) {
		return nil, eris.Errorf("unsupported image type: %s", scan.Path)
	}

	run, err := env.Store.CreateRun(ctx, scan)
	if err != nil {
		return nil, eris.Wrap(err, "create run")
	}
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("scan", scan.Path))

	if err := env.Store.UpdateRunStatus(ctx, run.ID, model.RunStatusDigitizing); err != nil {
		return nil, eris.Wrap(err, "update run status")
	}

	orch, err := env.newOrchestrator(orchestrator.ObserverFunc(func(_ int, rec *model.AttemptRecord) {
		if err := env.Store.RecordAttempt(ctx, run.ID, rec); err != nil {
			log.Warn("failed to record attempt", zap.Error(err))
		}
	}))
	if err != nil {
		return nil, err
	}

	result, err := orch.Digitize(ctx, scan.Path)
	if err != nil {
		if sErr := env.Store.UpdateRunStatus(context.WithoutCancel(ctx), run.ID, model.RunStatusFailed); sErr != nil {
			log.Warn("failed to mark run failed", zap.Error(sErr))
		}
		return nil, eris.Wrap(err, "digitize")
	}

	if err := env.Store.UpdateRunResult(ctx, run.ID, result); err != nil {
		return nil, eris.Wrap(err, "update run result")
	}

	run.Result = result
	if result.Success {
		run.Status = model.RunStatusComplete
	} else {
		run.Status = model.RunStatusFailed
	}

	maybeQueueReview(ctx, env, run, log)
	return run, nil
}

// maybeQueueReview files failed or low-confidence runs into the Notion review
// queue. Queueing failures never fails the run.
func maybeQueueReview(ctx context.Context, env *digitizeEnv, run *model.Run, log *zap.Logger) {
	if env.Reviews == nil || run.Result == nil {
		return
	}
	if run.Result.Success && run.Confidence() >= cfg.Notion.ReviewBelow {
		return
	}

	pageID, err := env.Reviews.QueueRun(ctx, run)
	if err != nil {
		log.Warn("failed to queue run for review", zap.Error(err))
		return
	}
	log.Info("run queued for manual review",
		zap.Float64("confidence", run.Confidence()),
		zap.String("notion_page", pageID),
	)
}
