package main

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/tracewell-health/ecg-cli/internal/digitizer"
	"github.com/tracewell-health/ecg-cli/internal/fetcher"
	"github.com/tracewell-health/ecg-cli/internal/orchestrator"
	"github.com/tracewell-health/ecg-cli/internal/resilience"
	"github.com/tracewell-health/ecg-cli/internal/store"
	"github.com/tracewell-health/ecg-cli/internal/validate"
	"github.com/tracewell-health/ecg-cli/pkg/claude"
	"github.com/tracewell-health/ecg-cli/pkg/notion"
)

// digitizeEnv holds the store, the single-shot digitizer, the validator, and
// the optional review queue shared by the digitize/batch/watch/serve commands.
type digitizeEnv struct {
	Store     store.Store
	Digitizer *digitizer.Claude
	Validator *validate.Validator
	Reviews   *notion.ReviewQueue // nil when Notion is not configured
}

// Close releases resources held by the environment.
func (e *digitizeEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "ecg-runs.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initValidator() (*validate.Validator, error) {
	if cfg.Validate.PolarityProfile == "" {
		return validate.New(), nil
	}
	table, err := validate.LoadPolarityProfile(cfg.Validate.PolarityProfile)
	if err != nil {
		return nil, err
	}
	return validate.New(validate.WithPolarityTable(table)), nil
}

// initEnv sets up the store, the Claude digitizer, the validator, and the
// robust orchestrator. Callers should defer env.Close().
func initEnv(ctx context.Context) (*digitizeEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required (ECG_ANTHROPIC_KEY)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	validator, err := initValidator()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	client := claude.NewClient(cfg.Anthropic.Key)
	single := digitizer.NewClaude(client, cfg.Anthropic.Model,
		digitizer.WithRateLimit(cfg.Anthropic.RPS),
		digitizer.WithMaxTokens(cfg.Anthropic.MaxTokens),
		digitizer.WithRetryConfig(resilience.RetryConfig{
			MaxAttempts:    cfg.Digitize.RetryMaxAttempts,
			InitialBackoff: time.Duration(cfg.Digitize.RetryInitialBackoffMs) * time.Millisecond,
			MaxBackoff:     time.Duration(cfg.Digitize.RetryMaxBackoffMs) * time.Millisecond,
		}),
	)

	env := &digitizeEnv{Store: st, Digitizer: single, Validator: validator}
	if cfg.Notion.Token != "" && cfg.Notion.ReviewDB != "" {
		env.Reviews = notion.NewReviewQueue(notion.NewClient(cfg.Notion.Token), cfg.Notion.ReviewDB)
	}
	return env, nil
}

// newOrchestrator builds the retry loop with the config-driven policy. The
// extra observer, when non-nil, is notified after the log observer.
func (e *digitizeEnv) newOrchestrator(extra orchestrator.AttemptObserver) (*orchestrator.Orchestrator, error) {
	var obs orchestrator.AttemptObserver = orchestrator.LogObserver{}
	if extra != nil {
		obs = orchestrator.MultiObserver{obs, extra}
	}
	return orchestrator.New(e.Digitizer, e.Validator, orchestrator.Config{
		MaxAttempts:          cfg.Digitize.MaxAttempts,
		EarlyAcceptThreshold: cfg.Digitize.EarlyAcceptThreshold,
		RecoverLeads:         cfg.Digitize.RecoverLeads,
		Observer:             obs,
	})
}

// initInbox builds a scan inbox from a source string: an ftp:// URL or a
// local directory path.
func initInbox(source string) (fetcher.Inbox, error) {
	if strings.HasPrefix(source, "ftp://") {
		return fetcher.NewFTPInbox(source, fetcher.FTPOptions{
			Timeout:     time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			DownloadDir: cfg.Fetch.DownloadDir,
		})
	}
	return fetcher.NewDirInbox(source), nil
}
