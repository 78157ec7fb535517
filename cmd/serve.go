package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tracewell-health/ecg-cli/internal/model"
	"github.com/tracewell-health/ecg-cli/internal/monitoring"
	"github.com/tracewell-health/ecg-cli/internal/scorer"
	"github.com/tracewell-health/ecg-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the digitization HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Background failure-rate monitoring.
		collector := monitoring.NewCollector(env.Store)
		alerter := monitoring.NewAlerter(cfg.Monitoring)
		go monitoring.NewChecker(collector, alerter, cfg.Monitoring).Run(ctx)

		mux := newServeMux(ctx, env)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newServeMux builds the API routes. Digitization requests run asynchronously
// against the server's lifetime context; validation is synchronous.
func newServeMux(ctx context.Context, env *digitizeEnv) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /digitize", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ImagePath string `json:"image_path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.ImagePath == "" {
			http.Error(w, `{"error":"image_path is required"}`, http.StatusBadRequest)
			return
		}

		// Run digitization asynchronously
		go func() {
			run, err := processScan(ctx, env, scanFor(req.ImagePath, "api"))
			if err != nil {
				zap.L().Error("api digitization failed",
					zap.String("scan", req.ImagePath),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("api digitization complete",
				zap.String("run_id", run.ID),
				zap.String("status", string(run.Status)),
				zap.Float64("confidence", run.Confidence()),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"scan":   req.ImagePath,
		})
	})

	mux.HandleFunc("POST /validate", func(w http.ResponseWriter, r *http.Request) {
		var sig model.ECGSignal
		if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
			http.Error(w, `{"error":"invalid signal body"}`, http.StatusBadRequest)
			return
		}

		result := env.Validator.Validate(&sig)
		breakdown := scorer.Score(&sig, result)
		writeJSON(w, http.StatusOK, map[string]any{
			"validation": result,
			"score":      breakdown,
		})
	})

	mux.HandleFunc("GET /runs", func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		filter := store.RunFilter{
			Status: model.RunStatus(r.URL.Query().Get("status")),
			Source: r.URL.Query().Get("source"),
			Limit:  limit,
		}

		runs, err := env.Store.ListRuns(r.Context(), filter)
		if err != nil {
			zap.L().Error("list runs failed", zap.Error(err))
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	mux.HandleFunc("GET /runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		run, err := env.Store.GetRun(r.Context(), r.PathValue("id"))
		if err != nil {
			http.Error(w, `{"error":"run not found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		snap, err := monitoring.NewCollector(env.Store).Collect(r.Context(), cfg.Monitoring.LookbackWindowHours)
		if err != nil {
			zap.L().Error("collect metrics failed", zap.Error(err))
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
