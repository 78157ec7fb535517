package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	digitizeImage       string
	digitizeOut         string
	digitizeAttempts    int
	digitizeEarlyAccept float64
	digitizeRecover     bool
)

var digitizeCmd = &cobra.Command{
	Use:   "digitize",
	Short: "Digitize a single scanned ECG image",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Flags beat config for one-off runs.
		if cmd.Flags().Changed("attempts") {
			cfg.Digitize.MaxAttempts = digitizeAttempts
		}
		if cmd.Flags().Changed("early-accept") {
			cfg.Digitize.EarlyAcceptThreshold = digitizeEarlyAccept
		}
		if cmd.Flags().Changed("recover") {
			cfg.Digitize.RecoverLeads = digitizeRecover
		}

		run, err := processScan(ctx, env, scanFor(digitizeImage, "local"))
		if err != nil {
			return err
		}

		zap.L().Info("digitization finished",
			zap.String("run_id", run.ID),
			zap.String("status", string(run.Status)),
			zap.Int("attempts", run.Result.AttemptsMade),
			zap.Float64("confidence", run.Confidence()),
		)

		out := os.Stdout
		if digitizeOut != "" {
			f, err := os.Create(digitizeOut)
			if err != nil {
				return err
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(run.Result)
	},
}

func init() {
	digitizeCmd.Flags().StringVar(&digitizeImage, "image", "", "path to the scanned ECG image (required)")
	digitizeCmd.Flags().StringVar(&digitizeOut, "out", "", "write the result JSON to this file instead of stdout")
	digitizeCmd.Flags().IntVar(&digitizeAttempts, "attempts", 0, "max digitization attempts (default from config)")
	digitizeCmd.Flags().Float64Var(&digitizeEarlyAccept, "early-accept", 0, "early-accept confidence threshold (default from config)")
	digitizeCmd.Flags().BoolVar(&digitizeRecover, "recover", false, "backfill derivable missing leads before scoring")
	_ = digitizeCmd.MarkFlagRequired("image")
	rootCmd.AddCommand(digitizeCmd)
}
