package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/tracewell-health/ecg-cli/internal/model"
	"github.com/tracewell-health/ecg-cli/internal/scorer"
)

var validateScore bool

var validateCmd = &cobra.Command{
	Use:   "validate <signal.json>",
	Short: "Validate an extracted ECG signal against cross-lead physiology",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sig, err := readSignal(args[0])
		if err != nil {
			return err
		}

		validator, err := initValidator()
		if err != nil {
			return err
		}

		result := validator.Validate(sig)

		out := struct {
			*model.ValidationResult
			Breakdown *model.ScoreBreakdown `json:"score,omitempty"`
		}{ValidationResult: result}
		if validateScore {
			b := scorer.Score(sig, result)
			out.Breakdown = &b
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateScore, "score", false, "include the attempt score breakdown")
	rootCmd.AddCommand(validateCmd)
}

// readSignal loads an ECG signal JSON file.
func readSignal(path string) (*model.ECGSignal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read signal %s", path)
	}
	var sig model.ECGSignal
	if err := json.Unmarshal(data, &sig); err != nil {
		return nil, eris.Wrapf(err, "parse signal %s", path)
	}
	return &sig, nil
}
