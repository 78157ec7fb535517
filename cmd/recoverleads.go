package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tracewell-health/ecg-cli/internal/repair"
)

var recoverOut string

var recoverLeadsCmd = &cobra.Command{
	Use:   "recover-leads <signal.json>",
	Short: "Reconstruct derivable missing limb leads from a partial signal",
	Long:  "Backfills missing limb leads using Einthoven and Goldberger identities. Precordial leads are independent and cannot be reconstructed.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sig, err := readSignal(args[0])
		if err != nil {
			return err
		}

		recoverable := repair.RecoverableLeads(sig)
		recovered := repair.RecoverMissingLeads(sig)

		zap.L().Info("lead recovery complete",
			zap.Int("leads_before", sig.LeadCount()),
			zap.Int("leads_after", recovered.LeadCount()),
			zap.Any("recovered", recoverable),
		)

		out := os.Stdout
		if recoverOut != "" {
			f, err := os.Create(recoverOut)
			if err != nil {
				return err
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(recovered)
	},
}

func init() {
	recoverLeadsCmd.Flags().StringVar(&recoverOut, "out", "", "write the completed signal JSON to this file instead of stdout")
	rootCmd.AddCommand(recoverLeadsCmd)
}
