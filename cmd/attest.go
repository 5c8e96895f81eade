package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/cctp-bridge/types"
)

// Attest waits for the attestation of a burn, either of a stored transfer or of a raw burn tx.
func Attest(a *AppState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attest [burn-tx-hash] [source-domain]",
		Short: "Wait for the attestation of a burn",
		Args:  cobra.RangeArgs(0, 2),
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.InitAppState()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, _ := cmd.Flags().GetString(flagTransfer)
			if id == "" && len(args) != 2 {
				return fmt.Errorf("either --%s or [burn-tx-hash] [source-domain] is required", flagTransfer)
			}

			s, err := a.NewServices(ctx, ServiceOptions{})
			if err != nil {
				return err
			}
			defer s.Close()

			if id != "" {
				rec, err := s.loadTransfer(ctx, id)
				if err != nil {
					return err
				}
				res, err := s.Orchestrator.WaitForAttestation(ctx, rec)
				if perr := printJSON(cmd, res); perr != nil {
					return perr
				}
				return err
			}

			domain, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid source domain %q: %w", args[1], err)
			}
			attempts, _ := cmd.Flags().GetInt(flagAttempts)
			att, err := s.Poller.WaitForAttestation(ctx, args[0], types.Domain(domain), attempts, retryInterval(a.Config.Circle))
			if err != nil {
				return err
			}
			return printJSON(cmd, att)
		},
	}
	addTransferFlag(cmd)
	cmd.Flags().Int(flagAttempts, 60, "maximum polls of the messages API")
	return cmd
}
