package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/cctp-bridge/types"
)

// Mint completes a transfer on the destination chain.
func Mint(a *AppState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint an attested transfer on the destination chain",
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.InitAppState()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			flags := cmd.Flags()
			id, _ := flags.GetString(flagTransfer)
			chain, _ := flags.GetString(flagChain)
			message, _ := flags.GetString(flagMessage)
			attestation, _ := flags.GetString(flagAttestation)

			s, err := a.NewServices(ctx, ServiceOptions{NeedSigner: true})
			if err != nil {
				return err
			}
			defer s.Close()

			if id != "" {
				rec, err := s.loadTransfer(ctx, id)
				if err != nil {
					return err
				}
				res, err := s.Orchestrator.ResumeOne(ctx, rec, true)
				if perr := printJSON(cmd, res); perr != nil {
					return perr
				}
				return err
			}

			if chain == "" || message == "" || attestation == "" {
				return fmt.Errorf("either --%s or --%s, --%s and --%s are required", flagTransfer, flagChain, flagMessage, flagAttestation)
			}
			dest, err := s.Registry.Lookup(chain)
			if err != nil {
				return err
			}
			msg, err := types.DecodeHex(message)
			if err != nil {
				return fmt.Errorf("invalid message: %w", err)
			}
			att, err := types.DecodeHex(attestation)
			if err != nil {
				return fmt.Errorf("invalid attestation: %w", err)
			}

			received, err := s.Minter.Received(ctx, dest, msg)
			if err != nil {
				return err
			}
			if received {
				a.Logger.Info(fmt.Sprintf("Message was already received on %s", dest.Name))
				return nil
			}

			res, err := s.Minter.Mint(ctx, dest, msg, att)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	addTransferFlag(cmd)
	cmd.Flags().String(flagChain, "", "destination chain of a raw mint")
	cmd.Flags().String(flagMessage, "", "attested message hex of a raw mint")
	cmd.Flags().String(flagAttestation, "", "attestation hex of a raw mint")
	return cmd
}
