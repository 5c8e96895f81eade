package cmd

import (
	"github.com/spf13/cobra"
)

// Resume continues every stored transfer that burned but has not minted.
func Resume(a *AppState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume attestation waits (and mints) of stored transfers",
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.InitAppState()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			mint, _ := cmd.Flags().GetBool(flagMint)

			s, err := a.NewServices(cmd.Context(), ServiceOptions{NeedSigner: mint})
			if err != nil {
				return err
			}
			defer s.Close()

			results, err := s.Orchestrator.Resume(cmd.Context(), mint)
			if perr := printJSON(cmd, results); perr != nil {
				return perr
			}
			return err
		},
	}
	cmd.Flags().Bool(flagMint, false, "mint transfers once attested")
	return cmd
}
