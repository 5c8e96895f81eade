package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/cctp-bridge/ethereum"
	"github.com/strangelove-ventures/cctp-bridge/types"
)

type chainStatus struct {
	types.ChainConfig
	Verified      *bool  `json:"verified,omitempty"`
	TokenDecimals uint8  `json:"tokenDecimals,omitempty"`
	VerifyError   string `json:"verifyError,omitempty"`
}

// Chains lists the configured chains, optionally checking each token contract on chain.
func Chains(a *AppState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chains",
		Short: "List supported chains",
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.InitAppState()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.NewServices(cmd.Context(), ServiceOptions{})
			if err != nil {
				return err
			}
			defer s.Close()

			verify, _ := cmd.Flags().GetBool(flagVerify)

			var out []chainStatus
			for _, name := range s.Registry.SupportedChains() {
				c, _ := s.Registry.Lookup(name)
				status := chainStatus{ChainConfig: c}
				if verify {
					ok := false
					status.Verified = &ok
					decimals, err := verifyChain(cmd, s, c)
					status.TokenDecimals = decimals
					switch {
					case err != nil:
						status.VerifyError = err.Error()
					case decimals != c.USDCDecimals:
						status.VerifyError = fmt.Sprintf("token reports %d decimals, config has %d", decimals, c.USDCDecimals)
					default:
						ok = true
					}
				}
				out = append(out, status)
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().Bool(flagVerify, false, "read decimals() of every token contract")
	return cmd
}

func verifyChain(cmd *cobra.Command, s *Services, c types.ChainConfig) (uint8, error) {
	backend, err := s.Clients.Backend(cmd.Context(), c)
	if err != nil {
		return 0, err
	}
	return ethereum.Decimals(cmd.Context(), backend, c.Token())
}
