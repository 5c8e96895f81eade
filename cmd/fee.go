package cmd

import (
	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/cctp-bridge/circle"
	"github.com/strangelove-ventures/cctp-bridge/types"
)

type feeOutput struct {
	Source      string         `json:"source"`
	Destination string         `json:"destination"`
	Amount      string         `json:"amount"`
	Quote       types.FeeQuote `json:"quote"`
	Required    string         `json:"required"`
}

// Fee quotes the fast transfer fee of a route.
func Fee(a *AppState) *cobra.Command {
	return &cobra.Command{
		Use:   "fee [source-chain] [destination-chain] [amount]",
		Short: "Quote the Fast Transfer fee for an amount in smallest units",
		Args:  cobra.ExactArgs(3),
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.InitAppState()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := types.ParseAmount(args[2])
			if err != nil {
				return err
			}
			reg, err := a.Config.Registry()
			if err != nil {
				return err
			}
			fees, err := circle.NewFeeEstimator(a.Config.Circle, reg, a.Logger, nil)
			if err != nil {
				return err
			}

			quote := fees.Estimate(cmd.Context(), args[0], args[1], amount)
			return printJSON(cmd, feeOutput{
				Source:      args[0],
				Destination: args[1],
				Amount:      amount.String(),
				Quote:       quote,
				Required:    amount.Add(quote.FeeAmount).String(),
			})
		},
	}
}
