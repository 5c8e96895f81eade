package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/cctp-bridge/ethereum"
	"github.com/strangelove-ventures/cctp-bridge/types"
)

// Bridge burns on the source chain and waits for the attestation, optionally minting.
func Bridge(a *AppState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Approve and burn USDC on the source chain, then wait for the attestation",
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.InitAppState()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			flags := cmd.Flags()
			from, _ := flags.GetString(flagFrom)
			to, _ := flags.GetString(flagTo)
			amount, _ := flags.GetString(flagAmount)
			recipientAddr, _ := flags.GetString(flagRecipient)
			balance, _ := flags.GetString(flagBalance)
			mint, _ := flags.GetBool(flagMint)
			noWait, _ := flags.GetBool(flagNoWait)

			s, err := a.NewServices(ctx, ServiceOptions{NeedSigner: true})
			if err != nil {
				return err
			}
			defer s.Close()

			sender := s.Signer.Address()
			if recipientAddr == "" {
				recipientAddr = sender.Hex()
			}
			if balance == "" {
				src, err := s.Registry.Lookup(from)
				if err != nil {
					return err
				}
				backend, err := s.Clients.Backend(ctx, src)
				if err != nil {
					return err
				}
				bal, err := ethereum.BalanceOf(ctx, backend, src.Token(), sender)
				if err != nil {
					return fmt.Errorf("reading balance on %s: %w", src.Name, err)
				}
				a.Logger.Info(fmt.Sprintf("Balance of %s on %s: %s", sender.Hex(), src.Name, types.FormatUnits(bal, src.USDCDecimals)))
				balance = bal.String()
			}

			if mint {
				s.Orchestrator.WithAutoMint(true)
			}
			if noWait && a.Config.Store.Backend == "memory" {
				a.Logger.Info("Transfer store is in memory, use a persistent store to resume this transfer later")
			}

			tr, err := s.Orchestrator.ApproveAndBurn(ctx, types.BridgeRequest{
				SourceChain:           from,
				DestinationChain:      to,
				Amount:                amount,
				RecipientAddress:      recipientAddr,
				SenderAddress:         sender.Hex(),
				CallerSuppliedBalance: balance,
			})
			if perr := printJSON(cmd, tr.Result()); perr != nil {
				return perr
			}
			if err != nil {
				return err
			}
			if res := tr.Result(); !res.Success {
				return res.Error
			}
			if noWait {
				return nil
			}

			select {
			case <-tr.Done():
			case <-ctx.Done():
				return fmt.Errorf("interrupted, resume transfer %s later: %w", tr.Record().ID, ctx.Err())
			}

			att, err := tr.Attestation()
			if perr := printJSON(cmd, att); perr != nil {
				return perr
			}
			if err != nil {
				return err
			}
			if att != nil && !att.Success {
				return att.Error
			}
			if mr := tr.MintResult(); mr != nil {
				if perr := printJSON(cmd, mr); perr != nil {
					return perr
				}
				if !mr.Success {
					return mr.Error
				}
			}
			return nil
		},
	}

	cmd.Flags().String(flagFrom, "", "source chain")
	cmd.Flags().String(flagTo, "", "destination chain")
	cmd.Flags().String(flagAmount, "", "amount in smallest units")
	cmd.Flags().String(flagRecipient, "", "recipient on the destination chain (defaults to the signer)")
	cmd.Flags().String(flagBalance, "", "caller supplied balance in smallest units (read on chain when empty)")
	cmd.Flags().Bool(flagMint, false, "mint on the destination chain once attested")
	cmd.Flags().Bool(flagNoWait, false, "return after the burn without waiting for the attestation")
	_ = cmd.MarkFlagRequired(flagFrom)
	_ = cmd.MarkFlagRequired(flagTo)
	_ = cmd.MarkFlagRequired(flagAmount)
	return cmd
}
