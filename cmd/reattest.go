package cmd

import (
	"context"
	"fmt"
	"strconv"

	"cosmossdk.io/log"
	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/cctp-bridge/circle"
	"github.com/strangelove-ventures/cctp-bridge/ethereum"
	"github.com/strangelove-ventures/cctp-bridge/types"
)

// expiryGuard re-attests fast transfer attestations that expire on the
// destination chain before the mint can land.
type expiryGuard struct {
	logger     log.Logger
	source     ethereum.TxBackendSource
	reattester *circle.Reattester
	buffer     uint64
	attempts   int
}

func newExpiryGuard(logger log.Logger, source ethereum.TxBackendSource, r *circle.Reattester, cfg types.CircleSettings) *expiryGuard {
	return &expiryGuard{
		logger:     logger.With("component", "expiry-guard"),
		source:     source,
		reattester: r,
		buffer:     uint64(cfg.ExpirationBufferBlocks),
		attempts:   cfg.Attempts(),
	}
}

func (g *expiryGuard) Refresh(ctx context.Context, rec *types.TransferRecord, dest types.ChainConfig, att *types.Attestation) (*types.Attestation, error) {
	// not a fast transfer or no expiration set
	if att.Expiration == 0 {
		return att, nil
	}

	backend, err := g.source.TxBackend(ctx, dest.ChainID)
	if err != nil {
		return nil, types.Networkf(err, "connecting to %s", dest.Name)
	}
	head, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, types.Networkf(err, "reading latest block on %s", dest.Name)
	}
	current := head.Number.Uint64()
	if !circle.Expiring(att, current, g.buffer) {
		return att, nil
	}

	g.logger.Info(fmt.Sprintf(
		"Fast Transfer attestation of %s expiring soon (current: %d, expires: %d), requesting re-attestation",
		rec.ID, current, att.Expiration))

	fresh, err := g.reattester.Reattest(ctx, rec.TransactionHash, rec.SourceDomain, g.attempts)
	if err != nil {
		return nil, err
	}
	g.logger.Info(fmt.Sprintf("Re-attestation of %s successful, expires at %d", rec.ID, fresh.Expiration))
	return fresh, nil
}

// Reattest requests a fresh attestation for a burn whose fast attestation expired.
func Reattest(a *AppState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reattest [burn-tx-hash] [source-domain]",
		Short: "Request a new attestation for an expired Fast Transfer",
		Args:  cobra.ExactArgs(2),
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.InitAppState()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid source domain %q: %w", args[1], err)
			}

			s, err := a.NewServices(cmd.Context(), ServiceOptions{})
			if err != nil {
				return err
			}
			defer s.Close()

			attempts, _ := cmd.Flags().GetInt(flagAttempts)
			att, err := s.Reattester.Reattest(cmd.Context(), args[0], types.Domain(domain), attempts)
			if err != nil {
				return err
			}
			return printJSON(cmd, att)
		},
	}
	cmd.Flags().Int(flagAttempts, 60, "polls of the messages API after the re-attestation request")
	return cmd
}
