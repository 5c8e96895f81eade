package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/cctp-bridge/cmd"
)

func main() {
	a := cmd.NewAppState()

	rootCmd := &cobra.Command{
		Use:          "cctp-bridge",
		Short:        "Bridge USDC between EVM chains with CCTP V2 Fast Transfers",
		SilenceUsage: true,
	}
	cmd.AddAppPersistentFlags(rootCmd, a)

	rootCmd.AddCommand(
		cmd.Bridge(a),
		cmd.Attest(a),
		cmd.Mint(a),
		cmd.Resume(a),
		cmd.Reattest(a),
		cmd.Fee(a),
		cmd.Chains(a),
		cmd.Serve(a),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
