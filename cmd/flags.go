package cmd

import (
	"github.com/spf13/cobra"
)

const (
	flagConfigPath     = "config"
	flagLogLevel       = "log-level"
	flagMetricsAddress = "metrics-address"
	flagMetricsPort    = "metrics-port"

	flagFrom        = "from"
	flagTo          = "to"
	flagAmount      = "amount"
	flagRecipient   = "recipient"
	flagBalance     = "balance"
	flagMint        = "mint"
	flagNoWait      = "no-wait"
	flagTransfer    = "transfer"
	flagChain       = "chain"
	flagMessage     = "message"
	flagAttestation = "attestation"
	flagAttempts    = "attempts"
	flagVerify      = "verify"
)

// AddAppPersistentFlags registers the flags every command shares.
func AddAppPersistentFlags(cmd *cobra.Command, a *AppState) *cobra.Command {
	cmd.PersistentFlags().StringVar(&a.ConfigPath, flagConfigPath, "", "file path of config file (built-in mainnet chains when empty)")
	cmd.PersistentFlags().StringVar(&a.LogLevel, flagLogLevel, "info", "log level (debug, info, error)")
	return cmd
}

func addMetricsFlags(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().String(flagMetricsAddress, "", "address to serve metrics on (overrides config)")
	cmd.Flags().Int16(flagMetricsPort, 0, "port to serve metrics on (overrides config)")
	return cmd
}

func addTransferFlag(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().String(flagTransfer, "", "id of a stored transfer")
	return cmd
}
