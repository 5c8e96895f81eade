package testutil

import (
	"os"
	"testing"

	"github.com/joho/godotenv"

	"github.com/strangelove-ventures/cctp-bridge/cmd"
	"github.com/strangelove-ventures/cctp-bridge/types"
)

// GetEnvOrDefault returns the environment variable value or a default if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func init() {
	// Try to load .env file if it exists
	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("../.env")
	}
}

// ConfigSetup returns an AppState with the built-in chains, an in-memory store
// and Iris pointed at irisURL.
func ConfigSetup(t *testing.T, irisURL string) *cmd.AppState {
	t.Helper()

	cfg := types.DefaultConfig()
	cfg.Chains = types.DefaultChains()
	cfg.Circle.AttestationBaseURL = irisURL
	cfg.Circle.FeeBaseURL = irisURL
	cfg.Circle.FetchRetries = 3
	cfg.Circle.FetchRetryInterval = 0
	cfg.Store.Backend = "memory"
	cfg.SignerPrivateKey = GetEnvOrDefault("CCTP_TEST_SIGNER_KEY", "1111111111111111111111111111111111111111111111111111111111111111")

	a := cmd.NewAppState()
	a.LogLevel = "error"
	a.InitLogger()
	a.Config = cfg

	return a
}
