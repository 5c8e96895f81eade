package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testConfig = `
chains:
  base:
    chain-id: 8453
    rpc: http://localhost:8545
    token-contract: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
    token-messenger: "0x28b5a0e9C621a5BadaA536219b3a228C8168cf5d"
    message-transmitter: "0x81D40F21F12A8F0E3252Bccb954D722d4c464B64"
    domain: 6
  arbitrum:
    chain-id: 42161
    rpc: http://localhost:8546
    token-contract: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831"
    token-messenger: "0x28b5a0e9C621a5BadaA536219b3a228C8168cf5d"
    message-transmitter: "0x81D40F21F12A8F0E3252Bccb954D722d4c464B64"
    domain: 3
circle:
  attestation-base-url: http://localhost:9000
  fetch-retries: 10
api:
  auto-mint: true
`

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	a := NewAppState()
	a.ConfigPath = path
	a.LogLevel = "not-a-level"
	a.InitLogger()
	require.NoError(t, a.loadConfigFile())

	require.Len(t, a.Config.Chains, 2)
	require.Equal(t, 10, a.Config.Circle.FetchRetries)
	require.True(t, a.Config.API.AutoMint)
	// unset values keep their defaults
	require.Equal(t, "14", a.Config.Circle.FallbackFeeBps)

	reg, err := a.Config.Registry()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"arbitrum", "base"}, reg.SupportedChains())

	// a loaded config is not read again
	a.ConfigPath = filepath.Join(t.TempDir(), "missing.yaml")
	require.NoError(t, a.loadConfigFile())
}

func TestLoadConfigFileMissing(t *testing.T) {
	a := NewAppState()
	a.ConfigPath = filepath.Join(t.TempDir(), "missing.yaml")
	a.InitLogger()
	require.Error(t, a.loadConfigFile())
}
