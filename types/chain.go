package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

const FamilyEVM = "evm"

// ChainConfig is the static configuration of one supported chain.
type ChainConfig struct {
	Name    string `yaml:"-" json:"name"`
	ChainID uint64 `yaml:"chain-id" json:"chainId"`
	RPC     string `yaml:"rpc" json:"rpcUrl"`
	WS      string `yaml:"ws" json:"wsUrl,omitempty"` // optional, enables subscription receipt waits
	Family  string `yaml:"family" json:"family"`

	TokenContract      string `yaml:"token-contract" json:"tokenContract"`
	TokenMessenger     string `yaml:"token-messenger" json:"tokenMessenger"`         // depositForBurn
	MessageTransmitter string `yaml:"message-transmitter" json:"messageTransmitter"` // MessageSent, receiveMessage
	USDCDecimals       uint8  `yaml:"usdc-decimals" json:"usdcDecimals"`
	Domain             Domain `yaml:"domain" json:"domain"`

	// MinBurnAmount rejects transfers below this many smallest units. Empty disables it.
	MinBurnAmount string `yaml:"min-burn-amount" json:"minBurnAmount,omitempty"`
}

func (c ChainConfig) Token() common.Address {
	return common.HexToAddress(c.TokenContract)
}

func (c ChainConfig) Messenger() common.Address {
	return common.HexToAddress(c.TokenMessenger)
}

func (c ChainConfig) Transmitter() common.Address {
	return common.HexToAddress(c.MessageTransmitter)
}

// Validate checks a single entry; the registry checks cross-entry constraints.
func (c ChainConfig) Validate() error {
	if c.ChainID == 0 {
		return fmt.Errorf("chain %s: chain-id is required", c.Name)
	}
	// domain 0 is Ethereum, which is not a supported chain, so a zero here is a missing key
	if c.Domain == 0 {
		return fmt.Errorf("chain %s: domain is required", c.Name)
	}
	if c.RPC == "" {
		return fmt.Errorf("chain %s: rpc is required", c.Name)
	}
	switch c.Family {
	case FamilyEVM:
	default:
		return fmt.Errorf("chain %s: unsupported family %q", c.Name, c.Family)
	}
	for field, addr := range map[string]string{
		"token-contract":      c.TokenContract,
		"token-messenger":     c.TokenMessenger,
		"message-transmitter": c.MessageTransmitter,
	} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("chain %s: %s %q is not a hex address", c.Name, field, addr)
		}
	}
	if c.MinBurnAmount != "" {
		if _, err := ParseAmount(c.MinBurnAmount); err != nil {
			return fmt.Errorf("chain %s: min-burn-amount: %w", c.Name, err)
		}
	}
	return nil
}
