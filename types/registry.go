package types

import (
	"fmt"
	"sort"
	"strings"
)

// CCTP V2 contracts share one address across every mainnet EVM chain.
const (
	MainnetTokenMessengerV2     = "0x28b5a0e9C621a5BadaA536219b3a228C8168cf5d"
	MainnetMessageTransmitterV2 = "0x81D40F21F12A8F0E3252Bccb954D722d4c464B64"
)

// ChainRegistry resolves chain identifiers to their immutable configuration.
type ChainRegistry struct {
	chains   map[string]ChainConfig
	byDomain map[Domain]string
	routes   map[Domain][]Domain
}

// NewChainRegistry validates the configured chains and builds the lookup tables.
// An empty routes map enables every pair.
func NewChainRegistry(chains map[string]ChainConfig, routes map[Domain][]Domain) (*ChainRegistry, error) {
	if len(chains) == 0 {
		return nil, fmt.Errorf("no chains configured")
	}

	r := &ChainRegistry{
		chains:   make(map[string]ChainConfig, len(chains)),
		byDomain: make(map[Domain]string, len(chains)),
		routes:   routes,
	}
	for name, cfg := range chains {
		key := normalizeChain(name)
		cfg.Name = key
		if cfg.Family == "" {
			cfg.Family = FamilyEVM
		}
		if cfg.USDCDecimals == 0 {
			cfg.USDCDecimals = 6
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.chains[key]; dup {
			return nil, fmt.Errorf("duplicate chain %s", key)
		}
		if other, dup := r.byDomain[cfg.Domain]; dup {
			return nil, fmt.Errorf("duplicate domain %d for chains %s and %s", cfg.Domain, other, key)
		}
		r.chains[key] = cfg
		r.byDomain[cfg.Domain] = key
	}
	return r, nil
}

// Lookup returns the config for chain or an UnsupportedChain validation error.
func (r *ChainRegistry) Lookup(chain string) (ChainConfig, error) {
	cfg, ok := r.chains[normalizeChain(chain)]
	if !ok {
		return ChainConfig{}, UnsupportedChain(chain)
	}
	return cfg, nil
}

// ByDomain resolves a CCTP domain back to its chain config.
func (r *ChainRegistry) ByDomain(domain Domain) (ChainConfig, error) {
	name, ok := r.byDomain[domain]
	if !ok {
		return ChainConfig{}, UnsupportedChain(fmt.Sprintf("domain %d", domain))
	}
	return r.chains[name], nil
}

// SupportedChains returns the sorted chain identifiers.
func (r *ChainRegistry) SupportedChains() []string {
	names := make([]string, 0, len(r.chains))
	for name := range r.chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RouteEnabled reports whether source -> destination is allowed by enabled-routes.
func (r *ChainRegistry) RouteEnabled(source, destination Domain) bool {
	if len(r.routes) == 0 {
		return true
	}
	for _, d := range r.routes[source] {
		if d == destination {
			return true
		}
	}
	return false
}

func normalizeChain(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// DefaultChains is the built-in mainnet set used when the config file lists no chains.
func DefaultChains() map[string]ChainConfig {
	evm := func(chainID uint64, domain Domain, rpc, usdc string) ChainConfig {
		return ChainConfig{
			ChainID:            chainID,
			RPC:                rpc,
			Family:             FamilyEVM,
			TokenContract:      usdc,
			TokenMessenger:     MainnetTokenMessengerV2,
			MessageTransmitter: MainnetMessageTransmitterV2,
			USDCDecimals:       6,
			Domain:             domain,
		}
	}
	return map[string]ChainConfig{
		"avalanche": evm(43114, 1, "https://api.avax.network/ext/bc/C/rpc", "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E"),
		"optimism":  evm(10, 2, "https://mainnet.optimism.io", "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85"),
		"arbitrum":  evm(42161, 3, "https://arb1.arbitrum.io/rpc", "0xaf88d065e77c8cC2239327C5EDb3A432268e5831"),
		"base":      evm(8453, 6, "https://mainnet.base.org", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		"polygon":   evm(137, 7, "https://polygon-rpc.com", "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"),
		"linea":     evm(59144, 11, "https://rpc.linea.build", "0x176211869cA2b568f2A7D4EE941E073a821EE1ff"),
	}
}
