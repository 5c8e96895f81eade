package circle

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"

	"github.com/strangelove-ventures/cctp-bridge/metrics"
	"github.com/strangelove-ventures/cctp-bridge/types"
)

// CheckFastTransferAllowance queries the remaining Fast Transfer capacity of a domain
func CheckFastTransferAllowance(ctx context.Context, baseURL string, logger log.Logger, sourceDomain types.Domain, token string) (*types.FastTransferAllowance, error) {
	baseURL = normalizeBaseURL(baseURL)
	url := fmt.Sprintf("%s/v2/fastBurn/%s/allowance?sourceDomain=%d", baseURL, token, sourceDomain)

	logger.Debug(fmt.Sprintf("Checking Fast Transfer allowance at %s", url))

	var allowance types.FastTransferAllowance
	if err := httpRequest(ctx, http.MethodGet, url, &allowance); err != nil {
		return nil, err
	}

	logger.Info(fmt.Sprintf("Fast Transfer allowance for domain %d: %s/%s %s",
		sourceDomain, allowance.Allowance, allowance.MaxAllowance, token))
	return &allowance, nil
}

// AllowanceState stores Fast Transfer allowance state per domain
type AllowanceState struct {
	mu         sync.RWMutex
	allowances map[types.Domain]*types.FastTransferAllowance
}

func NewAllowanceState() *AllowanceState {
	return &AllowanceState{
		allowances: make(map[types.Domain]*types.FastTransferAllowance),
	}
}

func (a *AllowanceState) Get(domain types.Domain) *types.FastTransferAllowance {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.allowances[domain]
}

func (a *AllowanceState) Set(domain types.Domain, allowance *types.FastTransferAllowance) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.allowances[domain] = allowance
}

// Covers reports whether the last observed allowance of domain can absorb amount,
// given in the smallest units of a token with decimals. Unknown allowances are
// assumed to cover it.
func (a *AllowanceState) Covers(domain types.Domain, amount sdkmath.Int, decimals uint8) bool {
	allowance := a.Get(domain)
	if allowance == nil {
		return true
	}
	// allowance is reported in whole tokens
	dec, err := sdkmath.LegacyNewDecFromStr(allowance.Allowance)
	if err != nil {
		return true
	}
	units := dec.MulInt(sdkmath.NewIntWithDecimal(1, int(decimals))).TruncateInt()
	return units.GTE(amount)
}

// AllowanceMonitor tracks Fast Transfer allowance across the registered domains
type AllowanceMonitor struct {
	baseURL  string
	logger   log.Logger
	metrics  *metrics.PromMetrics
	registry *types.ChainRegistry
	state    *AllowanceState
	domains  []types.Domain
	token    string
	interval time.Duration
}

func NewAllowanceMonitor(cfg types.CircleSettings, logger log.Logger, reg *types.ChainRegistry, m *metrics.PromMetrics) *AllowanceMonitor {
	token := cfg.AllowanceMonitorToken
	if token == "" {
		token = "USDC"
	}
	interval := cfg.AllowanceMonitorInterval
	if interval == 0 {
		interval = 30
	}

	var domains []types.Domain
	for _, name := range reg.SupportedChains() {
		c, _ := reg.Lookup(name)
		domains = append(domains, c.Domain)
	}

	return &AllowanceMonitor{
		baseURL:  cfg.AttestationBaseURL,
		logger:   logger.With("component", "allowance-monitor"),
		metrics:  m,
		registry: reg,
		state:    NewAllowanceState(),
		domains:  domains,
		token:    token,
		interval: time.Duration(interval) * time.Second,
	}
}

func (m *AllowanceMonitor) State() *AllowanceState {
	return m.state
}

func (m *AllowanceMonitor) Start(ctx context.Context) {
	m.logger.Info("Starting Fast Transfer allowance monitoring", "domains", m.domains, "interval", m.interval)
	m.queryAllowances(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Stopping Fast Transfer allowance monitoring")
			return
		case <-ticker.C:
			m.queryAllowances(ctx)
		}
	}
}

// queryAllowances fetches and updates Fast Transfer allowance for all monitored domains
func (m *AllowanceMonitor) queryAllowances(ctx context.Context) {
	for _, domain := range m.domains {
		allowance, err := CheckFastTransferAllowance(ctx, m.baseURL, m.logger, domain, m.token)
		if err != nil {
			m.logger.Error("Failed to fetch allowance", "domain", domain, "error", err)
			continue
		}
		m.state.Set(domain, allowance)

		if m.metrics != nil {
			val, err := sdkmath.LegacyNewDecFromStr(allowance.Allowance)
			if err != nil {
				continue
			}
			chainName := "unknown"
			if c, err := m.registry.ByDomain(domain); err == nil {
				chainName = c.Name
			}
			f, _ := val.Float64()
			m.metrics.SetFastTransferAllowance(chainName, fmt.Sprintf("%d", domain), m.token, f)
		}
	}
}

// StartAllowanceMonitor starts background monitoring when enabled by config.
// Returns nil if disabled.
func StartAllowanceMonitor(ctx context.Context, cfg types.CircleSettings, logger log.Logger, reg *types.ChainRegistry, m *metrics.PromMetrics) *AllowanceMonitor {
	if !cfg.EnableFastTransferMonitoring {
		logger.Info("Fast Transfer allowance monitoring disabled by config")
		return nil
	}

	monitor := NewAllowanceMonitor(cfg, logger, reg, m)
	go monitor.Start(ctx)
	return monitor
}
