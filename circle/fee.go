package circle

import (
	"context"
	"fmt"
	"math/big"
	"net/http"

	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"

	"github.com/strangelove-ventures/cctp-bridge/metrics"
	"github.com/strangelove-ventures/cctp-bridge/types"
)

var bpsDenominator = new(big.Int).Mul(big.NewInt(10_000), sdkmath.LegacyOneDec().BigInt())

// ComputeFee returns ceil(amount * bps / 10000) in smallest units, using exact
// integer arithmetic. A positive amount at a positive rate always costs at least 1.
func ComputeFee(amount sdkmath.Int, bps sdkmath.LegacyDec) sdkmath.Int {
	if amount.IsNil() || bps.IsNil() || !amount.IsPositive() || !bps.IsPositive() {
		return sdkmath.ZeroInt()
	}
	// bps.BigInt() is bps scaled by 10^18
	num := new(big.Int).Mul(amount.BigInt(), bps.BigInt())
	q, r := new(big.Int).QuoRem(num, bpsDenominator, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return sdkmath.NewIntFromBigInt(q)
}

// FeeEstimator quotes the fast-transfer fee of a route. It never fails: when the
// fee service cannot be used the configured fallback rate applies.
type FeeEstimator struct {
	logger      log.Logger
	baseURL     string
	registry    *types.ChainRegistry
	fallbackBps sdkmath.LegacyDec
	metrics     *metrics.PromMetrics
	allowance   *AllowanceState
}

func NewFeeEstimator(cfg types.CircleSettings, reg *types.ChainRegistry, logger log.Logger, m *metrics.PromMetrics) (*FeeEstimator, error) {
	raw := cfg.FallbackFeeBps
	if raw == "" {
		raw = types.DefaultFallbackFeeBps
	}
	fallback, err := types.ParseBps(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid fallback-fee-bps: %w", err)
	}
	return &FeeEstimator{
		logger:      logger.With("component", "fee-estimator"),
		baseURL:     normalizeBaseURL(cfg.FeeURL()),
		registry:    reg,
		fallbackBps: fallback,
		metrics:     m,
	}, nil
}

// WithAllowance quotes the standard tier for amounts the observed Fast Transfer
// allowance of the source domain cannot absorb.
func (f *FeeEstimator) WithAllowance(state *AllowanceState) *FeeEstimator {
	f.allowance = state
	return f
}

// FetchFees returns every finality tier the fee service offers for src -> dst.
func (f *FeeEstimator) FetchFees(ctx context.Context, src, dst types.Domain) ([]types.FeeResponseEntry, error) {
	url := fmt.Sprintf("%s/v2/burn/USDC/fees/%d/%d", f.baseURL, src, dst)
	f.logger.Debug(fmt.Sprintf("Fetching burn fees at %s", url))

	var entries []types.FeeResponseEntry
	if err := httpRequest(ctx, http.MethodGet, url, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Estimate quotes the fee for burning amount on sourceChain towards destinationChain.
// The fast tier is the entry with the lowest finalityThreshold. When the Fast
// Transfer allowance cannot absorb amount the slowest tier is quoted instead.
func (f *FeeEstimator) Estimate(ctx context.Context, sourceChain, destinationChain string, amount sdkmath.Int) types.FeeQuote {
	fast := f.fastAllowed(sourceChain, amount)
	bps, threshold, err := f.tier(ctx, sourceChain, destinationChain, fast)
	source := "api"
	degraded := false
	if err != nil {
		if fast {
			f.logger.Info("Fee service unavailable, using fallback rate", "source", sourceChain, "destination", destinationChain, "bps", f.fallbackBps, "error", err)
			bps, threshold = f.fallbackBps, types.FinalityThresholdFast
		} else {
			f.logger.Info("Fee service unavailable, quoting standard transfer without fee", "source", sourceChain, "destination", destinationChain, "error", err)
			bps, threshold = sdkmath.LegacyZeroDec(), types.FinalityThresholdStandard
		}
		source, degraded = "fallback", true
	}
	if f.metrics != nil {
		f.metrics.IncFeeQuote(sourceChain, destinationChain, source)
	}

	return types.FeeQuote{
		FeeRateBasisPoints: bps,
		FeeAmount:          ComputeFee(amount, bps),
		FinalityThreshold:  threshold,
		Degraded:           degraded,
	}
}

func (f *FeeEstimator) fastAllowed(sourceChain string, amount sdkmath.Int) bool {
	if f.allowance == nil {
		return true
	}
	src, err := f.registry.Lookup(sourceChain)
	if err != nil {
		return true
	}
	if f.allowance.Covers(src.Domain, amount, src.USDCDecimals) {
		return true
	}
	f.logger.Info("Fast Transfer allowance cannot cover amount, quoting standard finality",
		"source", sourceChain, "domain", src.Domain, "amount", amount)
	return false
}

// tier picks the fastest entry, or the slowest one when fast is false.
func (f *FeeEstimator) tier(ctx context.Context, sourceChain, destinationChain string, fast bool) (sdkmath.LegacyDec, uint32, error) {
	src, err := f.registry.Lookup(sourceChain)
	if err != nil {
		return sdkmath.LegacyDec{}, 0, err
	}
	dst, err := f.registry.Lookup(destinationChain)
	if err != nil {
		return sdkmath.LegacyDec{}, 0, err
	}

	entries, err := f.FetchFees(ctx, src.Domain, dst.Domain)
	if err != nil {
		return sdkmath.LegacyDec{}, 0, err
	}
	if len(entries) == 0 {
		return sdkmath.LegacyDec{}, 0, fmt.Errorf("fee service returned no tiers")
	}

	picked := entries[0]
	for _, e := range entries[1:] {
		if (fast && e.FinalityThreshold < picked.FinalityThreshold) ||
			(!fast && e.FinalityThreshold > picked.FinalityThreshold) {
			picked = e
		}
	}
	bps, err := types.ParseBps(picked.MinimumFee.String())
	if err != nil {
		return sdkmath.LegacyDec{}, 0, err
	}
	return bps, picked.FinalityThreshold, nil
}
