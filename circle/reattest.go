package circle

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/cctp-bridge/types"
)

// RequestReattestation asks Iris to re-sign the message with the given nonce at a
// higher finality. nonce is the 0x-prefixed eventNonce reported by the messages API.
func RequestReattestation(ctx context.Context, baseURL string, logger log.Logger, nonce string) (*types.ReattestResponse, error) {
	baseURL = normalizeBaseURL(baseURL)
	url := fmt.Sprintf("%s/v2/reattest/%s", baseURL, nonce)

	logger.Info(fmt.Sprintf("Requesting re-attestation for nonce %s", nonce))

	var resp types.ReattestResponse
	if err := httpRequest(ctx, http.MethodPost, url, &resp); err != nil {
		return nil, err
	}

	logger.Info(fmt.Sprintf("Re-attestation accepted for nonce %s", nonce))
	return &resp, nil
}

// Reattester refreshes the attestation of a burn whose fast attestation expired
// before the mint landed.
type Reattester struct {
	logger     log.Logger
	baseURL    string
	poller     *AttestationPoller
	maxRetries int
	interval   time.Duration
}

func NewReattester(cfg types.CircleSettings, poller *AttestationPoller, logger log.Logger) *Reattester {
	maxRetries := cfg.ReattestMaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	return &Reattester{
		logger:     logger.With("component", "reattester"),
		baseURL:    cfg.AttestationBaseURL,
		poller:     poller,
		maxRetries: maxRetries,
		interval:   cfg.RetryInterval(),
	}
}

// Expiring reports whether the attestation expires within bufferBlocks of currentBlock.
// Standard attestations carry no expiration and never expire.
func Expiring(att *types.Attestation, currentBlock, bufferBlocks uint64) bool {
	return att != nil && att.Expiration != 0 && currentBlock+bufferBlocks >= att.Expiration
}

// Reattest requests a new attestation for the burn in txHash and waits for Iris to
// publish one that differs from the current attestation, polling up to maxAttempts times.
func (r *Reattester) Reattest(ctx context.Context, txHash string, sourceDomain types.Domain, maxAttempts int) (*types.Attestation, error) {
	msg, err := r.poller.Check(ctx, txHash, sourceDomain)
	if err != nil {
		return nil, types.Networkf(err, "looking up message of %s", txHash)
	}
	nonce := strings.TrimSpace(msg.EventNonce)
	if nonce == "" {
		return nil, types.Validationf("message of %s has no event nonce yet", txHash)
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		resp, err := RequestReattestation(ctx, r.baseURL, r.logger, nonce)
		if err == nil {
			r.logger.Debug(fmt.Sprintf("Re-attestation for %s returned status %q", nonce, resp.Status))
			lastErr = nil
			break
		}
		lastErr = err
		r.logger.Info("Re-attestation request failed", "nonce", nonce, "attempt", attempt, "error", err)
		if attempt < r.maxRetries {
			select {
			case <-ctx.Done():
				return nil, types.Networkf(ctx.Err(), "re-attesting %s", nonce)
			case <-time.After(r.interval):
			}
		}
	}
	if lastErr != nil {
		return nil, types.Networkf(lastErr, "max re-attestation attempts reached for nonce %s", nonce)
	}

	return r.awaitFresh(ctx, txHash, sourceDomain, msg.Attestation, maxAttempts)
}

// awaitFresh polls until Iris publishes an attestation different from previous.
func (r *Reattester) awaitFresh(ctx context.Context, txHash string, sourceDomain types.Domain, previous string, maxAttempts int) (*types.Attestation, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		msg, err := r.poller.Check(ctx, txHash, sourceDomain)
		if err == nil && msg.Ready() && !strings.EqualFold(msg.Attestation, previous) {
			return msg.ToAttestation()
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, types.Networkf(ctx.Err(), "waiting for re-attestation of %s", txHash)
		case <-time.After(r.interval):
		}
	}
	return nil, types.NewBridgeError(types.Timeout, nil, "re-attestation for %s not published after %d attempts", txHash, maxAttempts)
}
