package circle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/cctp-bridge/types"
)

// AttestationPoller polls the Iris v2 messages API for the attestation of a burn.
// It keeps no state between calls, so a wait can be resumed with the same
// (txHash, sourceDomain) pair after a restart.
type AttestationPoller struct {
	logger  log.Logger
	baseURL string
}

func NewAttestationPoller(cfg types.CircleSettings, logger log.Logger) *AttestationPoller {
	return &AttestationPoller{
		logger:  logger.With("component", "attestation-poller"),
		baseURL: normalizeBaseURL(cfg.AttestationBaseURL),
	}
}

// Messages fetches every message Iris indexed for the burn transaction.
// ErrNotFound means the burn is not indexed yet.
func (p *AttestationPoller) Messages(ctx context.Context, txHash string, sourceDomain types.Domain) ([]types.MessageResponseV2, error) {
	txHash = normalizeMessageHash(txHash)
	url := fmt.Sprintf("%s/v2/messages/%d?transactionHash=%s", p.baseURL, sourceDomain, txHash)
	p.logger.Debug(fmt.Sprintf("Checking v2 attestation at %s", url))

	var resp types.AttestationResponseV2
	if err := httpRequest(ctx, http.MethodGet, url, &resp); err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, ErrNotFound
	}
	if len(resp.Messages) > 1 {
		p.logger.Info(fmt.Sprintf("V2 attestation found %d messages for tx %s, using first", len(resp.Messages), txHash))
	}
	return resp.Messages, nil
}

// Check performs a single lookup and returns the first message of the burn.
func (p *AttestationPoller) Check(ctx context.Context, txHash string, sourceDomain types.Domain) (*types.MessageResponseV2, error) {
	msgs, err := p.Messages(ctx, txHash, sourceDomain)
	if err != nil {
		return nil, err
	}
	return &msgs[0], nil
}

// WaitForAttestation polls at a fixed interval until the attestation is complete.
// Not-found responses, pending statuses and transport errors are retried; after
// maxAttempts the wait fails with Timeout.
func (p *AttestationPoller) WaitForAttestation(ctx context.Context, txHash string, sourceDomain types.Domain, maxAttempts int, interval time.Duration) (*types.Attestation, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		msg, err := p.Check(ctx, txHash, sourceDomain)
		switch {
		case errors.Is(err, ErrNotFound):
			p.logger.Debug(fmt.Sprintf("Attestation for %s not indexed yet (attempt %d/%d)", txHash, attempt, maxAttempts))
		case err != nil:
			p.logger.Debug("Attestation request failed", "tx", txHash, "attempt", attempt, "error", err)
		case msg.Ready():
			att, err := msg.ToAttestation()
			if err == nil {
				p.logger.Info(fmt.Sprintf("Attestation is complete for %s", txHash))
				return att, nil
			}
			p.logger.Error("Malformed attestation response", "tx", txHash, "error", err)
		default:
			p.logger.Debug(fmt.Sprintf("Attestation for %s is %s (attempt %d/%d)", txHash, msg.Status, attempt, maxAttempts))
		}

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, types.Networkf(ctx.Err(), "waiting for attestation of %s", txHash)
		case <-time.After(interval):
		}
	}

	return nil, types.NewBridgeError(types.Timeout, nil, "attestation for %s not complete after %d attempts", txHash, maxAttempts)
}
