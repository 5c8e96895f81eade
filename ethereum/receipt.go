package ethereum

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/strangelove-ventures/cctp-bridge/types"
)

const (
	defaultReceiptTimeout      = 2 * time.Minute
	defaultReceiptPollAttempts = 60
	defaultReceiptPollInterval = 2 * time.Second
)

// ReceiptWaiter waits for one confirmation of a submitted transaction. It
// watches new heads first and falls back to bounded polling when the
// subscription cannot be used.
type ReceiptWaiter struct {
	logger       log.Logger
	timeout      time.Duration
	pollAttempts int
	pollInterval time.Duration
}

func NewReceiptWaiter(cfg types.TxSettings, logger log.Logger) *ReceiptWaiter {
	w := &ReceiptWaiter{
		logger:       logger.With("component", "receipt-waiter"),
		timeout:      time.Duration(cfg.ReceiptTimeout) * time.Second,
		pollAttempts: cfg.ReceiptPollAttempts,
		pollInterval: time.Duration(cfg.ReceiptPollInterval) * time.Second,
	}
	if w.timeout <= 0 {
		w.timeout = defaultReceiptTimeout
	}
	if w.pollAttempts <= 0 {
		w.pollAttempts = defaultReceiptPollAttempts
	}
	if w.pollInterval <= 0 {
		w.pollInterval = defaultReceiptPollInterval
	}
	return w
}

// WithPolling overrides the fallback polling bounds.
func (w *ReceiptWaiter) WithPolling(attempts int, interval time.Duration) *ReceiptWaiter {
	c := *w
	c.pollAttempts = attempts
	c.pollInterval = interval
	return &c
}

// Await returns the receipt of hash. A reverted transaction is a NetworkError.
func (w *ReceiptWaiter) Await(ctx context.Context, backend Backend, hash common.Hash) (*ethtypes.Receipt, error) {
	receipt, err := w.subscribe(ctx, backend, hash)
	if err != nil {
		if ctx.Err() != nil {
			return nil, types.Networkf(ctx.Err(), "waiting for receipt of %s", hash.Hex())
		}
		w.logger.Debug("Head subscription unavailable, polling for receipt", "tx", hash.Hex(), "error", err)
		receipt, err = w.Poll(ctx, backend, hash)
		if err != nil {
			return nil, err
		}
	}

	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return receipt, types.Networkf(nil, "transaction %s reverted in block %s", hash.Hex(), receipt.BlockNumber)
	}
	return receipt, nil
}

func (w *ReceiptWaiter) subscribe(ctx context.Context, backend Backend, hash common.Hash) (*ethtypes.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	heads := make(chan *ethtypes.Header, 16)
	sub, err := backend.SubscribeNewHead(ctx, heads)
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()

	// the transaction may already be mined before the first head arrives
	if receipt, err := backend.TransactionReceipt(ctx, hash); err == nil {
		return receipt, nil
	} else if !errors.Is(err, ethereum.NotFound) {
		return nil, err
	}

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("no receipt for %s within %s", hash.Hex(), w.timeout)
		case err := <-sub.Err():
			return nil, fmt.Errorf("head subscription failed: %w", err)
		case head := <-heads:
			receipt, err := backend.TransactionReceipt(ctx, hash)
			if err == nil {
				return receipt, nil
			}
			if !errors.Is(err, ethereum.NotFound) {
				return nil, err
			}
			w.logger.Debug(fmt.Sprintf("Tx %s not in block %s yet", hash.Hex(), head.Number))
		}
	}
}

// Poll fetches the receipt at a fixed interval for a bounded number of attempts.
func (w *ReceiptWaiter) Poll(ctx context.Context, backend Backend, hash common.Hash) (*ethtypes.Receipt, error) {
	var lastErr error
	for attempt := 1; attempt <= w.pollAttempts; attempt++ {
		receipt, err := backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		lastErr = err
		if !errors.Is(err, ethereum.NotFound) {
			w.logger.Debug("Receipt lookup failed", "tx", hash.Hex(), "attempt", attempt, "error", err)
		}

		if attempt == w.pollAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, types.Networkf(ctx.Err(), "waiting for receipt of %s", hash.Hex())
		case <-time.After(w.pollInterval):
		}
	}
	return nil, types.Networkf(lastErr, "no receipt for %s after %d attempts", hash.Hex(), w.pollAttempts)
}
