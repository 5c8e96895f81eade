package ethereum

import (
	"context"
	"fmt"

	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/strangelove-ventures/cctp-bridge/types"
)

// ApprovalManager makes sure the TokenMessenger may pull the amount being burned.
type ApprovalManager struct {
	logger  log.Logger
	source  BackendSource
	signer  Signer
	waiter  *ReceiptWaiter
	metrics TxObserver
}

func NewApprovalManager(source BackendSource, signer Signer, waiter *ReceiptWaiter, logger log.Logger) *ApprovalManager {
	return &ApprovalManager{
		logger: logger.With("component", "approval-manager"),
		source: source,
		signer: signer,
		waiter: waiter,
	}
}

// EnsureAllowance reads the on-chain allowance and submits approve(tokenMessenger, amount)
// only when it is below amount. No transaction is sent otherwise and the result
// carries no hash.
func (m *ApprovalManager) EnsureAllowance(ctx context.Context, chain types.ChainConfig, owner common.Address, amount sdkmath.Int) (*types.ApprovalResult, error) {
	backend, err := m.source.Backend(ctx, chain)
	if err != nil {
		return nil, types.Networkf(err, "connecting to %s", chain.Name)
	}

	spender := chain.Messenger()
	current, err := Allowance(ctx, backend, chain.Token(), owner, spender)
	if err != nil {
		return nil, types.Networkf(err, "reading allowance on %s", chain.Name)
	}
	if current.GTE(amount) {
		m.logger.Debug(fmt.Sprintf("Allowance %s on %s covers %s, skipping approve", current, chain.Name, amount))
		return &types.ApprovalResult{Approved: true}, nil
	}

	data, err := PackApprove(spender, amount.BigInt())
	if err != nil {
		return nil, types.Networkf(err, "encoding approve")
	}
	hash, err := m.signer.SendTransaction(ctx, chain.ChainID, Call{To: chain.Token(), Data: data})
	observe(m.metrics, chain.Name, "approve", err)
	if err != nil {
		return nil, types.Networkf(err, "submitting approve on %s", chain.Name)
	}
	m.logger.Info(fmt.Sprintf("Approve %s for %s submitted on %s: %s", amount, spender.Hex(), chain.Name, hash.Hex()))

	if _, err := m.waiter.Await(ctx, backend, hash); err != nil {
		return nil, types.AsBridgeError(err)
	}
	return &types.ApprovalResult{Approved: true, TxHash: hash.Hex()}, nil
}

// WithObserver reports submitted transactions.
func (m *ApprovalManager) WithObserver(o TxObserver) *ApprovalManager {
	m.metrics = o
	return m
}
