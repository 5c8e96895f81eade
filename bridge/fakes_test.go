package bridge_test

import (
	"context"
	"sync"
	"time"

	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/strangelove-ventures/cctp-bridge/ethereum"
	"github.com/strangelove-ventures/cctp-bridge/types"
)

const (
	sender    = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	recipient = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
	burnTx    = "0x85bbf7e65a5992e6317a61f005e06d9972a033d71b514be183b179e1b47723fe"
	mintTx    = "0x9c1ad3c7d3e2d0d5d1f5f9c0e7b1a7e1f4f1c0d2a9b8e7f6d5c4b3a291807060"
)

var nopLogger = log.NewNopLogger()

type fakeFees struct {
	mu    sync.Mutex
	quote types.FeeQuote
	calls int
}

func (f *fakeFees) Estimate(_ context.Context, _, _ string, amount sdkmath.Int) types.FeeQuote {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	q := f.quote
	if q.FeeAmount.IsNil() {
		q.FeeRateBasisPoints = sdkmath.LegacyNewDec(10)
		q.FeeAmount = amount.QuoRaw(1000)
		q.FinalityThreshold = types.FinalityThresholdFast
	}
	return q
}

type fakeApprovals struct {
	mu    sync.Mutex
	calls int
	err   error
	owner common.Address
}

func (f *fakeApprovals) EnsureAllowance(_ context.Context, _ types.ChainConfig, owner common.Address, _ sdkmath.Int) (*types.ApprovalResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.owner = owner
	if f.err != nil {
		return nil, f.err
	}
	return &types.ApprovalResult{Approved: true, TxHash: "0x01"}, nil
}

// fakeBurner keeps the real precondition checks and fakes the transaction.
type fakeBurner struct {
	*ethereum.BurnExecutor

	mu    sync.Mutex
	calls int
	err   error
}

func newFakeBurner() *fakeBurner {
	return &fakeBurner{BurnExecutor: ethereum.NewBurnExecutor(nil, nil, nil, types.TxSettings{}, nopLogger)}
}

func (f *fakeBurner) Burn(_ context.Context, req *types.ParsedRequest, _ types.FeeQuote) (*types.BurnResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &types.BurnResult{
		TransactionHash: burnTx,
		MessageBytes:    []byte{0x00, 0x00, 0x00, 0x01, 0xee},
		Nonce:           "0x00",
		SourceDomain:    req.Source.Domain,
	}, nil
}

type pollResponse struct {
	att *types.Attestation
	err error
}

// fakePoller answers WaitForAttestation with responses in order, repeating the last.
type fakePoller struct {
	mu        sync.Mutex
	responses []pollResponse
	calls     int
	release   chan struct{}
}

func (f *fakePoller) WaitForAttestation(ctx context.Context, txHash string, _ types.Domain, _ int, _ time.Duration) (*types.Attestation, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, types.Networkf(ctx.Err(), "waiting for %s", txHash)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i].att, f.responses[i].err
}

func (f *fakePoller) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeMinter struct {
	mu      sync.Mutex
	calls   int
	err     error
	message []byte
	used    map[string]bool
	// lagging reports every nonce as unused, like a destination RPC behind the mint
	lagging bool
}

func (f *fakeMinter) Received(_ context.Context, _ types.ChainConfig, message []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.lagging && f.used[string(message)], nil
}

func (f *fakeMinter) Mint(_ context.Context, _ types.ChainConfig, message, _ []byte) (*types.MintResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.message = message
	if f.used[string(message)] {
		return nil, types.Networkf(nil, "receiveMessage reverted: Nonce already used")
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.used == nil {
		f.used = make(map[string]bool)
	}
	f.used[string(message)] = true
	return &types.MintResult{TransactionHash: mintTx}, nil
}

func readyAttestation() *types.Attestation {
	return &types.Attestation{
		Status:      types.AttestationStatusComplete,
		Attestation: []byte{0xab, 0xcd},
		Message:     []byte{0x00, 0x00, 0x00, 0x01, 0xff},
		EventNonce:  "0x01",
	}
}
