package bridge

import (
	"sync"

	"github.com/strangelove-ventures/cctp-bridge/types"
)

// Transfer is the handle returned by ApproveAndBurn. The record keeps moving
// while the background attestation wait runs; Done is closed once it settles.
type Transfer struct {
	mu          sync.RWMutex
	record      *types.TransferRecord
	result      *types.BridgeResult
	attestation *types.AttestationResult
	mint        *types.BridgeResult
	err         error
	done        chan struct{}
}

func newTransfer(rec *types.TransferRecord) *Transfer {
	return &Transfer{
		record: rec.Clone(),
		result: types.ResultFromRecord(rec),
		done:   make(chan struct{}),
	}
}

// settled returns a transfer that has no background work.
func settled(rec *types.TransferRecord, res *types.BridgeResult) *Transfer {
	t := newTransfer(rec)
	t.result = res
	close(t.done)
	return t
}

// Record returns a snapshot of the transfer record.
func (t *Transfer) Record() *types.TransferRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.record.Clone()
}

// Result is the outcome of the approve and burn steps.
func (t *Transfer) Result() *types.BridgeResult {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.result
}

func (t *Transfer) Done() <-chan struct{} {
	return t.done
}

// Attestation returns the outcome of the background wait. It is nil until Done is closed.
func (t *Transfer) Attestation() (*types.AttestationResult, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.attestation, t.err
}

// MintResult is set when the orchestrator minted automatically after the attestation arrived.
func (t *Transfer) MintResult() *types.BridgeResult {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mint
}

func (t *Transfer) publish(rec *types.TransferRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record = rec.Clone()
}

func (t *Transfer) finish(att *types.AttestationResult, mint *types.BridgeResult, err error) {
	t.mu.Lock()
	t.attestation = att
	t.mint = mint
	t.err = err
	t.mu.Unlock()
	close(t.done)
}
