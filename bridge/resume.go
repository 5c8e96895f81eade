package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/strangelove-ventures/cctp-bridge/types"
)

// Resumable are the statuses of transfers that burned but have not minted.
var Resumable = []types.Status{types.Burned, types.AttestationPending, types.AttestationReady}

// Resume continues every persisted transfer that burned but has not minted. The
// attestation is fetched again because it is never stored; when mint is set the
// transfer is completed on the destination chain.
func (o *Orchestrator) Resume(ctx context.Context, mint bool) ([]*types.BridgeResult, error) {
	if o.store == nil {
		return nil, fmt.Errorf("resume requires a transfer store")
	}
	records, err := o.store.ListByStatus(ctx, Resumable...)
	if err != nil {
		return nil, fmt.Errorf("listing resumable transfers: %w", err)
	}
	o.logger.Info(fmt.Sprintf("Resuming %d transfers", len(records)))

	var (
		results []*types.BridgeResult
		errs    []error
	)
	for _, rec := range records {
		res, err := o.ResumeOne(ctx, rec, mint)
		if err != nil {
			errs = append(errs, fmt.Errorf("transfer %s: %w", rec.ID, err))
		}
		results = append(results, res)
		if ctx.Err() != nil {
			break
		}
	}
	return results, errors.Join(errs...)
}

// ResumeOne waits for the attestation of rec and optionally mints it. Only one
// resume of a transfer runs at a time in this process.
func (o *Orchestrator) ResumeOne(ctx context.Context, rec *types.TransferRecord, mint bool) (*types.BridgeResult, error) {
	if !o.claim(rec.ID) {
		return types.FailureResult(rec, types.Validationf("transfer %s is already being resumed", rec.ID)), nil
	}
	defer o.release(rec.ID)

	att, err := o.WaitForAttestation(ctx, rec)
	if err != nil {
		return types.FailureResult(rec, att.Error), err
	}
	if !att.Success {
		return types.FailureResult(rec, att.Error), nil
	}
	if !mint {
		return types.ResultFromRecord(rec), nil
	}
	return o.CompleteMint(ctx, rec, att.Attestation)
}

// Resuming reports whether a resume of transfer id is running.
func (o *Orchestrator) Resuming(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.resuming[id]
}

func (o *Orchestrator) claim(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.resuming[id] {
		return false
	}
	o.resuming[id] = true
	return true
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.resuming, id)
}
