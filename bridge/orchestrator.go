package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/strangelove-ventures/cctp-bridge/metrics"
	"github.com/strangelove-ventures/cctp-bridge/types"
)

type FeeEstimator interface {
	Estimate(ctx context.Context, sourceChain, destinationChain string, amount sdkmath.Int) types.FeeQuote
}

type ApprovalManager interface {
	EnsureAllowance(ctx context.Context, chain types.ChainConfig, owner common.Address, amount sdkmath.Int) (*types.ApprovalResult, error)
}

type BurnExecutor interface {
	CheckPreconditions(req *types.ParsedRequest, quote types.FeeQuote) error
	Burn(ctx context.Context, req *types.ParsedRequest, quote types.FeeQuote) (*types.BurnResult, error)
}

type AttestationPoller interface {
	WaitForAttestation(ctx context.Context, txHash string, sourceDomain types.Domain, maxAttempts int, interval time.Duration) (*types.Attestation, error)
}

type MintExecutor interface {
	// Received reports whether the message nonce is already used on dest.
	Received(ctx context.Context, dest types.ChainConfig, message []byte) (bool, error)
	Mint(ctx context.Context, dest types.ChainConfig, message, attestation []byte) (*types.MintResult, error)
}

// AttestationRefresher replaces an attestation that can no longer be minted,
// returning att unchanged when it is still valid.
type AttestationRefresher interface {
	Refresh(ctx context.Context, rec *types.TransferRecord, dest types.ChainConfig, att *types.Attestation) (*types.Attestation, error)
}

// Components are the collaborators the orchestrator drives. Refresher is optional.
type Components struct {
	Fees      FeeEstimator
	Approvals ApprovalManager
	Burner    BurnExecutor
	Poller    AttestationPoller
	Minter    MintExecutor
	Refresher AttestationRefresher
}

// Orchestrator runs the approve, burn, attest, mint state machine. It is the only
// component that mutates TransferRecords.
//
// Expected failures (validation, insufficient balance, attestation timeout) are
// reported in results with a nil error. Network and event decode failures move
// the record to Failed and are also returned as errors.
type Orchestrator struct {
	logger   log.Logger
	registry *types.ChainRegistry
	c        Components

	store    types.TransferStore
	metrics  *metrics.PromMetrics
	account  common.Address
	autoMint bool

	attempts int
	interval time.Duration

	mu       sync.Mutex
	inFlight map[string]bool
	resuming map[string]bool
	wg       sync.WaitGroup
}

func NewOrchestrator(reg *types.ChainRegistry, c Components, cfg types.CircleSettings, logger log.Logger) *Orchestrator {
	return &Orchestrator{
		logger:   logger.With("component", "orchestrator"),
		registry: reg,
		c:        c,
		attempts: cfg.Attempts(),
		interval: cfg.RetryInterval(),
		inFlight: make(map[string]bool),
		resuming: make(map[string]bool),
	}
}

// WithStore persists every transition.
func (o *Orchestrator) WithStore(s types.TransferStore) *Orchestrator {
	o.store = s
	return o
}

func (o *Orchestrator) WithMetrics(m *metrics.PromMetrics) *Orchestrator {
	o.metrics = m
	return o
}

// WithAccount rejects requests whose sender is not the signing account.
func (o *Orchestrator) WithAccount(addr common.Address) *Orchestrator {
	o.account = addr
	return o
}

// WithAutoMint mints as soon as the background attestation wait succeeds.
func (o *Orchestrator) WithAutoMint(enabled bool) *Orchestrator {
	o.autoMint = enabled
	return o
}

// Wait blocks until every background attestation wait has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// ApproveAndBurn validates the request, approves and burns on the source chain,
// then waits for the attestation in the background. It returns once the burn
// is confirmed. The returned Transfer is never nil.
func (o *Orchestrator) ApproveAndBurn(ctx context.Context, req types.BridgeRequest) (*Transfer, error) {
	rec := types.NewTransferRecord(&req)

	parsed, err := types.ParseRequest(o.registry, req)
	if err != nil {
		return o.reject(rec, err), nil
	}
	if o.account != (common.Address{}) && parsed.Sender != o.account {
		return o.reject(rec, types.Validationf("sender %s is not the signing account %s", parsed.Sender.Hex(), o.account.Hex())), nil
	}

	rec.SourceChain, rec.DestinationChain = parsed.Source.Name, parsed.Destination.Name

	quote := o.c.Fees.Estimate(ctx, parsed.Source.Name, parsed.Destination.Name, parsed.Amount)
	if err := o.c.Burner.CheckPreconditions(parsed, quote); err != nil {
		return o.reject(rec, err), nil
	}
	o.logger.Info(fmt.Sprintf("Bridging %s from %s to %s, fee %s (%s bps, degraded=%t)",
		parsed.Amount, parsed.Source.Name, parsed.Destination.Name, quote.FeeAmount, quote.FeeRateBasisPoints, quote.Degraded),
		"transfer", rec.ID)
	o.persist(ctx, rec)

	approval, err := o.c.Approvals.EnsureAllowance(ctx, parsed.Source, parsed.Sender, parsed.Amount)
	if err != nil {
		return o.abort(ctx, rec, err)
	}
	rec.ApprovalTxHash = approval.TxHash
	o.advance(ctx, rec, types.Approved)

	burn, err := o.c.Burner.Burn(ctx, parsed, quote)
	if err != nil {
		return o.abort(ctx, rec, err)
	}
	rec.TransactionHash = burn.TransactionHash
	rec.MessageBytes = burn.MessageBytes
	rec.Nonce = burn.Nonce
	rec.SourceDomain = burn.SourceDomain
	o.advance(ctx, rec, types.Burned)
	o.enter(rec)

	t := newTransfer(rec)
	work := rec.Clone()
	bg := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.watch(bg, t, work)
	}()
	return t, nil
}

// watch owns work until the transfer settles.
func (o *Orchestrator) watch(ctx context.Context, t *Transfer, work *types.TransferRecord) {
	res, err := o.waitForAttestation(ctx, work, t.publish)
	if err != nil || !res.Success || !o.autoMint {
		t.finish(res, nil, err)
		return
	}

	mint, err := o.CompleteMint(ctx, work, res.Attestation)
	t.publish(work)
	t.finish(res, mint, err)
}

// WaitForAttestation polls for the attestation of a persisted record. It moves
// Burned records to AttestationPending and, on success, to AttestationReady.
// A Timeout leaves the record at AttestationPending so the wait can be resumed.
func (o *Orchestrator) WaitForAttestation(ctx context.Context, rec *types.TransferRecord) (*types.AttestationResult, error) {
	return o.waitForAttestation(ctx, rec, nil)
}

func (o *Orchestrator) waitForAttestation(ctx context.Context, rec *types.TransferRecord, onChange func(*types.TransferRecord)) (*types.AttestationResult, error) {
	switch {
	case rec.TransactionHash == "":
		return &types.AttestationResult{Error: types.Validationf("transfer %s has no burn transaction", rec.ID)}, nil
	case rec.Status != types.Burned && rec.Status != types.AttestationPending && rec.Status != types.AttestationReady:
		return &types.AttestationResult{Error: types.Validationf("transfer %s is %s, not awaiting an attestation", rec.ID, rec.Status)}, nil
	}

	if rec.Status == types.Burned {
		o.advance(ctx, rec, types.AttestationPending)
		if onChange != nil {
			onChange(rec)
		}
	}

	start := time.Now()
	att, err := o.c.Poller.WaitForAttestation(ctx, rec.TransactionHash, rec.SourceDomain, o.attempts, o.interval)
	if err != nil {
		be := types.AsBridgeError(err)
		if be.Kind == types.Timeout {
			o.logger.Info("Attestation not ready, transfer can be resumed", "transfer", rec.ID, "tx", rec.TransactionHash)
			return &types.AttestationResult{Error: be}, nil
		}
		if ctx.Err() != nil {
			// shutting down; the record stays resumable
			return &types.AttestationResult{Error: be}, err
		}
		o.fail(ctx, rec, be)
		if onChange != nil {
			onChange(rec)
		}
		return &types.AttestationResult{Error: be}, err
	}

	if rec.Status == types.AttestationPending {
		o.advance(ctx, rec, types.AttestationReady)
		if o.metrics != nil {
			o.metrics.ObserveAttestationWait(rec.SourceChain, time.Since(start))
		}
		if onChange != nil {
			onChange(rec)
		}
	}
	return &types.AttestationResult{Success: true, Attestation: att}, nil
}

// CompleteMint submits the mint on the destination chain and moves the record to Minted.
// The message attested by Iris is preferred over the emitted one because the
// nonce of a V2 message is assigned off-chain.
func (o *Orchestrator) CompleteMint(ctx context.Context, rec *types.TransferRecord, att *types.Attestation) (*types.BridgeResult, error) {
	if rec.Status != types.AttestationReady {
		return types.FailureResult(rec, types.Validationf("transfer %s is %s, not ready to mint", rec.ID, rec.Status)), nil
	}
	if att == nil || len(att.Attestation) == 0 {
		return types.FailureResult(rec, types.Validationf("transfer %s has no attestation", rec.ID)), nil
	}
	dest, err := o.registry.Lookup(rec.DestinationChain)
	if err != nil {
		return types.FailureResult(rec, types.AsBridgeError(err)), nil
	}

	if o.c.Refresher != nil {
		fresh, err := o.c.Refresher.Refresh(ctx, rec, dest, att)
		if err != nil {
			// the record stays AttestationReady and can be minted later
			be := types.AsBridgeError(err)
			if be.Expected() {
				return types.FailureResult(rec, be), nil
			}
			return types.FailureResult(rec, be), err
		}
		att = fresh
	}

	message := []byte(att.Message)
	if len(message) == 0 {
		message = rec.MessageBytes
	}

	received, err := o.c.Minter.Received(ctx, dest, message)
	if err != nil {
		be := types.AsBridgeError(err)
		if be.Expected() {
			return types.FailureResult(rec, be), nil
		}
		return types.FailureResult(rec, be), err
	}
	if received {
		return o.alreadyMinted(ctx, rec, dest), nil
	}

	mint, err := o.c.Minter.Mint(ctx, dest, message, att.Attestation)
	if err != nil {
		be := types.AsBridgeError(err)
		if be.Expected() {
			return types.FailureResult(rec, be), nil
		}
		o.fail(ctx, rec, be)
		if rec.Status == types.Minted {
			// a concurrent caller minted this transfer first
			o.leave(rec)
			return mintedResult(rec), nil
		}
		return types.FailureResult(rec, be), err
	}

	rec.MintTxHash = mint.TransactionHash
	o.advance(ctx, rec, types.Minted)
	o.leave(rec)
	o.logger.Info(fmt.Sprintf("Minted transfer %s on %s: %s", rec.ID, dest.Name, mint.TransactionHash))

	res := types.ResultFromRecord(rec)
	res.TransactionHash = mint.TransactionHash
	return res, nil
}

// alreadyMinted settles a record whose message was received on dest by another
// caller. The stored record wins when it already holds the mint.
func (o *Orchestrator) alreadyMinted(ctx context.Context, rec *types.TransferRecord, dest types.ChainConfig) *types.BridgeResult {
	o.logger.Info(fmt.Sprintf("Transfer %s was already minted on %s", rec.ID, dest.Name))
	if !o.reload(ctx, rec, types.Minted) {
		o.advance(ctx, rec, types.Minted)
	}
	o.leave(rec)
	return mintedResult(rec)
}

func mintedResult(rec *types.TransferRecord) *types.BridgeResult {
	res := types.ResultFromRecord(rec)
	if rec.MintTxHash != "" {
		res.TransactionHash = rec.MintTxHash
	}
	return res
}

// reload replaces rec with the stored copy when that copy is in one of statuses.
// No statuses matches any.
func (o *Orchestrator) reload(ctx context.Context, rec *types.TransferRecord, statuses ...types.Status) bool {
	if o.store == nil {
		return false
	}
	stored, err := o.store.Load(ctx, rec.ID)
	if err != nil {
		return false
	}
	if len(statuses) == 0 {
		*rec = *stored
		return true
	}
	for _, st := range statuses {
		if stored.Status == st {
			*rec = *stored
			return true
		}
	}
	return false
}

// reject settles a request that failed before any transaction was sent. Nothing is persisted.
func (o *Orchestrator) reject(rec *types.TransferRecord, err error) *Transfer {
	be := types.AsBridgeError(err)
	_ = rec.Fail(be)
	o.logger.Info("Rejected bridge request", "transfer", rec.ID, "kind", be.Kind, "error", be.Message)
	o.count(rec)
	return settled(rec, types.FailureResult(rec, be))
}

// abort fails a record after a transaction step failed.
func (o *Orchestrator) abort(ctx context.Context, rec *types.TransferRecord, err error) (*Transfer, error) {
	be := types.AsBridgeError(err)
	o.fail(ctx, rec, be)
	t := settled(rec, types.FailureResult(rec, be))
	if be.Expected() {
		return t, nil
	}
	return t, be
}

func (o *Orchestrator) fail(ctx context.Context, rec *types.TransferRecord, be *types.BridgeError) {
	if err := rec.Fail(be); err != nil {
		o.logger.Error("Unable to fail transfer", "transfer", rec.ID, "error", err)
		return
	}
	if !o.persist(ctx, rec) {
		return
	}
	o.logger.Error("Transfer failed", "transfer", rec.ID, "kind", be.Kind, "error", be)
	o.count(rec)
	o.leave(rec)
}

func (o *Orchestrator) advance(ctx context.Context, rec *types.TransferRecord, next types.Status) {
	if err := rec.Transition(next); err != nil {
		o.logger.Error("Invalid transfer transition", "transfer", rec.ID, "error", err)
		return
	}
	if !o.persist(ctx, rec) {
		return
	}
	o.logger.Debug(fmt.Sprintf("Transfer %s is %s", rec.ID, next))
	o.count(rec)
}

// persist saves rec. It returns false when the store holds a newer copy, which
// then replaces rec.
func (o *Orchestrator) persist(ctx context.Context, rec *types.TransferRecord) bool {
	if o.store == nil {
		return true
	}
	err := o.store.Save(ctx, rec)
	switch {
	case errors.Is(err, types.ErrStaleTransfer):
		o.logger.Info("Transfer was updated elsewhere", "transfer", rec.ID, "status", rec.Status)
		o.reload(ctx, rec)
		return false
	case err != nil:
		o.logger.Error("Unable to persist transfer", "transfer", rec.ID, "status", rec.Status, "error", err)
	}
	return true
}

func (o *Orchestrator) count(rec *types.TransferRecord) {
	if o.metrics != nil {
		o.metrics.IncTransfer(rec.SourceChain, rec.DestinationChain, string(rec.Status))
	}
}

// enter and leave track transfers burned by this process in the in-flight gauge.
func (o *Orchestrator) enter(rec *types.TransferRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight[rec.ID] = true
	if o.metrics != nil {
		o.metrics.IncInFlight(rec.SourceChain, rec.DestinationChain)
	}
}

func (o *Orchestrator) leave(rec *types.TransferRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.inFlight[rec.ID] {
		return
	}
	delete(o.inFlight, rec.ID)
	if o.metrics != nil {
		o.metrics.DecInFlight(rec.SourceChain, rec.DestinationChain)
	}
}
