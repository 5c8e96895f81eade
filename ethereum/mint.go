package ethereum

import (
	"context"
	"fmt"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/cctp-bridge/types"
)

// MintExecutor submits receiveMessage on the destination MessageTransmitter.
type MintExecutor struct {
	logger  log.Logger
	source  BackendSource
	signer  Signer
	waiter  *ReceiptWaiter
	metrics TxObserver
}

func NewMintExecutor(source BackendSource, signer Signer, waiter *ReceiptWaiter, logger log.Logger) *MintExecutor {
	return &MintExecutor{
		logger: logger.With("component", "mint-executor"),
		source: source,
		signer: signer,
		waiter: waiter,
	}
}

// WithObserver reports submitted transactions.
func (m *MintExecutor) WithObserver(o TxObserver) *MintExecutor {
	m.metrics = o
	return m
}

// Mint calls receiveMessage(message, attestation) and waits for one confirmation.
func (m *MintExecutor) Mint(ctx context.Context, dest types.ChainConfig, message, attestation []byte) (*types.MintResult, error) {
	if len(message) == 0 || len(attestation) == 0 {
		return nil, types.Validationf("message and attestation are required to mint")
	}

	data, err := PackReceiveMessage(message, attestation)
	if err != nil {
		return nil, types.Networkf(err, "encoding receiveMessage")
	}
	backend, err := m.source.Backend(ctx, dest)
	if err != nil {
		return nil, types.Networkf(err, "connecting to %s", dest.Name)
	}

	hash, err := m.signer.SendTransaction(ctx, dest.ChainID, Call{To: dest.Transmitter(), Data: data})
	observe(m.metrics, dest.Name, "mint", err)
	if err != nil {
		return nil, types.Networkf(err, "submitting receiveMessage on %s", dest.Name)
	}
	m.logger.Info(fmt.Sprintf("Mint submitted on %s: %s", dest.Name, hash.Hex()))

	if _, err := m.waiter.Await(ctx, backend, hash); err != nil {
		return nil, types.AsBridgeError(err)
	}
	return &types.MintResult{TransactionHash: hash.Hex()}, nil
}

// Received reports whether the destination MessageTransmitter already consumed
// the nonce of message, which makes a second receiveMessage revert.
func (m *MintExecutor) Received(ctx context.Context, dest types.ChainConfig, message []byte) (bool, error) {
	header, err := types.ParseMessageHeader(message)
	if err != nil {
		return false, types.NewBridgeError(types.ValidationError, err, "invalid message")
	}
	if header.Version != types.MessageVersionV2 {
		return false, types.Validationf("message version %d is not supported", header.Version)
	}
	var nonce [32]byte
	raw, _ := types.DecodeHex(header.Nonce)
	copy(nonce[:], raw)
	if nonce == ([32]byte{}) {
		return false, types.Validationf("message nonce is not assigned yet")
	}

	backend, err := m.source.Backend(ctx, dest)
	if err != nil {
		return false, types.Networkf(err, "connecting to %s", dest.Name)
	}
	used, err := callUint256(ctx, backend, MessageTransmitterABI, dest.Transmitter(), "usedNonces", nonce)
	if err != nil {
		return false, types.Networkf(err, "reading used nonces on %s", dest.Name)
	}
	return !used.IsZero(), nil
}
