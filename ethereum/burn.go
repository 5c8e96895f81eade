package ethereum

import (
	"context"
	"fmt"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/strangelove-ventures/cctp-bridge/types"
)

// BurnExecutor submits depositForBurn and extracts the emitted CCTP message.
type BurnExecutor struct {
	logger  log.Logger
	source  BackendSource
	signer  Signer
	waiter  *ReceiptWaiter
	metrics TxObserver

	rescanAttempts int
	rescanInterval time.Duration
}

func NewBurnExecutor(source BackendSource, signer Signer, waiter *ReceiptWaiter, cfg types.TxSettings, logger log.Logger) *BurnExecutor {
	return &BurnExecutor{
		logger:         logger.With("component", "burn-executor"),
		source:         source,
		signer:         signer,
		waiter:         waiter,
		rescanAttempts: cfg.EventRescanAttempts,
		rescanInterval: time.Duration(cfg.EventRescanInterval) * time.Second,
	}
}

// WithObserver reports submitted transactions.
func (b *BurnExecutor) WithObserver(o TxObserver) *BurnExecutor {
	b.metrics = o
	return b
}

// WithRescan overrides how often a receipt without a MessageSent log is re-fetched.
func (b *BurnExecutor) WithRescan(attempts int, interval time.Duration) *BurnExecutor {
	b.rescanAttempts = attempts
	b.rescanInterval = interval
	return b
}

// CheckPreconditions rejects a burn that cannot succeed, before any transaction
// is sent: the recipient must be well-formed for the destination and the caller
// must hold amount + fee.
func (b *BurnExecutor) CheckPreconditions(req *types.ParsedRequest, quote types.FeeQuote) error {
	if req.MintRecipient == ([32]byte{}) {
		return types.Validationf("mint recipient is empty")
	}
	if req.Destination.Family == types.FamilyEVM {
		if _, err := types.Bytes32ToAddress(req.MintRecipient); err != nil {
			return types.NewBridgeError(types.ValidationError, err, "mint recipient is not an address on %s", req.Destination.Name)
		}
	}

	fee := quote.FeeAmount
	if fee.IsNil() {
		return types.Validationf("fee quote has no amount")
	}
	required := req.Amount.Add(fee)
	if req.Balance.LT(required) {
		return types.NewBridgeError(types.InsufficientBalance, nil,
			"balance %s is below amount %s plus fee %s", req.Balance, req.Amount, fee)
	}
	return nil
}

// Burn calls depositForBurn(amount, destinationDomain, recipient, token, 0, maxFee=fee,
// fast finality) and decodes the MessageSent event of the confirmed transaction.
// A burn is never retried: a missing event is an EventDecodeError.
func (b *BurnExecutor) Burn(ctx context.Context, req *types.ParsedRequest, quote types.FeeQuote) (*types.BurnResult, error) {
	if err := b.CheckPreconditions(req, quote); err != nil {
		return nil, err
	}

	threshold := quote.FinalityThreshold
	if threshold == 0 {
		threshold = types.FinalityThresholdFast
	}
	data, err := PackDepositForBurn(DepositForBurnArgs{
		Amount:               req.Amount.BigInt(),
		DestinationDomain:    req.Destination.Domain,
		MintRecipient:        req.MintRecipient,
		BurnToken:            req.Source.Token(),
		MaxFee:               quote.FeeAmount.BigInt(),
		MinFinalityThreshold: threshold,
	})
	if err != nil {
		return nil, types.Networkf(err, "encoding depositForBurn")
	}

	backend, err := b.source.Backend(ctx, req.Source)
	if err != nil {
		return nil, types.Networkf(err, "connecting to %s", req.Source.Name)
	}

	hash, err := b.signer.SendTransaction(ctx, req.Source.ChainID, Call{To: req.Source.Messenger(), Data: data})
	observe(b.metrics, req.Source.Name, "burn", err)
	if err != nil {
		return nil, types.Networkf(err, "submitting depositForBurn on %s", req.Source.Name)
	}
	b.logger.Info(fmt.Sprintf("Burn of %s to domain %d submitted on %s: %s",
		req.Amount, req.Destination.Domain, req.Source.Name, hash.Hex()))

	receipt, err := b.waiter.Await(ctx, backend, hash)
	if err != nil {
		return nil, types.AsBridgeError(err)
	}

	message, err := ExtractMessageSent(receipt, req.Source.Transmitter())
	for attempt := 1; err != nil && attempt <= b.rescanAttempts; attempt++ {
		b.logger.Info("MessageSent log missing, re-fetching receipt", "tx", hash.Hex(), "attempt", attempt)
		select {
		case <-ctx.Done():
			return nil, types.Networkf(ctx.Err(), "rescanning receipt of %s", hash.Hex())
		case <-time.After(b.rescanInterval):
		}
		if receipt, err = backend.TransactionReceipt(ctx, hash); err == nil {
			message, err = ExtractMessageSent(receipt, req.Source.Transmitter())
		}
	}
	if err != nil {
		return nil, types.NewBridgeError(types.EventDecodeError, err, "burn %s confirmed without a MessageSent event", hash.Hex())
	}

	header, err := types.ParseMessageHeader(message)
	if err != nil {
		return nil, types.NewBridgeError(types.EventDecodeError, err, "decoding message of burn %s", hash.Hex())
	}

	return &types.BurnResult{
		TransactionHash: hash.Hex(),
		MessageBytes:    message,
		Nonce:           header.Nonce,
		SourceDomain:    header.SourceDomain,
	}, nil
}

// ExtractMessageSent returns the message of the first MessageSent log emitted by transmitter.
func ExtractMessageSent(receipt *ethtypes.Receipt, transmitter common.Address) ([]byte, error) {
	for _, l := range receipt.Logs {
		if l == nil || len(l.Topics) == 0 || l.Topics[0] != MessageSentTopic {
			continue
		}
		if l.Address != transmitter {
			continue
		}
		return UnpackMessageSent(l.Data)
	}
	return nil, fmt.Errorf("no MessageSent log from %s in tx %s", transmitter.Hex(), receipt.TxHash.Hex())
}
