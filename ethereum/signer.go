package ethereum

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Call is a contract call to be signed and submitted.
type Call struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Signer submits transactions for one account. The target chain id is passed
// with every send; implementations switch chains as needed.
type Signer interface {
	Address() common.Address
	ActiveChain() uint64
	SwitchChain(ctx context.Context, chainID uint64) error
	SendTransaction(ctx context.Context, chainID uint64, call Call) (common.Hash, error)
}

// gas estimates are padded by this many percent
const gasLimitBufferPercent = 20

// KeySigner signs with a local secp256k1 key. The account nonce is re-read
// from the pending state for every transaction.
type KeySigner struct {
	logger  log.Logger
	key     *ecdsa.PrivateKey
	address common.Address
	source  TxBackendSource

	mu     sync.Mutex
	active uint64
}

func NewKeySigner(hexKey string, source TxBackendSource, logger log.Logger) (*KeySigner, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("signer private key is not set")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("unable to parse signer private key: %w", err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey)
	return &KeySigner{
		logger:  logger.With("component", "signer", "address", address.Hex()),
		key:     key,
		address: address,
		source:  source,
	}, nil
}

func (s *KeySigner) Address() common.Address {
	return s.address
}

func (s *KeySigner) ActiveChain() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *KeySigner) SwitchChain(ctx context.Context, chainID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.switchChain(ctx, chainID)
}

func (s *KeySigner) switchChain(ctx context.Context, chainID uint64) error {
	if s.active == chainID {
		return nil
	}
	backend, err := s.source.TxBackend(ctx, chainID)
	if err != nil {
		return err
	}
	remote, err := backend.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("unable to read chain id: %w", err)
	}
	if remote.Uint64() != chainID {
		return fmt.Errorf("rpc reports chain id %s, expected %d", remote, chainID)
	}
	s.logger.Debug(fmt.Sprintf("Switched signer from chain %d to %d", s.active, chainID))
	s.active = chainID
	return nil
}

func (s *KeySigner) SendTransaction(ctx context.Context, chainID uint64, call Call) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.switchChain(ctx, chainID); err != nil {
		return common.Hash{}, err
	}
	backend, err := s.source.TxBackend(ctx, chainID)
	if err != nil {
		return common.Hash{}, err
	}

	tx, err := s.buildTx(ctx, backend, chainID, call)
	if err != nil {
		return common.Hash{}, err
	}
	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(new(big.Int).SetUint64(chainID)), s.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("unable to sign tx: %w", err)
	}
	if err := backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("unable to broadcast tx: %w", err)
	}

	s.logger.Info(fmt.Sprintf("Submitted tx %s on chain %d with nonce %d", signed.Hash().Hex(), chainID, signed.Nonce()))
	return signed.Hash(), nil
}

func (s *KeySigner) buildTx(ctx context.Context, backend TxBackend, chainID uint64, call Call) (*ethtypes.Transaction, error) {
	nonce, err := backend.PendingNonceAt(ctx, s.address)
	if err != nil {
		return nil, fmt.Errorf("unable to read pending nonce: %w", err)
	}
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	head, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to read latest header: %w", err)
	}

	to := call.To
	msg := ethereum.CallMsg{From: s.address, To: &to, Data: call.Data, Value: value}

	if head.BaseFee == nil {
		gasPrice, err := backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to suggest gas price: %w", err)
		}
		msg.GasPrice = gasPrice
		gas, err := estimateGas(ctx, backend, msg)
		if err != nil {
			return nil, err
		}
		return ethtypes.NewTx(&ethtypes.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       &to,
			Value:    value,
			Data:     call.Data,
		}), nil
	}

	tip, err := backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to suggest gas tip: %w", err)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	msg.GasTipCap = tip
	msg.GasFeeCap = feeCap
	gas, err := estimateGas(ctx, backend, msg)
	if err != nil {
		return nil, err
	}
	return ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   new(big.Int).SetUint64(chainID),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      call.Data,
	}), nil
}

func estimateGas(ctx context.Context, backend TxBackend, msg ethereum.CallMsg) (uint64, error) {
	gas, err := backend.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("unable to estimate gas: %w", err)
	}
	return gas + gas*gasLimitBufferPercent/100, nil
}

// TxObserver is notified of every submitted transaction, e.g. by metrics.
type TxObserver interface {
	IncTransaction(chain, kind, status string)
}

func observe(o TxObserver, chain, kind string, err error) {
	if o == nil {
		return
	}
	status := "submitted"
	if err != nil {
		status = "failed"
	}
	o.IncTransaction(chain, kind, status)
}
