package ethereum_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"cosmossdk.io/log"
	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/strangelove-ventures/cctp-bridge/ethereum"
	"github.com/strangelove-ventures/cctp-bridge/types"
)

var nopLogger = log.NewNopLogger()

// fakeChain is an in-memory Backend: it answers ERC20 view calls and hands out
// receipts for hashes the fakeSigner submitted.
type fakeChain struct {
	mu sync.Mutex

	allowance *big.Int
	balance   *big.Int
	decimals  uint8

	usedNonces map[[32]byte]bool

	receipts      map[common.Hash]*ethtypes.Receipt
	notFoundFirst int // receipt lookups answered with NotFound before the real answer
	lookups       int
	subErr        error
	heads         chan<- *ethtypes.Header
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		allowance:  big.NewInt(0),
		balance:    big.NewInt(0),
		decimals:   6,
		usedNonces: make(map[[32]byte]bool),
		receipts:   make(map[common.Hash]*ethtypes.Receipt),
		subErr:     errors.New("notifications not supported"),
	}
}

func (c *fakeChain) CallContract(_ context.Context, call geth.CallMsg, _ *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(call.Data) < 4 {
		return nil, fmt.Errorf("short call data")
	}
	if method, err := ethereum.MessageTransmitterABI.MethodById(call.Data[:4]); err == nil && method.Name == "usedNonces" {
		args, err := method.Inputs.Unpack(call.Data[4:])
		if err != nil {
			return nil, err
		}
		used := big.NewInt(0)
		if c.usedNonces[args[0].([32]byte)] {
			used = big.NewInt(1)
		}
		return method.Outputs.Pack(used)
	}
	method, err := ethereum.ERC20ABI.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "allowance":
		return method.Outputs.Pack(new(big.Int).Set(c.allowance))
	case "balanceOf":
		return method.Outputs.Pack(new(big.Int).Set(c.balance))
	case "decimals":
		return method.Outputs.Pack(c.decimals)
	}
	return nil, fmt.Errorf("unexpected call %s", method.Name)
}

func (c *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lookups++
	if c.lookups <= c.notFoundFirst {
		return nil, geth.NotFound
	}
	r, ok := c.receipts[hash]
	if !ok {
		return nil, geth.NotFound
	}
	return r, nil
}

func (c *fakeChain) SubscribeNewHead(_ context.Context, ch chan<- *ethtypes.Header) (geth.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subErr != nil {
		return nil, c.subErr
	}
	c.heads = ch
	return &fakeSub{err: make(chan error)}, nil
}

func (c *fakeChain) headChan() chan<- *ethtypes.Header {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.heads
}

func (c *fakeChain) setReceipt(hash common.Hash, r *ethtypes.Receipt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receipts[hash] = r
}

type fakeSub struct {
	err  chan error
	once sync.Once
}

func (s *fakeSub) Unsubscribe()      { s.once.Do(func() { close(s.err) }) }
func (s *fakeSub) Err() <-chan error { return s.err }

type fakeSource struct {
	chain *fakeChain
}

func (s fakeSource) Backend(context.Context, types.ChainConfig) (ethereum.Backend, error) {
	return s.chain, nil
}

// fakeSigner records every call. onSend decides the receipt of each submitted hash.
type fakeSigner struct {
	mu     sync.Mutex
	chain  *fakeChain
	sent   []ethereum.Call
	active uint64
	onSend func(call ethereum.Call, hash common.Hash) *ethtypes.Receipt
	err    error
}

func (s *fakeSigner) Address() common.Address {
	return common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
}

func (s *fakeSigner) ActiveChain() uint64 { return s.active }

func (s *fakeSigner) SwitchChain(_ context.Context, chainID uint64) error {
	s.active = chainID
	return nil
}

func (s *fakeSigner) SendTransaction(_ context.Context, chainID uint64, call ethereum.Call) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return common.Hash{}, s.err
	}
	s.active = chainID
	s.sent = append(s.sent, call)
	hash := crypto.Keccak256Hash(call.Data, []byte{byte(len(s.sent))})

	receipt := &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, TxHash: hash, BlockNumber: big.NewInt(100)}
	if s.onSend != nil {
		if r := s.onSend(call, hash); r != nil {
			receipt = r
		}
	}
	if s.chain != nil {
		s.chain.setReceipt(hash, receipt)
	}
	return hash, nil
}

func (s *fakeSigner) sends() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// approveApplies makes approve calls update the fake allowance, like the real token.
func approveApplies(chain *fakeChain) func(ethereum.Call, common.Hash) *ethtypes.Receipt {
	approveID := ethereum.ERC20ABI.Methods["approve"].ID
	return func(call ethereum.Call, _ common.Hash) *ethtypes.Receipt {
		if bytes.HasPrefix(call.Data, approveID) {
			args, err := ethereum.ERC20ABI.Methods["approve"].Inputs.Unpack(call.Data[4:])
			if err == nil {
				chain.mu.Lock()
				chain.allowance = args[1].(*big.Int)
				chain.mu.Unlock()
			}
		}
		return nil
	}
}

// v2Message builds a MessageSent payload with the given header fields.
func v2Message(src, dst types.Domain, nonce byte) []byte {
	msg := make([]byte, 148+32)
	binary.BigEndian.PutUint32(msg[0:4], types.MessageVersionV2)
	binary.BigEndian.PutUint32(msg[4:8], uint32(src))
	binary.BigEndian.PutUint32(msg[8:12], uint32(dst))
	msg[43] = nonce
	binary.BigEndian.PutUint32(msg[140:144], types.FinalityThresholdFast)
	return msg
}

func messageSentLog(emitter common.Address, message []byte) *ethtypes.Log {
	data, err := ethereum.MessageTransmitterABI.Events["MessageSent"].Inputs.Pack(message)
	if err != nil {
		panic(err)
	}
	return &ethtypes.Log{
		Address: emitter,
		Topics:  []common.Hash{ethereum.MessageSentTopic},
		Data:    data,
	}
}
