package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/strangelove-ventures/cctp-bridge/types"
)

// Backend is the read side of a chain connection used by the executors.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *ethtypes.Header) (ethereum.Subscription, error)
}

// TxBackend is what a signer needs to build and submit a transaction.
type TxBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
}

// BackendSource hands out the connection for a configured chain.
type BackendSource interface {
	Backend(ctx context.Context, chain types.ChainConfig) (Backend, error)
}

// TxBackendSource hands out the connection for an EVM chain id.
type TxBackendSource interface {
	TxBackend(ctx context.Context, chainID uint64) (TxBackend, error)
}

type chainClients struct {
	rpc *ethclient.Client
	ws  *ethclient.Client
}

// Clients lazily dials one RPC client (and optionally one websocket client) per chain.
type Clients struct {
	logger log.Logger

	mu      sync.Mutex
	chains  map[uint64]types.ChainConfig
	clients map[uint64]*chainClients
}

func NewClients(reg *types.ChainRegistry, logger log.Logger) *Clients {
	chains := make(map[uint64]types.ChainConfig)
	for _, name := range reg.SupportedChains() {
		cfg, _ := reg.Lookup(name)
		chains[cfg.ChainID] = cfg
	}
	return &Clients{
		logger:  logger.With("component", "clients"),
		chains:  chains,
		clients: make(map[uint64]*chainClients),
	}
}

func (c *Clients) dial(ctx context.Context, chainID uint64) (*chainClients, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cc, ok := c.clients[chainID]; ok {
		return cc, nil
	}
	cfg, ok := c.chains[chainID]
	if !ok {
		return nil, fmt.Errorf("no chain configured for chain id %d", chainID)
	}

	rpc, err := ethclient.DialContext(ctx, cfg.RPC)
	if err != nil {
		return nil, fmt.Errorf("unable to dial %s rpc: %w", cfg.Name, err)
	}
	cc := &chainClients{rpc: rpc}
	if cfg.WS != "" {
		ws, err := ethclient.DialContext(ctx, cfg.WS)
		if err != nil {
			// receipts fall back to polling over rpc
			c.logger.Info("Unable to dial websocket, continuing with rpc only", "chain", cfg.Name, "error", err)
		} else {
			cc.ws = ws
		}
	}
	c.logger.Debug(fmt.Sprintf("Dialed %s (chain id %d)", cfg.Name, chainID))
	c.clients[chainID] = cc
	return cc, nil
}

func (c *Clients) Backend(ctx context.Context, chain types.ChainConfig) (Backend, error) {
	cc, err := c.dial(ctx, chain.ChainID)
	if err != nil {
		return nil, err
	}
	return &splitBackend{Client: cc.rpc, ws: cc.ws}, nil
}

func (c *Clients) TxBackend(ctx context.Context, chainID uint64) (TxBackend, error) {
	cc, err := c.dial(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return cc.rpc, nil
}

func (c *Clients) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, cc := range c.clients {
		cc.rpc.Close()
		if cc.ws != nil {
			cc.ws.Close()
		}
		delete(c.clients, id)
	}
}

// splitBackend serves subscriptions from the websocket client when one is dialed.
type splitBackend struct {
	*ethclient.Client
	ws *ethclient.Client
}

func (b *splitBackend) SubscribeNewHead(ctx context.Context, ch chan<- *ethtypes.Header) (ethereum.Subscription, error) {
	if b.ws != nil {
		return b.ws.SubscribeNewHead(ctx, ch)
	}
	return b.Client.SubscribeNewHead(ctx, ch)
}
