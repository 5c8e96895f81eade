package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/strangelove-ventures/cctp-bridge/bridge"
	"github.com/strangelove-ventures/cctp-bridge/circle"
	"github.com/strangelove-ventures/cctp-bridge/ethereum"
	"github.com/strangelove-ventures/cctp-bridge/metrics"
	"github.com/strangelove-ventures/cctp-bridge/store"
	"github.com/strangelove-ventures/cctp-bridge/types"
)

// Services are the components a command needs, built from the loaded config.
type Services struct {
	Registry     *types.ChainRegistry
	Metrics      *metrics.PromMetrics
	Store        types.TransferStore
	Clients      *ethereum.Clients
	Signer       *ethereum.KeySigner
	Fees         *circle.FeeEstimator
	Poller       *circle.AttestationPoller
	Reattester   *circle.Reattester
	Waiter       *ethereum.ReceiptWaiter
	Approvals    *ethereum.ApprovalManager
	Burner       *ethereum.BurnExecutor
	Minter       *ethereum.MintExecutor
	Orchestrator *bridge.Orchestrator
}

// ServiceOptions select what NewServices builds. A nil Metrics gets a private registry.
type ServiceOptions struct {
	NeedSigner bool
	Metrics    *metrics.PromMetrics
}

// NewServices wires every component. Commands that submit transactions need the
// signer key; read-only commands run without it.
func (a *AppState) NewServices(ctx context.Context, opts ServiceOptions) (*Services, error) {
	cfg := a.Config
	logger := a.Logger

	reg, err := cfg.Registry()
	if err != nil {
		return nil, fmt.Errorf("invalid chain config: %w", err)
	}

	m := opts.Metrics
	if m == nil {
		m = metrics.NewPromMetrics()
	}

	s := &Services{
		Registry: reg,
		Metrics:  m,
		Clients:  ethereum.NewClients(reg, logger),
		Poller:   circle.NewAttestationPoller(cfg.Circle, logger),
		Waiter:   ethereum.NewReceiptWaiter(cfg.Transactions, logger),
	}
	s.Reattester = circle.NewReattester(cfg.Circle, s.Poller, logger)

	s.Fees, err = circle.NewFeeEstimator(cfg.Circle, reg, logger, m)
	if err != nil {
		return nil, err
	}

	s.Store, err = store.New(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("unable to open transfer store: %w", err)
	}

	if cfg.SignerPrivateKey != "" {
		s.Signer, err = ethereum.NewKeySigner(cfg.SignerPrivateKey, s.Clients, logger)
		if err != nil {
			s.Close()
			return nil, err
		}
	} else if opts.NeedSigner {
		s.Close()
		return nil, fmt.Errorf("CCTP_SIGNER_PRIVATE_KEY must be set")
	}

	var signer ethereum.Signer
	if s.Signer != nil {
		signer = s.Signer
	}
	s.Approvals = ethereum.NewApprovalManager(s.Clients, signer, s.Waiter, logger).WithObserver(m)
	s.Burner = ethereum.NewBurnExecutor(s.Clients, signer, s.Waiter, cfg.Transactions, logger).WithObserver(m)
	s.Minter = ethereum.NewMintExecutor(s.Clients, signer, s.Waiter, logger).WithObserver(m)

	guard := newExpiryGuard(logger, s.Clients, s.Reattester, cfg.Circle)

	s.Orchestrator = bridge.NewOrchestrator(reg, bridge.Components{
		Fees:      s.Fees,
		Approvals: s.Approvals,
		Burner:    s.Burner,
		Poller:    s.Poller,
		Minter:    s.Minter,
		Refresher: guard,
	}, cfg.Circle, logger).
		WithStore(s.Store).
		WithMetrics(m).
		WithAutoMint(cfg.API.AutoMint)
	if s.Signer != nil {
		s.Orchestrator.WithAccount(s.Signer.Address())
	}
	return s, nil
}

// Close releases connections. Background attestation waits are not awaited.
func (s *Services) Close() {
	if s.Clients != nil {
		s.Clients.Close()
	}
	if s.Store != nil {
		_ = s.Store.Close()
	}
}

// loadTransfer reads a stored record by id.
func (s *Services) loadTransfer(ctx context.Context, id string) (*types.TransferRecord, error) {
	rec, err := s.Store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("transfer %s: %w", id, err)
	}
	return rec, nil
}

func retryInterval(cfg types.CircleSettings) time.Duration {
	if d := cfg.RetryInterval(); d > 0 {
		return d
	}
	return 5 * time.Second
}
