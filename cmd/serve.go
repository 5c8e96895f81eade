package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/cctp-bridge/circle"
	"github.com/strangelove-ventures/cctp-bridge/ethereum"
	"github.com/strangelove-ventures/cctp-bridge/metrics"
	"github.com/strangelove-ventures/cctp-bridge/types"
)

const walletBalanceInterval = 30 * time.Second

// Serve runs the HTTP API together with the allowance and wallet balance monitors.
func Serve(a *AppState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the bridge HTTP API",
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.InitAppState()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := a.Logger
			cfg := a.Config

			address, err := cmd.Flags().GetString(flagMetricsAddress)
			if err != nil {
				return fmt.Errorf("invalid address error=%w", err)
			}
			if address == "" {
				address = cfg.Metrics.Address
			}
			port, err := cmd.Flags().GetInt16(flagMetricsPort)
			if err != nil {
				return fmt.Errorf("invalid port error=%w", err)
			}
			if port == 0 {
				port = cfg.Metrics.Port
			}

			var m *metrics.PromMetrics
			if port != 0 {
				m = metrics.InitPromMetrics(address, port)
			}

			s, err := a.NewServices(ctx, ServiceOptions{NeedSigner: true, Metrics: m})
			if err != nil {
				return err
			}
			defer s.Close()

			if monitor := circle.StartAllowanceMonitor(ctx, cfg.Circle, logger, s.Registry, m); monitor != nil {
				s.Fees.WithAllowance(monitor.State())
			}
			if m != nil {
				go walletBalanceMetric(ctx, logger, s, m)
			}

			// pick up transfers a previous run left behind
			go func() {
				if _, err := s.Orchestrator.Resume(ctx, cfg.API.AutoMint); err != nil {
					logger.Error("Unable to resume stored transfers", "error", err)
				}
			}()

			gin.SetMode(gin.ReleaseMode)
			router := gin.Default()
			if err := router.SetTrustedProxies(cfg.API.TrustedProxies); err != nil {
				return fmt.Errorf("unable to set trusted proxies on API server: %w", err)
			}
			NewAPI(logger, s.Registry, s.Store, s.Orchestrator, s.Fees).
				WithAccount(s.Signer.Address()).
				WithReattester(s.Reattester, cfg.Circle.Attempts()).
				Routes(router)

			srv := &http.Server{
				Addr:              cfg.API.ListenAddr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			logger.Info("Starting API server", "address", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("unable to start API server: %w", err)
			}
			return nil
		},
	}
	addMetricsFlags(cmd)
	return cmd
}

// walletBalanceMetric tracks the USDC balance of the signing account on every chain.
func walletBalanceMetric(ctx context.Context, logger log.Logger, s *Services, m *metrics.PromMetrics) {
	ticker := time.NewTicker(walletBalanceInterval)
	defer ticker.Stop()

	for {
		recordWalletBalances(ctx, logger, s.Registry, s.Clients, s.Signer.Address(), m)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func recordWalletBalances(ctx context.Context, logger log.Logger, reg *types.ChainRegistry, source ethereum.BackendSource, owner common.Address, m *metrics.PromMetrics) {
	for _, name := range reg.SupportedChains() {
		chain, _ := reg.Lookup(name)
		backend, err := source.Backend(ctx, chain)
		if err != nil {
			logger.Error("Failed to connect for wallet balance", "chain", name, "error", err)
			continue
		}
		balance, err := ethereum.BalanceOf(ctx, backend, chain.Token(), owner)
		if err != nil {
			logger.Error("Failed to get wallet balance", "chain", name, "error", err)
			continue
		}
		f, err := strconv.ParseFloat(types.FormatUnits(balance, chain.USDCDecimals), 64)
		if err != nil {
			continue
		}
		m.SetWalletBalance(name, owner.Hex(), "usdc", f)
	}
}
