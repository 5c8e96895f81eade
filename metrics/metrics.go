package metrics

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type PromMetrics struct {
	Registry *prometheus.Registry

	WalletBalance         *prometheus.GaugeVec
	FastTransferAllowance *prometheus.GaugeVec
	TransferTotal         *prometheus.CounterVec
	TransfersInFlight     *prometheus.GaugeVec
	TransactionTotal      *prometheus.CounterVec
	FeeQuoteTotal         *prometheus.CounterVec
	AttestationWait       *prometheus.HistogramVec
}

// NewPromMetrics registers every collector on a private registry.
func NewPromMetrics() *PromMetrics {
	reg := prometheus.NewRegistry()

	// labels
	var (
		walletLabels      = []string{"chain", "address", "denom"}
		allowanceLabels   = []string{"chain", "domain", "token"}
		transferLabels    = []string{"src_chain", "dest_chain", "status"}
		inFlightLabels    = []string{"src_chain", "dest_chain"}
		transactionLabels = []string{"chain", "kind", "status"}
		feeLabels         = []string{"src_chain", "dest_chain", "source"}
		attestationLabels = []string{"src_chain"}
	)

	m := &PromMetrics{
		Registry: reg,
		WalletBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cctp_bridge_wallet_balance",
			Help: "The current USDC balance of the signer wallet",
		}, walletLabels),
		FastTransferAllowance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cctp_bridge_fast_transfer_allowance",
			Help: "Current Fast Transfer allowance for a domain",
		}, allowanceLabels),
		TransferTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cctp_bridge_transfer_total",
			Help: "Transfer status transitions: approved, burned, attestation_pending, attestation_ready, minted, failed",
		}, transferLabels),
		TransfersInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cctp_bridge_transfers_in_flight",
			Help: "Number of burned transfers that are not minted yet",
		}, inFlightLabels),
		TransactionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cctp_bridge_transaction_total",
			Help: "Submitted approve, burn and mint transactions",
		}, transactionLabels),
		FeeQuoteTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cctp_bridge_fee_quote_total",
			Help: "Fee quotes by source: api or fallback",
		}, feeLabels),
		AttestationWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cctp_bridge_attestation_wait_seconds",
			Help:    "Time from burn confirmation to a complete attestation",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		}, attestationLabels),
	}

	reg.MustRegister(m.WalletBalance)
	reg.MustRegister(m.FastTransferAllowance)
	reg.MustRegister(m.TransferTotal)
	reg.MustRegister(m.TransfersInFlight)
	reg.MustRegister(m.TransactionTotal)
	reg.MustRegister(m.FeeQuoteTotal)
	reg.MustRegister(m.AttestationWait)

	return m
}

// InitPromMetrics creates the collectors and exposes them on address:port/metrics.
func InitPromMetrics(address string, port int16) *PromMetrics {
	m := NewPromMetrics()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry}))
		server := &http.Server{
			Addr:        fmt.Sprintf("%s:%d", address, port),
			Handler:     mux,
			ReadTimeout: 3 * time.Second,
		}
		log.Fatal(server.ListenAndServe())
	}()

	return m
}

func (m *PromMetrics) SetWalletBalance(chain, address, denom string, balance float64) {
	m.WalletBalance.WithLabelValues(chain, address, denom).Set(balance)
}

func (m *PromMetrics) SetFastTransferAllowance(chain, domain, token string, allowance float64) {
	m.FastTransferAllowance.WithLabelValues(chain, domain, token).Set(allowance)
}

func (m *PromMetrics) IncTransfer(srcChain, destChain, status string) {
	m.TransferTotal.WithLabelValues(srcChain, destChain, status).Inc()
}

func (m *PromMetrics) IncInFlight(srcChain, destChain string) {
	m.TransfersInFlight.WithLabelValues(srcChain, destChain).Inc()
}

func (m *PromMetrics) DecInFlight(srcChain, destChain string) {
	m.TransfersInFlight.WithLabelValues(srcChain, destChain).Dec()
}

func (m *PromMetrics) IncTransaction(chain, kind, status string) {
	m.TransactionTotal.WithLabelValues(chain, kind, status).Inc()
}

func (m *PromMetrics) IncFeeQuote(srcChain, destChain, source string) {
	m.FeeQuoteTotal.WithLabelValues(srcChain, destChain, source).Inc()
}

func (m *PromMetrics) ObserveAttestationWait(srcChain string, d time.Duration) {
	m.AttestationWait.WithLabelValues(srcChain).Observe(d.Seconds())
}
