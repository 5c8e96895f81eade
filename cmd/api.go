package cmd

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/strangelove-ventures/cctp-bridge/bridge"
	"github.com/strangelove-ventures/cctp-bridge/types"
)

// Reattester requests a fresh attestation for a burn.
type Reattester interface {
	Reattest(ctx context.Context, txHash string, sourceDomain types.Domain, maxAttempts int) (*types.Attestation, error)
}

// API serves the orchestrator over HTTP. Transfers started by this process are
// tracked until their background attestation wait settles; everything else is
// read from the store.
type API struct {
	logger       log.Logger
	registry     *types.ChainRegistry
	store        types.TransferStore
	orchestrator *bridge.Orchestrator
	fees         bridge.FeeEstimator
	account      common.Address

	reattester Reattester
	attempts   int

	mu   sync.Mutex
	live map[string]*bridge.Transfer
}

func NewAPI(logger log.Logger, reg *types.ChainRegistry, store types.TransferStore, o *bridge.Orchestrator, fees bridge.FeeEstimator) *API {
	return &API{
		logger:       logger.With("component", "api"),
		registry:     reg,
		store:        store,
		orchestrator: o,
		fees:         fees,
		live:         make(map[string]*bridge.Transfer),
	}
}

// WithAccount fills in the sender of requests that omit it.
func (a *API) WithAccount(addr common.Address) *API {
	a.account = addr
	return a
}

// WithReattester enables POST /transfers/:id/reattest, polling up to attempts times.
func (a *API) WithReattester(r Reattester, attempts int) *API {
	a.reattester = r
	a.attempts = attempts
	return a
}

func (a *API) Routes(router gin.IRouter) {
	router.GET("/chains", a.getChains)
	router.GET("/fees/:source/:destination", a.getFee)
	router.POST("/transfers", a.postTransfer)
	router.GET("/transfers/:id", a.getTransfer)
	router.POST("/transfers/:id/attestation", a.postAttestation)
	router.POST("/transfers/:id/mint", a.postMint)
	if a.reattester != nil {
		router.POST("/transfers/:id/reattest", a.postReattest)
	}
}

// statusFor maps a result error to an HTTP status.
func statusFor(be *types.BridgeError) int {
	if be == nil {
		return http.StatusOK
	}
	switch be.Kind {
	case types.ValidationError, types.InsufficientBalance:
		return http.StatusBadRequest
	case types.Timeout:
		return http.StatusAccepted
	default:
		return http.StatusBadGateway
	}
}

func (a *API) getChains(c *gin.Context) {
	var out []types.ChainConfig
	for _, name := range a.registry.SupportedChains() {
		chain, _ := a.registry.Lookup(name)
		out = append(out, chain)
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) getFee(c *gin.Context) {
	amount, err := types.ParseAmount(c.Query("amount"))
	if err != nil || !amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"message": "amount must be a positive integer in smallest units"})
		return
	}
	src, err := a.registry.Lookup(c.Param("source"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	dst, err := a.registry.Lookup(c.Param("destination"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	quote := a.fees.Estimate(c.Request.Context(), src.Name, dst.Name, amount)
	c.JSON(http.StatusOK, feeOutput{
		Source:      src.Name,
		Destination: dst.Name,
		Amount:      amount.String(),
		Quote:       quote,
		Required:    amount.Add(quote.FeeAmount).String(),
	})
}

func (a *API) postTransfer(c *gin.Context) {
	var req types.BridgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body: " + err.Error()})
		return
	}
	if req.SenderAddress == "" && a.account != (common.Address{}) {
		req.SenderAddress = a.account.Hex()
	}

	tr, err := a.orchestrator.ApproveAndBurn(c.Request.Context(), req)
	res := tr.Result()
	if err != nil {
		a.logger.Error("Bridge request failed", "transfer", res.TransferID, "error", err)
	}
	if !res.Success {
		c.JSON(statusFor(res.Error), res)
		return
	}

	a.track(res.TransferID, tr)
	c.JSON(http.StatusAccepted, res)
}

func (a *API) getTransfer(c *gin.Context) {
	id := c.Param("id")
	if tr := a.tracked(id); tr != nil {
		c.JSON(http.StatusOK, tr.Record())
		return
	}
	rec, ok := a.load(c, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (a *API) postAttestation(c *gin.Context) {
	id := c.Param("id")
	if a.busy(c, id) {
		return
	}
	rec, ok := a.load(c, id)
	if !ok {
		return
	}

	res, err := a.orchestrator.WaitForAttestation(c.Request.Context(), rec)
	if err != nil {
		a.logger.Error("Attestation wait failed", "transfer", id, "error", err)
	}
	c.JSON(statusFor(res.Error), res)
}

func (a *API) postMint(c *gin.Context) {
	id := c.Param("id")
	if a.busy(c, id) {
		return
	}
	rec, ok := a.load(c, id)
	if !ok {
		return
	}

	res, err := a.orchestrator.ResumeOne(c.Request.Context(), rec, true)
	if err != nil {
		a.logger.Error("Mint failed", "transfer", id, "error", err)
	}
	c.JSON(statusFor(res.Error), res)
}

func (a *API) postReattest(c *gin.Context) {
	id := c.Param("id")
	rec, ok := a.load(c, id)
	if !ok {
		return
	}
	if rec.TransactionHash == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "transfer " + id + " has no burn transaction"})
		return
	}

	att, err := a.reattester.Reattest(c.Request.Context(), rec.TransactionHash, rec.SourceDomain, a.attempts)
	if err != nil {
		be := types.AsBridgeError(err)
		if !be.Expected() {
			a.logger.Error("Re-attestation failed", "transfer", id, "error", err)
		}
		c.JSON(statusFor(be), types.AttestationResult{Error: be})
		return
	}
	c.JSON(http.StatusOK, types.AttestationResult{Success: true, Attestation: att})
}

// busy rejects requests for transfers whose background wait or resume is still running.
func (a *API) busy(c *gin.Context, id string) bool {
	switch {
	case a.tracked(id) != nil:
		c.JSON(http.StatusConflict, gin.H{"message": "attestation wait for transfer " + id + " is still running"})
	case a.orchestrator.Resuming(id):
		c.JSON(http.StatusConflict, gin.H{"message": "transfer " + id + " is being resumed"})
	default:
		return false
	}
	return true
}

func (a *API) load(c *gin.Context, id string) (*types.TransferRecord, bool) {
	rec, err := a.store.Load(c.Request.Context(), id)
	switch {
	case errors.Is(err, types.ErrTransferNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "transfer not found"})
		return nil, false
	case err != nil:
		a.logger.Error("Unable to load transfer", "transfer", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "unable to load transfer"})
		return nil, false
	}
	return rec, true
}

func (a *API) track(id string, tr *bridge.Transfer) {
	a.mu.Lock()
	a.live[id] = tr
	a.mu.Unlock()

	go func() {
		<-tr.Done()
		if _, err := tr.Attestation(); err != nil {
			a.logger.Error("Background attestation wait failed", "transfer", id, "error", err)
		}
		a.mu.Lock()
		delete(a.live, id)
		a.mu.Unlock()
	}()
}

func (a *API) tracked(id string) *bridge.Transfer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live[id]
}
