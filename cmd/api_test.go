package cmd_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/cctp-bridge/cmd"
	testutil "github.com/strangelove-ventures/cctp-bridge/test_util"
	"github.com/strangelove-ventures/cctp-bridge/types"
)

const (
	burnTx    = "0x85bbf7e65a5992e6317a61f005e06d9972a033d71b514be183b179e1b47723fe"
	recipient = "0x000000000000000000000000000000000000dead"

	completeBody = `{"messages":[{"message":"0xdeadbeef","attestation":"0xabcdef","status":"complete","eventNonce":"0x01"}]}`
	pendingBody  = `{"messages":[{"message":"0x","attestation":"PENDING","status":"pending_confirmations"}]}`
)

// fakeIris answers the fee API with a 10 bps fast tier, the messages API with
// messagesBody and accepts every re-attestation request.
func fakeIris(t *testing.T, messagesBody string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var messageHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/v2/reattest/"):
			_, _ = w.Write([]byte(`{"message":"Re-attestation successfully requested"}`))
		case strings.HasPrefix(r.URL.Path, "/v2/burn/USDC/fees/"):
			_, _ = w.Write([]byte(`[{"finalityThreshold":1000,"minimumFee":10},{"finalityThreshold":2000,"minimumFee":0}]`))
		case strings.HasPrefix(r.URL.Path, "/v2/messages/"):
			messageHits.Add(1)
			_, _ = w.Write([]byte(messagesBody))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &messageHits
}

type testAPI struct {
	router   *gin.Engine
	services *cmd.Services
}

func newTestAPI(t *testing.T, messagesBody string) (*testAPI, *atomic.Int32) {
	t.Helper()
	return newTestAPIWithConfig(t, messagesBody, nil)
}

func newTestAPIWithConfig(t *testing.T, messagesBody string, configure func(*types.Config)) (*testAPI, *atomic.Int32) {
	t.Helper()
	iris, hits := fakeIris(t, messagesBody)
	a := testutil.ConfigSetup(t, iris.URL)
	if configure != nil {
		configure(a.Config)
	}

	s, err := a.NewServices(context.Background(), cmd.ServiceOptions{NeedSigner: true})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	cmd.NewAPI(a.Logger, s.Registry, s.Store, s.Orchestrator, s.Fees).
		WithAccount(s.Signer.Address()).
		WithReattester(s.Reattester, 2).
		Routes(router)

	return &testAPI{router: router, services: s}, hits
}

func (api *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	return w
}

func (api *testAPI) storeRecord(t *testing.T, status types.Status) *types.TransferRecord {
	t.Helper()
	rec := types.NewTransferRecord(&types.BridgeRequest{
		SourceChain:      "arbitrum",
		DestinationChain: "base",
		Amount:           "1000000",
		RecipientAddress: recipient,
	})
	rec.Status = status
	rec.TransactionHash = burnTx
	rec.SourceDomain = 3
	rec.MessageBytes = []byte{0xde, 0xad, 0xbe, 0xef}
	require.NoError(t, api.services.Store.Save(context.Background(), rec))
	return rec
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestAPIChains(t *testing.T) {
	api, _ := newTestAPI(t, completeBody)

	w := api.do(t, http.MethodGet, "/chains", nil)
	require.Equal(t, http.StatusOK, w.Code)

	chains := decode[[]types.ChainConfig](t, w)
	require.Len(t, chains, len(types.DefaultChains()))
	for _, c := range chains {
		require.NotEmpty(t, c.Name)
		require.NotZero(t, c.ChainID)
	}
}

func TestAPIFee(t *testing.T) {
	api, _ := newTestAPI(t, completeBody)

	w := api.do(t, http.MethodGet, "/fees/arbitrum/base?amount=1000000", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Source   string `json:"source"`
		Amount   string `json:"amount"`
		Required string `json:"required"`
		Quote    struct {
			FeeAmount string `json:"feeAmount"`
			Degraded  bool   `json:"degraded"`
		} `json:"quote"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, "arbitrum", out.Source)
	require.Equal(t, "1000", out.Quote.FeeAmount)
	require.False(t, out.Quote.Degraded)
	require.Equal(t, "1001000", out.Required)

	for _, path := range []string{
		"/fees/arbitrum/base",
		"/fees/arbitrum/base?amount=1.5",
		"/fees/arbitrum/base?amount=0",
		"/fees/solana/base?amount=100",
	} {
		w := api.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestAPIPostTransferRejects(t *testing.T) {
	api, _ := newTestAPI(t, completeBody)

	tests := []struct {
		name string
		body any
		kind types.ErrorKind
	}{
		{
			name: "unsupported chain",
			body: types.BridgeRequest{
				SourceChain:           "ethereum",
				DestinationChain:      "base",
				Amount:                "1000000",
				RecipientAddress:      recipient,
				CallerSuppliedBalance: "5000000",
			},
			kind: types.ValidationError,
		},
		{
			name: "same chain",
			body: types.BridgeRequest{
				SourceChain:           "base",
				DestinationChain:      "Base",
				Amount:                "1000000",
				RecipientAddress:      recipient,
				CallerSuppliedBalance: "5000000",
			},
			kind: types.ValidationError,
		},
		{
			name: "balance does not cover fee",
			body: types.BridgeRequest{
				SourceChain:           "arbitrum",
				DestinationChain:      "base",
				Amount:                "1000000",
				RecipientAddress:      recipient,
				CallerSuppliedBalance: "1000000",
			},
			kind: types.InsufficientBalance,
		},
		{
			name: "foreign sender",
			body: types.BridgeRequest{
				SourceChain:           "arbitrum",
				DestinationChain:      "base",
				Amount:                "1000000",
				RecipientAddress:      recipient,
				SenderAddress:         recipient,
				CallerSuppliedBalance: "5000000",
			},
			kind: types.ValidationError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, http.MethodPost, "/transfers", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)

			res := decode[types.BridgeResult](t, w)
			require.False(t, res.Success)
			require.NotNil(t, res.Error)
			require.Equal(t, tt.kind, res.Error.Kind)
			require.Equal(t, types.Failed, res.Status)

			// rejected requests are never persisted
			_, err := api.services.Store.Load(context.Background(), res.TransferID)
			require.ErrorIs(t, err, types.ErrTransferNotFound)
		})
	}

	w := api.do(t, http.MethodPost, "/transfers", "{not json")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIGetTransfer(t *testing.T) {
	api, _ := newTestAPI(t, completeBody)
	rec := api.storeRecord(t, types.Burned)

	w := api.do(t, http.MethodGet, "/transfers/"+rec.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[types.TransferRecord](t, w)
	require.Equal(t, rec.ID, got.ID)
	require.Equal(t, types.Burned, got.Status)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, []byte(got.MessageBytes))

	w = api.do(t, http.MethodGet, "/transfers/unknown", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIAttestation(t *testing.T) {
	api, hits := newTestAPI(t, completeBody)
	rec := api.storeRecord(t, types.Burned)

	w := api.do(t, http.MethodPost, "/transfers/"+rec.ID+"/attestation", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[types.AttestationResult](t, w)
	require.True(t, res.Success)
	require.Equal(t, []byte{0xab, 0xcd, 0xef}, []byte(res.Attestation.Attestation))
	require.Equal(t, int32(1), hits.Load())

	stored, err := api.services.Store.Load(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, types.AttestationReady, stored.Status)

	w = api.do(t, http.MethodPost, "/transfers/unknown/attestation", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIAttestationTimeoutKeepsTransferPending(t *testing.T) {
	api, hits := newTestAPI(t, pendingBody)
	rec := api.storeRecord(t, types.Burned)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req := httptest.NewRequest(http.MethodPost, "/transfers/"+rec.ID+"/attestation", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	res := decode[types.AttestationResult](t, w)
	require.False(t, res.Success)
	require.Equal(t, types.Timeout, res.Error.Kind)
	require.Equal(t, int32(3), hits.Load())

	stored, err := api.services.Store.Load(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, types.AttestationPending, stored.Status)
}

func TestAPIMintRejectsSettledTransfer(t *testing.T) {
	api, hits := newTestAPI(t, completeBody)
	rec := api.storeRecord(t, types.Minted)

	w := api.do(t, http.MethodPost, "/transfers/"+rec.ID+"/mint", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	res := decode[types.BridgeResult](t, w)
	require.False(t, res.Success)
	require.Equal(t, types.ValidationError, res.Error.Kind)
	require.Zero(t, hits.Load())
}

func TestAPIMintConflictsWithResume(t *testing.T) {
	api, hits := newTestAPIWithConfig(t, pendingBody, func(cfg *types.Config) {
		cfg.Circle.FetchRetries = 30
		cfg.Circle.FetchRetryInterval = 1
	})
	rec := api.storeRecord(t, types.AttestationPending)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = api.services.Orchestrator.ResumeOne(ctx, rec.Clone(), true)
	}()
	require.Eventually(t, func() bool {
		return api.services.Orchestrator.Resuming(rec.ID) && hits.Load() > 0
	}, 5*time.Second, 5*time.Millisecond)

	w := api.do(t, http.MethodPost, "/transfers/"+rec.ID+"/mint", nil)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	w = api.do(t, http.MethodPost, "/transfers/"+rec.ID+"/attestation", nil)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("resume did not stop")
	}
	require.False(t, api.services.Orchestrator.Resuming(rec.ID))
}

func TestAPIReattest(t *testing.T) {
	api, hits := newTestAPI(t, completeBody)
	rec := api.storeRecord(t, types.AttestationReady)

	// Iris keeps serving the same attestation, so no fresh one is published
	w := api.do(t, http.MethodPost, "/transfers/"+rec.ID+"/reattest", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	res := decode[types.AttestationResult](t, w)
	require.False(t, res.Success)
	require.Equal(t, types.Timeout, res.Error.Kind)
	// one lookup for the nonce, then two polls
	require.Equal(t, int32(3), hits.Load())

	unburned := types.NewTransferRecord(&types.BridgeRequest{SourceChain: "arbitrum", DestinationChain: "base"})
	unburned.Status = types.Approved
	require.NoError(t, api.services.Store.Save(context.Background(), unburned))
	w = api.do(t, http.MethodPost, "/transfers/"+unburned.ID+"/reattest", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
