package ethereum_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/cctp-bridge/ethereum"
	"github.com/strangelove-ventures/cctp-bridge/types"
)

func fastWaiter() *ethereum.ReceiptWaiter {
	return ethereum.NewReceiptWaiter(types.TxSettings{
		ReceiptTimeout:      1,
		ReceiptPollAttempts: 5,
	}, nopLogger).WithPolling(5, time.Millisecond)
}

func parsedRequest(t *testing.T, amount, balance string) *types.ParsedRequest {
	t.Helper()
	reg, err := types.NewChainRegistry(types.DefaultChains(), nil)
	require.NoError(t, err)
	req, err := types.ParseRequest(reg, types.BridgeRequest{
		SourceChain:           "base",
		DestinationChain:      "arbitrum",
		Amount:                amount,
		RecipientAddress:      "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		SenderAddress:         "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		CallerSuppliedBalance: balance,
	})
	require.NoError(t, err)
	return req
}

func quote(fee int64) types.FeeQuote {
	return types.FeeQuote{
		FeeRateBasisPoints: sdkmath.LegacyNewDec(10),
		FeeAmount:          sdkmath.NewInt(fee),
		FinalityThreshold:  types.FinalityThresholdFast,
	}
}

func TestEnsureAllowanceApprovesAtMostOnce(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{chain: chain, onSend: approveApplies(chain)}
	m := ethereum.NewApprovalManager(fakeSource{chain}, signer, fastWaiter(), nopLogger)

	base := types.DefaultChains()["base"]
	owner := signer.Address()
	amount := sdkmath.NewInt(1_000_000)

	res, err := m.EnsureAllowance(context.Background(), base, owner, amount)
	require.NoError(t, err)
	require.True(t, res.Approved)
	require.NotEmpty(t, res.TxHash)
	require.Equal(t, 1, signer.sends())
	require.Equal(t, base.Token(), signer.sent[0].To)

	res, err = m.EnsureAllowance(context.Background(), base, owner, amount)
	require.NoError(t, err)
	require.True(t, res.Approved)
	require.Empty(t, res.TxHash)
	require.Equal(t, 1, signer.sends(), "second call must not submit another approval")
}

func TestEnsureAllowanceSufficient(t *testing.T) {
	chain := newFakeChain()
	chain.allowance = big.NewInt(5_000_000)
	signer := &fakeSigner{chain: chain}
	m := ethereum.NewApprovalManager(fakeSource{chain}, signer, fastWaiter(), nopLogger)

	res, err := m.EnsureAllowance(context.Background(), types.DefaultChains()["base"], signer.Address(), sdkmath.NewInt(5_000_000))
	require.NoError(t, err)
	require.True(t, res.Approved)
	require.Empty(t, res.TxHash)
	require.Zero(t, signer.sends())
}

func TestEnsureAllowanceRevertedApprove(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{chain: chain, onSend: func(_ ethereum.Call, h common.Hash) *ethtypes.Receipt {
		return &ethtypes.Receipt{Status: ethtypes.ReceiptStatusFailed, TxHash: h, BlockNumber: big.NewInt(1)}
	}}
	m := ethereum.NewApprovalManager(fakeSource{chain}, signer, fastWaiter(), nopLogger)

	_, err := m.EnsureAllowance(context.Background(), types.DefaultChains()["base"], signer.Address(), sdkmath.NewInt(1))
	require.Error(t, err)
	require.Equal(t, types.NetworkError, types.KindOf(err))
}

func TestBurnInsufficientBalanceSendsNothing(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{chain: chain}
	b := ethereum.NewBurnExecutor(fakeSource{chain}, signer, fastWaiter(), types.TxSettings{}, nopLogger)

	// amount + fee = 1_000_001 > balance
	req := parsedRequest(t, "1000000", "1000000")
	_, err := b.Burn(context.Background(), req, quote(1))
	require.Error(t, err)
	require.Equal(t, types.InsufficientBalance, types.KindOf(err))
	require.Zero(t, signer.sends())

	// exact balance is enough
	require.NoError(t, b.CheckPreconditions(parsedRequest(t, "1000000", "1001000"), quote(1000)))
}

func TestBurnDecodesMessageSent(t *testing.T) {
	chain := newFakeChain()
	base := types.DefaultChains()["base"]
	message := v2Message(6, 3, 0)

	signer := &fakeSigner{chain: chain, onSend: func(_ ethereum.Call, h common.Hash) *ethtypes.Receipt {
		return &ethtypes.Receipt{
			Status:      ethtypes.ReceiptStatusSuccessful,
			TxHash:      h,
			BlockNumber: big.NewInt(10),
			Logs: []*ethtypes.Log{
				messageSentLog(common.HexToAddress("0x000000000000000000000000000000000000dEaD"), v2Message(9, 9, 9)),
				messageSentLog(base.Transmitter(), message),
			},
		}
	}}
	b := ethereum.NewBurnExecutor(fakeSource{chain}, signer, fastWaiter(), types.TxSettings{}, nopLogger)

	req := parsedRequest(t, "1000000", "2000000")
	res, err := b.Burn(context.Background(), req, quote(1000))
	require.NoError(t, err)
	require.Equal(t, message, res.MessageBytes)
	require.Equal(t, types.Domain(6), res.SourceDomain)
	require.Equal(t, "0x"+zeros(64), res.Nonce)
	require.Equal(t, 1, signer.sends())

	call := signer.sent[0]
	require.Equal(t, base.Messenger(), call.To)
	args, err := ethereum.TokenMessengerABI.Methods["depositForBurn"].Inputs.Unpack(call.Data[4:])
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1_000_000), args[0])
	require.Equal(t, uint32(3), args[1])
	require.Equal(t, req.MintRecipient, args[2])
	require.Equal(t, base.Token(), args[3])
	require.Equal(t, [32]byte{}, args[4])
	require.Equal(t, big.NewInt(1000), args[5])
	require.Equal(t, types.FinalityThresholdFast, args[6])
}

func zeros(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}

func TestBurnMissingEventIsDecodeError(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{chain: chain}
	b := ethereum.NewBurnExecutor(fakeSource{chain}, signer, fastWaiter(), types.TxSettings{}, nopLogger)

	_, err := b.Burn(context.Background(), parsedRequest(t, "10", "100"), quote(1))
	require.Error(t, err)
	require.Equal(t, types.EventDecodeError, types.KindOf(err))
	require.Equal(t, 1, signer.sends(), "burn is never retried")
}

func TestBurnRescanFindsLateEvent(t *testing.T) {
	chain := newFakeChain()
	base := types.DefaultChains()["base"]
	message := v2Message(6, 3, 0)

	var burnHash common.Hash
	signer := &fakeSigner{chain: chain, onSend: func(_ ethereum.Call, h common.Hash) *ethtypes.Receipt {
		burnHash = h
		return nil
	}}
	b := ethereum.NewBurnExecutor(fakeSource{chain}, signer, fastWaiter(), types.TxSettings{}, nopLogger).
		WithRescan(10, 5*time.Millisecond)

	go func() {
		time.Sleep(2 * time.Millisecond)
		for i := 0; i < 100; i++ {
			signer.mu.Lock()
			h := burnHash
			signer.mu.Unlock()
			if h != (common.Hash{}) {
				chain.setReceipt(h, &ethtypes.Receipt{
					Status:      ethtypes.ReceiptStatusSuccessful,
					TxHash:      h,
					BlockNumber: big.NewInt(10),
					Logs:        []*ethtypes.Log{messageSentLog(base.Transmitter(), message)},
				})
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	res, err := b.Burn(context.Background(), parsedRequest(t, "10", "100"), quote(1))
	require.NoError(t, err)
	require.Equal(t, message, res.MessageBytes)
	require.Equal(t, 1, signer.sends())
}

func TestBurnSubmitFailureIsNetworkError(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{chain: chain, err: errors.New("insufficient funds for gas")}
	b := ethereum.NewBurnExecutor(fakeSource{chain}, signer, fastWaiter(), types.TxSettings{}, nopLogger)

	_, err := b.Burn(context.Background(), parsedRequest(t, "10", "100"), quote(1))
	require.Error(t, err)
	require.Equal(t, types.NetworkError, types.KindOf(err))
}

func TestMintFallsBackToPolling(t *testing.T) {
	chain := newFakeChain()
	chain.notFoundFirst = 3
	signer := &fakeSigner{chain: chain}
	m := ethereum.NewMintExecutor(fakeSource{chain}, signer, fastWaiter(), nopLogger)

	arb := types.DefaultChains()["arbitrum"]
	res, err := m.Mint(context.Background(), arb, []byte{1, 2, 3}, []byte{4, 5, 6})
	require.NoError(t, err)
	require.NotEmpty(t, res.TransactionHash)
	require.Equal(t, 1, signer.sends())
	require.Equal(t, arb.Transmitter(), signer.sent[0].To)
	require.Equal(t, arb.ChainID, signer.ActiveChain())

	args, err := ethereum.MessageTransmitterABI.Methods["receiveMessage"].Inputs.Unpack(signer.sent[0].Data[4:])
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, args[0])
	require.Equal(t, []byte{4, 5, 6}, args[1])
}

func TestMintPollingGivesUp(t *testing.T) {
	chain := newFakeChain()
	chain.notFoundFirst = 100
	signer := &fakeSigner{chain: chain}
	m := ethereum.NewMintExecutor(fakeSource{chain}, signer, fastWaiter(), nopLogger)

	_, err := m.Mint(context.Background(), types.DefaultChains()["arbitrum"], []byte{1}, []byte{2})
	require.Error(t, err)
	require.Equal(t, types.NetworkError, types.KindOf(err))
}

func TestMintRequiresAttestation(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{chain: chain}
	m := ethereum.NewMintExecutor(fakeSource{chain}, signer, fastWaiter(), nopLogger)

	_, err := m.Mint(context.Background(), types.DefaultChains()["arbitrum"], []byte{1}, nil)
	require.Equal(t, types.ValidationError, types.KindOf(err))
	require.Zero(t, signer.sends())
}

func TestAwaitViaHeadSubscription(t *testing.T) {
	chain := newFakeChain()
	chain.subErr = nil
	chain.notFoundFirst = 1
	hash := common.HexToHash("0x01")
	chain.setReceipt(hash, &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, TxHash: hash, BlockNumber: big.NewInt(5)})

	go func() {
		for {
			if ch := chain.headChan(); ch != nil {
				ch <- &ethtypes.Header{Number: big.NewInt(5)}
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	receipt, err := fastWaiter().Await(context.Background(), chain, hash)
	require.NoError(t, err)
	require.Equal(t, hash, receipt.TxHash)
	require.Equal(t, 2, chain.lookups)
}

func TestTokenReads(t *testing.T) {
	chain := newFakeChain()
	chain.balance = big.NewInt(42)
	chain.decimals = 6
	token := types.DefaultChains()["base"].Token()

	bal, err := ethereum.BalanceOf(context.Background(), chain, token, common.HexToAddress("0x01"))
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(42), bal)

	dec, err := ethereum.Decimals(context.Background(), chain, token)
	require.NoError(t, err)
	require.Equal(t, uint8(6), dec)
}

func TestMintReceivedChecksUsedNonce(t *testing.T) {
	chain := newFakeChain()
	m := ethereum.NewMintExecutor(fakeSource{chain}, &fakeSigner{chain: chain}, fastWaiter(), nopLogger)
	arb := types.DefaultChains()["arbitrum"]

	attested := v2Message(6, 3, 0x2a)
	received, err := m.Received(context.Background(), arb, attested)
	require.NoError(t, err)
	require.False(t, received)

	var nonce [32]byte
	nonce[31] = 0x2a
	chain.usedNonces[nonce] = true
	received, err = m.Received(context.Background(), arb, attested)
	require.NoError(t, err)
	require.True(t, received)

	// the emitted message has no nonce until Iris assigns one
	_, err = m.Received(context.Background(), arb, v2Message(6, 3, 0))
	require.Equal(t, types.ValidationError, types.KindOf(err))
}
