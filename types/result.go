package types

import (
	"encoding/hex"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Finality thresholds understood by CCTP V2 burns.
const (
	FinalityThresholdFast     uint32 = 1000
	FinalityThresholdStandard uint32 = 2000
)

// FeeQuote is recomputed for every operation and never persisted.
type FeeQuote struct {
	FeeRateBasisPoints sdkmath.LegacyDec `json:"feeRateBasisPoints"`
	FeeAmount          sdkmath.Int       `json:"feeAmount"`
	FinalityThreshold  uint32            `json:"finalityThreshold"`
	// Degraded is set when the fee service could not be used and the fallback rate applied.
	Degraded bool `json:"degraded"`
}

type ApprovalResult struct {
	Approved bool   `json:"approved"`
	TxHash   string `json:"txHash,omitempty"`
}

type BurnResult struct {
	TransactionHash string `json:"transactionHash"`
	MessageBytes    []byte `json:"messageBytes"`
	Nonce           string `json:"nonce"`
	SourceDomain    Domain `json:"sourceDomain"`
}

type MintResult struct {
	TransactionHash string `json:"transactionHash"`
}

// BridgeResult is the JSON boundary output of approve-and-burn and mint.
type BridgeResult struct {
	Success         bool         `json:"success"`
	TransferID      string       `json:"transferId,omitempty"`
	TransactionHash string       `json:"transactionHash,omitempty"`
	MessageBytes    string       `json:"messageBytes,omitempty"`
	Nonce           string       `json:"nonce,omitempty"`
	SourceDomain    *Domain      `json:"sourceDomain,omitempty"`
	Status          Status       `json:"status,omitempty"`
	Error           *BridgeError `json:"error,omitempty"`
}

// ResultFromRecord fills the boundary shape from a record.
func ResultFromRecord(rec *TransferRecord) *BridgeResult {
	res := &BridgeResult{
		Success:         rec.Status != Failed,
		TransferID:      rec.ID,
		TransactionHash: rec.TransactionHash,
		MessageBytes:    rec.MessageHex(),
		Nonce:           rec.Nonce,
		Status:          rec.Status,
	}
	if rec.TransactionHash != "" {
		d := rec.SourceDomain
		res.SourceDomain = &d
	}
	return res
}

// FailureResult wraps an expected failure.
func FailureResult(rec *TransferRecord, err *BridgeError) *BridgeResult {
	res := ResultFromRecord(rec)
	res.Success = false
	res.Error = err
	return res
}

// AttestationResult is the outcome of one attestation wait.
type AttestationResult struct {
	Success     bool         `json:"success"`
	Attestation *Attestation `json:"attestation,omitempty"`
	Error       *BridgeError `json:"error,omitempty"`
}

// Attestation is a completed Iris attestation. Message is the attested message,
// which carries the nonce assigned off-chain.
type Attestation struct {
	Status      string        `json:"status"`
	Attestation hexutil.Bytes `json:"attestation"`
	Message     hexutil.Bytes `json:"message,omitempty"`
	EventNonce  string        `json:"eventNonce,omitempty"`
	// Expiration is the destination block after which a fast attestation must be re-requested. 0 if none.
	Expiration uint64 `json:"expirationBlock,omitempty"`
}

func (a *Attestation) AttestationHex() string {
	return "0x" + hex.EncodeToString(a.Attestation)
}

func (a *Attestation) MessageHex() string {
	if len(a.Message) == 0 {
		return ""
	}
	return "0x" + hex.EncodeToString(a.Message)
}
