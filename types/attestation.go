package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Iris statuses.
const (
	AttestationStatusComplete             = "complete"
	AttestationStatusPendingConfirmations = "pending_confirmations"
)

// AttestationResponseV2 is the v2 messages API response format
type AttestationResponseV2 struct {
	Messages []MessageResponseV2 `json:"messages"`
}

// MessageResponseV2 represents a message in v2 response
type MessageResponseV2 struct {
	Message                   string `json:"message"`
	Attestation               string `json:"attestation"`
	Status                    string `json:"status"`
	EventNonce                string `json:"eventNonce"`
	SourceDomain              string `json:"sourceDomain"`
	DestinationDomain         string `json:"destinationDomain"`
	CctpVersion               string `json:"cctpVersion"`
	FinalityThresholdExecuted string `json:"finalityThresholdExecuted"`
	ExpirationBlock           string `json:"expirationBlock"`
}

// Ready reports whether the message carries a usable attestation. Iris reports
// "PENDING" in the attestation field until signing finishes.
func (m MessageResponseV2) Ready() bool {
	att := strings.TrimSpace(m.Attestation)
	return m.Status == AttestationStatusComplete && att != "" && att != "0x" && !strings.EqualFold(att, "PENDING")
}

// ToAttestation decodes the hex fields of a ready message.
func (m MessageResponseV2) ToAttestation() (*Attestation, error) {
	att, err := DecodeHex(m.Attestation)
	if err != nil {
		return nil, fmt.Errorf("invalid attestation hex: %w", err)
	}
	var msg []byte
	if m.Message != "" && !strings.EqualFold(m.Message, "0x") {
		if msg, err = DecodeHex(m.Message); err != nil {
			return nil, fmt.Errorf("invalid message hex: %w", err)
		}
	}
	return &Attestation{
		Status:      m.Status,
		Attestation: att,
		Message:     msg,
		EventNonce:  m.EventNonce,
		Expiration:  ParseExpirationBlock(m.ExpirationBlock),
	}, nil
}

// FeeResponseEntry is one finality tier of the v2 burn fee API.
type FeeResponseEntry struct {
	FinalityThreshold uint32      `json:"finalityThreshold"`
	MinimumFee        json.Number `json:"minimumFee"` // basis points
}

// FastTransferAllowance is the v2 allowance response
type FastTransferAllowance struct {
	SourceDomain string `json:"sourceDomain"`
	Token        string `json:"token"`
	Allowance    string `json:"allowance"`
	MaxAllowance string `json:"maxAllowance"`
}

// ReattestResponse is the v2 re-attestation response
type ReattestResponse struct {
	Message     string `json:"message"`
	Attestation string `json:"attestation"`
	Status      string `json:"status"`
}

// DecodeHex decodes a hex string with or without the 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}

// ParseExpirationBlock converts the expiration block string to uint64, returning 0 when absent or invalid
func ParseExpirationBlock(expirationBlock string) uint64 {
	if expirationBlock == "" {
		return 0
	}
	block, err := strconv.ParseUint(expirationBlock, 10, 64)
	if err != nil {
		return 0
	}
	return block
}
