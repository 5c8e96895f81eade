package types

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
)

// Domain is the CCTP domain id of a chain, distinct from its EVM chain id.
type Domain uint32

// Status of a TransferRecord. Values are ordered; transitions only move forward.
type Status string

const (
	Idle               Status = "idle"
	Approved           Status = "approved"
	Burned             Status = "burned"
	AttestationPending Status = "attestation_pending"
	AttestationReady   Status = "attestation_ready"
	Minted             Status = "minted"
	Failed             Status = "failed"
)

var statusOrder = map[Status]int{
	Idle:               0,
	Approved:           1,
	Burned:             2,
	AttestationPending: 3,
	AttestationReady:   4,
	Minted:             5,
}

// ParseStatus validates a persisted status string.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := statusOrder[status]; ok || status == Failed {
		return status, nil
	}
	return "", fmt.Errorf("unknown transfer status %q", s)
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == Minted || s == Failed
}

// Supersedes reports whether a record in status s may replace one persisted in
// stored. Rewriting the same status is allowed until it is terminal.
func (s Status) Supersedes(stored Status) bool {
	if stored == "" || s == stored {
		return true
	}
	if stored.Terminal() {
		return false
	}
	if s == Failed {
		return true
	}
	to, ok := statusOrder[s]
	return ok && to > statusOrder[stored]
}

// TransferRecord tracks one burn-and-mint transfer. It is mutated only by the
// orchestrator and persisted by the caller.
type TransferRecord struct {
	ID               string        `json:"id"`
	SourceChain      string        `json:"sourceChain"`
	DestinationChain string        `json:"destinationChain"`
	Amount           string        `json:"amount"`
	Recipient        string        `json:"recipient"`
	ApprovalTxHash   string        `json:"approvalTxHash,omitempty"`
	TransactionHash  string        `json:"transactionHash,omitempty"` // burn tx on the source chain
	MessageBytes     hexutil.Bytes `json:"messageBytes,omitempty"`
	Nonce            string        `json:"nonce,omitempty"`
	SourceDomain     Domain        `json:"sourceDomain"`
	MintTxHash       string        `json:"mintTxHash,omitempty"`
	Status           Status        `json:"status"`
	Error            string        `json:"error,omitempty"`
	Created          time.Time     `json:"created"`
	Updated          time.Time     `json:"updated"`
}

// NewTransferRecord creates an Idle record with a fresh id.
func NewTransferRecord(req *BridgeRequest) *TransferRecord {
	now := time.Now().UTC()
	return &TransferRecord{
		ID:               uuid.NewString(),
		SourceChain:      req.SourceChain,
		DestinationChain: req.DestinationChain,
		Amount:           req.Amount,
		Recipient:        req.RecipientAddress,
		Status:           Idle,
		Created:          now,
		Updated:          now,
	}
}

// Transition moves the record forward to next. Failed is reachable from any
// non-terminal status; everything else must strictly advance.
func (r *TransferRecord) Transition(next Status) error {
	if r.Status == "" {
		r.Status = Idle
	}
	if r.Status.Terminal() {
		return fmt.Errorf("transfer %s is terminal (%s), cannot move to %s", r.ID, r.Status, next)
	}
	if next != Failed {
		to, ok := statusOrder[next]
		if !ok {
			return fmt.Errorf("unknown transfer status %q", next)
		}
		if to <= statusOrder[r.Status] {
			return fmt.Errorf("transfer %s cannot move backwards from %s to %s", r.ID, r.Status, next)
		}
	}
	r.Status = next
	r.Updated = time.Now().UTC()
	return nil
}

// Fail moves the record to Failed, keeping the error detail.
func (r *TransferRecord) Fail(cause error) error {
	if err := r.Transition(Failed); err != nil {
		return err
	}
	if cause != nil {
		r.Error = cause.Error()
	}
	return nil
}

// MessageHex returns the 0x-prefixed emitted message.
func (r *TransferRecord) MessageHex() string {
	if len(r.MessageBytes) == 0 {
		return ""
	}
	return "0x" + hex.EncodeToString(r.MessageBytes)
}

// Clone returns a deep copy safe to hand to other goroutines.
func (r *TransferRecord) Clone() *TransferRecord {
	c := *r
	c.MessageBytes = append([]byte(nil), r.MessageBytes...)
	return &c
}
