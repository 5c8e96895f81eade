package types

import (
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// BridgeRequest is the JSON boundary input of one user-initiated transfer.
// Amounts are decimal strings in the token's smallest unit.
type BridgeRequest struct {
	SourceChain           string `json:"sourceChain"`
	DestinationChain      string `json:"destinationChain"`
	Amount                string `json:"amount"`
	RecipientAddress      string `json:"recipientAddress"`
	SenderAddress         string `json:"senderAddress"`
	CallerSuppliedBalance string `json:"callerSuppliedBalance"`
}

// ParsedRequest is a validated, immutable BridgeRequest.
type ParsedRequest struct {
	Request       BridgeRequest
	Source        ChainConfig
	Destination   ChainConfig
	Amount        sdkmath.Int
	Balance       sdkmath.Int
	Sender        common.Address
	MintRecipient [32]byte
}

// ParseRequest performs every check that needs no network access.
func ParseRequest(reg *ChainRegistry, req BridgeRequest) (*ParsedRequest, error) {
	src, err := reg.Lookup(req.SourceChain)
	if err != nil {
		return nil, err
	}
	dst, err := reg.Lookup(req.DestinationChain)
	if err != nil {
		return nil, err
	}
	if src.Domain == dst.Domain {
		return nil, Validationf("source and destination are both %s", src.Name)
	}
	if !reg.RouteEnabled(src.Domain, dst.Domain) {
		return nil, Validationf("route %s -> %s is not enabled", src.Name, dst.Name)
	}

	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return nil, NewBridgeError(ValidationError, err, "invalid amount")
	}
	if !amount.IsPositive() {
		return nil, Validationf("amount must be positive, got %s", req.Amount)
	}
	if src.MinBurnAmount != "" {
		minimum, _ := ParseAmount(src.MinBurnAmount)
		if amount.LT(minimum) {
			return nil, Validationf("amount %s is below the minimum burn amount %s on %s", amount, minimum, src.Name)
		}
	}

	balance, err := ParseAmount(req.CallerSuppliedBalance)
	if err != nil {
		return nil, NewBridgeError(ValidationError, err, "invalid caller supplied balance")
	}

	sender, err := ParseEVMAddress(req.SenderAddress)
	if err != nil {
		return nil, NewBridgeError(ValidationError, err, "invalid sender address")
	}
	recipient, err := ParseRecipient(dst, req.RecipientAddress)
	if err != nil {
		return nil, NewBridgeError(ValidationError, err, "invalid recipient address for %s", dst.Name)
	}

	return &ParsedRequest{
		Request:       req,
		Source:        src,
		Destination:   dst,
		Amount:        amount,
		Balance:       balance,
		Sender:        sender,
		MintRecipient: recipient,
	}, nil
}
