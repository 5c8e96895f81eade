package ethereum

import (
	"bytes"
	"embed"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/strangelove-ventures/cctp-bridge/types"
)

//go:embed abi/*.json
var abiFiles embed.FS

var (
	ERC20ABI              = mustLoadABI("abi/ERC20.json")
	TokenMessengerABI     = mustLoadABI("abi/TokenMessengerV2.json")
	MessageTransmitterABI = mustLoadABI("abi/MessageTransmitterV2.json")

	// MessageSentTopic is topic0 of MessageTransmitter's MessageSent(bytes) event.
	MessageSentTopic = MessageTransmitterABI.Events["MessageSent"].ID
)

func mustLoadABI(path string) abi.ABI {
	raw, err := abiFiles.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("missing embedded abi %s: %v", path, err))
	}
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded abi %s: %v", path, err))
	}
	return parsed
}

// DepositForBurnArgs are the arguments of TokenMessengerV2.depositForBurn.
type DepositForBurnArgs struct {
	Amount               *big.Int
	DestinationDomain    types.Domain
	MintRecipient        [32]byte
	BurnToken            common.Address
	DestinationCaller    [32]byte // zero allows any caller to mint
	MaxFee               *big.Int
	MinFinalityThreshold uint32
}

func PackDepositForBurn(args DepositForBurnArgs) ([]byte, error) {
	return TokenMessengerABI.Pack("depositForBurn",
		args.Amount,
		uint32(args.DestinationDomain),
		args.MintRecipient,
		args.BurnToken,
		args.DestinationCaller,
		args.MaxFee,
		args.MinFinalityThreshold,
	)
}

func PackReceiveMessage(message, attestation []byte) ([]byte, error) {
	return MessageTransmitterABI.Pack("receiveMessage", message, attestation)
}

func PackApprove(spender common.Address, value *big.Int) ([]byte, error) {
	return ERC20ABI.Pack("approve", spender, value)
}

// UnpackMessageSent decodes the message payload of a MessageSent log.
func UnpackMessageSent(data []byte) ([]byte, error) {
	out, err := MessageTransmitterABI.Unpack("MessageSent", data)
	if err != nil {
		return nil, fmt.Errorf("unable to unpack MessageSent log: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("unexpected MessageSent arguments: %d", len(out))
	}
	message, ok := out[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected MessageSent message type %T", out[0])
	}
	return message, nil
}
