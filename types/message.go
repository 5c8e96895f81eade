package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Message versions emitted by MessageTransmitter.
const (
	MessageVersionV1 uint32 = 0
	MessageVersionV2 uint32 = 1
)

const (
	messageV1HeaderLen = 116 // version|src|dst|nonce(8)|sender|recipient|destCaller
	messageV2HeaderLen = 148 // version|src|dst|nonce(32)|sender|recipient|destCaller|minFinality|finalityExecuted
)

// MessageHeader is the decoded fixed-size prefix of a CCTP message.
type MessageHeader struct {
	Version                   uint32
	SourceDomain              Domain
	DestinationDomain         Domain
	Nonce                     string
	Sender                    [32]byte
	Recipient                 [32]byte
	DestinationCaller         [32]byte
	MinFinalityThreshold      uint32
	FinalityThresholdExecuted uint32
	Body                      []byte
}

// ParseMessageHeader decodes a MessageSent payload. V2 nonces are rendered as
// 0x-prefixed bytes32 hex (zero until Iris fills them), V1 nonces as decimal.
func ParseMessageHeader(raw []byte) (*MessageHeader, error) {
	if len(raw) < 12 {
		return nil, fmt.Errorf("message too short: %d bytes", len(raw))
	}
	h := &MessageHeader{
		Version:           binary.BigEndian.Uint32(raw[0:4]),
		SourceDomain:      Domain(binary.BigEndian.Uint32(raw[4:8])),
		DestinationDomain: Domain(binary.BigEndian.Uint32(raw[8:12])),
	}

	switch h.Version {
	case MessageVersionV1:
		if len(raw) < messageV1HeaderLen {
			return nil, fmt.Errorf("v1 message too short: %d bytes", len(raw))
		}
		h.Nonce = new(big.Int).SetUint64(binary.BigEndian.Uint64(raw[12:20])).String()
		copy(h.Sender[:], raw[20:52])
		copy(h.Recipient[:], raw[52:84])
		copy(h.DestinationCaller[:], raw[84:116])
		h.Body = raw[messageV1HeaderLen:]
	case MessageVersionV2:
		if len(raw) < messageV2HeaderLen {
			return nil, fmt.Errorf("v2 message too short: %d bytes", len(raw))
		}
		h.Nonce = "0x" + hex.EncodeToString(raw[12:44])
		copy(h.Sender[:], raw[44:76])
		copy(h.Recipient[:], raw[76:108])
		copy(h.DestinationCaller[:], raw[108:140])
		h.MinFinalityThreshold = binary.BigEndian.Uint32(raw[140:144])
		h.FinalityThresholdExecuted = binary.BigEndian.Uint32(raw[144:148])
		h.Body = raw[messageV2HeaderLen:]
	default:
		return nil, fmt.Errorf("unknown message version %d", h.Version)
	}
	return h, nil
}
