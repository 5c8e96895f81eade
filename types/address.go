package types

import (
	"fmt"
	"strings"

	ethav "github.com/KOREAN139/ethereum-address-validator"
	"github.com/ethereum/go-ethereum/common"
)

// ParseEVMAddress validates a 0x-prefixed 20-byte address. Mixed-case input must
// carry a valid EIP-55 checksum.
func ParseEVMAddress(addr string) (common.Address, error) {
	addr = strings.TrimSpace(addr)
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return common.Address{}, fmt.Errorf("address %q must be 0x-prefixed", addr)
	}
	if !common.IsHexAddress(addr) {
		return common.Address{}, fmt.Errorf("address %q is not a 20-byte hex address", addr)
	}
	parsed := common.HexToAddress(addr)
	body := addr[2:]
	if strings.ToLower(body) != body && strings.ToUpper(body) != body && parsed.Hex() != "0x"+body {
		return common.Address{}, fmt.Errorf("address %q has an invalid checksum", addr)
	}
	if err := ethav.Validate(parsed.Hex()); err != nil {
		return common.Address{}, fmt.Errorf("address %q is invalid: %w", addr, err)
	}
	if parsed == (common.Address{}) {
		return common.Address{}, fmt.Errorf("zero address is not allowed")
	}
	return parsed, nil
}

// AddressToBytes32 left-pads a 20-byte address into the bytes32 form used for
// mintRecipient and destinationCaller.
func AddressToBytes32(addr common.Address) [32]byte {
	var out [32]byte
	copy(out[12:], addr.Bytes())
	return out
}

// Bytes32ToAddress reverses AddressToBytes32, rejecting non-zero padding.
func Bytes32ToAddress(b [32]byte) (common.Address, error) {
	for _, v := range b[:12] {
		if v != 0 {
			return common.Address{}, fmt.Errorf("bytes32 %x does not hold a 20-byte address", b)
		}
	}
	return common.BytesToAddress(b[12:]), nil
}

// ParseRecipient validates a recipient for the destination chain's family and
// returns its bytes32 mint recipient encoding.
func ParseRecipient(dest ChainConfig, addr string) ([32]byte, error) {
	switch dest.Family {
	case FamilyEVM, "":
		a, err := ParseEVMAddress(addr)
		if err != nil {
			return [32]byte{}, err
		}
		return AddressToBytes32(a), nil
	default:
		return [32]byte{}, fmt.Errorf("unsupported destination family %q", dest.Family)
	}
}
