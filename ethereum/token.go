package ethereum

import (
	"context"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// callView packs method, runs it against the latest block and unpacks the single result.
func callView(ctx context.Context, backend Backend, contract abi.ABI, to common.Address, method string, args ...any) (any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("unable to pack %s: %w", method, err)
	}
	out, err := backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	res, err := contract.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unable to unpack %s: %w", method, err)
	}
	if len(res) != 1 {
		return nil, fmt.Errorf("%s returned %d values", method, len(res))
	}
	return res[0], nil
}

func callUint256(ctx context.Context, backend Backend, contract abi.ABI, to common.Address, method string, args ...any) (sdkmath.Int, error) {
	v, err := callView(ctx, backend, contract, to, method, args...)
	if err != nil {
		return sdkmath.Int{}, err
	}
	n, ok := v.(*big.Int)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("%s returned %T", method, v)
	}
	return sdkmath.NewIntFromBigInt(n), nil
}

// Allowance reads token.allowance(owner, spender).
func Allowance(ctx context.Context, backend Backend, token, owner, spender common.Address) (sdkmath.Int, error) {
	return callUint256(ctx, backend, ERC20ABI, token, "allowance", owner, spender)
}

// BalanceOf reads token.balanceOf(owner).
func BalanceOf(ctx context.Context, backend Backend, token, owner common.Address) (sdkmath.Int, error) {
	return callUint256(ctx, backend, ERC20ABI, token, "balanceOf", owner)
}

// Decimals reads token.decimals().
func Decimals(ctx context.Context, backend Backend, token common.Address) (uint8, error) {
	v, err := callView(ctx, backend, ERC20ABI, token, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok := v.(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals returned %T", v)
	}
	return d, nil
}
