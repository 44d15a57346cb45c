package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AddLiquidityData mirrors the router's AddLiquidityData tuple.
type AddLiquidityData struct {
	Amount0Max      *big.Int
	Amount1Max      *big.Int
	Amount0Min      *big.Int
	Amount1Min      *big.Int
	AmountSharesMin *big.Int
	Vault           common.Address
	Receiver        common.Address
	Gauge           common.Address
}

// MintAmounts is the resolver's preview of a deposit.
type MintAmounts struct {
	Amount0    *big.Int
	Amount1    *big.Int
	MintAmount *big.Int
}

// PackAddLiquidity builds router.addLiquidity(params).
func PackAddLiquidity(router common.Address, params AddLiquidityData) (Call, error) {
	parsed, err := RouterABI()
	if err != nil {
		return Call{}, fmt.Errorf("parse router abi: %w", err)
	}
	data, err := parsed.Pack("addLiquidity", params)
	if err != nil {
		return Call{}, fmt.Errorf("pack addLiquidity: %w", err)
	}
	return Call{To: router, Method: "addLiquidity", Data: data}, nil
}

// GetMintAmounts asks the resolver how much of each token a deposit bounded
// by amount0Max/amount1Max would take and how many shares it would mint.
func GetMintAmounts(ctx context.Context, caller ContractCaller, resolver, vault common.Address, amount0Max, amount1Max *big.Int) (MintAmounts, error) {
	parsed, err := ResolverABI()
	if err != nil {
		return MintAmounts{}, fmt.Errorf("parse resolver abi: %w", err)
	}
	values, err := callMethod(ctx, caller, resolver, parsed, "getMintAmounts", nil, vault, amount0Max, amount1Max)
	if err != nil {
		return MintAmounts{}, err
	}
	out, err := bigInts(values, 3, "getMintAmounts")
	if err != nil {
		return MintAmounts{}, err
	}
	return MintAmounts{Amount0: out[0], Amount1: out[1], MintAmount: out[2]}, nil
}

// TotalUnderlying returns the vault's raw token0 and token1 reserves.
func TotalUnderlying(ctx context.Context, caller ContractCaller, helper, vault common.Address) (*big.Int, *big.Int, error) {
	parsed, err := HelperABI()
	if err != nil {
		return nil, nil, fmt.Errorf("parse helper abi: %w", err)
	}
	values, err := callMethod(ctx, caller, helper, parsed, "totalUnderlying", nil, vault)
	if err != nil {
		return nil, nil, err
	}
	out, err := bigInts(values, 2, "totalUnderlying")
	if err != nil {
		return nil, nil, err
	}
	return out[0], out[1], nil
}
