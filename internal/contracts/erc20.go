package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BalanceOf returns the ERC20 balance of owner in base units.
func BalanceOf(ctx context.Context, caller ContractCaller, token, owner common.Address) (*big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	values, err := callMethod(ctx, caller, token, parsed, "balanceOf", nil, owner)
	if err != nil {
		return nil, err
	}
	out, err := bigInts(values, 1, "balanceOf")
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// Allowance returns how much spender may pull from owner.
func Allowance(ctx context.Context, caller ContractCaller, token, owner, spender common.Address) (*big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	values, err := callMethod(ctx, caller, token, parsed, "allowance", nil, owner, spender)
	if err != nil {
		return nil, err
	}
	out, err := bigInts(values, 1, "allowance")
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// PackApprove builds an ERC20 approve(spender, amount) call on token.
func PackApprove(token, spender common.Address, amount *big.Int) (Call, error) {
	if amount == nil || amount.Sign() < 0 {
		return Call{}, fmt.Errorf("approve amount must be non-negative")
	}
	parsed, err := ERC20ABI()
	if err != nil {
		return Call{}, err
	}
	data, err := parsed.Pack("approve", spender, amount)
	if err != nil {
		return Call{}, fmt.Errorf("pack approve: %w", err)
	}
	return Call{To: token, Method: "approve", Data: data}, nil
}
