package txflow

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultDeposit/internal/contracts"
	"vaultDeposit/internal/model"
	"vaultDeposit/internal/numeric"
)

// Action builds the contract call a step submits.
type Action interface {
	Title() string
	// FailureMessage is shown when Prepare or the pre-flight fails.
	FailureMessage() string
	Prepare(ctx context.Context) (contracts.Call, error)
}

// AmountSource reads the amounts typed for both tokens at submission time.
// pair.Holder satisfies it.
type AmountSource interface {
	Amounts() [2]model.TokenAmount
}

// ApproveAction lets the router pull one token up to its slippage maximum.
type ApproveAction struct {
	Index    int
	Token    model.TokenConfig
	Router   common.Address
	Amounts  AmountSource
	Slippage float64
}

func (a *ApproveAction) Title() string {
	return a.Token.Symbol + " approval"
}

func (a *ApproveAction) FailureMessage() string {
	return "Failed to approve token"
}

func (a *ApproveAction) Prepare(context.Context) (contracts.Call, error) {
	if a.Index != 0 && a.Index != 1 {
		return contracts.Call{}, fmt.Errorf("token index %d out of range", a.Index)
	}
	amount := a.Amounts.Amounts()[a.Index]
	base, err := numeric.ToBaseUnits(amount.Value, a.Token.Decimals)
	if err != nil {
		return contracts.Call{}, fmt.Errorf("parse %s amount: %w", a.Token.Symbol, err)
	}
	if base.Sign() == 0 {
		return contracts.Call{}, fmt.Errorf("%s amount is zero", a.Token.Symbol)
	}
	_, upper := SlippageBounds(base, a.Slippage)
	return contracts.PackApprove(a.Token.Address, a.Router, upper)
}

// DepositAction adds both amounts to the vault through the router.
type DepositAction struct {
	Tokens   [2]model.TokenConfig
	Router   common.Address
	Resolver common.Address
	Vault    common.Address
	Receiver common.Address
	Caller   contracts.ContractCaller
	Amounts  AmountSource
	Slippage float64
}

func (a *DepositAction) Title() string {
	return "Add liquidity"
}

func (a *DepositAction) FailureMessage() string {
	return "Failed to add liquidity"
}

func (a *DepositAction) Prepare(ctx context.Context) (contracts.Call, error) {
	amounts := a.Amounts.Amounts()
	var mins, maxs [2]*big.Int
	for i, token := range a.Tokens {
		base, err := numeric.ToBaseUnits(amounts[i].Value, token.Decimals)
		if err != nil {
			return contracts.Call{}, fmt.Errorf("parse %s amount: %w", token.Symbol, err)
		}
		mins[i], maxs[i] = SlippageBounds(base, a.Slippage)
		if maxs[i].Sign() == 0 {
			return contracts.Call{}, fmt.Errorf("%s amount is zero", token.Symbol)
		}
	}

	mint, err := contracts.GetMintAmounts(ctx, a.Caller, a.Resolver, a.Vault, maxs[0], maxs[1])
	if err != nil {
		return contracts.Call{}, fmt.Errorf("could not fetch mint amounts: %w", err)
	}
	if mint.MintAmount == nil || mint.MintAmount.Sign() == 0 {
		return contracts.Call{}, fmt.Errorf("could not fetch mint amounts: zero shares")
	}

	return contracts.PackAddLiquidity(a.Router, contracts.AddLiquidityData{
		Amount0Max:      maxs[0],
		Amount1Max:      maxs[1],
		Amount0Min:      mins[0],
		Amount1Min:      mins[1],
		AmountSharesMin: big.NewInt(1),
		Vault:           a.Vault,
		Receiver:        a.Receiver,
	})
}
