package contracts

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"vaultDeposit/internal/numeric"
)

// RoundData is a Chainlink aggregator answer.
type RoundData struct {
	RoundID         *big.Int
	Answer          *big.Int
	StartedAt       *big.Int
	UpdatedAt       *big.Int
	AnsweredInRound *big.Int
}

// Price converts the raw answer using the feed's decimals.
func (r RoundData) Price(decimals uint8) float64 {
	return numeric.ToFloat(r.Answer, decimals)
}

// UpdatedTime returns the answer's update time, or nil if unset.
func (r RoundData) UpdatedTime() *time.Time {
	if r.UpdatedAt == nil || r.UpdatedAt.Sign() == 0 {
		return nil
	}
	t := time.Unix(r.UpdatedAt.Int64(), 0).UTC()
	return &t
}

// LatestRoundData reads the latest answer from a Chainlink aggregator.
func LatestRoundData(ctx context.Context, caller ContractCaller, feed common.Address) (RoundData, error) {
	parsed, err := PriceFeedABI()
	if err != nil {
		return RoundData{}, fmt.Errorf("parse price feed abi: %w", err)
	}
	values, err := callMethod(ctx, caller, feed, parsed, "latestRoundData", nil)
	if err != nil {
		return RoundData{}, err
	}
	out, err := bigInts(values, 5, "latestRoundData")
	if err != nil {
		return RoundData{}, err
	}
	return RoundData{
		RoundID:         out[0],
		Answer:          out[1],
		StartedAt:       out[2],
		UpdatedAt:       out[3],
		AnsweredInRound: out[4],
	}, nil
}
