package txflow

import (
	"math"
	"math/big"
)

// DefaultSlippage is the tolerance in percent applied to deposit bounds.
const DefaultSlippage = 0.5

// SlippageBounds widens base by percent in both directions. The tolerance is
// floored to basis points: delta = base * floor(percent*100) / 10000.
func SlippageBounds(base *big.Int, percent float64) (lower, upper *big.Int) {
	if base == nil || base.Sign() <= 0 {
		return new(big.Int), new(big.Int)
	}
	bps := int64(0)
	if percent > 0 && !math.IsInf(percent, 0) {
		bps = int64(math.Floor(percent * 100))
	}
	delta := new(big.Int).Mul(base, big.NewInt(bps))
	delta.Quo(delta, big.NewInt(10000))

	lower = new(big.Int).Sub(base, delta)
	if lower.Sign() < 0 {
		lower.SetInt64(0)
	}
	upper = new(big.Int).Add(base, delta)
	return lower, upper
}
