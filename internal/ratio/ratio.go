package ratio

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Pair is the result of deriving one token amount from the other.
// An empty PairedAmount means the pair cannot be computed yet.
type Pair struct {
	Amount       string `json:"amount"`
	PairedAmount string `json:"paired_amount"`
}

// PriceOf returns amount * unitPrice, or 0 when either is unavailable.
func PriceOf(amount float64, unitPrice *float64) float64 {
	if amount == 0 || math.IsNaN(amount) || unitPrice == nil {
		return 0
	}
	return amount * *unitPrice
}

// SafeParseNumber drops every character that is not a digit or a dot and
// parses the rest. Empty input parses as 0.
func SafeParseNumber(value string) (float64, bool) {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, value)
	if sanitized == "" {
		return 0, true
	}
	parsed, err := strconv.ParseFloat(sanitized, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, false
	}
	return parsed, true
}

// PairedAmount derives the other token's amount from amount entered on side
// using ratio = token0 / token1. Side 0 divides by the ratio, side 1
// multiplies.
func PairedAmount(amount string, side int, ratio *float64) Pair {
	if !usableRatio(ratio) || amount == "" || (side != 0 && side != 1) {
		return Pair{Amount: amount}
	}

	value, ok := SafeParseNumber(amount)
	if !ok {
		return Pair{Amount: amount, PairedAmount: "0"}
	}

	var paired float64
	if side == 0 {
		paired = value / *ratio
	} else {
		paired = value * *ratio
	}
	return Pair{Amount: amount, PairedAmount: formatFloat(paired)}
}

func usableRatio(ratio *float64) bool {
	if ratio == nil {
		return false
	}
	r := *ratio
	return r > 0 && !math.IsNaN(r) && !math.IsInf(r, 0)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// VaultRatio converts raw vault reserves into token0/token1 in human units.
// It returns nil when reserves are unavailable or token1 is empty.
func VaultRatio(reserve0, reserve1 *big.Int, decimals0, decimals1 uint8) *float64 {
	if reserve0 == nil || reserve1 == nil || reserve1.Sign() == 0 {
		return nil
	}
	scale0 := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals0)), nil)
	scale1 := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals1)), nil)

	num := new(big.Int).Mul(reserve0, scale1)
	den := new(big.Int).Mul(reserve1, scale0)
	f, _ := new(big.Rat).SetFrac(num, den).Float64()
	return &f
}

// FormatUSD renders a dollar value with two decimals, e.g. "$1234.50".
func FormatUSD(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}
