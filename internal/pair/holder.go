package pair

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"vaultDeposit/internal/model"
	"vaultDeposit/internal/numeric"
	"vaultDeposit/internal/ratio"
)

// ErrNoBalance is returned by SetFromBalance before the first balance arrives.
var ErrNoBalance = errors.New("wallet balance not loaded")

// Holder owns the two token entries of the deposit form. Every mutation
// builds a new state and swaps it in whole, so readers see either the old
// or the new pair, never a mix.
type Holder struct {
	mu       sync.RWMutex
	entries  [2]model.TokenBalanceEntry
	ratio    *float64
	prices   [2]*float64
	priceErr [2]bool
}

// NewHolder starts with empty amounts for both tokens.
func NewHolder(tokens [2]model.TokenConfig) *Holder {
	h := &Holder{}
	for i, token := range tokens {
		h.entries[i] = model.TokenBalanceEntry{
			Symbol:          token.Symbol,
			ContractAddress: token.Address,
			Decimals:        token.Decimals,
			Amount:          model.TokenAmount{Decimals: token.Decimals},
		}
	}
	h.entries = h.derive(h.entries)
	return h
}

// SetAmount records the amount typed for index and fills in the paired
// amount from the vault ratio. While the ratio is unknown the other amount
// is left as it is; clearing one amount clears both.
//
// The amount is stored in its normalized plain-decimal form so pairing, USD
// values and base-unit conversion all read the same number. Input that is
// not a non-negative decimal returns numeric.ErrInvalidFormat and leaves the
// state unchanged.
func (h *Holder) SetAmount(index int, amount string) error {
	if err := checkIndex(index); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	normalized, err := normalizeAmount(amount, h.entries[index].Decimals)
	if err != nil {
		return fmt.Errorf("%s amount: %w", h.entries[index].Symbol, err)
	}
	h.entries = h.derive(h.withAmount(h.entries, index, normalized))
	return nil
}

// SetFromBalance sets index to its full wallet balance.
func (h *Holder) SetFromBalance(index int) error {
	if err := checkIndex(index); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	entry := h.entries[index]
	if entry.RawBalance == nil {
		return fmt.Errorf("%s: %w", entry.Symbol, ErrNoBalance)
	}
	amount := numeric.FormatUnits(entry.RawBalance, entry.Decimals)
	h.entries = h.derive(h.withAmount(h.entries, index, amount))
	return nil
}

// ApplyBalance merges a balance query result. Typed amounts are kept.
func (h *Holder) ApplyBalance(index int, raw *big.Int) error {
	if err := checkIndex(index); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("balance for token %d is nil", index)
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	next := h.entries
	next[index].RawBalance = new(big.Int).Set(raw)
	next[index].WalletBalance = decimal.NewFromBigInt(raw, -int32(next[index].Decimals)).InexactFloat64()
	h.entries = h.derive(next)
	return nil
}

// SetUnitPrice stores the USD price of one unit of token index. A quote in
// error clears the price and marks the feed as failing.
func (h *Holder) SetUnitPrice(index int, quote model.PriceQuote) error {
	if err := checkIndex(index); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if quote.IsError {
		h.prices[index] = nil
		h.priceErr[index] = true
	} else {
		price := quote.Price
		h.prices[index] = &price
		h.priceErr[index] = false
	}
	h.entries = h.derive(h.entries)
	return nil
}

// SetRatio stores the vault ratio (token0 / token1). nil means unknown.
func (h *Holder) SetRatio(r *float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r == nil {
		h.ratio = nil
		return
	}
	v := *r
	h.ratio = &v
}

// Ratio returns the last known vault ratio.
func (h *Holder) Ratio() *float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.ratio == nil {
		return nil
	}
	v := *h.ratio
	return &v
}

// State returns a copy of both entries.
func (h *Holder) State() [2]model.TokenBalanceEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.entries
}

// Amounts returns the typed amounts.
func (h *Holder) Amounts() [2]model.TokenAmount {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return [2]model.TokenAmount{h.entries[0].Amount, h.entries[1].Amount}
}

// HasError reports whether either entry exceeds its wallet balance.
func (h *Holder) HasError() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.entries[0].IsOverBalance || h.entries[1].IsOverBalance
}

// Form summarizes the entries for the submit decision.
func (h *Holder) Form() model.FormState {
	h.mu.RLock()
	defer h.mu.RUnlock()

	form := model.FormState{
		OverBalance: h.entries[0].IsOverBalance || h.entries[1].IsOverBalance,
		PriceError:  h.priceErr[0] || h.priceErr[1],
	}
	for _, entry := range h.entries {
		if numeric.SafeToBaseUnits(entry.Amount.Value, entry.Decimals).Sign() == 0 {
			form.ZeroAmount = true
		}
	}
	return form
}

func (h *Holder) withAmount(entries [2]model.TokenBalanceEntry, index int, amount string) [2]model.TokenBalanceEntry {
	other := 1 - index
	entries[index].Amount.Value = amount

	if amount == "" {
		entries[other].Amount.Value = ""
		return entries
	}
	paired := ratio.PairedAmount(amount, index, h.ratio)
	if paired.PairedAmount != "" {
		entries[other].Amount.Value = paired.PairedAmount
	}
	return entries
}

// derive recomputes the USD value and over-balance flag of both entries.
func (h *Holder) derive(entries [2]model.TokenBalanceEntry) [2]model.TokenBalanceEntry {
	for i := range entries {
		entry := &entries[i]
		value, ok := ratio.SafeParseNumber(entry.Amount.Value)
		if !ok {
			value = 0
		}
		entry.DisplayUSDValue = ratio.FormatUSD(ratio.PriceOf(value, h.prices[i]))
		entry.IsOverBalance = overBalance(*entry, value)
	}
	return entries
}

// overBalance compares in base units once the raw balance is known.
func overBalance(entry model.TokenBalanceEntry, parsed float64) bool {
	if entry.RawBalance != nil {
		return numeric.SafeToBaseUnits(entry.Amount.Value, entry.Decimals).Cmp(entry.RawBalance) > 0
	}
	return parsed > entry.WalletBalance
}

func normalizeAmount(amount string, decimals uint8) (string, error) {
	normalized, err := numeric.NormalizeDecimalString(amount)
	if err != nil {
		return "", err
	}
	if _, err := numeric.ToBaseUnits(normalized, decimals); err != nil {
		return "", err
	}
	return strings.TrimPrefix(normalized, "+"), nil
}

func checkIndex(index int) error {
	if index != 0 && index != 1 {
		return fmt.Errorf("token index %d out of range", index)
	}
	return nil
}
