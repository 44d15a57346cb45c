package model

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenConfig describes one side of the vault pair.
//
// PricePath lists the feed tickers multiplied together to get a USD unit
// price, e.g. ["rETHETH", "ETHUSD"].
type TokenConfig struct {
	Symbol    string
	Address   common.Address
	Decimals  uint8
	PricePath []string
}

// TokenAmount is a user-facing decimal string and its token precision.
type TokenAmount struct {
	Value    string `json:"value"`
	Decimals uint8  `json:"decimals"`
}

// TokenBalanceEntry is the per-token state shown next to an input field.
// RawBalance is the wallet balance in base units and stays nil until the
// first balance query returns.
type TokenBalanceEntry struct {
	Symbol          string         `json:"symbol"`
	ContractAddress common.Address `json:"contract_address"`
	Decimals        uint8          `json:"decimals"`
	Amount          TokenAmount    `json:"amount"`
	WalletBalance   float64        `json:"wallet_balance"`
	RawBalance      *big.Int       `json:"raw_balance,omitempty"`
	DisplayUSDValue string         `json:"display_usd_value"`
	IsOverBalance   bool           `json:"is_over_balance"`
}

// TokenMeta is what an ERC-20 contract reports about itself.
type TokenMeta struct {
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name"`
}

// CheckConfig fails when the contract disagrees with the configured decimals,
// which would scale every amount wrongly.
func (m TokenMeta) CheckConfig(cfg TokenConfig) error {
	if m.Decimals != cfg.Decimals {
		return fmt.Errorf("token %s: configured decimals %d, contract reports %d", cfg.Symbol, cfg.Decimals, m.Decimals)
	}
	return nil
}
