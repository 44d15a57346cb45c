package model

import "github.com/ethereum/go-ethereum/common"

// WalletContext is the read-only account view the core works against.
type WalletContext struct {
	Address     common.Address
	IsConnected bool
	ChainID     uint64
}

// FormState summarizes the deposit inputs for the submit decision.
type FormState struct {
	ZeroAmount  bool
	OverBalance bool
	PriceError  bool
}
