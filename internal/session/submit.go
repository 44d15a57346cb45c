package session

import "vaultDeposit/internal/model"

// SubmitKind is the state of the deposit button.
type SubmitKind int

const (
	SubmitDisconnected SubmitKind = iota
	SubmitWrongNetwork
	SubmitReady
)

func (k SubmitKind) String() string {
	switch k {
	case SubmitDisconnected:
		return "disconnected"
	case SubmitWrongNetwork:
		return "wrong-network"
	case SubmitReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Label is the call to action shown for the state.
func (k SubmitKind) Label() string {
	switch k {
	case SubmitDisconnected:
		return "Connect wallet"
	case SubmitWrongNetwork:
		return "Switch network"
	default:
		return "Add liquidity"
	}
}

// SubmitState is Disconnected, WrongNetwork, or Ready with Disabled set when
// the form cannot be submitted.
type SubmitState struct {
	Kind     SubmitKind
	Disabled bool
}

// ResolveSubmit picks the submit state by priority: connection first, then
// network, then form validity.
func ResolveSubmit(wallet model.WalletContext, targetChainID uint64, form model.FormState) SubmitState {
	if !wallet.IsConnected {
		return SubmitState{Kind: SubmitDisconnected}
	}
	if wallet.ChainID != targetChainID {
		return SubmitState{Kind: SubmitWrongNetwork}
	}
	return SubmitState{
		Kind:     SubmitReady,
		Disabled: form.ZeroAmount || form.OverBalance || form.PriceError,
	}
}
