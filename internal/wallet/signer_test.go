package wallet

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap/zaptest"

	"vaultDeposit/internal/contracts"
)

type fakeBackend struct {
	callErr error
	sendErr error
	nonce   uint64
	sent    []*types.Transaction
	calls   []ethereum.CallMsg
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls = append(f.calls, msg)
	return nil, f.callErr
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000), nil
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: big.NewInt(10_000_000)}, nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 120_000, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func newTestSigner(t *testing.T, backend Backend) *Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := NewSigner(backend, "0x"+hex.EncodeToString(crypto.FromECDSA(key)), 42161, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	if signer.Address() != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("address mismatch")
	}
	return signer
}

func TestSubmitSignsDynamicFeeTx(t *testing.T) {
	backend := &fakeBackend{nonce: 7}
	signer := newTestSigner(t, backend)

	call := contracts.Call{
		To:     common.HexToAddress("0x4444444444444444444444444444444444444444"),
		Method: "approve",
		Data:   []byte{0x09, 0x5e, 0xa7, 0xb3},
	}
	hash, err := signer.Submit(context.Background(), call)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(backend.sent) != 1 {
		t.Fatalf("expected one transaction, got %d", len(backend.sent))
	}
	tx := backend.sent[0]
	if tx.Hash() != hash {
		t.Fatalf("hash mismatch")
	}
	if tx.Type() != types.DynamicFeeTxType || tx.Nonce() != 7 || tx.Gas() != 120_000 {
		t.Fatalf("unexpected tx fields: type=%d nonce=%d gas=%d", tx.Type(), tx.Nonce(), tx.Gas())
	}
	if tx.GasFeeCap().Cmp(big.NewInt(21_000_000)) != 0 {
		t.Fatalf("fee cap mismatch: %s", tx.GasFeeCap())
	}
	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(42161)), tx)
	if err != nil {
		t.Fatalf("recover sender: %v", err)
	}
	if sender != signer.Address() {
		t.Fatalf("sender mismatch: %s", sender.Hex())
	}
}

func TestSubmitPropagatesSendError(t *testing.T) {
	backend := &fakeBackend{sendErr: errors.New("insufficient funds for gas")}
	signer := newTestSigner(t, backend)
	if _, err := signer.Submit(context.Background(), contracts.Call{Method: "approve"}); err == nil {
		t.Fatalf("expected send error")
	}
}

func TestSimulateUsesSender(t *testing.T) {
	backend := &fakeBackend{}
	signer := newTestSigner(t, backend)
	if err := signer.Simulate(context.Background(), contracts.Call{Method: "addLiquidity"}); err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if len(backend.calls) != 1 || backend.calls[0].From != signer.Address() {
		t.Fatalf("simulation not sent from signer: %+v", backend.calls)
	}

	backend.callErr = errors.New("execution reverted")
	if err := signer.Simulate(context.Background(), contracts.Call{Method: "addLiquidity"}); err == nil {
		t.Fatalf("expected simulation error")
	}
}

func TestDisconnectedSigner(t *testing.T) {
	signer, err := NewSigner(&fakeBackend{}, "", 42161, nil)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	wc := signer.Context(1)
	if wc.IsConnected || wc.ChainID != 1 {
		t.Fatalf("unexpected context: %+v", wc)
	}
	if _, err := signer.Submit(context.Background(), contracts.Call{}); !errors.Is(err, ErrNoKey) {
		t.Fatalf("expected ErrNoKey, got %v", err)
	}
}
