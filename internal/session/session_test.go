package session

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap/zaptest"

	"vaultDeposit/internal/config"
	"vaultDeposit/internal/contracts"
	"vaultDeposit/internal/model"
)

func TestResolveSubmitPriority(t *testing.T) {
	ok := model.FormState{}
	cases := []struct {
		name   string
		wallet model.WalletContext
		form   model.FormState
		want   SubmitState
	}{
		{"disconnected wins over everything", model.WalletContext{ChainID: 1}, model.FormState{ZeroAmount: true}, SubmitState{Kind: SubmitDisconnected}},
		{"wrong network before form", model.WalletContext{IsConnected: true, ChainID: 1}, model.FormState{OverBalance: true}, SubmitState{Kind: SubmitWrongNetwork}},
		{"ready", model.WalletContext{IsConnected: true, ChainID: 42161}, ok, SubmitState{Kind: SubmitReady}},
		{"zero amount", model.WalletContext{IsConnected: true, ChainID: 42161}, model.FormState{ZeroAmount: true}, SubmitState{Kind: SubmitReady, Disabled: true}},
		{"over balance", model.WalletContext{IsConnected: true, ChainID: 42161}, model.FormState{OverBalance: true}, SubmitState{Kind: SubmitReady, Disabled: true}},
		{"price error", model.WalletContext{IsConnected: true, ChainID: 42161}, model.FormState{PriceError: true}, SubmitState{Kind: SubmitReady, Disabled: true}},
	}
	for _, tc := range cases {
		if got := ResolveSubmit(tc.wallet, 42161, tc.form); got != tc.want {
			t.Fatalf("%s: got %+v want %+v", tc.name, got, tc.want)
		}
	}
}

func TestSubmitKindLabels(t *testing.T) {
	if SubmitDisconnected.Label() != "Connect wallet" || SubmitWrongNetwork.Label() != "Switch network" || SubmitReady.Label() != "Add liquidity" {
		t.Fatalf("unexpected labels")
	}
	if SubmitWrongNetwork.String() != "wrong-network" || SubmitKind(9).String() != "unknown" {
		t.Fatalf("unexpected names")
	}
}

type fakeAccount struct {
	address   common.Address
	connected bool
}

func (a *fakeAccount) Simulate(context.Context, contracts.Call) error { return nil }

func (a *fakeAccount) Submit(context.Context, contracts.Call) (common.Hash, error) {
	return common.HexToHash("0x01"), nil
}

func (a *fakeAccount) Address() common.Address { return a.address }

func (a *fakeAccount) Context(chainID uint64) model.WalletContext {
	return model.WalletContext{Address: a.address, IsConnected: a.connected, ChainID: chainID}
}

type fakeSource struct{}

func (fakeSource) TransactionConfirmations(context.Context, common.Hash) (uint64, error) {
	return 1, nil
}

type decimalsCaller struct {
	decimals map[common.Address]uint8
}

func (c decimalsCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	parsed, err := contracts.ERC20ABI()
	if err != nil {
		return nil, err
	}
	method := parsed.Methods["decimals"]
	if msg.To == nil || hexutil.Encode(msg.Data[:4]) != hexutil.Encode(method.ID) {
		return nil, fmt.Errorf("execution reverted")
	}
	return method.Outputs.Pack(c.decimals[*msg.To])
}

func testConfig() config.Config {
	return config.Config{
		ChainID: 42161,
		Tokens: [2]model.TokenConfig{
			{Symbol: "WETH", Address: common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"), Decimals: 18},
			{Symbol: "rETH", Address: common.HexToAddress("0xEC70Dcb4A1EFa46b8F2D97C310C9c4790ba5ffA8"), Decimals: 18},
		},
		Vault:    common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Router:   common.HexToAddress("0x4444444444444444444444444444444444444444"),
		Resolver: common.HexToAddress("0x5555555555555555555555555555555555555555"),
		Helper:   common.HexToAddress("0x3333333333333333333333333333333333333333"),
		Slippage: 0.5,
		Chains:   config.NewChainTable(map[uint64]uint64{42161: 3}, false),
	}
}

func TestContextBuildsSequence(t *testing.T) {
	account := &fakeAccount{address: common.HexToAddress("0x1111111111111111111111111111111111111111"), connected: true}
	closed := false
	sc := New(testConfig(), Deps{
		Caller:        decimalsCaller{},
		Confirmations: fakeSource{},
		Account:       account,
		ChainID:       42161,
		Close:         func() { closed = true },
	}, zaptest.NewLogger(t))

	holder := sc.NewHolder()
	orch, err := sc.NewOrchestrator(holder)
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	view := orch.View()
	if len(view.Steps) != 3 || view.RequiredConfirmations != 3 {
		t.Fatalf("unexpected view: %+v", view)
	}
	titles := []string{view.Steps[0].Title, view.Steps[1].Title, view.Steps[2].Title}
	if strings.Join(titles, "|") != "WETH approval|rETH approval|Add liquidity" {
		t.Fatalf("unexpected titles: %v", titles)
	}

	if state := sc.Submit(holder.Form()); state.Kind != SubmitReady || !state.Disabled {
		t.Fatalf("empty form should be ready but disabled: %+v", state)
	}

	sc.Close()
	if !closed {
		t.Fatalf("close not propagated")
	}
}

func TestContextWrongNetwork(t *testing.T) {
	account := &fakeAccount{connected: true}
	sc := New(testConfig(), Deps{Account: account, Confirmations: fakeSource{}, ChainID: 1}, zaptest.NewLogger(t))
	if state := sc.Submit(model.FormState{}); state.Kind != SubmitWrongNetwork {
		t.Fatalf("expected wrong network, got %+v", state)
	}
	if _, err := sc.NewOrchestrator(sc.NewHolder()); err == nil {
		t.Fatalf("chain 1 has no confirmation setting")
	}
}

func TestContextWithoutAccount(t *testing.T) {
	sc := New(testConfig(), Deps{ChainID: 42161}, nil)
	if w := sc.Wallet(); w.IsConnected || w.ChainID != 42161 {
		t.Fatalf("unexpected wallet: %+v", w)
	}
	if _, err := sc.NewOrchestrator(sc.NewHolder()); err == nil {
		t.Fatalf("expected missing account error")
	}
}

func TestVerifyTokens(t *testing.T) {
	cfg := testConfig()
	caller := decimalsCaller{decimals: map[common.Address]uint8{
		cfg.Tokens[0].Address: 18,
		cfg.Tokens[1].Address: 18,
	}}
	sc := New(cfg, Deps{Caller: caller}, zaptest.NewLogger(t))
	if err := sc.VerifyTokens(context.Background()); err != nil {
		t.Fatalf("verify: %v", err)
	}

	cfg.Tokens[1].Decimals = 6
	sc = New(cfg, Deps{Caller: caller}, zaptest.NewLogger(t))
	if err := sc.VerifyTokens(context.Background()); err == nil || !strings.Contains(err.Error(), "rETH") {
		t.Fatalf("expected decimals mismatch, got %v", err)
	}
}

type allowanceCaller struct {
	owner     common.Address
	spender   common.Address
	allowance map[common.Address]*big.Int
}

func (c allowanceCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	parsed, err := contracts.ERC20ABI()
	if err != nil {
		return nil, err
	}
	method := parsed.Methods["allowance"]
	if msg.To == nil || hexutil.Encode(msg.Data[:4]) != hexutil.Encode(method.ID) {
		return nil, fmt.Errorf("execution reverted")
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	if args[0].(common.Address) != c.owner || args[1].(common.Address) != c.spender {
		return method.Outputs.Pack(big.NewInt(0))
	}
	return method.Outputs.Pack(c.allowance[*msg.To])
}

func TestApprovals(t *testing.T) {
	cfg := testConfig()
	account := &fakeAccount{address: common.HexToAddress("0x1111111111111111111111111111111111111111"), connected: true}
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	caller := allowanceCaller{
		owner:   account.address,
		spender: cfg.Router,
		allowance: map[common.Address]*big.Int{
			cfg.Tokens[0].Address: new(big.Int).Mul(big.NewInt(200), unit),
			cfg.Tokens[1].Address: unit,
		},
	}
	sc := New(cfg, Deps{Caller: caller, Account: account, ChainID: 42161}, zaptest.NewLogger(t))

	approvals, err := sc.Approvals(context.Background(), [2]model.TokenAmount{{Value: "100"}, {Value: "50"}})
	if err != nil {
		t.Fatalf("approvals: %v", err)
	}
	want0 := new(big.Int).Div(new(big.Int).Mul(big.NewInt(1005), unit), big.NewInt(10))
	if approvals[0].Required.Cmp(want0) != 0 {
		t.Fatalf("required with slippage: got %s want %s", approvals[0].Required, want0)
	}
	if !approvals[0].Covered() || approvals[1].Covered() {
		t.Fatalf("unexpected coverage: %+v", approvals)
	}
	if approvals[1].Symbol != "rETH" || approvals[1].Current.Cmp(unit) != 0 {
		t.Fatalf("unexpected approval: %+v", approvals[1])
	}

	if _, err := New(cfg, Deps{Caller: caller}, nil).Approvals(context.Background(), [2]model.TokenAmount{}); err == nil {
		t.Fatalf("expected missing account error")
	}
}
