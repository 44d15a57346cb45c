package session

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vaultDeposit/internal/chain"
	"vaultDeposit/internal/config"
	"vaultDeposit/internal/contracts"
	"vaultDeposit/internal/market"
	"vaultDeposit/internal/model"
	"vaultDeposit/internal/numeric"
	"vaultDeposit/internal/pair"
	"vaultDeposit/internal/txflow"
	"vaultDeposit/internal/wallet"
)

// Account is the signing side of a session. wallet.Signer satisfies it.
type Account interface {
	txflow.Writer
	Address() common.Address
	Context(connectedChainID uint64) model.WalletContext
}

// Deps are the chain collaborators a Context is built from.
type Deps struct {
	Caller        contracts.ContractCaller
	Confirmations txflow.ConfirmationSource
	Account       Account
	ChainID       uint64
	Close         func()
}

// Context is created once per application session and passed to every
// component that needs chain access.
type Context struct {
	cfg    config.Config
	deps   Deps
	tokens *contracts.TokenMetaCache
	logger *zap.Logger
}

// Open dials the RPC endpoint, reads the connected chain id and loads the
// signing key.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Context, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, err
	}
	chainID, err := client.GetChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	signer, err := wallet.NewSigner(client, cfg.PrivateKey, chainID.Uint64(), logger)
	if err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("session opened",
		zap.Uint64("chain_id", chainID.Uint64()),
		zap.Uint64("target_chain_id", cfg.ChainID),
		zap.Bool("connected", signer.Connected()),
		zap.String("account", signer.Address().Hex()),
	)

	return New(cfg, Deps{
		Caller:        client,
		Confirmations: client,
		Account:       signer,
		ChainID:       chainID.Uint64(),
		Close:         client.Close,
	}, logger), nil
}

// New builds a Context from already constructed collaborators.
func New(cfg config.Config, deps Deps, logger *zap.Logger) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Context{
		cfg:    cfg,
		deps:   deps,
		tokens: contracts.NewTokenMetaCache(),
		logger: logger,
	}
}

// Close releases the RPC connection.
func (c *Context) Close() {
	if c.deps.Close != nil {
		c.deps.Close()
	}
}

func (c *Context) Config() config.Config { return c.cfg }

func (c *Context) Logger() *zap.Logger { return c.logger }

// Wallet reports the account and the chain it is connected to.
func (c *Context) Wallet() model.WalletContext {
	if c.deps.Account == nil {
		return model.WalletContext{ChainID: c.deps.ChainID}
	}
	return c.deps.Account.Context(c.deps.ChainID)
}

// Submit resolves the submit state for form against the configured chain.
func (c *Context) Submit(form model.FormState) SubmitState {
	return ResolveSubmit(c.Wallet(), c.cfg.ChainID, form)
}

// VerifyTokens checks the configured decimals against the token contracts.
func (c *Context) VerifyTokens(ctx context.Context) error {
	for _, token := range c.cfg.Tokens {
		meta, err := c.tokens.LoadTokenMeta(ctx, c.deps.Caller, token.Address, c.logger)
		if err != nil {
			return fmt.Errorf("load %s metadata: %w", token.Symbol, err)
		}
		if err := meta.CheckConfig(token); err != nil {
			return err
		}
		if meta.Symbol != "" && meta.Symbol != token.Symbol {
			c.logger.Warn("token symbol differs from config",
				zap.String("configured", token.Symbol),
				zap.String("onchain", meta.Symbol),
			)
		}
	}
	return nil
}

// NewHolder creates the state holder for the configured pair.
func (c *Context) NewHolder() *pair.Holder {
	return pair.NewHolder(c.cfg.Tokens)
}

// NewRefresher wires balance, reserve and price reads into target.
func (c *Context) NewRefresher(target market.Target) *market.Refresher {
	var owner common.Address
	if c.deps.Account != nil {
		owner = c.deps.Account.Address()
	}
	return market.NewRefresher(c.deps.Caller, market.Settings{
		Tokens:   c.cfg.Tokens,
		Owner:    owner,
		Vault:    c.cfg.Vault,
		Helper:   c.cfg.Helper,
		Feed:     c.cfg.Feed,
		Interval: c.cfg.RefreshInterval,
		Retries:  c.cfg.PollRetries,
	}, target, c.logger.Named("market"))
}

// NewOrchestrator builds the approve, approve, add liquidity sequence over
// amounts.
func (c *Context) NewOrchestrator(amounts txflow.AmountSource) (*txflow.Orchestrator, error) {
	if c.deps.Account == nil {
		return nil, wallet.ErrNoKey
	}
	tokens := c.cfg.Tokens
	actions := []txflow.Action{
		&txflow.ApproveAction{Index: 0, Token: tokens[0], Router: c.cfg.Router, Amounts: amounts, Slippage: c.cfg.Slippage},
		&txflow.ApproveAction{Index: 1, Token: tokens[1], Router: c.cfg.Router, Amounts: amounts, Slippage: c.cfg.Slippage},
		&txflow.DepositAction{
			Tokens:   tokens,
			Router:   c.cfg.Router,
			Resolver: c.cfg.Resolver,
			Vault:    c.cfg.Vault,
			Receiver: c.deps.Account.Address(),
			Caller:   c.deps.Caller,
			Amounts:  amounts,
			Slippage: c.cfg.Slippage,
		},
	}
	return txflow.NewOrchestrator(txflow.Config{
		ChainID: c.deps.ChainID,
		Table:   c.cfg.Chains,
		Poll: txflow.PollConfig{
			Interval:    c.cfg.PollInterval,
			Timeout:     c.cfg.PollTimeout,
			MaxAttempts: c.cfg.MaxPollAttempts,
			Retries:     c.cfg.PollRetries,
		},
	}, actions, c.deps.Account, c.deps.Confirmations, c.logger.Named("txflow"))
}

// Approval compares the router allowance of one token with the amount its
// approve step will request.
type Approval struct {
	Symbol   string
	Decimals uint8
	Current  *big.Int
	Required *big.Int
}

// Covered reports whether the existing allowance already reaches Required.
func (a Approval) Covered() bool {
	return a.Current != nil && a.Required != nil && a.Current.Cmp(a.Required) >= 0
}

// Approvals reads the router allowance of both tokens for the session account.
func (c *Context) Approvals(ctx context.Context, amounts [2]model.TokenAmount) ([2]Approval, error) {
	var out [2]Approval
	if c.deps.Account == nil {
		return out, wallet.ErrNoKey
	}
	owner := c.deps.Account.Address()
	for i, token := range c.cfg.Tokens {
		current, err := contracts.Allowance(ctx, c.deps.Caller, token.Address, owner, c.cfg.Router)
		if err != nil {
			return out, fmt.Errorf("allowance of %s: %w", token.Symbol, err)
		}
		_, upper := txflow.SlippageBounds(numeric.SafeToBaseUnits(amounts[i].Value, token.Decimals), c.cfg.Slippage)
		out[i] = Approval{Symbol: token.Symbol, Decimals: token.Decimals, Current: current, Required: upper}
	}
	return out, nil
}
