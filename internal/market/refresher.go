package market

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vaultDeposit/internal/config"
	"vaultDeposit/internal/contracts"
	"vaultDeposit/internal/model"
	"vaultDeposit/internal/ratio"
)

// Target receives refreshed market data. pair.Holder satisfies it.
type Target interface {
	ApplyBalance(index int, raw *big.Int) error
	SetRatio(r *float64)
	SetUnitPrice(index int, quote model.PriceQuote) error
}

// Settings describes what the refresher reads.
type Settings struct {
	Tokens   [2]model.TokenConfig
	Owner    common.Address
	Vault    common.Address
	Helper   common.Address
	Feed     func(ticker string) (config.FeedConfig, bool)
	Interval time.Duration
	Retries  uint
}

// Snapshot is the result of one refresh.
type Snapshot struct {
	Balances   [2]*big.Int
	Reserves   [2]*big.Int
	Ratio      *float64
	UnitPrices [2]model.PriceQuote
	Quotes     map[string]model.PriceQuote
}

// Refresher periodically reads balances, vault reserves and price feeds and
// pushes them into a Target.
type Refresher struct {
	caller   contracts.ContractCaller
	settings Settings
	target   Target
	logger   *zap.Logger
}

// NewRefresher builds a Refresher with its dependencies.
func NewRefresher(caller contracts.ContractCaller, settings Settings, target Target, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.Interval <= 0 {
		settings.Interval = 30 * time.Second
	}
	return &Refresher{
		caller:   caller,
		settings: settings,
		target:   target,
		logger:   logger,
	}
}

// Run refreshes immediately and then every interval until ctx ends. Failed
// refreshes are logged and retried on the next tick.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.settings.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("market refresh failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Refresh reads everything once, concurrently, and applies the result.
func (r *Refresher) Refresh(ctx context.Context) (Snapshot, error) {
	if r.caller == nil {
		return Snapshot{}, fmt.Errorf("contract caller is nil")
	}

	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)

	if r.settings.Owner != (common.Address{}) {
		for i, token := range r.settings.Tokens {
			g.Go(func() error {
				bal, err := retryRead(gctx, r, func() (*big.Int, error) {
					return contracts.BalanceOf(gctx, r.caller, token.Address, r.settings.Owner)
				})
				if err != nil {
					return fmt.Errorf("balance of %s: %w", token.Symbol, err)
				}
				snap.Balances[i] = bal
				return nil
			})
		}
	}

	g.Go(func() error {
		reserves, err := retryRead(gctx, r, func() ([2]*big.Int, error) {
			r0, r1, err := contracts.TotalUnderlying(gctx, r.caller, r.settings.Helper, r.settings.Vault)
			return [2]*big.Int{r0, r1}, err
		})
		if err != nil {
			return fmt.Errorf("vault reserves: %w", err)
		}
		snap.Reserves = reserves
		return nil
	})

	var quotes map[string]model.PriceQuote
	g.Go(func() error {
		quotes = r.fetchQuotes(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	tokens := r.settings.Tokens
	snap.Ratio = ratio.VaultRatio(snap.Reserves[0], snap.Reserves[1], tokens[0].Decimals, tokens[1].Decimals)
	snap.Quotes = quotes
	for i, token := range tokens {
		snap.UnitPrices[i] = UnitPrice(token, quotes)
	}

	r.apply(snap)

	fields := []zap.Field{zap.Int("quotes", len(quotes))}
	if snap.Ratio != nil {
		fields = append(fields, zap.Float64("ratio", *snap.Ratio))
	}
	r.logger.Debug("market refreshed", fields...)
	return snap, nil
}

func (r *Refresher) apply(snap Snapshot) {
	if r.target == nil {
		return
	}
	r.target.SetRatio(snap.Ratio)
	for i := range snap.Balances {
		if snap.Balances[i] != nil {
			if err := r.target.ApplyBalance(i, snap.Balances[i]); err != nil {
				r.logger.Warn("apply balance", zap.Int("token", i), zap.Error(err))
			}
		}
		if err := r.target.SetUnitPrice(i, snap.UnitPrices[i]); err != nil {
			r.logger.Warn("apply price", zap.Int("token", i), zap.Error(err))
		}
	}
}

// fetchQuotes reads every ticker used by a price path. A failing feed yields
// a quote with IsError set instead of an error.
func (r *Refresher) fetchQuotes(ctx context.Context) map[string]model.PriceQuote {
	tickers := make(map[string]struct{})
	for _, token := range r.settings.Tokens {
		for _, ticker := range token.PricePath {
			tickers[ticker] = struct{}{}
		}
	}

	var mu sync.Mutex
	quotes := make(map[string]model.PriceQuote, len(tickers))
	var wg sync.WaitGroup
	for ticker := range tickers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			quote := r.fetchQuote(ctx, ticker)
			mu.Lock()
			quotes[ticker] = quote
			mu.Unlock()
		}()
	}
	wg.Wait()
	return quotes
}

func (r *Refresher) fetchQuote(ctx context.Context, ticker string) model.PriceQuote {
	var (
		feed config.FeedConfig
		ok   bool
	)
	if r.settings.Feed != nil {
		feed, ok = r.settings.Feed(ticker)
	}
	if !ok {
		r.logger.Warn("no price feed configured", zap.String("ticker", ticker))
		return model.PriceQuote{Ticker: ticker, IsError: true}
	}

	round, err := retryRead(ctx, r, func() (contracts.RoundData, error) {
		return contracts.LatestRoundData(ctx, r.caller, feed.Address)
	})
	if err != nil || round.Answer == nil || round.Answer.Sign() <= 0 {
		r.logger.Warn("price feed read failed", zap.String("ticker", ticker), zap.Error(err))
		return model.PriceQuote{Ticker: ticker, IsError: true}
	}
	return model.PriceQuote{
		Ticker:     ticker,
		Price:      round.Price(feed.Decimals),
		LastUpdate: round.UpdatedTime(),
	}
}

// UnitPrice multiplies the quotes along the token's price path, e.g.
// rETH/ETH * ETH/USD. The result is in error if any leg is.
func UnitPrice(token model.TokenConfig, quotes map[string]model.PriceQuote) model.PriceQuote {
	out := model.PriceQuote{Ticker: token.Symbol + "USD"}
	if len(token.PricePath) == 0 {
		out.IsError = true
		return out
	}
	price := 1.0
	for _, ticker := range token.PricePath {
		quote, ok := quotes[ticker]
		if !ok || quote.IsError {
			out.IsError = true
			return out
		}
		price *= quote.Price
		if quote.LastUpdate != nil && (out.LastUpdate == nil || quote.LastUpdate.Before(*out.LastUpdate)) {
			updated := *quote.LastUpdate
			out.LastUpdate = &updated
		}
	}
	out.Price = price
	return out
}

func retryRead[T any](ctx context.Context, r *Refresher, read func() (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 2 * time.Second

	notify := func(err error, wait time.Duration) {
		r.logger.Debug("read retry", zap.Error(err), zap.Duration("backoff", wait))
	}
	return backoff.Retry(ctx, read,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(r.settings.Retries+1),
		backoff.WithNotify(notify))
}
