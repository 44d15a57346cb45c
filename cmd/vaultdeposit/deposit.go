package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vaultDeposit/internal/config"
	"vaultDeposit/internal/metrics"
	"vaultDeposit/internal/model"
	"vaultDeposit/internal/pair"
	"vaultDeposit/internal/session"
	"vaultDeposit/internal/storage"
	"vaultDeposit/internal/storage/postgres"
	"vaultDeposit/internal/txflow"
)

func runDeposit(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.ValidateDeposit(); err != nil {
		return err
	}

	amount0, _ := cmd.Flags().GetString("amount0")
	amount1, _ := cmd.Flags().GetString("amount1")
	max0, _ := cmd.Flags().GetBool("max0")
	max1, _ := cmd.Flags().GetBool("max1")
	side, amount, useMax, err := pickInput(amount0, amount1, max0, max1)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := session.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer sc.Close()

	if err := sc.VerifyTokens(ctx); err != nil {
		return err
	}

	holder := sc.NewHolder()
	refresher := sc.NewRefresher(holder)
	if _, err := refresher.Refresh(ctx); err != nil {
		return fmt.Errorf("initial refresh: %w", err)
	}

	if useMax {
		err = holder.SetFromBalance(side)
	} else {
		err = holder.SetAmount(side, amount)
	}
	if err != nil {
		return err
	}

	entries := holder.State()
	logger.Info("deposit amounts",
		zap.String(entries[0].Symbol, entries[0].Amount.Value),
		zap.String(entries[1].Symbol, entries[1].Amount.Value),
		zap.String("usd0", entries[0].DisplayUSDValue),
		zap.String("usd1", entries[1].DisplayUSDValue),
	)

	if err := checkSubmit(sc.Submit(holder.Form()), holder); err != nil {
		return err
	}

	orch, err := sc.NewOrchestrator(holder)
	if err != nil {
		return err
	}
	if approvals, err := sc.Approvals(ctx, holder.Amounts()); err != nil {
		logger.Warn("read allowances", zap.Error(err))
	} else {
		for _, a := range approvals {
			logger.Info("router allowance",
				zap.String("token", a.Symbol),
				zap.String("current", a.Current.String()),
				zap.String("required", a.Required.String()),
				zap.Bool("covered", a.Covered()),
			)
		}
	}

	journal := storage.NewJsonlStorage(cfg.Journal)
	sessions := storage.NewSessionStore(filepath.Join(filepath.Dir(cfg.Journal), "sessions"))
	journals := []storage.Journal{journal}

	var store *postgres.Store
	if cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		journals = append(journals, store)
	}

	recorder := metrics.NewRecorder()
	orch.Observe(storage.Recorder(sc.Wallet().ChainID, logger, journals...))
	orch.Observe(recorder.Observe)
	orch.Observe(logStep(logger, cfg.Explorer, orch.RequiredConfirmations()))

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancelRun := context.WithCancel(gctx)
	defer cancelRun()

	g.Go(func() error {
		if err := refresher.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return recorder.Serve(runCtx, cfg.MetricsAddr, logger)
		})
	}

	g.Go(func() error {
		defer cancelRun()

		id := orch.Open(runCtx, func() {
			logger.Info("liquidity added")
		})
		defer orch.Close()

		meta := model.Session{
			ID:        id,
			ChainID:   sc.Wallet().ChainID,
			Account:   sc.Wallet().Address.Hex(),
			Vault:     cfg.Vault.Hex(),
			Amount0:   entries[0].Amount.Value,
			Amount1:   entries[1].Amount.Value,
			StartedAt: time.Now().UTC(),
		}
		if err := sessions.Save(meta); err != nil {
			logger.Warn("save session", zap.Error(err))
		}
		if store != nil {
			if err := store.UpsertSession(runCtx, meta); err != nil {
				logger.Warn("store session", zap.Error(err))
			}
		}

		err := orch.Wait(runCtx)
		switch {
		case err == nil:
			fmt.Fprintf(cmd.OutOrStdout(), "session %s complete\n", id)
			return nil
		case txflow.IsStepError(err):
			return fmt.Errorf("session %s failed: %w", id, err)
		default:
			return fmt.Errorf("session %s interrupted: %w", id, err)
		}
	})

	return g.Wait()
}

func pickInput(amount0, amount1 string, max0, max1 bool) (int, string, bool, error) {
	var (
		side   = -1
		amount string
		useMax bool
		count  int
	)
	if strings.TrimSpace(amount0) != "" {
		side, amount, count = 0, amount0, count+1
	}
	if strings.TrimSpace(amount1) != "" {
		side, amount, count = 1, amount1, count+1
	}
	if max0 {
		side, useMax, count = 0, true, count+1
	}
	if max1 {
		side, useMax, count = 1, true, count+1
	}
	if count != 1 {
		return 0, "", false, fmt.Errorf("exactly one of --amount0, --amount1, --max0, --max1 is required")
	}
	return side, amount, useMax, nil
}

func checkSubmit(state session.SubmitState, holder *pair.Holder) error {
	switch state.Kind {
	case session.SubmitDisconnected:
		return fmt.Errorf("%s: no private key configured", state.Kind.Label())
	case session.SubmitWrongNetwork:
		return fmt.Errorf("%s: rpc is not on the configured chain", state.Kind.Label())
	}
	if !state.Disabled {
		return nil
	}

	form := holder.Form()
	var reasons []string
	if form.ZeroAmount {
		reasons = append(reasons, "amount is zero")
	}
	if holder.HasError() {
		for _, entry := range holder.State() {
			if entry.IsOverBalance {
				reasons = append(reasons, fmt.Sprintf("%s %s exceeds balance %v", entry.Amount.Value, entry.Symbol, entry.WalletBalance))
			}
		}
	}
	if form.PriceError {
		reasons = append(reasons, "price feed unavailable")
	}
	return fmt.Errorf("cannot submit: %s", strings.Join(reasons, "; "))
}

func logStep(logger *zap.Logger, explorer string, required uint64) txflow.Observer {
	return func(sessionID string, step model.TransactionStep) {
		fields := []zap.Field{
			zap.String("session", sessionID),
			zap.Int("step", step.Index),
			zap.String("title", step.Title),
			zap.String("status", string(step.Status)),
			zap.Uint64("confirmations", step.Confirmations),
			zap.Uint64("required", required),
		}
		if step.TransactionHash != "" {
			fields = append(fields, zap.String("tx_hash", step.TransactionHash), zap.String("explorer", step.ExplorerURL(explorer)))
		}
		if step.Status == model.StepError {
			logger.Warn("step failed", append(fields, zap.String("message", step.ErrorMessage), zap.Error(step.Err))...)
			return
		}
		logger.Info("step", fields...)
	}
}
