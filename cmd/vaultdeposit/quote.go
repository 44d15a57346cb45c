package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"vaultDeposit/internal/config"
	"vaultDeposit/internal/numeric"
	"vaultDeposit/internal/session"
)

func runQuote(cmd *cobra.Command, _ []string) error {
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
	amount, _ := cmd.Flags().GetString("amount")
	side, _ := cmd.Flags().GetInt("side")
	if side != 0 && side != 1 {
		return fmt.Errorf("side must be 0 or 1")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := session.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer sc.Close()

	holder := sc.NewHolder()
	snap, err := sc.NewRefresher(holder).Refresh(ctx)
	if err != nil {
		return err
	}
	if err := holder.SetAmount(side, amount); err != nil {
		return err
	}

	out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	if snap.Ratio != nil {
		fmt.Fprintf(out, "ratio\t%s/%s\t%g\n", cfg.Tokens[0].Symbol, cfg.Tokens[1].Symbol, *snap.Ratio)
	} else {
		fmt.Fprintf(out, "ratio\tunknown\t\n")
	}
	for i, entry := range holder.State() {
		price := "error"
		if q := snap.UnitPrices[i]; !q.IsError {
			price = fmt.Sprintf("%g", q.Price)
		}
		fmt.Fprintf(out, "%s\t%s\t%s\tunit %s\n", entry.Symbol, entry.Amount.Value, entry.DisplayUSDValue, price)
	}
	if sc.Wallet().IsConnected {
		approvals, err := sc.Approvals(ctx, holder.Amounts())
		if err != nil {
			return err
		}
		for _, a := range approvals {
			fmt.Fprintf(out, "allowance\t%s\t%s\tneeds %s\n", a.Symbol,
				numeric.FormatUnits(a.Current, a.Decimals), numeric.FormatUnits(a.Required, a.Decimals))
		}
	}
	state := sc.Submit(holder.Form())
	fmt.Fprintf(out, "submit\t%s\tdisabled=%t\n", state.Kind, state.Disabled)
	return out.Flush()
}
