package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "vaultdeposit",
		Short:        "Approve and deposit a token pair into a liquidity vault",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	depositCmd := &cobra.Command{
		Use:   "deposit",
		Short: "Approve both tokens and add liquidity to the vault",
		RunE:  runDeposit,
	}

	addChainFlags(depositCmd)
	depositCmd.Flags().String("amount0", "", "token0 amount (token1 is derived from the vault ratio)")
	depositCmd.Flags().String("amount1", "", "token1 amount (token0 is derived from the vault ratio)")
	depositCmd.Flags().Bool("max0", false, "use the full token0 wallet balance")
	depositCmd.Flags().Bool("max1", false, "use the full token1 wallet balance")
	depositCmd.Flags().Float64("slippage", 0.5, "slippage tolerance in percent")
	depositCmd.Flags().Duration("poll-interval", time.Second, "confirmation poll interval")
	depositCmd.Flags().Duration("poll-timeout", 0, "give up waiting for confirmations after this long (0 disables)")
	depositCmd.Flags().Int("max-poll-attempts", 0, "give up after this many confirmation polls (0 disables)")
	depositCmd.Flags().String("journal", "./data/steps.jsonl", "step journal JSONL path")
	depositCmd.Flags().String("pg-dsn", "", "Postgres DSN for step history")
	depositCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(depositCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Show the paired amount and USD values for a deposit",
		RunE:  runQuote,
	}

	addChainFlags(quoteCmd)
	quoteCmd.Flags().String("amount", "", "amount entered for one token")
	quoteCmd.Flags().Int("side", 0, "token the amount is for (0 or 1)")

	root.AddCommand(quoteCmd)

	convertCmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a decimal amount to base units",
		RunE:  runConvert,
	}

	convertCmd.Flags().String("amount", "", "decimal amount, scientific notation allowed")
	convertCmd.Flags().Uint8("decimals", 18, "token decimals")

	root.AddCommand(convertCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Print the recorded steps of a deposit session",
		RunE:  runHistory,
	}

	historyCmd.Flags().String("session", "", "session id")
	historyCmd.Flags().String("journal", "./data/steps.jsonl", "step journal JSONL path")
	historyCmd.Flags().String("pg-dsn", "", "Postgres DSN, read instead of the journal when set")
	historyCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(historyCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addChainFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "RPC URL")
	cmd.Flags().Uint64("chain-id", 42161, "chain the vault lives on")
	cmd.Flags().String("private-key", "", "hex private key of the depositing account")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
