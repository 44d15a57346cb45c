package main

import (
	"context"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultDeposit/internal/config"
	"vaultDeposit/internal/model"
	"vaultDeposit/internal/storage"
	"vaultDeposit/internal/storage/postgres"
)

func runHistory(cmd *cobra.Command, _ []string) error {
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

	id, _ := cmd.Flags().GetString("session")
	if id == "" {
		return fmt.Errorf("session id is required")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		meta    model.Session
		found   bool
		records []model.StepRecord
	)
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()

		if meta, found, err = store.LoadSession(ctx, id); err != nil {
			return err
		}
		if records, err = store.LoadSteps(ctx, id); err != nil {
			return err
		}
	} else {
		sessions := storage.NewSessionStore(filepath.Join(filepath.Dir(cfg.Journal), "sessions"))
		if meta, found, err = sessions.Load(id); err != nil {
			return err
		}
		if records, err = storage.NewJsonlStorage(cfg.Journal).ReadSteps(id); err != nil {
			return err
		}
	}

	logger.Debug("history loaded", zap.String("session", id), zap.Bool("found", found), zap.Int("records", len(records)))
	if !found && len(records) == 0 {
		return fmt.Errorf("session %s not found", id)
	}

	out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	if found {
		fmt.Fprintf(out, "session\t%s\tchain %d\t%s\n", meta.ID, meta.ChainID, meta.StartedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "amounts\t%s\t%s\t\n", meta.Amount0, meta.Amount1)
	}
	for _, r := range records {
		step := model.TransactionStep{TransactionHash: r.TransactionHash}
		fmt.Fprintf(out, "%s\t%d %s\t%s\t%d\t%s\t%s\n",
			r.RecordedAt, r.StepIndex, r.Title, r.Status, r.Confirmations, step.ExplorerURL(cfg.Explorer), r.ErrorMessage)
	}
	return out.Flush()
}
