package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vaultDeposit/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS deposit_sessions (
	id TEXT PRIMARY KEY,
	chain_id BIGINT NOT NULL,
	account TEXT NOT NULL,
	vault TEXT NOT NULL,
	amount0 TEXT NOT NULL,
	amount1 TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS deposit_steps (
	id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	chain_id BIGINT NOT NULL,
	step_index INT NOT NULL,
	title TEXT NOT NULL,
	status TEXT NOT NULL,
	confirmations BIGINT NOT NULL,
	tx_hash TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS deposit_steps_session_idx ON deposit_steps (session_id, id);
`

// Store provides Postgres persistence for deposit sessions and step history.
type Store struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, timeout: 5 * time.Second}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the session and step tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertSession inserts or updates session metadata.
func (s *Store) UpsertSession(ctx context.Context, session model.Session) error {
	if session.ID == "" {
		return fmt.Errorf("session id required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO deposit_sessions (id, chain_id, account, vault, amount0, amount1, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (id) DO UPDATE SET
			account = EXCLUDED.account,
			amount0 = EXCLUDED.amount0,
			amount1 = EXCLUDED.amount1,
			updated_at = now()
	`,
		session.ID,
		int64(session.ChainID),
		session.Account,
		session.Vault,
		session.Amount0,
		session.Amount1,
		session.StartedAt,
	)
	return err
}

// InsertStepRecords appends step transitions in one batch.
func (s *Store) InsertStepRecords(ctx context.Context, records []model.StepRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO deposit_steps (
				session_id, chain_id, step_index, title, status, confirmations, tx_hash, error_message, recorded_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`,
			r.SessionID,
			int64(r.ChainID),
			r.StepIndex,
			r.Title,
			string(r.Status),
			int64(r.Confirmations),
			r.TransactionHash,
			r.ErrorMessage,
			r.RecordedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutStepBatch lets the store act as a step journal.
func (s *Store) PutStepBatch(records []model.StepRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.InsertStepRecords(ctx, records)
}

// LoadSession returns a session, reporting false when it does not exist.
func (s *Store) LoadSession(ctx context.Context, id string) (model.Session, bool, error) {
	if id == "" {
		return model.Session{}, false, fmt.Errorf("session id required")
	}
	var (
		session model.Session
		chainID int64
	)
	row := s.pool.QueryRow(ctx, `
		SELECT id, chain_id, account, vault, amount0, amount1, started_at
		FROM deposit_sessions WHERE id=$1
	`, id)
	if err := row.Scan(&session.ID, &chainID, &session.Account, &session.Vault, &session.Amount0, &session.Amount1, &session.StartedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Session{}, false, nil
		}
		return model.Session{}, false, err
	}
	session.ChainID = uint64(chainID)
	return session, true, nil
}

// LoadSteps returns every recorded transition of a session in insert order.
func (s *Store) LoadSteps(ctx context.Context, sessionID string) ([]model.StepRecord, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id required")
	}
	rows, err := s.pool.Query(ctx, `
		SELECT session_id, chain_id, step_index, title, status, confirmations, tx_hash, error_message, recorded_at
		FROM deposit_steps WHERE session_id=$1 ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StepRecord
	for rows.Next() {
		var (
			r             model.StepRecord
			chainID       int64
			status        string
			confirmations int64
		)
		if err := rows.Scan(&r.SessionID, &chainID, &r.StepIndex, &r.Title, &status, &confirmations, &r.TransactionHash, &r.ErrorMessage, &r.RecordedAt); err != nil {
			return nil, err
		}
		r.ChainID = uint64(chainID)
		r.Status = model.StepStatus(status)
		r.Confirmations = uint64(confirmations)
		out = append(out, r)
	}
	return out, rows.Err()
}
