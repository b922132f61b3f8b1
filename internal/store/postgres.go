package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kalshiplus/paper-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS paper_portfolios (
			session    TEXT PRIMARY KEY,
			balance    NUMERIC NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS paper_positions (
			seq       BIGSERIAL PRIMARY KEY,
			id        TEXT NOT NULL UNIQUE,
			session   TEXT NOT NULL REFERENCES paper_portfolios(session) ON DELETE CASCADE,
			ticker    TEXT NOT NULL,
			title     TEXT NOT NULL,
			side      TEXT NOT NULL CHECK (side IN ('YES', 'NO')),
			quantity  BIGINT NOT NULL CHECK (quantity > 0),
			price     NUMERIC NOT NULL,
			cost      NUMERIC NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS paper_positions_session_idx ON paper_positions (session, seq)`,
		`CREATE TABLE IF NOT EXISTS price_alerts (
			seq          BIGSERIAL PRIMARY KEY,
			id           TEXT NOT NULL UNIQUE,
			session      TEXT NOT NULL,
			ticker       TEXT NOT NULL,
			title        TEXT NOT NULL,
			condition    TEXT NOT NULL CHECK (condition IN ('ABOVE', 'BELOW')),
			target_price NUMERIC NOT NULL,
			active       BOOLEAN NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL,
			triggered_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS price_alerts_session_idx ON price_alerts (session, seq)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) LoadPortfolio(ctx context.Context, session string) (*model.Portfolio, error) {
	var balanceS string
	err := s.pool.QueryRow(ctx,
		`SELECT balance::TEXT FROM paper_portfolios WHERE session = $1`, session).
		Scan(&balanceS)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("portfolio %s: %w", session, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load portfolio %s: %w", session, err)
	}

	p := &model.Portfolio{Positions: []model.Position{}}
	p.Balance, _ = decimal.NewFromString(balanceS)

	rows, err := s.pool.Query(ctx,
		`SELECT id, ticker, title, side, quantity, price::TEXT, cost::TEXT, timestamp
		 FROM paper_positions WHERE session = $1 ORDER BY seq`, session)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var pos model.Position
		var side, priceS, costS string
		if err := rows.Scan(&pos.ID, &pos.Ticker, &pos.Title, &side,
			&pos.Quantity, &priceS, &costS, &pos.Timestamp); err != nil {
			return nil, err
		}
		pos.Side = model.Side(side)
		pos.Price, _ = decimal.NewFromString(priceS)
		pos.Cost, _ = decimal.NewFromString(costS)
		p.Positions = append(p.Positions, pos)
	}
	return p, rows.Err()
}

func (s *PostgresStore) AppendPosition(ctx context.Context, session string, pos *model.Position, balance decimal.Decimal) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO paper_portfolios (session, balance, updated_at)
		 VALUES ($1, $2::NUMERIC, now())
		 ON CONFLICT (session) DO UPDATE SET balance = EXCLUDED.balance, updated_at = now()`,
		session, balance.String(),
	); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO paper_positions (id, session, ticker, title, side, quantity, price, cost, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8::NUMERIC, $9)`,
		pos.ID, session, pos.Ticker, pos.Title, string(pos.Side),
		pos.Quantity, pos.Price.String(), pos.Cost.String(), pos.Timestamp,
	); err != nil {
		return fmt.Errorf("insert position: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) ResetPortfolio(ctx context.Context, session string, balance decimal.Decimal) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM paper_positions WHERE session = $1`, session); err != nil {
		return fmt.Errorf("clear positions: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO paper_portfolios (session, balance, updated_at)
		 VALUES ($1, $2::NUMERIC, now())
		 ON CONFLICT (session) DO UPDATE SET balance = EXCLUDED.balance, updated_at = now()`,
		session, balance.String(),
	); err != nil {
		return fmt.Errorf("reset balance: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) ListAlerts(ctx context.Context, session string) ([]model.Alert, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ticker, title, condition, target_price::TEXT, active, created_at, triggered_at
		 FROM price_alerts WHERE session = $1 ORDER BY seq`, session)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAlerts(rows)
}

func (s *PostgresStore) InsertAlert(ctx context.Context, session string, a *model.Alert) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO price_alerts (id, session, ticker, title, condition, target_price, active, created_at, triggered_at)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7, $8, $9)`,
		a.ID, session, a.Ticker, a.Title, string(a.Condition),
		a.TargetPrice.String(), a.Active, a.CreatedAt, a.TriggeredAt,
	)
	return err
}

func (s *PostgresStore) UpdateAlert(ctx context.Context, session string, a *model.Alert) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE price_alerts SET active = $3, triggered_at = $4
		 WHERE session = $1 AND id = $2`,
		session, a.ID, a.Active, a.TriggeredAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alert %s: %w", a.ID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteAlert(ctx context.Context, session, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM price_alerts WHERE session = $1 AND id = $2`, session, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	return nil
}

// pgxRows is the subset of pgx.Rows used by the scanners.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanAlerts(rows pgxRows) ([]model.Alert, error) {
	alerts := []model.Alert{}
	for rows.Next() {
		var a model.Alert
		var condition, targetS string

		if err := rows.Scan(&a.ID, &a.Ticker, &a.Title, &condition,
			&targetS, &a.Active, &a.CreatedAt, &a.TriggeredAt); err != nil {
			return nil, err
		}

		a.Condition = model.Condition(condition)
		a.TargetPrice, _ = decimal.NewFromString(targetS)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
