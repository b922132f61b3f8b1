// Package ledger is the virtual trading ledger: a cash balance plus an
// append-only list of paper positions.
//
// Invariant: balance + Σ position.cost == InitialBalance at all times.
// There is no settlement, closing, or netting; positions live until Reset.
//
// All monetary values use shopspring/decimal; float64 is never used for money.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kalshiplus/paper-engine/internal/metrics"
	"github.com/kalshiplus/paper-engine/internal/model"
	"github.com/kalshiplus/paper-engine/internal/store"
)

var (
	// ErrInvalidTrade is returned when price, quantity, or side are out of range.
	ErrInvalidTrade = errors.New("ledger: invalid trade")

	// ErrInsufficientFunds is returned when price * quantity exceeds the balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// InitialBalance is the paper cash a fresh or reset portfolio starts with.
	InitialBalance = decimal.RequireFromString("10000.00")
)

// DefaultSession is the session key used by the single shared portfolio.
const DefaultSession = "default"

// TradeRequest describes a paper trade. Cost is derived from
// Price * Quantity and cannot be supplied.
type TradeRequest struct {
	Ticker   string          `json:"ticker"`
	Title    string          `json:"title"`
	Side     model.Side      `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
}

// Engine owns one paper portfolio. Mutations are serialized under mu and
// written to the store before they are applied in memory, so a failed
// write leaves the ledger unchanged.
type Engine struct {
	store   store.Store
	session string
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.RWMutex
	balance   decimal.Decimal
	positions []model.Position

	// resetPending is set when a reset was applied in memory but not
	// persisted. The store must be reset before anything is appended.
	resetPending bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithSession sets the store key for this ledger.
func WithSession(session string) Option {
	return func(e *Engine) {
		e.session = session
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides time.Now for position timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a ledger holding a fresh portfolio. Call Load to pick
// up state saved by a previous run.
func NewEngine(st store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:   st,
		session: DefaultSession,
		logger:  slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
		balance: InitialBalance,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load replaces in-memory state with the saved portfolio. A session that
// was never written keeps the fresh portfolio.
func (e *Engine) Load(ctx context.Context) error {
	saved, err := e.store.LoadPortfolio(ctx, e.session)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load portfolio: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.balance = saved.Balance
	e.positions = append([]model.Position(nil), saved.Positions...)

	if drift := e.balance.Add(saved.TotalCost()).Sub(InitialBalance); !drift.IsZero() {
		e.logger.Warn("loaded portfolio violates balance invariant",
			"session", e.session,
			"balance", e.balance.String(),
			"drift", drift.String(),
		)
	}
	e.observe()
	return nil
}

// Portfolio returns a consistent snapshot of balance and positions.
func (e *Engine) Portfolio(_ context.Context) model.Portfolio {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot()
}

// History returns every position opened since the last reset, oldest first.
func (e *Engine) History(_ context.Context) []model.Position {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot().Positions
}

// PlaceTrade validates and records a paper trade, debiting price * quantity
// from the balance. A rejected trade changes nothing.
func (e *Engine) PlaceTrade(ctx context.Context, req TradeRequest) (model.Portfolio, error) {
	if err := validateTrade(req); err != nil {
		metrics.TradeRejections.WithLabelValues("invalid").Inc()
		return model.Portfolio{}, err
	}

	cost := req.Price.Mul(decimal.NewFromInt(req.Quantity))

	e.mu.Lock()
	defer e.mu.Unlock()

	if cost.GreaterThan(e.balance) {
		metrics.TradeRejections.WithLabelValues("insufficient_funds").Inc()
		return model.Portfolio{}, fmt.Errorf("%w: cost %s exceeds balance %s",
			ErrInsufficientFunds, cost.StringFixed(2), e.balance.StringFixed(2))
	}

	if err := e.flushReset(ctx); err != nil {
		return model.Portfolio{}, fmt.Errorf("record trade: %w", err)
	}

	pos := model.Position{
		ID:        uuid.New().String(),
		Ticker:    req.Ticker,
		Title:     req.Title,
		Side:      req.Side,
		Quantity:  req.Quantity,
		Price:     req.Price,
		Cost:      cost,
		Timestamp: e.now(),
	}
	newBalance := e.balance.Sub(cost)

	if err := e.store.AppendPosition(ctx, e.session, &pos, newBalance); err != nil {
		return model.Portfolio{}, fmt.Errorf("record trade: %w", err)
	}

	e.balance = newBalance
	e.positions = append(e.positions, pos)

	metrics.TradesTotal.WithLabelValues(string(req.Side)).Inc()
	e.observe()

	e.logger.Info("paper trade placed",
		"position_id", pos.ID,
		"ticker", pos.Ticker,
		"side", pos.Side,
		"qty", pos.Quantity,
		"price", pos.Price.String(),
		"cost", cost.String(),
		"balance", newBalance.String(),
	)

	return e.snapshot(), nil
}

// Reset restores the initial balance and clears every position. It never
// fails: the in-memory reset always happens. A store failure is logged and
// the reset write is retried before the next trade is recorded.
func (e *Engine) Reset(ctx context.Context) model.Portfolio {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.balance = InitialBalance
	e.positions = nil

	metrics.PortfolioResets.Inc()
	e.observe()

	e.resetPending = true
	if err := e.flushReset(ctx); err != nil {
		e.logger.Error("persist portfolio reset failed", "session", e.session, "err", err)
	} else {
		e.logger.Info("paper portfolio reset", "session", e.session)
	}

	return e.snapshot()
}

// flushReset writes a pending reset to the store; callers must hold mu.
func (e *Engine) flushReset(ctx context.Context) error {
	if !e.resetPending {
		return nil
	}
	if err := e.store.ResetPortfolio(ctx, e.session, InitialBalance); err != nil {
		return fmt.Errorf("persist pending reset: %w", err)
	}
	e.resetPending = false
	return nil
}

func validateTrade(req TradeRequest) error {
	if !req.Side.Valid() {
		return fmt.Errorf("%w: side must be YES or NO, got %q", ErrInvalidTrade, req.Side)
	}
	if !req.Price.IsPositive() || req.Price.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: price must be in (0,1], got %s", ErrInvalidTrade, req.Price)
	}
	if req.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be a positive integer, got %d", ErrInvalidTrade, req.Quantity)
	}
	return nil
}

// snapshot copies state; callers must hold mu.
func (e *Engine) snapshot() model.Portfolio {
	positions := make([]model.Position, len(e.positions))
	copy(positions, e.positions)
	return model.Portfolio{Balance: e.balance, Positions: positions}
}

// observe publishes gauges; callers must hold mu.
func (e *Engine) observe() {
	metrics.Balance.Set(e.balance.InexactFloat64())
	metrics.OpenPositions.Set(float64(len(e.positions)))
}
