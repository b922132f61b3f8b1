// Package alert manages user-defined price alerts and the background loop
// that evaluates them against live quotes.
//
// Each alert fires at most once: when its condition is met it is marked
// inactive, stamped with TriggeredAt and kept in the list until the user
// deletes or rearms it.
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kalshiplus/paper-engine/internal/metrics"
	"github.com/kalshiplus/paper-engine/internal/model"
	"github.com/kalshiplus/paper-engine/internal/store"
)

var (
	// ErrInvalidAlert is returned when the condition or target price is invalid.
	ErrInvalidAlert = errors.New("alert: invalid alert")

	// ErrAlertNotFound is returned when no alert has the given id.
	ErrAlertNotFound = errors.New("alert: not found")

	// ErrIndexOutOfRange is returned by DeleteAt for a position past the end.
	ErrIndexOutOfRange = errors.New("alert: index out of range")
)

// DefaultSession is the session key used by the single shared alert list.
const DefaultSession = "default"

// CreateRequest describes a new alert.
type CreateRequest struct {
	Ticker      string          `json:"ticker"`
	Title       string          `json:"title"`
	Condition   model.Condition `json:"condition"`
	TargetPrice decimal.Decimal `json:"target_price"`
}

// Engine owns the alert collection. Every mutation is serialized under mu
// and persisted before it is applied in memory.
type Engine struct {
	store   store.Store
	session string
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.RWMutex
	alerts []model.Alert
}

// Option configures an Engine.
type Option func(*Engine)

// WithSession sets the store key for this alert list.
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

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an empty alert engine.
func NewEngine(st store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:   st,
		session: DefaultSession,
		logger:  slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load replaces in-memory alerts with the saved list.
func (e *Engine) Load(ctx context.Context) error {
	saved, err := e.store.ListAlerts(ctx, e.session)
	if err != nil {
		return fmt.Errorf("load alerts: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.alerts = saved
	e.observe()
	return nil
}

// List returns every alert in creation order.
func (e *Engine) List(_ context.Context) []model.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]model.Alert, len(e.alerts))
	copy(out, e.alerts)
	return out
}

// Create validates and appends an active alert.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (model.Alert, error) {
	cond := model.Condition(strings.ToUpper(string(req.Condition)))
	if err := validate(req.Ticker, cond, req.TargetPrice); err != nil {
		return model.Alert{}, err
	}

	a := model.Alert{
		ID:          uuid.New().String(),
		Ticker:      req.Ticker,
		Title:       req.Title,
		Condition:   cond,
		TargetPrice: req.TargetPrice,
		Active:      true,
		CreatedAt:   e.now(),
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.InsertAlert(ctx, e.session, &a); err != nil {
		return model.Alert{}, fmt.Errorf("save alert: %w", err)
	}
	e.alerts = append(e.alerts, a)

	metrics.AlertOps.WithLabelValues("create").Inc()
	e.observe()

	e.logger.Info("alert created",
		"alert_id", a.ID,
		"ticker", a.Ticker,
		"condition", a.Condition,
		"target", a.TargetPrice.String(),
	)
	return a, nil
}

// Delete removes the alert with the given id.
func (e *Engine) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrAlertNotFound, id)
	}
	return e.removeAt(ctx, i)
}

// DeleteAt removes the alert at a position in List order. Prefer Delete:
// positions shift whenever an earlier alert is removed.
func (e *Engine) DeleteAt(ctx context.Context, index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if index < 0 || index >= len(e.alerts) {
		return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(e.alerts))
	}
	return e.removeAt(ctx, index)
}

// Rearm reactivates a fired alert so it can trigger again.
func (e *Engine) Rearm(ctx context.Context, id string) (model.Alert, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOf(id)
	if i < 0 {
		return model.Alert{}, fmt.Errorf("%w: %s", ErrAlertNotFound, id)
	}

	updated := e.alerts[i]
	updated.Active = true
	updated.TriggeredAt = nil
	if err := e.store.UpdateAlert(ctx, e.session, &updated); err != nil {
		return model.Alert{}, fmt.Errorf("save alert: %w", err)
	}
	e.alerts[i] = updated

	metrics.AlertOps.WithLabelValues("rearm").Inc()
	e.observe()
	return updated, nil
}

// active returns copies of the currently armed alerts.
func (e *Engine) active() []model.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []model.Alert
	for _, a := range e.alerts {
		if a.Active {
			out = append(out, a)
		}
	}
	return out
}

// hit is an alert whose condition held at the quoted price.
type hit struct {
	id    string
	price decimal.Decimal
}

// markTriggered deactivates the hit alerts and returns one event per alert
// it actually fired. Alerts deleted or already fired since the snapshot
// was taken are skipped.
func (e *Engine) markTriggered(ctx context.Context, hits []hit) []model.AlertEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	var events []model.AlertEvent
	for _, h := range hits {
		id, price := h.id, h.price
		i := e.indexOf(id)
		if i < 0 || !e.alerts[i].Active {
			continue
		}

		at := e.now()
		updated := e.alerts[i]
		updated.Active = false
		updated.TriggeredAt = &at

		if err := e.store.UpdateAlert(ctx, e.session, &updated); err != nil {
			// Stays armed and will be retried next cycle.
			e.logger.Error("persist triggered alert failed", "alert_id", id, "err", err)
			continue
		}
		e.alerts[i] = updated

		metrics.AlertsTriggered.WithLabelValues(string(updated.Condition)).Inc()
		events = append(events, model.AlertEvent{
			AlertID:      updated.ID,
			Ticker:       updated.Ticker,
			Title:        updated.Title,
			Condition:    updated.Condition,
			TargetPrice:  updated.TargetPrice,
			CurrentPrice: price,
			TriggeredAt:  at,
		})
	}
	e.observe()
	return events
}

func (e *Engine) removeAt(ctx context.Context, i int) error {
	id := e.alerts[i].ID
	if err := e.store.DeleteAlert(ctx, e.session, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("delete alert: %w", err)
	}
	e.alerts = append(e.alerts[:i:i], e.alerts[i+1:]...)

	metrics.AlertOps.WithLabelValues("delete").Inc()
	e.observe()

	e.logger.Info("alert deleted", "alert_id", id)
	return nil
}

func (e *Engine) indexOf(id string) int {
	for i := range e.alerts {
		if e.alerts[i].ID == id {
			return i
		}
	}
	return -1
}

// observe publishes the active gauge; callers must hold mu.
func (e *Engine) observe() {
	n := 0
	for _, a := range e.alerts {
		if a.Active {
			n++
		}
	}
	metrics.AlertsActive.Set(float64(n))
}

// Triggered reports whether price satisfies the alert's condition.
func Triggered(a model.Alert, price decimal.Decimal) bool {
	switch a.Condition {
	case model.ConditionAbove:
		return price.GreaterThanOrEqual(a.TargetPrice)
	case model.ConditionBelow:
		return price.LessThanOrEqual(a.TargetPrice)
	}
	return false
}

func validate(ticker string, cond model.Condition, target decimal.Decimal) error {
	if strings.TrimSpace(ticker) == "" {
		return fmt.Errorf("%w: ticker is required", ErrInvalidAlert)
	}
	if !cond.Valid() {
		return fmt.Errorf("%w: condition must be ABOVE or BELOW, got %q", ErrInvalidAlert, cond)
	}
	if !target.IsPositive() || target.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: target_price must be in (0,1), got %s", ErrInvalidAlert, target)
	}
	return nil
}
