// Package store defines the persistence interface for the paper engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing and single-process runs).
//
// State is keyed by session so one process can host more than one paper
// account later without a schema change.
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/kalshiplus/paper-engine/internal/model"
)

// ErrNotFound is returned when a session or alert does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. The engines keep the authoritative
// in-process copy; every mutation is written here before it is applied.
type Store interface {
	// --- Paper portfolio ---

	// LoadPortfolio returns the saved portfolio for a session, or
	// ErrNotFound if the session has never been written.
	LoadPortfolio(ctx context.Context, session string) (*model.Portfolio, error)

	// AppendPosition records a new position and the resulting balance
	// atomically.
	AppendPosition(ctx context.Context, session string, pos *model.Position, balance decimal.Decimal) error

	// ResetPortfolio drops every position and sets the balance.
	ResetPortfolio(ctx context.Context, session string, balance decimal.Decimal) error

	// --- Alerts ---

	// ListAlerts returns alerts in creation order.
	ListAlerts(ctx context.Context, session string) ([]model.Alert, error)

	// InsertAlert appends a new alert.
	InsertAlert(ctx context.Context, session string, alert *model.Alert) error

	// UpdateAlert overwrites the mutable fields (active, triggered_at).
	UpdateAlert(ctx context.Context, session string, alert *model.Alert) error

	// DeleteAlert removes an alert by id.
	DeleteAlert(ctx context.Context, session, id string) error
}
