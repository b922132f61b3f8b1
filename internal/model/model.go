// Package model defines the core domain types shared across the paper engine.
// All monetary values use shopspring/decimal; float64 is never used for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the contract side of a binary market.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Valid reports whether s is YES or NO.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Condition is the direction an alert watches for.
type Condition string

const (
	ConditionAbove Condition = "ABOVE"
	ConditionBelow Condition = "BELOW"
)

// Valid reports whether c is ABOVE or BELOW.
func (c Condition) Valid() bool {
	return c == ConditionAbove || c == ConditionBelow
}

// Quote is a market snapshot from the quote source. Prices are fractional
// probabilities; yes+no is expected near 1 but is untrusted input.
type Quote struct {
	Ticker    string          `json:"ticker"`
	Title     string          `json:"title"`
	Category  string          `json:"category"`
	YesPrice  decimal.Decimal `json:"yes_price"`
	NoPrice   decimal.Decimal `json:"no_price"`
	Volume    int64           `json:"volume"`
	CloseTime string          `json:"close_time,omitempty"`
	Status    string          `json:"status"`
	Spread    decimal.Decimal `json:"spread"`
}

// Position is an immutable paper fill. Cost is always Price * Quantity and
// is computed by the ledger, never taken from a caller.
type Position struct {
	ID        string          `json:"id" db:"id"`
	Ticker    string          `json:"ticker" db:"ticker"`
	Title     string          `json:"title" db:"title"`
	Side      Side            `json:"side" db:"side"`
	Quantity  int64           `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Cost      decimal.Decimal `json:"cost" db:"cost"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// Portfolio is the virtual account: cash balance plus every position opened
// since the last reset, in placement order.
type Portfolio struct {
	Balance   decimal.Decimal `json:"balance"`
	Positions []Position      `json:"positions"`
}

// TotalCost sums the cost of all positions.
func (p Portfolio) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, pos := range p.Positions {
		total = total.Add(pos.Cost)
	}
	return total
}

// Clone returns a copy that shares no backing array with p.
func (p Portfolio) Clone() Portfolio {
	positions := make([]Position, len(p.Positions))
	copy(positions, p.Positions)
	return Portfolio{Balance: p.Balance, Positions: positions}
}

// Alert is a user-defined price threshold on one market.
type Alert struct {
	ID          string          `json:"id" db:"id"`
	Ticker      string          `json:"ticker" db:"ticker"`
	Title       string          `json:"title" db:"title"`
	Condition   Condition       `json:"condition" db:"condition"`
	TargetPrice decimal.Decimal `json:"target_price" db:"target_price"`
	Active      bool            `json:"active" db:"active"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	TriggeredAt *time.Time      `json:"triggered_at,omitempty" db:"triggered_at"`
}

// AlertEvent is emitted once when an active alert's condition is met.
type AlertEvent struct {
	AlertID      string          `json:"alert_id"`
	Ticker       string          `json:"ticker"`
	Title        string          `json:"title"`
	Condition    Condition       `json:"condition"`
	TargetPrice  decimal.Decimal `json:"target_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	TriggeredAt  time.Time       `json:"triggered_at"`
}
