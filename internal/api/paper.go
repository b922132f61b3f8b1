package api

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/kalshiplus/paper-engine/internal/ledger"
	"github.com/kalshiplus/paper-engine/internal/model"
)

// TradeResponse is the JSON body returned from POST /api/paper/trade.
type TradeResponse struct {
	Success    bool            `json:"success"`
	NewBalance decimal.Decimal `json:"new_balance"`
	Position   model.Position  `json:"position"`
}

// ResetResponse is the JSON body returned from POST /api/paper/reset.
type ResetResponse struct {
	Success bool            `json:"success"`
	Balance decimal.Decimal `json:"balance"`
}

// GetPortfolio handles GET /api/paper/portfolio
func (s *Server) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Portfolio(r.Context()))
}

// GetHistory handles GET /api/paper/history
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.History(r.Context()))
}

// PlaceTrade handles POST /api/paper/trade
// The cost is always price * quantity; any cost in the body is ignored.
func (s *Server) PlaceTrade(w http.ResponseWriter, r *http.Request) {
	var req ledger.TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	p, err := s.ledger.PlaceTrade(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pos := p.Positions[len(p.Positions)-1]

	if s.hub != nil {
		s.hub.Broadcast(Event{Type: EventTradePlaced, Time: pos.Timestamp, Data: pos})
	}

	writeJSON(w, http.StatusOK, TradeResponse{
		Success:    true,
		NewBalance: p.Balance,
		Position:   pos,
	})
}

// ResetPortfolio handles POST /api/paper/reset
func (s *Server) ResetPortfolio(w http.ResponseWriter, r *http.Request) {
	p := s.ledger.Reset(r.Context())

	if s.hub != nil {
		s.hub.Broadcast(Event{Type: EventPortfolioReset, Data: p})
	}

	writeJSON(w, http.StatusOK, ResetResponse{Success: true, Balance: p.Balance})
}
