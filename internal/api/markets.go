package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/kalshiplus/paper-engine/internal/kelly"
	"github.com/kalshiplus/paper-engine/internal/market"
)

var defaultBankroll = decimal.NewFromInt(1000)

// Categories handles GET /api/categories
func (s *Server) Categories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, market.Categories)
}

// ListMarkets handles GET /api/markets
// Query: category, search, sort_by, sort_order, limit, min_volume, bucket.
func (s *Server) ListMarkets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := market.ListOptions{
		Category:  q.Get("category"),
		Search:    q.Get("search"),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
		Bucket:    q.Get("bucket"),
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		opts.Limit = n
	}
	if v := q.Get("min_volume"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeError(w, "min_volume must be a non-negative integer", http.StatusBadRequest)
			return
		}
		opts.MinVolume = n
	}

	writeJSON(w, http.StatusOK, s.markets.List(r.Context(), opts))
}

// GetMarket handles GET /api/markets/{ticker}
func (s *Server) GetMarket(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.markets.Get(r.Context(), chi.URLParam(r, "ticker")))
}

// Arbitrage handles GET /api/arbitrage
func (s *Server) Arbitrage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.markets.Arbitrage(r.Context()))
}

// Suggestions handles GET /api/suggestions
func (s *Server) Suggestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.markets.Suggestions(r.Context()))
}

// VolumeSpikes handles GET /api/volume-spikes
func (s *Server) VolumeSpikes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.markets.VolumeSpikes(r.Context()))
}

// Kelly handles GET /api/kelly?probability=&odds=&bankroll=
// bankroll defaults to 1000.
func (s *Server) Kelly(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	probability, err := decimal.NewFromString(q.Get("probability"))
	if err != nil {
		writeError(w, "probability is required and must be a number", http.StatusBadRequest)
		return
	}
	odds, err := decimal.NewFromString(q.Get("odds"))
	if err != nil {
		writeError(w, "odds is required and must be a number", http.StatusBadRequest)
		return
	}
	bankroll := defaultBankroll
	if v := q.Get("bankroll"); v != "" {
		if bankroll, err = decimal.NewFromString(v); err != nil {
			writeError(w, "bankroll must be a number", http.StatusBadRequest)
			return
		}
	}

	res, err := kelly.Compute(probability, odds, bankroll)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
