// Package api exposes the paper engine over HTTP: market listings, Kelly
// sizing, the paper ledger, price alerts and a WebSocket event stream.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalshiplus/paper-engine/internal/alert"
	"github.com/kalshiplus/paper-engine/internal/kelly"
	"github.com/kalshiplus/paper-engine/internal/ledger"
	"github.com/kalshiplus/paper-engine/internal/market"
	"github.com/kalshiplus/paper-engine/internal/metrics"
)

// Server holds the engines behind the HTTP handlers.
type Server struct {
	ledger  *ledger.Engine
	alerts  *alert.Engine
	markets *market.Service
	hub     *Hub
	logger  *slog.Logger
}

// NewServer creates a Server. hub may be nil when no event stream is needed.
func NewServer(l *ledger.Engine, a *alert.Engine, m *market.Service, hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ledger:  l,
		alerts:  a,
		markets: m,
		hub:     hub,
		logger:  logger,
	}
}

// Routes builds the router with middleware, /metrics and every /api route.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors)

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.Health)
		r.Get("/categories", s.Categories)

		if s.hub != nil {
			r.Get("/ws", s.hub.HandleWS)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Get("/markets", s.ListMarkets)
			r.Get("/markets/{ticker}", s.GetMarket)
			r.Get("/arbitrage", s.Arbitrage)
			r.Get("/volume-spikes", s.VolumeSpikes)
			r.Get("/suggestions", s.Suggestions)
			r.Get("/kelly", s.Kelly)

			r.Route("/paper", func(r chi.Router) {
				r.Get("/portfolio", s.GetPortfolio)
				r.Get("/history", s.GetHistory)
				r.Post("/trade", s.PlaceTrade)
				r.Post("/reset", s.ResetPortfolio)
			})

			r.Route("/alerts", func(r chi.Router) {
				r.Get("/", s.ListAlerts)
				r.Post("/", s.CreateAlert)
				r.Delete("/{id}", s.DeleteAlert)
				r.Post("/{id}/rearm", s.RearmAlert)
			})
		})
	})

	return r
}

// cors allows the dashboard to call the API from another origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Health handles GET /api/health
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// fail maps a domain error to a status code and writes it.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, "Insufficient balance", http.StatusBadRequest)
	case errors.Is(err, ledger.ErrInvalidTrade),
		errors.Is(err, alert.ErrInvalidAlert),
		errors.Is(err, kelly.ErrInvalidParameters):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, alert.ErrIndexOutOfRange),
		errors.Is(err, alert.ErrAlertNotFound):
		writeError(w, "Alert not found", http.StatusNotFound)
	default:
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"err", err,
		)
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
