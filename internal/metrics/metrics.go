// Package metrics provides Prometheus instrumentation for the paper engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts paper trades placed, partitioned by side.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paper_trades_total",
		Help: "Total number of paper trades placed",
	}, []string{"side"})

	// TradeRejections counts rejected trades by reason.
	TradeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paper_trade_rejections_total",
		Help: "Paper trades rejected by validation or funds check",
	}, []string{"reason"})

	// PortfolioResets counts portfolio resets.
	PortfolioResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paper_portfolio_resets_total",
		Help: "Total number of paper portfolio resets",
	})

	// Balance tracks the current paper cash balance.
	Balance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paper_balance",
		Help: "Current paper trading cash balance",
	})

	// OpenPositions tracks the number of positions in the portfolio.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paper_open_positions",
		Help: "Number of positions in the paper portfolio",
	})

	// AlertsActive tracks alerts that are still armed.
	AlertsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paper_alerts_active",
		Help: "Number of active price alerts",
	})

	// AlertOps counts alert mutations by operation.
	AlertOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paper_alert_operations_total",
		Help: "Price alert create/delete/rearm operations",
	}, []string{"op"})

	// AlertsTriggered counts fired alerts by condition.
	AlertsTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paper_alerts_triggered_total",
		Help: "Price alerts that fired",
	}, []string{"condition"})

	// AlertCycleDuration tracks how long one evaluation cycle takes.
	AlertCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "paper_alert_cycle_duration_seconds",
		Help:    "Alert evaluation cycle duration in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// QuoteFetchFailures counts quote lookups that failed during evaluation.
	QuoteFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paper_quote_fetch_failures_total",
		Help: "Quote source lookups that failed during alert evaluation",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paper_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paper_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paper_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Prefer the chi route pattern to keep path cardinality bounded.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
