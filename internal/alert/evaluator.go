package alert

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalshiplus/paper-engine/internal/metrics"
	"github.com/kalshiplus/paper-engine/internal/model"
)

// ErrQuoteNotFound is returned by a QuoteSource when the ticker no longer
// resolves to a market.
var ErrQuoteNotFound = errors.New("alert: quote not found")

// QuoteSource supplies current market quotes.
type QuoteSource interface {
	Quote(ctx context.Context, ticker string) (model.Quote, error)
}

// Notifier receives fired alert events.
type Notifier interface {
	Notify(ctx context.Context, event model.AlertEvent)
}

// NotifierFunc is a function adapter for Notifier.
type NotifierFunc func(context.Context, model.AlertEvent)

func (f NotifierFunc) Notify(ctx context.Context, e model.AlertEvent) {
	f(ctx, e)
}

// Notifiers fans an event out to several notifiers in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, e model.AlertEvent) {
	for _, n := range ns {
		n.Notify(ctx, e)
	}
}

// EvaluatorConfig holds evaluation loop configuration.
type EvaluatorConfig struct {
	Interval     time.Duration // Time between cycles (default: 30s)
	Concurrency  int           // Max concurrent quote fetches (default: 8)
	FetchTimeout time.Duration // Per-quote timeout (default: 10s)
}

// DefaultEvaluatorConfig returns sensible defaults.
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		Interval:     30 * time.Second,
		Concurrency:  8,
		FetchTimeout: 10 * time.Second,
	}
}

// Evaluator periodically checks active alerts against the quote source.
type Evaluator struct {
	cfg      EvaluatorConfig
	engine   *Engine
	quotes   QuoteSource
	notifier Notifier
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEvaluator creates an Evaluator. notifier may be nil.
func NewEvaluator(cfg EvaluatorConfig, engine *Engine, quotes QuoteSource, notifier Notifier, logger *slog.Logger) *Evaluator {
	def := DefaultEvaluatorConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		cfg:      cfg,
		engine:   engine,
		quotes:   quotes,
		notifier: notifier,
		logger:   logger,
	}
}

// Start begins the evaluation loop. The first cycle runs immediately.
func (ev *Evaluator) Start(ctx context.Context) {
	ctx, ev.cancel = context.WithCancel(ctx)

	ev.wg.Add(1)
	go ev.run(ctx)

	ev.logger.Info("alert evaluator started",
		"interval", ev.cfg.Interval,
		"concurrency", ev.cfg.Concurrency,
	)
}

// Stop cancels the loop and waits for the in-flight cycle to finish.
func (ev *Evaluator) Stop(ctx context.Context) error {
	if ev.cancel != nil {
		ev.cancel()
	}

	done := make(chan struct{})
	go func() {
		ev.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		ev.logger.Info("alert evaluator stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ev *Evaluator) run(ctx context.Context) {
	defer ev.wg.Done()

	ticker := time.NewTicker(ev.cfg.Interval)
	defer ticker.Stop()

	ev.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ev.RunCycle(ctx)
		}
	}
}

// RunCycle evaluates every active alert once and returns the events that
// fired. Quotes are fetched without holding the alert lock; alerts whose
// quote cannot be fetched are skipped until the next cycle.
func (ev *Evaluator) RunCycle(ctx context.Context) []model.AlertEvent {
	start := time.Now()
	defer func() {
		metrics.AlertCycleDuration.Observe(time.Since(start).Seconds())
	}()

	armed := ev.engine.active()
	if len(armed) == 0 {
		return nil
	}

	prices := ev.fetchPrices(ctx, armed)

	var hits []hit
	for _, a := range armed {
		q, ok := prices[a.Ticker]
		if !ok {
			continue
		}
		if Triggered(a, q.YesPrice) {
			hits = append(hits, hit{id: a.ID, price: q.YesPrice})
		}
	}
	if len(hits) == 0 {
		return nil
	}

	events := ev.engine.markTriggered(ctx, hits)
	for _, e := range events {
		ev.logger.Info("alert triggered",
			"alert_id", e.AlertID,
			"ticker", e.Ticker,
			"condition", e.Condition,
			"target", e.TargetPrice.String(),
			"price", e.CurrentPrice.String(),
		)
		if ev.notifier != nil {
			ev.notifier.Notify(ctx, e)
		}
	}
	return events
}

// fetchPrices looks up one quote per distinct ticker with bounded
// concurrency. Failed lookups are logged and left out of the result.
func (ev *Evaluator) fetchPrices(ctx context.Context, armed []model.Alert) map[string]model.Quote {
	tickers := make(map[string]struct{})
	for _, a := range armed {
		tickers[a.Ticker] = struct{}{}
	}

	var mu sync.Mutex
	prices := make(map[string]model.Quote, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ev.cfg.Concurrency)

	for ticker := range tickers {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, ev.cfg.FetchTimeout)
			defer cancel()

			q, err := ev.quotes.Quote(fctx, ticker)
			if err != nil {
				metrics.QuoteFetchFailures.Inc()
				if errors.Is(err, ErrQuoteNotFound) {
					ev.logger.Debug("alert ticker not resolvable, skipping", "ticker", ticker)
				} else {
					ev.logger.Warn("quote fetch failed, skipping", "ticker", ticker, "err", err)
				}
				return nil
			}

			mu.Lock()
			prices[ticker] = q
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return prices
}
