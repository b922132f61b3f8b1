// Package market serves market listings for the dashboard: category and
// bucket filters over Kalshi quotes, plus the arbitrage and volume scans.
// When the upstream listing fails the service answers from a fixed set of
// sample markets so the dashboard keeps rendering.
package market

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kalshiplus/paper-engine/internal/kalshi"
	"github.com/kalshiplus/paper-engine/internal/model"
)

// DefaultLimit is the listing size when none is requested.
const DefaultLimit = 100

// upstreamPageSize is how many open markets one listing pulls from Kalshi.
const upstreamPageSize = 200

// DefaultUpstreamTimeout bounds each upstream call made by the service.
const DefaultUpstreamTimeout = 8 * time.Second

// Source lists and looks up quotes. *kalshi.Client satisfies it.
type Source interface {
	Quotes(ctx context.Context, opts kalshi.GetMarketsOptions) ([]model.Quote, error)
	Quote(ctx context.Context, ticker string) (model.Quote, error)
}

// Cache holds recent upstream listings. *store.QuoteCache satisfies it.
type Cache interface {
	GetQuotes(ctx context.Context, key string) ([]model.Quote, bool)
	SetQuotes(ctx context.Context, key string, quotes []model.Quote)
}

// Sort keys accepted by ListOptions.SortBy.
const (
	SortVolume      = "volume"
	SortProbability = "probability"
	SortSpread      = "spread"
	SortClosing     = "closing"
)

// ListOptions filters and orders a market listing.
type ListOptions struct {
	Category  string
	Search    string
	SortBy    string // volume (default), probability, spread, closing
	SortOrder string // desc (default) or asc
	Limit     int
	MinVolume int64
	Bucket    string
}

// Service answers market queries.
type Service struct {
	source  Source
	logger  *slog.Logger
	now     func() time.Time
	timeout time.Duration
	cache   Cache
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithUpstreamTimeout bounds each upstream call. Past it the service
// answers from samples or a placeholder.
func WithUpstreamTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithCache serves repeated listings from c until its entries expire.
func WithCache(c Cache) ServiceOption {
	return func(s *Service) {
		s.cache = c
	}
}

// NewService creates a market service. source may be nil, in which case
// every listing comes from the sample set.
func NewService(source Source, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		source:  source,
		logger:  logger,
		now:     time.Now,
		timeout: DefaultUpstreamTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns filtered, sorted quotes.
func (s *Service) List(ctx context.Context, opts ListOptions) []model.Quote {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	quotes, err := s.fetch(ctx, opts.Category)
	if err != nil {
		s.logger.Warn("market listing failed, serving samples", "category", opts.Category, "err", err)
		quotes = s.samples()
		if c := opts.Category; c != "" && !isMeta(c) {
			quotes = filter(quotes, func(q model.Quote) bool { return q.Category == c })
		}
	}

	quotes = filter(quotes, func(q model.Quote) bool {
		if q.Volume < opts.MinVolume {
			return false
		}
		if opts.Search != "" && !strings.Contains(strings.ToLower(q.Title), strings.ToLower(opts.Search)) {
			return false
		}
		if b, ok := bucketRange(opts.Bucket); ok && !b.contains(q.YesPrice) {
			return false
		}
		return true
	})

	sortQuotes(quotes, opts.SortBy, opts.SortOrder != "asc")

	if len(quotes) > opts.Limit {
		quotes = quotes[:opts.Limit]
	}
	return quotes
}

// Get returns one market. When the upstream lookup fails it answers with a
// neutral placeholder quote for the ticker.
func (s *Service) Get(ctx context.Context, ticker string) model.Quote {
	if s.source != nil {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		q, err := s.source.Quote(ctx, ticker)
		cancel()
		if err == nil {
			return q
		}
		s.logger.Warn("market lookup failed, serving placeholder", "ticker", ticker, "err", err)
	}

	yes, no := decimal.RequireFromString("0.50"), decimal.RequireFromString("0.52")
	return model.Quote{
		Ticker:   ticker,
		Title:    "Market " + ticker,
		Category: "general",
		YesPrice: yes,
		NoPrice:  no,
		Volume:   10000,
		Status:   "open",
		Spread:   kalshi.Spread(yes, no),
	}
}

func (s *Service) fetch(ctx context.Context, category string) ([]model.Quote, error) {
	if s.source == nil {
		return nil, errNoSource
	}
	opts := kalshi.GetMarketsOptions{
		Limit:        upstreamPageSize,
		Status:       "open",
		SeriesTicker: seriesFor[category],
	}

	key := "series:" + opts.SeriesTicker
	if s.cache != nil {
		if quotes, ok := s.cache.GetQuotes(ctx, key); ok {
			return quotes, nil
		}
	}

	fctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	quotes, err := s.source.Quotes(fctx, opts)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetQuotes(ctx, key, quotes)
	}
	return quotes, nil
}

func sortQuotes(quotes []model.Quote, by string, desc bool) {
	var less func(a, b model.Quote) bool
	switch by {
	case SortProbability:
		less = func(a, b model.Quote) bool { return a.YesPrice.LessThan(b.YesPrice) }
	case SortSpread:
		less = func(a, b model.Quote) bool { return a.Spread.LessThan(b.Spread) }
	case SortClosing:
		// "desc" lists the soonest-closing markets first.
		desc = !desc
		less = func(a, b model.Quote) bool { return a.CloseTime < b.CloseTime }
	case SortVolume, "":
		less = func(a, b model.Quote) bool { return a.Volume < b.Volume }
	default:
		return
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		if desc {
			return less(quotes[j], quotes[i])
		}
		return less(quotes[i], quotes[j])
	})
}

func filter(quotes []model.Quote, keep func(model.Quote) bool) []model.Quote {
	out := make([]model.Quote, 0, len(quotes))
	for _, q := range quotes {
		if keep(q) {
			out = append(out, q)
		}
	}
	return out
}
