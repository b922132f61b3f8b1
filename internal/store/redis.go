package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/kalshiplus/paper-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) AppendPosition(ctx context.Context, session string, pos *model.Position, balance decimal.Decimal) error {
	if err := s.primary.AppendPosition(ctx, session, pos, balance); err != nil {
		return err
	}
	s.rdb.Del(ctx, portfolioKey(session))
	return nil
}

func (s *CachedStore) ResetPortfolio(ctx context.Context, session string, balance decimal.Decimal) error {
	if err := s.primary.ResetPortfolio(ctx, session, balance); err != nil {
		return err
	}
	s.rdb.Del(ctx, portfolioKey(session))
	return nil
}

func (s *CachedStore) InsertAlert(ctx context.Context, session string, a *model.Alert) error {
	if err := s.primary.InsertAlert(ctx, session, a); err != nil {
		return err
	}
	s.rdb.Del(ctx, alertsKey(session))
	return nil
}

func (s *CachedStore) UpdateAlert(ctx context.Context, session string, a *model.Alert) error {
	if err := s.primary.UpdateAlert(ctx, session, a); err != nil {
		return err
	}
	s.rdb.Del(ctx, alertsKey(session))
	return nil
}

func (s *CachedStore) DeleteAlert(ctx context.Context, session, id string) error {
	if err := s.primary.DeleteAlert(ctx, session, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, alertsKey(session))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) LoadPortfolio(ctx context.Context, session string) (*model.Portfolio, error) {
	data, err := s.rdb.Get(ctx, portfolioKey(session)).Bytes()
	if err == nil {
		var p model.Portfolio
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	// Cache miss: read from primary.
	p, err := s.primary.LoadPortfolio(ctx, session)
	if err != nil {
		return nil, err
	}

	s.cache(ctx, portfolioKey(session), p)
	return p, nil
}

func (s *CachedStore) ListAlerts(ctx context.Context, session string) ([]model.Alert, error) {
	data, err := s.rdb.Get(ctx, alertsKey(session)).Bytes()
	if err == nil {
		var alerts []model.Alert
		if json.Unmarshal(data, &alerts) == nil {
			return alerts, nil
		}
	}

	alerts, err := s.primary.ListAlerts(ctx, session)
	if err != nil {
		return nil, err
	}

	s.cache(ctx, alertsKey(session), alerts)
	return alerts, nil
}

// --- Cache helpers ---

func (s *CachedStore) cache(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func portfolioKey(session string) string { return fmt.Sprintf("paper:portfolio:%s", session) }
func alertsKey(session string) string    { return fmt.Sprintf("paper:alerts:%s", session) }

// QuoteCache keeps recent market listings in Redis so repeated dashboard
// requests do not each hit the upstream API. Errors are treated as misses.
type QuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuoteCache creates a listing cache whose entries expire after ttl.
func NewQuoteCache(rdb *redis.Client, ttl time.Duration) *QuoteCache {
	return &QuoteCache{rdb: rdb, ttl: ttl}
}

// GetQuotes returns the cached listing for key, if present.
func (c *QuoteCache) GetQuotes(ctx context.Context, key string) ([]model.Quote, bool) {
	data, err := c.rdb.Get(ctx, quotesKey(key)).Bytes()
	if err != nil {
		return nil, false
	}
	var quotes []model.Quote
	if err := json.Unmarshal(data, &quotes); err != nil {
		return nil, false
	}
	return quotes, true
}

// SetQuotes caches a listing under key.
func (c *QuoteCache) SetQuotes(ctx context.Context, key string, quotes []model.Quote) {
	if data, err := json.Marshal(quotes); err == nil {
		c.rdb.Set(ctx, quotesKey(key), data, c.ttl)
	}
}

func quotesKey(key string) string { return "paper:quotes:" + key }
