package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/kalshiplus/paper-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu         sync.RWMutex
	portfolios map[string]*model.Portfolio
	alerts     map[string][]model.Alert
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		portfolios: make(map[string]*model.Portfolio),
		alerts:     make(map[string][]model.Alert),
	}
}

func (s *MemoryStore) LoadPortfolio(_ context.Context, session string) (*model.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.portfolios[session]
	if !ok {
		return nil, fmt.Errorf("portfolio %s: %w", session, ErrNotFound)
	}
	clone := p.Clone()
	return &clone, nil
}

func (s *MemoryStore) AppendPosition(_ context.Context, session string, pos *model.Position, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.portfolios[session]
	if !ok {
		p = &model.Portfolio{}
		s.portfolios[session] = p
	}
	p.Positions = append(p.Positions, *pos)
	p.Balance = balance
	return nil
}

func (s *MemoryStore) ResetPortfolio(_ context.Context, session string, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.portfolios[session] = &model.Portfolio{Balance: balance}
	return nil
}

func (s *MemoryStore) ListAlerts(_ context.Context, session string) ([]model.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alerts := make([]model.Alert, len(s.alerts[session]))
	copy(alerts, s.alerts[session])
	return alerts, nil
}

func (s *MemoryStore) InsertAlert(_ context.Context, session string, a *model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.alerts[session] {
		if existing.ID == a.ID {
			return fmt.Errorf("alert %s already exists", a.ID)
		}
	}
	s.alerts[session] = append(s.alerts[session], *a)
	return nil
}

func (s *MemoryStore) UpdateAlert(_ context.Context, session string, a *model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts := s.alerts[session]
	for i := range alerts {
		if alerts[i].ID == a.ID {
			alerts[i].Active = a.Active
			alerts[i].TriggeredAt = a.TriggeredAt
			return nil
		}
	}
	return fmt.Errorf("alert %s: %w", a.ID, ErrNotFound)
}

func (s *MemoryStore) DeleteAlert(_ context.Context, session, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts := s.alerts[session]
	for i := range alerts {
		if alerts[i].ID == id {
			s.alerts[session] = append(alerts[:i:i], alerts[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("alert %s: %w", id, ErrNotFound)
}
