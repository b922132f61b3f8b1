package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalshiplus/paper-engine/internal/model"
	"github.com/kalshiplus/paper-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// fakeQuotes serves fixed YES prices; unknown tickers return ErrQuoteNotFound.
type fakeQuotes struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	fail   map[string]bool
	calls  atomic.Int32
}

func newFakeQuotes(prices map[string]float64) *fakeQuotes {
	f := &fakeQuotes{prices: make(map[string]decimal.Decimal), fail: make(map[string]bool)}
	for k, v := range prices {
		f.prices[k] = d(v)
	}
	return f
}

func (f *fakeQuotes) set(ticker string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[ticker] = d(price)
}

func (f *fakeQuotes) Quote(_ context.Context, ticker string) (model.Quote, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail[ticker] {
		return model.Quote{}, errors.New("upstream 503")
	}
	p, ok := f.prices[ticker]
	if !ok {
		return model.Quote{}, fmt.Errorf("%s: %w", ticker, ErrQuoteNotFound)
	}
	return model.Quote{Ticker: ticker, YesPrice: p, NoPrice: decimal.NewFromInt(1).Sub(p)}, nil
}

type recorder struct {
	mu     sync.Mutex
	events []model.AlertEvent
}

func (r *recorder) Notify(_ context.Context, e model.AlertEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(store.NewMemoryStore())
}

func mustCreate(t *testing.T, e *Engine, ticker string, cond model.Condition, target float64) model.Alert {
	t.Helper()
	a, err := e.Create(context.Background(), CreateRequest{
		Ticker:      ticker,
		Title:       "Market " + ticker,
		Condition:   cond,
		TargetPrice: d(target),
	})
	require.NoError(t, err)
	return a
}

// --- CRUD ---

func TestCreate_ThenList(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	before := len(e.List(ctx))
	a := mustCreate(t, e, "XYZ", model.ConditionAbove, 0.5)

	list := e.List(ctx)
	require.Len(t, list, before+1)

	got := list[len(list)-1]
	assert.Equal(t, a.ID, got.ID)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "XYZ", got.Ticker)
	assert.Equal(t, "Market XYZ", got.Title)
	assert.Equal(t, model.ConditionAbove, got.Condition)
	assert.True(t, got.TargetPrice.Equal(d(0.5)))
	assert.True(t, got.Active)
	assert.Nil(t, got.TriggeredAt)
}

func TestCreate_LowercaseCondition(t *testing.T) {
	e := newTestEngine(t)
	a, err := e.Create(context.Background(), CreateRequest{Ticker: "X", Condition: "below", TargetPrice: d(0.3)})
	require.NoError(t, err)
	assert.Equal(t, model.ConditionBelow, a.Condition)
}

func TestCreate_Invalid(t *testing.T) {
	tests := []struct {
		name string
		req  CreateRequest
	}{
		{"zero target", CreateRequest{Ticker: "X", Condition: model.ConditionAbove, TargetPrice: d(0)}},
		{"target one", CreateRequest{Ticker: "X", Condition: model.ConditionAbove, TargetPrice: d(1)}},
		{"negative target", CreateRequest{Ticker: "X", Condition: model.ConditionBelow, TargetPrice: d(-0.2)}},
		{"bad condition", CreateRequest{Ticker: "X", Condition: "SIDEWAYS", TargetPrice: d(0.5)}},
		{"empty ticker", CreateRequest{Ticker: " ", Condition: model.ConditionAbove, TargetPrice: d(0.5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			_, err := e.Create(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidAlert)
			assert.Empty(t, e.List(context.Background()))
		})
	}
}

func TestDeleteAt_Scenario(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	mustCreate(t, e, "XYZ", model.ConditionAbove, 0.5)
	require.Len(t, e.List(ctx), 1)

	require.NoError(t, e.DeleteAt(ctx, 0))
	assert.Empty(t, e.List(ctx))
}

func TestDeleteAt_OutOfRange(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mustCreate(t, e, "A", model.ConditionAbove, 0.5)
	mustCreate(t, e, "B", model.ConditionBelow, 0.5)
	before := e.List(ctx)

	for _, idx := range []int{-1, 2, 99} {
		err := e.DeleteAt(ctx, idx)
		assert.ErrorIs(t, err, ErrIndexOutOfRange, "index %d", idx)
	}
	assert.Equal(t, before, e.List(ctx))
}

func TestDeleteAt_RemovesOnlyThatAlert(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	a := mustCreate(t, e, "A", model.ConditionAbove, 0.5)
	mustCreate(t, e, "B", model.ConditionAbove, 0.5)
	c := mustCreate(t, e, "C", model.ConditionAbove, 0.5)

	require.NoError(t, e.DeleteAt(ctx, 1))

	list := e.List(ctx)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, c.ID, list[1].ID)
}

func TestDelete_ByID(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	a := mustCreate(t, e, "A", model.ConditionAbove, 0.5)
	b := mustCreate(t, e, "B", model.ConditionAbove, 0.5)

	require.NoError(t, e.Delete(ctx, a.ID))
	assert.ErrorIs(t, e.Delete(ctx, a.ID), ErrAlertNotFound)

	list := e.List(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)
}

func TestLoad_RestoresFromStore(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	first := NewEngine(ms)
	a := mustCreate(t, first, "A", model.ConditionBelow, 0.2)

	second := NewEngine(ms)
	require.NoError(t, second.Load(ctx))
	list := second.List(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)
}

// --- Evaluation ---

func TestTriggered(t *testing.T) {
	above := model.Alert{Condition: model.ConditionAbove, TargetPrice: d(0.5)}
	below := model.Alert{Condition: model.ConditionBelow, TargetPrice: d(0.5)}

	assert.True(t, Triggered(above, d(0.5)))
	assert.True(t, Triggered(above, d(0.51)))
	assert.False(t, Triggered(above, d(0.49)))

	assert.True(t, Triggered(below, d(0.5)))
	assert.True(t, Triggered(below, d(0.2)))
	assert.False(t, Triggered(below, d(0.51)))
}

func TestRunCycle_FiresOnceAndDeactivates(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	quotes := newFakeQuotes(map[string]float64{"XYZ": 0.62, "ABC": 0.40})
	rec := &recorder{}
	ev := NewEvaluator(EvaluatorConfig{}, e, quotes, rec, nil)

	up := mustCreate(t, e, "XYZ", model.ConditionAbove, 0.6)
	idle := mustCreate(t, e, "ABC", model.ConditionBelow, 0.3)

	events := ev.RunCycle(ctx)
	require.Len(t, events, 1)
	assert.Equal(t, up.ID, events[0].AlertID)
	assert.True(t, events[0].CurrentPrice.Equal(d(0.62)))
	assert.Equal(t, 1, rec.len())

	list := e.List(ctx)
	require.Len(t, list, 2, "fired alerts stay listed")
	assert.False(t, list[0].Active)
	assert.NotNil(t, list[0].TriggeredAt)
	assert.True(t, list[1].Active)
	assert.Equal(t, idle.ID, list[1].ID)

	// The condition still holds but the alert no longer re-notifies.
	assert.Empty(t, ev.RunCycle(ctx))
	assert.Equal(t, 1, rec.len())
}

func TestRunCycle_SkipsUnresolvableAndFailingTickers(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	quotes := newFakeQuotes(map[string]float64{"DOWN": 0.9})
	quotes.fail["DOWN"] = true
	ev := NewEvaluator(EvaluatorConfig{}, e, quotes, nil, nil)

	gone := mustCreate(t, e, "GONE", model.ConditionAbove, 0.1)
	down := mustCreate(t, e, "DOWN", model.ConditionAbove, 0.1)

	assert.Empty(t, ev.RunCycle(ctx))

	list := e.List(ctx)
	require.Len(t, list, 2, "skipped alerts must not be deleted")
	assert.True(t, list[0].Active)
	assert.True(t, list[1].Active)
	assert.Equal(t, gone.ID, list[0].ID)
	assert.Equal(t, down.ID, list[1].ID)

	// Once the source recovers the alert fires.
	quotes.mu.Lock()
	quotes.fail["DOWN"] = false
	quotes.mu.Unlock()
	events := ev.RunCycle(ctx)
	require.Len(t, events, 1)
	assert.Equal(t, down.ID, events[0].AlertID)
}

func TestRunCycle_OneFetchPerTicker(t *testing.T) {
	e := newTestEngine(t)
	quotes := newFakeQuotes(map[string]float64{"XYZ": 0.5})
	ev := NewEvaluator(EvaluatorConfig{}, e, quotes, nil, nil)

	for i := 0; i < 5; i++ {
		mustCreate(t, e, "XYZ", model.ConditionAbove, 0.9)
	}
	ev.RunCycle(context.Background())
	assert.Equal(t, int32(1), quotes.calls.Load())
}

func TestRunCycle_NoActiveAlertsSkipsFetch(t *testing.T) {
	e := newTestEngine(t)
	quotes := newFakeQuotes(nil)
	ev := NewEvaluator(EvaluatorConfig{}, e, quotes, nil, nil)

	assert.Empty(t, ev.RunCycle(context.Background()))
	assert.Equal(t, int32(0), quotes.calls.Load())
}

// deletingQuotes removes an alert while its quote is in flight.
type deletingQuotes struct {
	engine *Engine
	id     string
}

func (q *deletingQuotes) Quote(ctx context.Context, ticker string) (model.Quote, error) {
	if err := q.engine.Delete(ctx, q.id); err != nil {
		return model.Quote{}, err
	}
	return model.Quote{Ticker: ticker, YesPrice: d(0.99)}, nil
}

func TestRunCycle_DeleteDuringFetchDoesNotFire(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	a := mustCreate(t, e, "XYZ", model.ConditionAbove, 0.5)

	rec := &recorder{}
	ev := NewEvaluator(EvaluatorConfig{}, e, &deletingQuotes{engine: e, id: a.ID}, rec, nil)

	assert.Empty(t, ev.RunCycle(ctx))
	assert.Equal(t, 0, rec.len())
	assert.Empty(t, e.List(ctx))
}

func TestRearm(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	quotes := newFakeQuotes(map[string]float64{"XYZ": 0.2})
	ev := NewEvaluator(EvaluatorConfig{}, e, quotes, nil, nil)

	a := mustCreate(t, e, "XYZ", model.ConditionBelow, 0.25)
	require.Len(t, ev.RunCycle(ctx), 1)

	rearmed, err := e.Rearm(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, rearmed.Active)
	assert.Nil(t, rearmed.TriggeredAt)

	require.Len(t, ev.RunCycle(ctx), 1, "rearmed alert fires again")

	_, err = e.Rearm(ctx, "missing")
	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestEvaluator_StartStop(t *testing.T) {
	e := newTestEngine(t)
	quotes := newFakeQuotes(map[string]float64{"XYZ": 0.1})
	rec := &recorder{}
	mustCreate(t, e, "XYZ", model.ConditionAbove, 0.5)

	ev := NewEvaluator(EvaluatorConfig{Interval: 10 * time.Millisecond}, e, quotes, rec, nil)
	ev.Start(context.Background())

	quotes.set("XYZ", 0.7)
	require.Eventually(t, func() bool { return rec.len() == 1 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ev.Stop(ctx))

	calls := quotes.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, quotes.calls.Load(), "no cycles after Stop")
}

func TestNotifiers_FanOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	var fn int
	ns := Notifiers{a, b, NotifierFunc(func(context.Context, model.AlertEvent) { fn++ })}

	ns.Notify(context.Background(), model.AlertEvent{AlertID: "x"})
	assert.Equal(t, 1, a.len())
	assert.Equal(t, 1, b.len())
	assert.Equal(t, 1, fn)
}
