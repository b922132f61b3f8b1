package kalshi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalshiplus/paper-engine/internal/alert"
	"github.com/kalshiplus/paper-engine/internal/model"
	"github.com/kalshiplus/paper-engine/internal/store"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestClient(url string) *Client {
	return NewClient(url, "", WithRetries(2, time.Millisecond))
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("", "")
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, 30*time.Second, c.httpClient.Timeout)
	assert.Equal(t, 3, c.maxRetries)
	assert.Equal(t, time.Second, c.retryBackoff)
	assert.NotNil(t, c.logger)

	c = NewClient("http://x", "key", WithTimeout(5*time.Second), WithRetries(7, time.Millisecond))
	assert.Equal(t, 5*time.Second, c.httpClient.Timeout)
	assert.Equal(t, 7, c.maxRetries)
}

func TestGetMarkets_QueryAndDecode(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(MarketsResponse{
			Markets: []APIMarket{{Ticker: "BTC-100K", Title: "Will Bitcoin hit 100k?", YesAsk: 42, NoAsk: 60, Volume: 1234}},
			Cursor:  "next",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	resp, err := c.GetMarkets(context.Background(), GetMarketsOptions{Limit: 200, Status: "open", SeriesTicker: "BTC,ETH"})
	require.NoError(t, err)
	require.Len(t, resp.Markets, 1)
	assert.Equal(t, "next", resp.Cursor)
	assert.Contains(t, gotQuery, "limit=200")
	assert.Contains(t, gotQuery, "status=open")
	assert.Contains(t, gotQuery, "series_ticker=BTC%2CETH")
}

func TestQuotes_Converts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(MarketsResponse{Markets: []APIMarket{
			{Ticker: "A", Title: "Will Bitcoin hit 100k?", YesAsk: 42, NoAsk: 60, Volume: 10},
			{Ticker: "B", Title: "Fed cut in March?", Volume: 20},
		}})
	}))
	defer srv.Close()

	quotes, err := newTestClient(srv.URL).Quotes(context.Background(), GetMarketsOptions{})
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	assert.True(t, quotes[0].YesPrice.Equal(d("0.42")))
	assert.True(t, quotes[0].NoPrice.Equal(d("0.6")))
	assert.True(t, quotes[0].Spread.Equal(d("0.02")))
	assert.Equal(t, "crypto", quotes[0].Category)

	assert.True(t, quotes[1].YesPrice.Equal(d("0.5")))
	assert.True(t, quotes[1].NoPrice.Equal(d("0.5")))
	assert.Equal(t, "economics", quotes[1].Category)
}

func TestQuote_Found(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets/XYZ", r.URL.Path)
		json.NewEncoder(w).Encode(SingleMarketResponse{Market: APIMarket{Ticker: "XYZ", Title: "X", YesAsk: 61, NoAsk: 41}})
	}))
	defer srv.Close()

	q, err := newTestClient(srv.URL).Quote(context.Background(), "XYZ")
	require.NoError(t, err)
	assert.Equal(t, "XYZ", q.Ticker)
	assert.True(t, q.YesPrice.Equal(d("0.61")))
}

func TestQuote_NotFoundMapsToAlertError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Quote(context.Background(), "GONE")
	assert.ErrorIs(t, err, alert.ErrQuoteNotFound)
	assert.Equal(t, int32(1), calls.Load(), "404 is not retried")
}

func TestPricedQuotes_NoAskIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SingleMarketResponse{Market: APIMarket{Ticker: "THIN", Title: "Thin", YesAsk: 0, LastPrice: 12}})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	q, err := c.Quote(context.Background(), "THIN")
	require.NoError(t, err)
	assert.True(t, q.YesPrice.Equal(d("0.5")), "dashboard quote keeps the placeholder")

	_, err = PricedQuotes{Client: c}.Quote(context.Background(), "THIN")
	assert.ErrorIs(t, err, alert.ErrQuoteNotFound)
}

func TestPricedQuotes_UnpricedMarketDoesNotFireAlert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SingleMarketResponse{Market: APIMarket{Ticker: "THIN", Title: "Thin", YesAsk: 0, LastPrice: 12}})
	}))
	defer srv.Close()

	ctx := context.Background()
	engine := alert.NewEngine(store.NewMemoryStore())
	_, err := engine.Create(ctx, alert.CreateRequest{Ticker: "THIN", Condition: model.ConditionAbove, TargetPrice: d("0.45")})
	require.NoError(t, err)

	var fired atomic.Int32
	notify := alert.NotifierFunc(func(context.Context, model.AlertEvent) { fired.Add(1) })
	ev := alert.NewEvaluator(alert.DefaultEvaluatorConfig(), engine, PricedQuotes{Client: newTestClient(srv.URL)}, notify, nil)

	events := ev.RunCycle(ctx)
	assert.Empty(t, events)
	assert.Equal(t, int32(0), fired.Load())
	require.Len(t, engine.List(ctx), 1)
	assert.True(t, engine.List(ctx)[0].Active)
}

func TestRetry_ServerErrorThenSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(SingleMarketResponse{Market: APIMarket{Ticker: "XYZ", YesAsk: 10}})
	}))
	defer srv.Close()

	q, err := newTestClient(srv.URL).Quote(context.Background(), "XYZ")
	require.NoError(t, err)
	assert.True(t, q.YesPrice.Equal(d("0.1")))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetry_Exhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetMarket(context.Background(), "XYZ")
	require.Error(t, err)
	assert.NotErrorIs(t, err, alert.ErrQuoteNotFound)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, int32(3), calls.Load(), "one attempt plus two retries")
}

func TestRetry_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", WithRetries(5, time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.GetMarket(ctx, "XYZ")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAPIError(t *testing.T) {
	assert.True(t, (&APIError{StatusCode: 500}).IsRetryable())
	assert.True(t, (&APIError{StatusCode: 429}).IsRetryable())
	assert.False(t, (&APIError{StatusCode: 404}).IsRetryable())
	assert.False(t, (&APIError{StatusCode: 400}).IsRetryable())
	assert.Equal(t, "kalshi api error 404: Not Found", (&APIError{StatusCode: 404, Message: "Not Found"}).Error())
}
