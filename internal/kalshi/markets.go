package kalshi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/kalshiplus/paper-engine/internal/alert"
	"github.com/kalshiplus/paper-engine/internal/model"
)

// GetMarkets fetches one page of markets.
func (c *Client) GetMarkets(ctx context.Context, opts GetMarketsOptions) (*MarketsResponse, error) {
	query := url.Values{}

	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}
	if opts.EventTicker != "" {
		query.Set("event_ticker", opts.EventTicker)
	}
	if opts.SeriesTicker != "" {
		query.Set("series_ticker", opts.SeriesTicker)
	}
	if len(opts.Tickers) > 0 {
		query.Set("tickers", strings.Join(opts.Tickers, ","))
	}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}

	var resp MarketsResponse
	if err := c.get(ctx, "/markets", query, &resp); err != nil {
		return nil, fmt.Errorf("get markets: %w", err)
	}
	return &resp, nil
}

// GetMarket fetches a single market by ticker.
func (c *Client) GetMarket(ctx context.Context, ticker string) (*APIMarket, error) {
	var resp SingleMarketResponse
	if err := c.get(ctx, "/markets/"+url.PathEscape(ticker), nil, &resp); err != nil {
		return nil, fmt.Errorf("get market %s: %w", ticker, err)
	}
	return &resp.Market, nil
}

// Quotes fetches one page of markets and converts them to quotes.
func (c *Client) Quotes(ctx context.Context, opts GetMarketsOptions) ([]model.Quote, error) {
	resp, err := c.GetMarkets(ctx, opts)
	if err != nil {
		return nil, err
	}

	quotes := make([]model.Quote, 0, len(resp.Markets))
	for _, m := range resp.Markets {
		quotes = append(quotes, ToQuote(m))
	}
	return quotes, nil
}

// Quote returns the dashboard quote for ticker. A market the API does not
// know returns alert.ErrQuoteNotFound; a missing ask is quoted at 0.50.
func (c *Client) Quote(ctx context.Context, ticker string) (model.Quote, error) {
	m, err := c.lookup(ctx, ticker)
	if err != nil {
		return model.Quote{}, err
	}
	return ToQuote(*m), nil
}

// PricedQuotes is the alert.QuoteSource view of a Client. Markets with no
// YES ask report alert.ErrQuoteNotFound instead of the 0.50 placeholder, so
// alerts are only compared against prices the exchange actually quoted.
type PricedQuotes struct {
	*Client
}

// Quote implements alert.QuoteSource.
func (p PricedQuotes) Quote(ctx context.Context, ticker string) (model.Quote, error) {
	m, err := p.lookup(ctx, ticker)
	if err != nil {
		return model.Quote{}, err
	}
	if m.YesAsk <= 0 {
		return model.Quote{}, fmt.Errorf("%w: %s has no yes ask", alert.ErrQuoteNotFound, ticker)
	}
	return ToQuote(*m), nil
}

func (c *Client) lookup(ctx context.Context, ticker string) (*APIMarket, error) {
	m, err := c.GetMarket(ctx, ticker)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", alert.ErrQuoteNotFound, ticker)
		}
		return nil, err
	}
	if m.Ticker == "" {
		return nil, fmt.Errorf("%w: %s", alert.ErrQuoteNotFound, ticker)
	}
	return m, nil
}
