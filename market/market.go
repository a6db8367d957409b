package market

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNoPrice is returned by backends when a request succeeded but carried no
// usable price, e.g. a quote payload without priceInfo.lastPrice or an empty
// history series.
var ErrNoPrice = errors.New("no price in response")

// Source identifies which backend produced a quote.
type Source string

const (
	SourceLive       Source = "live"
	SourceLastTraded Source = "last-traded"
)

// Quote represents a price for an NSE listed symbol, rounded to two decimal
// places and denominated in INR.
type Quote struct {
	Symbol string
	Price  decimal.Decimal
	Source Source
}

// String renders the price the way it is shown to operators, e.g. Rs.2900.00.
func (q Quote) String() string {
	return "Rs." + q.Price.StringFixed(2)
}

// LiveBackend returns the intraday last price for a symbol straight from the
// exchange.
type LiveBackend interface {
	LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// HistoryBackend returns the close of the most recent daily bar for a symbol.
type HistoryBackend interface {
	ClosingPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// StatusError is returned when the exchange answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
