package market

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/shopspring/decimal"
)

const (
	// NSESuffix is the Yahoo Finance market suffix for NSE listings.
	NSESuffix = ".NS"

	DefaultHistoryLookback = 7 * 24 * time.Hour
)

type barIter interface {
	Next() bool
	Bar() *finance.ChartBar
	Err() error
}

// YahooBackend serves daily closes for NSE symbols from Yahoo Finance.
type YahooBackend struct {
	// Lookback is how far back bars are requested. It has to span weekends and
	// exchange holidays so that the latest session is always included.
	Lookback time.Duration

	now   func() time.Time
	chart func(*chart.Params) barIter
}

var _ HistoryBackend = (*YahooBackend)(nil)

func NewYahooBackend(lookback time.Duration) *YahooBackend {
	if lookback <= 0 {
		lookback = DefaultHistoryLookback
	}
	return &YahooBackend{
		Lookback: lookback,
		now:      time.Now,
		chart: func(p *chart.Params) barIter {
			return chart.Get(p)
		},
	}
}

// ClosingPrice returns the close of the most recent daily bar for symbol,
// which must not carry the market suffix.
func (y *YahooBackend) ClosingPrice(ctx context.Context, symbol string) (price decimal.Decimal, err error) {
	if err := ctx.Err(); err != nil {
		return decimal.Decimal{}, err
	}

	// finance-go panics on some malformed payloads; fold those into the error
	// path like any other library failure.
	defer func() {
		if r := recover(); r != nil {
			price, err = decimal.Decimal{}, fmt.Errorf("yahoo chart for %s: %v", symbol, r)
		}
	}()

	// Day granularity makes the end exclusive, so ask through tomorrow.
	end := y.now()
	start := end.Add(-y.Lookback)
	iter := y.chart(&chart.Params{
		Params:   finance.Params{Context: &ctx},
		Symbol:   symbol + NSESuffix,
		Start:    day(start),
		End:      day(end.AddDate(0, 0, 1)),
		Interval: datetime.OneDay,
	})

	// Yahoo sends null closes for in-progress sessions and holidays, which
	// decode as zero.
	var last *finance.ChartBar
	for iter.Next() {
		if bar := iter.Bar(); !bar.Close.IsZero() {
			last = bar
		}
	}
	if err := iter.Err(); err != nil {
		return decimal.Decimal{}, fmt.Errorf("yahoo chart for %s: %w", symbol+NSESuffix, err)
	}
	if last == nil {
		return decimal.Decimal{}, ErrNoPrice
	}

	return round(last.Close), nil
}

func day(t time.Time) *datetime.Datetime {
	return &datetime.Datetime{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}
