package market

import (
	"context"

	"github.com/shopspring/decimal"
)

// FakeBackend serves canned prices. A symbol missing from Prices yields
// ErrNoPrice; Err, when set, is returned for every lookup.
type FakeBackend struct {
	Prices map[string]decimal.Decimal
	Err    error

	Calls []string
}

var (
	_ LiveBackend    = (*FakeBackend)(nil)
	_ HistoryBackend = (*FakeBackend)(nil)
)

func (f *FakeBackend) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return f.lookup(symbol)
}

func (f *FakeBackend) ClosingPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return f.lookup(symbol)
}

func (f *FakeBackend) lookup(symbol string) (decimal.Decimal, error) {
	f.Calls = append(f.Calls, symbol)
	if f.Err != nil {
		return decimal.Decimal{}, f.Err
	}
	price, ok := f.Prices[symbol]
	if !ok {
		return decimal.Decimal{}, ErrNoPrice
	}
	return round(price), nil
}
