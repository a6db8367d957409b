package market

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Warmer is implemented by live backends that need a session primed before
// the first lookup.
type Warmer interface {
	Warm(ctx context.Context) error
}

// Tracker looks up NSE prices from the exchange itself and from the daily
// history fallback. Lookups never fail loudly: every error is logged and
// reported as a missing result.
type Tracker struct {
	live    LiveBackend
	history HistoryBackend
	hours   Hours
	log     *zap.Logger
	now     func() time.Time
}

type TrackerOption func(*Tracker)

// WithClock overrides the wall clock used by IsMarketOpen.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// WithHours overrides the trading session used by IsMarketOpen.
func WithHours(h Hours) TrackerOption {
	return func(t *Tracker) { t.hours = h }
}

func NewTracker(live LiveBackend, history HistoryBackend, log *zap.Logger, opts ...TrackerOption) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Tracker{
		live:    live,
		history: history,
		hours:   NSEHours,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Init primes the live backend session. A failure is only logged; lookups are
// still attempted later and fail on their own if the exchange rejects them.
func (t *Tracker) Init(ctx context.Context) {
	w, ok := t.live.(Warmer)
	if !ok {
		return
	}
	if err := w.Warm(ctx); err != nil {
		t.log.Warn("Failed to refresh NSE session cookies", zap.Error(err))
		return
	}
	t.log.Info("Successfully refreshed NSE session cookies")
}

// IsMarketOpen reports whether the exchange session is running right now. It
// is informational and does not gate lookups.
func (t *Tracker) IsMarketOpen() bool {
	return t.hours.IsOpen(t.now())
}

// LivePrice fetches the current price of an uppercased symbol from the
// exchange. It does not fall back to the history source; callers decide.
func (t *Tracker) LivePrice(ctx context.Context, symbol string) (Quote, bool) {
	price, err := t.live.LastPrice(ctx, symbol)
	switch {
	case errors.Is(err, ErrNoPrice):
		return Quote{}, false
	case err != nil:
		t.log.Warn("Failed to fetch live price from NSE, switching to Yahoo Finance",
			zap.String("symbol", symbol), zap.Error(err))
		return Quote{}, false
	}

	q := Quote{Symbol: symbol, Price: price, Source: SourceLive}
	t.log.Info("Live price for "+symbol+": "+q.String(), zap.String("symbol", symbol))
	return q, true
}

// LastTradedPrice fetches the close of the most recent daily bar for symbol.
func (t *Tracker) LastTradedPrice(ctx context.Context, symbol string) (Quote, bool) {
	price, err := t.history.ClosingPrice(ctx, symbol)
	switch {
	case errors.Is(err, ErrNoPrice):
		return Quote{}, false
	case err != nil:
		t.log.Error("Failed to fetch last traded price",
			zap.String("symbol", symbol), zap.Error(err))
		return Quote{}, false
	}

	q := Quote{Symbol: symbol, Price: price, Source: SourceLastTraded}
	t.log.Info("Last traded price for "+symbol+": "+q.String(), zap.String("symbol", symbol))
	return q, true
}
