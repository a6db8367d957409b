package market

import "time"

// Clock is a wall clock time of day.
type Clock struct {
	Hour, Minute, Second int
}

// on returns t with its hour, minute and second replaced by c. Date,
// sub-second part and location are kept.
func (c Clock) on(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), c.Hour, c.Minute, c.Second, t.Nanosecond(), t.Location())
}

// Hours is the regular trading session of the exchange.
type Hours struct {
	Open  Clock
	Close Clock
}

// NSEHours is the NSE equity session, 09:15:00 to 15:30:00 local time.
var NSEHours = Hours{
	Open:  Clock{Hour: 9, Minute: 15},
	Close: Clock{Hour: 15, Minute: 30},
}

// IsOpen reports whether now falls inside the session, both boundaries
// included. Weekends and exchange holidays are not taken into account.
func (h Hours) IsOpen(now time.Time) bool {
	open, close := h.Open.on(now), h.Close.on(now)
	return !now.Before(open) && !now.After(close)
}
