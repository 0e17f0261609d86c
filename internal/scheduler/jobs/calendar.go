package jobs

import (
	"time"

	"github.com/scmhub/calendar"
)

// TradingCalendar reports whether the exchange trades on a date
type TradingCalendar interface {
	IsTradingDay(t time.Time) bool
}

// ExchangeCalendar is a TradingCalendar backed by scmhub/calendar.
// Without a loaded calendar it falls back to Monday to Friday.
type ExchangeCalendar struct {
	cal *calendar.Calendar
	loc *time.Location
}

// NewNYSECalendar loads the XNYS holiday calendar
func NewNYSECalendar() *ExchangeCalendar {
	cal := calendar.GetCalendar("xnys")
	if cal == nil {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.UTC
		}
		return &ExchangeCalendar{loc: loc}
	}
	return &ExchangeCalendar{cal: cal, loc: cal.Loc}
}

// IsTradingDay evaluates t in the exchange's time zone
func (c *ExchangeCalendar) IsTradingDay(t time.Time) bool {
	if c.loc != nil {
		t = t.In(c.loc)
	}
	if c.cal == nil {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return c.cal.IsBusinessDay(t)
}
