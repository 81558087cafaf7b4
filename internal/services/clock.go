package services

import (
	"strings"
	"time"

	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/engine/streak"
)

const MonthLayout = "2006-01"

// Clock supplies the current instant and the zone day and month keys are
// computed in. The zero value uses time.Now and UTC.
type Clock struct {
	Now func() time.Time
	Loc *time.Location
}

// NewClock loads tz (an IANA name). Empty means UTC.
func NewClock(tz string) (Clock, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return Clock{Now: time.Now, Loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Clock{}, err
	}
	return Clock{Now: time.Now, Loc: loc}, nil
}

// FixedClock always returns t. For tests and replays.
func FixedClock(t time.Time, loc *time.Location) Clock {
	return Clock{Now: func() time.Time { return t }, Loc: loc}
}

func (c Clock) At() time.Time {
	if c.Now == nil {
		return time.Now().UTC()
	}
	return c.Now().UTC()
}

func (c Clock) location() *time.Location {
	if c.Loc == nil {
		return time.UTC
	}
	return c.Loc
}

func (c Clock) Today() string { return streak.Today(c.At(), c.location()) }

func (c Clock) Month() string { return c.At().In(c.location()).Format(MonthLayout) }

func (c Clock) PeriodKey(period string) string {
	if period == types.PeriodMonthly {
		return c.Month()
	}
	return c.Today()
}
