package patients

import "time"

type window struct {
	open, close int // minutes after midnight
}

// BusinessHours is the clinic's fixed weekly schedule evaluated in the clinic time zone:
// Mon-Fri 09:00-18:00, Sat 10:00-16:00, Sun closed.
type BusinessHours struct {
	loc      *time.Location
	schedule map[time.Weekday]window
}

func NewBusinessHours(loc *time.Location) BusinessHours {
	if loc == nil {
		loc = time.UTC
	}
	weekday := window{open: 9 * 60, close: 18 * 60}
	return BusinessHours{
		loc: loc,
		schedule: map[time.Weekday]window{
			time.Monday:    weekday,
			time.Tuesday:   weekday,
			time.Wednesday: weekday,
			time.Thursday:  weekday,
			time.Friday:    weekday,
			time.Saturday:  {open: 10 * 60, close: 16 * 60},
		},
	}
}

// Open reports whether the clinic is open at t. Closing time is exclusive.
func (b BusinessHours) Open(t time.Time) bool {
	loc := b.loc
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	w, ok := b.schedule[local.Weekday()]
	if !ok {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	return minute >= w.open && minute < w.close
}

// Location returns the clinic time zone.
func (b BusinessHours) Location() *time.Location {
	if b.loc == nil {
		return time.UTC
	}
	return b.loc
}
