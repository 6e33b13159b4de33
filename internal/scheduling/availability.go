package scheduling

import (
	"context"
	"sort"
	"strings"
	"time"
)

// MaxOfferedSlots caps how many options a booking reply lists.
const MaxOfferedSlots = 3

// Availability finds open slots for a service.
type Availability interface {
	Slots(ctx context.Context, service string, from time.Time) ([]time.Time, error)
}

type weeklySlot struct {
	day          time.Weekday
	hour, minute int
}

// WeeklyAvailability offers the same handful of weekly openings for every service.
// It stands in until a calendar integration is configured.
type WeeklyAvailability struct {
	loc   *time.Location
	slots []weeklySlot
}

func NewWeeklyAvailability(loc *time.Location) *WeeklyAvailability {
	if loc == nil {
		loc = time.UTC
	}
	return &WeeklyAvailability{
		loc: loc,
		slots: []weeklySlot{
			{day: time.Monday, hour: 14},
			{day: time.Tuesday, hour: 10},
			{day: time.Wednesday, hour: 15, minute: 30},
		},
	}
}

// Slots returns the next opening for each weekly slot after from, soonest first.
func (w *WeeklyAvailability) Slots(_ context.Context, service string, from time.Time) ([]time.Time, error) {
	if strings.TrimSpace(service) == "" {
		return nil, nil
	}
	local := from.In(w.loc)
	var out []time.Time
	for _, s := range w.slots {
		days := (int(s.day) - int(local.Weekday()) + 7) % 7
		candidate := time.Date(local.Year(), local.Month(), local.Day()+days, s.hour, s.minute, 0, 0, w.loc)
		if !candidate.After(local) {
			candidate = candidate.AddDate(0, 0, 7)
		}
		out = append(out, candidate)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	if len(out) > MaxOfferedSlots {
		out = out[:MaxOfferedSlots]
	}
	return out, nil
}

// FormatSlots renders slots the way replies show them, e.g. "Monday 2:00 PM".
func FormatSlots(slots []time.Time, loc *time.Location) []string {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.In(loc).Format("Monday 3:04 PM"))
	}
	return out
}
