package ics

import (
	"time"

	"github.com/teambition/rrule-go"

	"github.com/minagishl/google-calendar-tonton/internal/model"
)

// DefaultWindowDays is the expansion horizon applied when a caller
// omits window bounds.
const DefaultWindowDays = 30

// DefaultWindow returns the [now, now+30d) window used when the caller
// does not supply bounds.
func DefaultWindow(now time.Time) (time.Time, time.Time) {
	return now, now.Add(DefaultWindowDays * 24 * time.Hour)
}

// Expand produces the concrete events of one raw VEVENT that intersect
// the requested window.
//
// A non-recurring event is included iff windowStart <= start <=
// windowEnd; only the start instant is tested, the end may extend past
// the window. A recurring event is walked occurrence by occurrence in
// chronological order; iteration stops outright at the first start past
// windowEnd, so an unbounded rule can never loop forever. Each
// occurrence keeps the template's duration and informational fields but
// derives its own date key.
func Expand(ev RawEvent, windowStart, windowEnd time.Time) ([]model.Event, error) {
	if !ev.Recurring() {
		if ev.Start.Before(windowStart) || ev.Start.After(windowEnd) {
			return nil, nil
		}
		return []model.Event{newOccurrence(ev, ev.Start, ev.End)}, nil
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		return nil, parseErr("malformed RRULE", err)
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		// Align EXDATE with the series' own location for exact matching.
		set.ExDate(ex.In(ev.Start.Location()))
	}

	duration := ev.End.Sub(ev.Start)
	next := set.Iterator()

	var out []model.Event
	for {
		s, ok := next()
		if !ok {
			break
		}
		// The generator is monotonically increasing, so the first start
		// past the window ends the walk. This bound must stay an instant
		// comparison; a plain iteration cap would not terminate unbounded
		// rules correctly.
		if s.After(windowEnd) {
			break
		}
		if s.Before(windowStart) {
			continue
		}
		out = append(out, newOccurrence(ev, s, s.Add(duration)))
	}

	return out, nil
}

// ExpandAll expands every raw event over the window, concatenating the
// results. The first expansion failure aborts the whole run.
func ExpandAll(events []RawEvent, windowStart, windowEnd time.Time) ([]model.Event, error) {
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		occ, err := Expand(ev, windowStart, windowEnd)
		if err != nil {
			return nil, err
		}
		out = append(out, occ...)
	}
	return out, nil
}

func newOccurrence(ev RawEvent, start, end time.Time) model.Event {
	return model.NewEvent(ev.Summary, ev.Description, ev.Location, ev.Status, start, end)
}
