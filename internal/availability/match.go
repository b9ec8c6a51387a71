package availability

import (
	"fmt"
	"sort"
	"time"

	appLog "github.com/minagishl/google-calendar-tonton/internal/log"
	"github.com/minagishl/google-calendar-tonton/internal/model"
)

// Reason records which rule marked a slot busy.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonWeekend      Reason = "weekend"
	ReasonWorkingHours Reason = "working-hours"
	ReasonEvent        Reason = "event"
)

// Decision is the busy/free verdict for one slot.
type Decision struct {
	Date    string    `json:"date"`
	Time    string    `json:"time"`
	Instant time.Time `json:"instant"`
	Busy    bool      `json:"busy"`
	Reason  Reason    `json:"reason,omitempty"`
}

// Result is the matcher's output: one decision per slot, plus the
// distinct busy instants the UI layer has to act on. An instant appears
// once no matter how many rules flagged it.
type Result struct {
	Decisions    []Decision  `json:"decisions"`
	BusyInstants []time.Time `json:"busyInstants"`
}

// Match decides busy/free for every slot of every schedule date.
//
// A slot is busy by policy when the weekend rule covers its date or its
// wall-clock time falls outside the half-open working-hours range
// [WorkStart, WorkEnd). A weekend-declined date skips calendar matching
// entirely. Any remaining slot is busy when some event of that date
// satisfies start <= slot < end.
//
// Match never fails on well-formed events; schedule entries with
// unparseable dates or times come from the scraping layer and are
// skipped with a warning. An event with end <= start never satisfies
// the overlap test and is deliberately left that way.
func Match(schedules []model.Schedule, events []model.Event, pol model.Policy) Result {
	pol.Normalize()

	var workStart, workEnd int
	if pol.EnforceWorkingHours {
		var startErr, endErr error
		workStart, startErr = parseHHMM(pol.WorkStart)
		workEnd, endErr = parseHHMM(pol.WorkEnd)
		if startErr != nil || endErr != nil {
			appLog.Warn("invalid working hours, enforcement disabled", "work_start", pol.WorkStart, "work_end", pol.WorkEnd)
			pol.EnforceWorkingHours = false
		}
	}
	return match(schedules, bucketByDate(events), pol, workStart, workEnd)
}

func match(schedules []model.Schedule, byDate map[string][]model.Event, pol model.Policy, workStart, workEnd int) Result {
	var res Result
	busySeen := make(map[int64]time.Time)

	for _, sched := range schedules {
		date, err := time.ParseInLocation(model.DateKeyLayout, sched.Date, time.UTC)
		if err != nil {
			appLog.Warn("skipping schedule with invalid date", "date", sched.Date)
			continue
		}

		weekday := date.Weekday()
		weekendBusy := pol.AutoDeclineWeekends && (weekday == time.Saturday || weekday == time.Sunday)

		dayEvents := byDate[sched.Date]
		if !weekendBusy && len(dayEvents) == 0 {
			// Valid outcome: an empty calendar day.
			appLog.Warn("no events for date", "date", sched.Date)
		}

		for _, slot := range sched.Slots {
			minutes, err := parseHHMM(slot.Time)
			if err != nil {
				appLog.Warn("skipping slot with invalid time", "date", sched.Date, "time", slot.Time)
				continue
			}
			instant := date.Add(time.Duration(minutes) * time.Minute)

			busy := false
			reason := ReasonNone
			switch {
			case weekendBusy:
				busy, reason = true, ReasonWeekend
			case pol.EnforceWorkingHours && (minutes < workStart || minutes >= workEnd):
				busy, reason = true, ReasonWorkingHours
			default:
				// Events are sorted by start; once a start passes the
				// slot instant no later event can cover it.
				for _, ev := range dayEvents {
					if ev.Start.After(instant) {
						break
					}
					if instant.Before(ev.End) {
						busy, reason = true, ReasonEvent
						break
					}
				}
			}

			res.Decisions = append(res.Decisions, Decision{
				Date:    sched.Date,
				Time:    slot.Time,
				Instant: instant,
				Busy:    busy,
				Reason:  reason,
			})
			if busy {
				busySeen[instant.UnixMilli()] = instant
			}
		}
	}

	res.BusyInstants = make([]time.Time, 0, len(busySeen))
	for _, t := range busySeen {
		res.BusyInstants = append(res.BusyInstants, t)
	}
	sort.Slice(res.BusyInstants, func(i, j int) bool {
		return res.BusyInstants[i].Before(res.BusyInstants[j])
	})

	return res
}

// bucketByDate groups events by their date key and sorts each bucket by
// start instant ascending, enabling the matcher's early scan cutoff.
func bucketByDate(events []model.Event) map[string][]model.Event {
	byDate := make(map[string][]model.Event)
	for _, ev := range events {
		byDate[ev.DateKey] = append(byDate[ev.DateKey], ev)
	}
	for _, bucket := range byDate {
		sort.Slice(bucket, func(i, j int) bool {
			return bucket[i].Start.Before(bucket[j].Start)
		})
	}
	return byDate
}

// parseHHMM converts a wall-clock "HH:MM" string into minutes since
// midnight.
func parseHHMM(s string) (int, error) {
	if len(s) < 5 {
		return 0, fmt.Errorf("invalid time string: %s", s)
	}
	tt, err := time.Parse("15:04", s[:5])
	if err != nil {
		return 0, err
	}
	return tt.Hour()*60 + tt.Minute(), nil
}
