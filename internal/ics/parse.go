package ics

import (
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

// ParseError marks malformed ICS text or a malformed recurrence rule.
// It is fatal for the offending feed: no partial results are produced
// and the failed parse is never cached.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "ics: " + e.Reason + ": " + e.Err.Error()
	}
	return "ics: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErr(reason string, err error) *ParseError {
	return &ParseError{Reason: reason, Err: err}
}

// Document is the parsed representation of one ICS feed's text. It is
// immutable once built; the availability cache owns one Document per
// distinct feed text.
type Document struct {
	cal *ical.Calendar
}

// RawEvent is one top-level VEVENT definition, before recurrence
// expansion.
type RawEvent struct {
	Summary     string
	Description string
	Location    string
	Status      string

	// Start / End are the template instants. For a recurring event they
	// belong to the first occurrence; its duration (End - Start) is
	// assumed constant across the series.
	Start  time.Time
	End    time.Time
	AllDay bool

	// RawRRule is the unparsed RRULE value, empty for non-recurring
	// events. Expansion happens in expand.go.
	RawRRule string
	ExDates  []time.Time
}

// Recurring reports whether the event carries a recurrence rule.
func (ev RawEvent) Recurring() bool {
	return ev.RawRRule != ""
}

// Parse parses raw ICS text into a Document. It is a pure function of
// its input; malformed calendar data yields a *ParseError.
func Parse(icsText string) (*Document, error) {
	if strings.TrimSpace(icsText) == "" {
		return nil, parseErr("empty ICS body", nil)
	}

	cal, err := ical.ParseCalendar(strings.NewReader(icsText))
	if err != nil {
		return nil, parseErr("malformed calendar", err)
	}

	return &Document{cal: cal}, nil
}

// EventComponents extracts the top-level event definitions from the
// document. Source order is not meaningful to callers. A VEVENT whose
// start cannot be parsed makes the whole extraction fail with a
// *ParseError.
func (d *Document) EventComponents() ([]RawEvent, error) {
	comps := d.cal.Events()
	events := make([]RawEvent, 0, len(comps))

	for _, ve := range comps {
		ev, err := parseVEvent(ve)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	return events, nil
}

func parseVEvent(ve *ical.VEvent) (RawEvent, error) {
	var out RawEvent

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	// Use the raw property name to avoid constant mismatch across
	// library versions.
	out.Status = "CONFIRMED"
	if p := ve.GetProperty("STATUS"); p != nil && p.Value != "" {
		out.Status = p.Value
	}

	dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStartProp == nil || dtStartProp.Value == "" {
		return out, parseErr("missing DTSTART", nil)
	}

	// Detect all-day: VALUE=DATE or a date-only DTSTART value.
	if params := dtStartProp.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			out.AllDay = true
		}
	}
	if !strings.Contains(dtStartProp.Value, "T") {
		out.AllDay = true
	}

	// DTSTART: prefer the library's timezone-aware helper, fall back to
	// a naive parse of the raw value.
	start, err := ve.GetStartAt()
	if err != nil {
		start, err = parseICSTime(dtStartProp.Value)
		if err != nil {
			return out, parseErr("malformed DTSTART", err)
		}
	}
	out.Start = start

	// DTEND is optional: an all-day event without one spans a full day;
	// a timed event without one degenerates to zero duration, which the
	// half-open overlap test treats as never busy.
	end, err := ve.GetEndAt()
	if err != nil {
		if dtEndProp := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEndProp != nil {
			if t, perr := parseICSTime(dtEndProp.Value); perr == nil {
				end = t
			}
		}
	}
	if end.IsZero() {
		if out.AllDay {
			end = start.Add(24 * time.Hour)
		} else {
			end = start
		}
	}
	out.End = end

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	// EXDATE can appear multiple times, each with a comma-separated
	// value list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, perr := parseICSTime(part); perr == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	return out, nil
}

// parseICSTime parses a basic ICS date/date-time string into time.Time.
// Values without an explicit zone are taken as UTC: the engine deals in
// feed-supplied absolute instants and leaves display-zone conventions
// to its callers.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		const layout = "20060102T150405Z"
		return time.Parse(layout, v)
	}

	// Zoneless date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		const layout = "20060102T150405"
		return time.ParseInLocation(layout, v, time.UTC)
	}

	// Date-only (all-day), e.g., 20250101
	const layoutDate = "20060102"
	return time.ParseInLocation(layoutDate, v, time.UTC)
}
