package model

import "time"

// DateKeyLayout is the calendar-date form used to bucket events and
// schedules by day, rendered in UTC.
const DateKeyLayout = "2006-01-02"

// Event is a single concrete calendar event as exposed to the rest of
// the system: either a non-recurring VEVENT or one expanded occurrence
// of a recurring one. Occurrences of the same series share the
// informational fields but carry their own instants.
type Event struct {
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`

	// Status defaults to "CONFIRMED" when absent from the source feed.
	Status string `json:"status"`

	// StartDate / EndDate are the RFC 3339 renderings of Start / End.
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`

	// DateKey is the UTC calendar date (YYYY-MM-DD) of Start.
	DateKey string `json:"dateKey"`

	Start time.Time `json:"-"`
	End   time.Time `json:"-"`
}

// NewEvent fills in the derived renderings (StartDate, EndDate, DateKey)
// from the given instants. End > Start is expected but not validated;
// a malformed event simply never overlaps anything.
func NewEvent(summary, description, location, status string, start, end time.Time) Event {
	startUTC := start.UTC()
	return Event{
		Summary:     summary,
		Description: description,
		Location:    location,
		Status:      status,
		StartDate:   startUTC.Format(time.RFC3339),
		EndDate:     end.UTC().Format(time.RFC3339),
		DateKey:     startUTC.Format(DateKeyLayout),
		Start:       start,
		End:         end,
	}
}

// TimeSlot is one UI-exposed candidate slot: a wall-clock time anchored
// to its enclosing Schedule's date. Produced by the scraping layer.
type TimeSlot struct {
	// Time is the slot's wall-clock "HH:MM".
	Time string `json:"time"`
	// HalfHour marks half-hour granularity slots.
	HalfHour bool `json:"isHalfHour"`
}

// Schedule groups the candidate slots rendered for one calendar date.
type Schedule struct {
	// Date is the schedule's calendar date, "YYYY-MM-DD".
	Date string `json:"date"`
	// Slots are the selectable slots for that date.
	Slots []TimeSlot `json:"availableSlots"`
}

// Policy controls slot decisions that are independent of calendar
// events.
type Policy struct {
	// AutoDeclineWeekends marks every Saturday/Sunday slot busy.
	AutoDeclineWeekends bool `yaml:"auto_decline_weekends" json:"autoDeclineWeekends"`
	// EnforceWorkingHours marks slots outside [WorkStart, WorkEnd) busy.
	EnforceWorkingHours bool `yaml:"enforce_working_hours" json:"enforceWorkingHours"`
	// WorkStart / WorkEnd are "HH:MM"; WorkEnd itself is outside
	// working hours.
	WorkStart string `yaml:"work_start" json:"workStart"`
	WorkEnd   string `yaml:"work_end" json:"workEnd"`
}

// Normalize fills in the default working hours for empty fields.
func (p *Policy) Normalize() {
	if p.WorkStart == "" {
		p.WorkStart = "09:00"
	}
	if p.WorkEnd == "" {
		p.WorkEnd = "17:00"
	}
}
