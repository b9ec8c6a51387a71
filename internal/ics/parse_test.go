package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const simpleFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//EN
BEGIN:VEVENT
UID:ev1@test
DTSTART:20240110T100000Z
DTEND:20240110T103000Z
SUMMARY:Standup
DESCRIPTION:Daily sync
LOCATION:Room 1
STATUS:TENTATIVE
END:VEVENT
END:VCALENDAR`

const minimalFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//EN
BEGIN:VEVENT
UID:ev2@test
DTSTART:20240111T140000Z
DTEND:20240111T150000Z
SUMMARY:Review
END:VEVENT
END:VCALENDAR`

func TestParseExtractsEventFields(t *testing.T) {
	doc, err := Parse(simpleFeed)
	require.NoError(t, err)

	events, err := doc.EventComponents()
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "Standup", ev.Summary)
	assert.Equal(t, "Daily sync", ev.Description)
	assert.Equal(t, "Room 1", ev.Location)
	assert.Equal(t, "TENTATIVE", ev.Status)
	assert.False(t, ev.Recurring())
	assert.False(t, ev.AllDay)

	wantStart := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 1, 10, 10, 30, 0, 0, time.UTC)
	assert.True(t, ev.Start.Equal(wantStart), "start = %v", ev.Start)
	assert.True(t, ev.End.Equal(wantEnd), "end = %v", ev.End)
}

func TestParseStatusDefaultsToConfirmed(t *testing.T) {
	doc, err := Parse(minimalFeed)
	require.NoError(t, err)

	events, err := doc.EventComponents()
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, "CONFIRMED", events[0].Status)
	assert.Empty(t, events[0].Description)
	assert.Empty(t, events[0].Location)
}

func TestParseMalformedText(t *testing.T) {
	for name, text := range map[string]string{
		"empty":   "",
		"blank":   "   \n  ",
		"garbage": "this is not a calendar",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(text)
			require.Error(t, err)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
		})
	}
}

func TestParseAllDayEvent(t *testing.T) {
	const feed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//EN
BEGIN:VEVENT
UID:allday@test
DTSTART;VALUE=DATE:20240115
SUMMARY:Holiday
END:VEVENT
END:VCALENDAR`

	doc, err := Parse(feed)
	require.NoError(t, err)

	events, err := doc.EventComponents()
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.True(t, ev.AllDay)
	assert.True(t, ev.Start.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))
	// Without DTEND an all-day event spans a full day.
	assert.Equal(t, 24*time.Hour, ev.End.Sub(ev.Start))
}

func TestParseCollectsRRuleAndExDates(t *testing.T) {
	const feed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//EN
BEGIN:VEVENT
UID:rec@test
DTSTART:20240101T090000Z
DTEND:20240101T093000Z
RRULE:FREQ=DAILY
EXDATE:20240103T090000Z,20240104T090000Z
SUMMARY:Recurring
END:VEVENT
END:VCALENDAR`

	doc, err := Parse(feed)
	require.NoError(t, err)

	events, err := doc.EventComponents()
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.True(t, ev.Recurring())
	assert.Equal(t, "FREQ=DAILY", ev.RawRRule)
	require.Len(t, ev.ExDates, 2)
	assert.True(t, ev.ExDates[0].Equal(time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)))
	assert.True(t, ev.ExDates[1].Equal(time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC)))
}

func TestEventComponentsMissingDtStart(t *testing.T) {
	const feed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//EN
BEGIN:VEVENT
UID:broken@test
SUMMARY:No start
END:VEVENT
END:VCALENDAR`

	doc, err := Parse(feed)
	require.NoError(t, err)

	_, err = doc.EventComponents()
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}
