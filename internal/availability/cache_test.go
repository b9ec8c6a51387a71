package availability

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minagishl/google-calendar-tonton/internal/ics"
)

// feedWithEvent builds a one-event feed whose text differs per summary,
// so each call produces a distinct document cache key.
func feedWithEvent(summary string, start, end time.Time) string {
	const layout = "20060102T150405Z"
	return fmt.Sprintf(`BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//EN
BEGIN:VEVENT
UID:%s@test
DTSTART:%s
DTEND:%s
SUMMARY:%s
END:VEVENT
END:VCALENDAR`, summary, start.UTC().Format(layout), end.UTC().Format(layout), summary)
}

func utc(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func TestGetEventsIdempotent(t *testing.T) {
	cache := New()
	feed := feedWithEvent("standup", utc(2024, 1, 10, 10, 0), utc(2024, 1, 10, 10, 30))
	windowStart, windowEnd := utc(2024, 1, 1, 0, 0), utc(2024, 1, 31, 0, 0)

	first, err := cache.GetEvents(feed, windowStart, windowEnd)
	require.NoError(t, err)
	second, err := cache.GetEvents(feed, windowStart, windowEnd)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first, 1)
	assert.Equal(t, "standup", first[0].Summary)
}

func TestGetEventsWindowMonotonicity(t *testing.T) {
	cache := New()
	feed := `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//EN
BEGIN:VEVENT
UID:rec@test
DTSTART:20240101T090000Z
DTEND:20240101T093000Z
RRULE:FREQ=DAILY
SUMMARY:Recurring
END:VEVENT
END:VCALENDAR`

	inner, err := cache.GetEvents(feed, utc(2024, 1, 5, 0, 0), utc(2024, 1, 10, 0, 0))
	require.NoError(t, err)
	outer, err := cache.GetEvents(feed, utc(2024, 1, 1, 0, 0), utc(2024, 1, 20, 0, 0))
	require.NoError(t, err)

	require.NotEmpty(t, inner)
	assert.Greater(t, len(outer), len(inner))
	for _, ev := range inner {
		assert.Contains(t, outer, ev)
	}
}

func TestDocumentCacheCapacityEviction(t *testing.T) {
	cache := New()
	windowStart, windowEnd := utc(2024, 1, 1, 0, 0), utc(2024, 1, 31, 0, 0)

	feeds := make([]string, 4)
	for i := range feeds {
		feeds[i] = feedWithEvent(fmt.Sprintf("feed%d", i), utc(2024, 1, 10+i, 10, 0), utc(2024, 1, 10+i, 11, 0))
	}

	for _, feed := range feeds[:3] {
		_, err := cache.GetEvents(feed, windowStart, windowEnd)
		require.NoError(t, err)
	}
	require.Equal(t, 3, cache.Documents())

	// Touch feed 0 so feed 1 becomes the least recently used.
	_, err := cache.GetEvents(feeds[0], windowStart, windowEnd)
	require.NoError(t, err)

	// A 4th distinct feed evicts exactly the least-recently-used entry.
	_, err = cache.GetEvents(feeds[3], windowStart, windowEnd)
	require.NoError(t, err)

	assert.Equal(t, 3, cache.Documents())
	assert.False(t, cache.ContainsDocument(feeds[1]))
	assert.True(t, cache.ContainsDocument(feeds[0]))
	assert.True(t, cache.ContainsDocument(feeds[2]))
	assert.True(t, cache.ContainsDocument(feeds[3]))
}

func TestWindowCacheCapacityIsPerDocument(t *testing.T) {
	cache := NewWithCapacity(3, 2)
	feed := feedWithEvent("solo", utc(2024, 1, 10, 10, 0), utc(2024, 1, 10, 11, 0))

	// Three distinct windows against a 2-entry window cache: no errors,
	// results stay correct because misses recompute from the document.
	for i := 0; i < 3; i++ {
		start := utc(2024, 1, 1+i, 0, 0)
		events, err := cache.GetEvents(feed, start, utc(2024, 1, 31, 0, 0))
		require.NoError(t, err)
		assert.Len(t, events, 1)
	}
	assert.Equal(t, 1, cache.Documents())

	// Re-query the evicted window: recomputed, same contents.
	events, err := cache.GetEvents(feed, utc(2024, 1, 1, 0, 0), utc(2024, 1, 31, 0, 0))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "solo", events[0].Summary)
}

func TestGetEventsParseFailureNotCached(t *testing.T) {
	cache := New()

	_, err := cache.GetEvents("not a calendar", utc(2024, 1, 1, 0, 0), utc(2024, 1, 31, 0, 0))
	require.Error(t, err)
	var perr *ics.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 0, cache.Documents())

	// The same malformed text keeps failing, and valid feeds still work.
	_, err = cache.GetEvents("not a calendar", utc(2024, 1, 1, 0, 0), utc(2024, 1, 31, 0, 0))
	require.Error(t, err)

	feed := feedWithEvent("ok", utc(2024, 1, 10, 10, 0), utc(2024, 1, 10, 11, 0))
	events, err := cache.GetEvents(feed, utc(2024, 1, 1, 0, 0), utc(2024, 1, 31, 0, 0))
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestGetEventsMalformedRRuleDropsDocument(t *testing.T) {
	cache := New()
	const feed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//EN
BEGIN:VEVENT
UID:bad@test
DTSTART:20240101T090000Z
DTEND:20240101T093000Z
RRULE:FREQ=BOGUS
SUMMARY:Broken
END:VEVENT
END:VCALENDAR`

	_, err := cache.GetEvents(feed, utc(2024, 1, 1, 0, 0), utc(2024, 1, 31, 0, 0))
	require.Error(t, err)
	var perr *ics.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 0, cache.Documents())
}

func TestGetEventsDefaultWindow(t *testing.T) {
	cache := New()
	now := time.Now().UTC()

	soon := feedWithEvent("soon", now.Add(24*time.Hour), now.Add(25*time.Hour))
	events, err := cache.GetEvents(soon, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	far := feedWithEvent("far", now.Add(40*24*time.Hour), now.Add(40*24*time.Hour+time.Hour))
	events, err = cache.GetEvents(far, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, events)
}
