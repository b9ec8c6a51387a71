// Package availability turns raw ICS feed text into per-slot busy/free
// decisions: a memoizing cache in front of the ICS parser and
// recurrence expander, plus the slot matcher that applies weekend and
// working-hours policy on top of calendar overlap.
package availability

import (
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/minagishl/google-calendar-tonton/internal/ics"
	appLog "github.com/minagishl/google-calendar-tonton/internal/log"
	"github.com/minagishl/google-calendar-tonton/internal/model"
)

const (
	// DefaultDocumentCapacity bounds how many distinct feed texts keep
	// a parsed document alive at once.
	DefaultDocumentCapacity = 3
	// DefaultWindowCapacity bounds the expanded-event lists kept per
	// document, one per requested window.
	DefaultWindowCapacity = 6
)

// Cache memoizes parsed calendar documents per distinct feed text, and
// expanded event lists per (feed, window) pair. Both levels evict
// strictly least-recently-used entries once their capacity is exceeded;
// entries otherwise live for the cache's lifetime. The cache is purely
// an optimization: a miss always recomputes from scratch, and a failed
// parse never leaves an entry behind.
type Cache struct {
	mu        sync.Mutex
	docs      *lru.Cache[string, *documentEntry]
	windowCap int
}

// documentEntry holds one parsed feed and its nested window-level
// cache, which evicts independently of other documents.
type documentEntry struct {
	doc     *ics.Document
	windows *lru.Cache[string, []model.Event]
}

// New creates a Cache with the default capacities (3 documents, 6
// windows each).
func New() *Cache {
	return NewWithCapacity(DefaultDocumentCapacity, DefaultWindowCapacity)
}

// NewWithCapacity creates a Cache with explicit level capacities.
// Non-positive values fall back to the defaults.
func NewWithCapacity(docCap, windowCap int) *Cache {
	if docCap <= 0 {
		docCap = DefaultDocumentCapacity
	}
	if windowCap <= 0 {
		windowCap = DefaultWindowCapacity
	}
	docs, _ := lru.New[string, *documentEntry](docCap)
	return &Cache{
		docs:      docs,
		windowCap: windowCap,
	}
}

// GetEvents returns the normalized events of the given feed text that
// intersect the window, parsing and expanding at most once per distinct
// (feed, window) pair. A zero windowStart defaults to now, a zero
// windowEnd to 30 days past the resolved start. Identical calls return
// equal lists until the entry is evicted.
//
// Malformed feed text or a malformed recurrence rule yields a
// *ics.ParseError and drops any cache entry for the feed.
func (c *Cache) GetEvents(feedText string, windowStart, windowEnd time.Time) ([]model.Event, error) {
	if windowStart.IsZero() {
		windowStart = time.Now()
	}
	if windowEnd.IsZero() {
		windowEnd = windowStart.Add(ics.DefaultWindowDays * 24 * time.Hour)
	}
	key := windowKey(windowStart, windowEnd)

	// One writer at a time: the lookup/insert/evict sequences on both
	// levels must not interleave, or two misses on the same feed would
	// race their inserts.
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.docs.Get(feedText)
	if !ok {
		doc, err := ics.Parse(feedText)
		if err != nil {
			return nil, err
		}
		windows, _ := lru.New[string, []model.Event](c.windowCap)
		entry = &documentEntry{doc: doc, windows: windows}
		c.docs.Add(feedText, entry)
	}

	if events, hit := entry.windows.Get(key); hit {
		return events, nil
	}

	raw, err := entry.doc.EventComponents()
	if err != nil {
		c.docs.Remove(feedText)
		return nil, err
	}

	events, err := ics.ExpandAll(raw, windowStart, windowEnd)
	if err != nil {
		c.docs.Remove(feedText)
		return nil, err
	}

	if len(events) == 0 {
		// Valid, if unusual: an empty calendar window.
		appLog.Warn("no events in requested window",
			"window_start", windowStart.UTC().Format(time.RFC3339),
			"window_end", windowEnd.UTC().Format(time.RFC3339),
		)
	}

	entry.windows.Add(key, events)
	return events, nil
}

// Documents reports how many parsed feed documents are currently
// cached.
func (c *Cache) Documents() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.docs.Len()
}

// ContainsDocument reports whether the feed text has a live document
// entry, without refreshing its recency.
func (c *Cache) ContainsDocument(feedText string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.docs.Contains(feedText)
}

// windowKey canonicalizes a resolved window into the nested cache key.
func windowKey(start, end time.Time) string {
	return strconv.FormatInt(start.UnixMilli(), 10) + "-" + strconv.FormatInt(end.UnixMilli(), 10)
}
