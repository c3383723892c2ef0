package holiday

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// maxCachedYears bounds how many calendar years are held at once.
const maxCachedYears = 8

type cacheEntry struct {
	holidays  []Holiday
	fetchedAt time.Time
}

// CachedSource memoizes another Source per calendar year.
// When a refresh fails and an older copy of the year exists, the stale copy is served.
type CachedSource struct {
	next  Source
	ttl   time.Duration
	clock func() time.Time

	entries *lru.Cache[int, cacheEntry]
}

func NewCachedSource(next Source, ttl time.Duration) *CachedSource {
	// lru.New only fails for a non-positive size.
	entries, _ := lru.New[int, cacheEntry](maxCachedYears)
	return &CachedSource{
		next:    next,
		ttl:     ttl,
		clock:   time.Now,
		entries: entries,
	}
}

func (c *CachedSource) HolidaysForYear(ctx context.Context, year int) ([]Holiday, error) {
	if !validYear(year) {
		return nil, ErrInvalidYear
	}

	now := c.clock()

	entry, ok := c.entries.Get(year)
	if ok && now.Sub(entry.fetchedAt) < c.ttl {
		return append([]Holiday(nil), entry.holidays...), nil
	}

	fresh, err := c.next.HolidaysForYear(ctx, year)
	if err != nil {
		if ok {
			return append([]Holiday(nil), entry.holidays...), nil
		}
		return nil, err
	}

	c.entries.Add(year, cacheEntry{holidays: fresh, fetchedAt: now})
	return append([]Holiday(nil), fresh...), nil
}

// Invalidate drops the cached copy of year.
func (c *CachedSource) Invalidate(year int) {
	c.entries.Remove(year)
}
