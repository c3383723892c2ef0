package holiday

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/reservation-engine/internal/interval"
)

type flakySource struct {
	calls int
	fail  bool
	list  []Holiday
}

func (f *flakySource) HolidaysForYear(ctx context.Context, year int) ([]Holiday, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("calendar unavailable")
	}
	return f.list, nil
}

func day(y int, m time.Month, d int) interval.Day {
	return interval.Day{Year: y, Month: m, Day: d}
}

func TestMemorySource(t *testing.T) {
	src := NewMemorySource(
		Holiday{Date: day(2026, time.December, 25), Name: "Christmas Day", Kind: "regular"},
		Holiday{Date: day(2026, time.January, 1), Name: "New Year's Day", Kind: "regular"},
		Holiday{Date: day(2027, time.January, 1), Name: "New Year's Day", Kind: "regular"},
	)

	got, err := src.HolidaysForYear(context.Background(), 2026)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, day(2026, time.January, 1), got[0].Date)

	_, err = src.HolidaysForYear(context.Background(), 12)
	assert.ErrorIs(t, err, ErrInvalidYear)
}

func TestCachedSourceServesWithinTTL(t *testing.T) {
	next := &flakySource{list: []Holiday{{Date: day(2026, time.June, 12), Name: "Independence Day"}}}
	cache := NewCachedSource(next, time.Hour)
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }

	ctx := context.Background()
	_, err := cache.HolidaysForYear(ctx, 2026)
	require.NoError(t, err)
	_, err = cache.HolidaysForYear(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls)

	now = now.Add(2 * time.Hour)
	_, err = cache.HolidaysForYear(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)

	cache.Invalidate(2026)
	_, err = cache.HolidaysForYear(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, 3, next.calls)
}

func TestCachedSourceServesStaleOnError(t *testing.T) {
	next := &flakySource{list: []Holiday{{Date: day(2026, time.June, 12), Name: "Independence Day"}}}
	cache := NewCachedSource(next, time.Minute)
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }
	ctx := context.Background()

	_, err := cache.HolidaysForYear(ctx, 2026)
	require.NoError(t, err)

	next.fail = true
	now = now.Add(time.Hour)
	got, err := cache.HolidaysForYear(ctx, 2026)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = cache.HolidaysForYear(ctx, 2027)
	assert.Error(t, err)
}

func TestCachedSourceEvictsLeastRecentYear(t *testing.T) {
	next := &flakySource{}
	cache := NewCachedSource(next, time.Hour)
	ctx := context.Background()

	for year := 2026; year < 2026+maxCachedYears; year++ {
		_, err := cache.HolidaysForYear(ctx, year)
		require.NoError(t, err)
	}
	_, err := cache.HolidaysForYear(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, maxCachedYears, next.calls, "every year still cached")

	// 2027 is now the least recently used year.
	_, err = cache.HolidaysForYear(ctx, 2026+maxCachedYears)
	require.NoError(t, err)
	_, err = cache.HolidaysForYear(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, maxCachedYears+1, next.calls)
	_, err = cache.HolidaysForYear(ctx, 2027)
	require.NoError(t, err)
	assert.Equal(t, maxCachedYears+2, next.calls)
}

func TestCollectDegradesPerYear(t *testing.T) {
	src := NewMemorySource(Holiday{Date: day(2026, time.December, 30), Name: "Rizal Day"})
	days := []interval.Day{day(2026, time.December, 30), day(2026, time.December, 31), day(2027, time.January, 1)}

	set, err := Collect(context.Background(), src, days)
	require.NoError(t, err)
	h, ok := set.Lookup(day(2026, time.December, 30))
	assert.True(t, ok)
	assert.Equal(t, "Rizal Day", h.Name)
	_, ok = set.Lookup(day(2027, time.January, 1))
	assert.False(t, ok)

	set, err = Collect(context.Background(), &flakySource{fail: true}, days)
	assert.Error(t, err)
	assert.Empty(t, set)

	set, err = Collect(context.Background(), nil, days)
	assert.NoError(t, err)
	assert.Empty(t, set)
}
