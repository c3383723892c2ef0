package interval

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidWindow = errors.New("business window must be HH:MM-HH:MM with open before close")

// Window is the daily clock-time range [Open, Close) during which a resource may be booked.
// Open and Close are offsets from local midnight.
type Window struct {
	Open  time.Duration
	Close time.Duration
}

// ParseWindow parses "HH:MM-HH:MM" (seconds are accepted as HH:MM:SS).
func ParseWindow(s string) (Window, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return Window{}, ErrInvalidWindow
	}
	open, err := parseClock(parts[0])
	if err != nil {
		return Window{}, err
	}
	closeAt, err := parseClock(parts[1])
	if err != nil {
		return Window{}, err
	}
	w := Window{Open: open, Close: closeAt}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// MustParseWindow is ParseWindow for package-level defaults.
func MustParseWindow(s string) Window {
	w, err := ParseWindow(s)
	if err != nil {
		panic(err)
	}
	return w
}

func parseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		t, err = time.Parse("15:04", s)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWindow, s)
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}

// Validate checks that the window is a non-empty range within one day.
func (w Window) Validate() error {
	if w.Open < 0 || w.Close > 24*time.Hour || w.Close <= w.Open {
		return ErrInvalidWindow
	}
	return nil
}

// On returns the concrete business window of day d in loc.
func (w Window) On(d Day, loc *time.Location) Interval {
	return Interval{
		Start: clockOn(d, w.Open, loc),
		End:   clockOn(d, w.Close, loc),
	}
}

func clockOn(d Day, offset time.Duration, loc *time.Location) time.Time {
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	s := int((offset % time.Minute) / time.Second)
	return time.Date(d.Year, d.Month, d.Day, h, m, s, 0, loc)
}

func (w Window) String() string {
	return fmt.Sprintf("%s-%s", formatClock(w.Open), formatClock(w.Close))
}

func formatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int((d%time.Hour)/time.Minute))
}

// Segment is the part of an interval that falls inside one day's business window.
type Segment struct {
	Day      Day
	Interval Interval
}

// Segments splits i into per-day business-hour sub-windows. The first day runs from
// i.Start (or opening) to closing, the last from opening to i.End (or closing), and every
// day in between is held for its whole window. Days with no business-hour overlap are skipped.
func (w Window) Segments(i Interval, loc *time.Location) []Segment {
	var out []Segment
	for _, d := range Days(i, loc) {
		if seg, ok := i.Intersect(w.On(d, loc)); ok {
			out = append(out, Segment{Day: d, Interval: seg})
		}
	}
	return out
}

// Contains reports whether i starts and ends inside business hours on its first and last day.
func (w Window) Contains(i Interval, loc *time.Location) bool {
	days := Days(i, loc)
	if len(days) == 0 {
		return false
	}
	first := w.On(days[0], loc)
	last := w.On(days[len(days)-1], loc)
	return !i.Start.Before(first.Start) && i.Start.Before(first.End) &&
		i.End.After(last.Start) && !i.End.After(last.End)
}

// FirstOverlap compares attempted and existing day by day using each day's business
// sub-window and returns the overlap shape on the first day they collide.
func (w Window) FirstOverlap(attempted, existing Interval, loc *time.Location) (OverlapKind, Day, bool) {
	if !attempted.Overlaps(existing) {
		return Adjacent, Day{}, false
	}
	held := make(map[Day]Interval)
	for _, seg := range w.Segments(existing, loc) {
		held[seg.Day] = seg.Interval
	}
	for _, seg := range w.Segments(attempted, loc) {
		other, ok := held[seg.Day]
		if !ok {
			continue
		}
		if kind := Classify(seg.Interval, other); kind.IsConflict() {
			return kind, seg.Day, true
		}
	}
	return Adjacent, Day{}, false
}

// OverlapsWithin is FirstOverlap reduced to a yes/no answer. It is symmetric.
func (w Window) OverlapsWithin(a, b Interval, loc *time.Location) bool {
	_, _, ok := w.FirstOverlap(a, b, loc)
	return ok
}
