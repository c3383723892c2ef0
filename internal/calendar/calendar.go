// Package calendar colors days for a set of resources before any booking is attempted.
package calendar

import (
	"time"

	"github.com/nekogravitycat/reservation-engine/internal/holiday"
	"github.com/nekogravitycat/reservation-engine/internal/interval"
	"github.com/nekogravitycat/reservation-engine/internal/reservation"
	"github.com/nekogravitycat/reservation-engine/internal/resource"
)

// Status is the availability of a resource set on one day.
type Status string

const (
	StatusPast      Status = "past"
	StatusHoliday   Status = "holiday"
	StatusAvailable Status = "available"
	StatusPartial   Status = "partial"
	StatusReserved  Status = "reserved"
)

// Statuses lists every status Classify can return.
var Statuses = []Status{StatusPast, StatusHoliday, StatusAvailable, StatusPartial, StatusReserved}

// Classifier is a pure function over the snapshots handed to it.
type Classifier struct {
	Windows  resource.Windows
	Location *time.Location
}

func NewClassifier(windows resource.Windows, loc *time.Location) Classifier {
	if loc == nil {
		loc = time.UTC
	}
	return Classifier{Windows: windows, Location: loc}
}

// Classify returns the status of day for the resource set. Precedence is past,
// then holiday, then reserved, partial and available. Missing data reads as available.
func (c Classifier) Classify(
	day interval.Day,
	set []*resource.Resource,
	reservations []*reservation.Reservation,
	holidays holiday.Set,
	now time.Time,
) Status {
	today := interval.DayOf(now, c.loc())
	if day.Before(today) {
		return StatusPast
	}
	if day == today && !now.Before(c.closing(day, set)) {
		return StatusPast
	}
	if _, ok := holidays.Lookup(day); ok {
		return StatusHoliday
	}

	touched := false
	for _, res := range set {
		switch c.resourceStatus(day, res, reservations) {
		case StatusReserved:
			return StatusReserved
		case StatusPartial:
			touched = true
		}
	}
	if touched {
		return StatusPartial
	}
	return StatusAvailable
}

// ClassifyRange classifies every day from first to last inclusive.
func (c Classifier) ClassifyRange(
	first, last interval.Day,
	set []*resource.Resource,
	reservations []*reservation.Reservation,
	holidays holiday.Set,
	now time.Time,
) map[interval.Day]Status {
	out := make(map[interval.Day]Status)
	for d := first; !d.After(last); d = d.Next() {
		out[d] = c.Classify(d, set, reservations, holidays, now)
	}
	return out
}

// resourceStatus looks at one resource on one day and reports reserved, partial or available.
func (c Classifier) resourceStatus(day interval.Day, res *resource.Resource, reservations []*reservation.Reservation) Status {
	window := c.Windows.For(res.Kind).On(day, c.loc())

	touched := false
	fullQty := 0
	for _, r := range reservations {
		if !r.Active() {
			continue
		}
		qty, ok := r.Holds(res.ID)
		if !ok {
			continue
		}
		span := r.Interval()
		if !span.Overlaps(window) {
			continue
		}
		touched = true
		if !span.Covers(window) {
			continue
		}
		if !res.Kind.Pooled() {
			return StatusReserved
		}
		fullQty += qty
	}

	if res.Kind.Pooled() && fullQty >= res.Capacity() {
		return StatusReserved
	}
	if touched {
		return StatusPartial
	}
	return StatusAvailable
}

// closing is the latest closing time among the set's windows on day.
func (c Classifier) closing(day interval.Day, set []*resource.Resource) time.Time {
	latest := c.Windows.Default.On(day, c.loc()).End
	for i, res := range set {
		end := c.Windows.For(res.Kind).On(day, c.loc()).End
		if i == 0 || end.After(latest) {
			latest = end
		}
	}
	return latest
}

func (c Classifier) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}
