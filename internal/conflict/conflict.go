// Package conflict finds the reservations that stand in the way of a booking attempt.
package conflict

import (
	"sort"
	"time"

	"github.com/nekogravitycat/reservation-engine/internal/interval"
	"github.com/nekogravitycat/reservation-engine/internal/reservation"
	"github.com/nekogravitycat/reservation-engine/internal/resource"
)

// Request is one resource asked for by a booking attempt.
type Request struct {
	Resource *resource.Resource
	Quantity int
}

// Shortfall records that a pooled resource cannot supply the requested quantity.
type Shortfall struct {
	ResourceID string `json:"resource_id"`
	Requested  int    `json:"requested"`
	Available  int    `json:"available"`
}

// Missing is how many units the request is short by.
func (s Shortfall) Missing() int {
	return s.Requested - s.Available
}

// Record is one existing reservation that collides with the attempt.
type Record struct {
	Reservation *reservation.Reservation
	Kind        interval.OverlapKind
	Day         interval.Day // first day the two collide
	ResourceIDs []string     // resources the reservation conflicts on
	Shortfalls  []Shortfall  // set only for pooled resources
}

// Exclusive reports whether the record blocks a single-unit resource rather than
// only contributing to a pooled shortfall.
func (r *Record) Exclusive() bool {
	return len(r.ResourceIDs) > len(r.Shortfalls)
}

type Detector struct {
	Windows  resource.Windows
	Location *time.Location
}

func NewDetector(windows resource.Windows, loc *time.Location) Detector {
	if loc == nil {
		loc = time.UTC
	}
	return Detector{Windows: windows, Location: loc}
}

// Detect compares attempted with every active reservation in existing, per requested
// resource, and returns the union of conflicts deduplicated by reservation id.
// Single-unit resources conflict on any overlap inside business hours. A pooled resource
// only conflicts when the overlapping quantities leave less than requested; then every
// overlapping reservation on it is reported with the shortfall.
// The result is ordered by reservation start time, then id.
func (d Detector) Detect(attempted interval.Interval, requests []Request, existing []*reservation.Reservation) []*Record {
	byID := make(map[string]*Record)

	add := func(r *reservation.Reservation, kind interval.OverlapKind, day interval.Day, resourceID string, short *Shortfall) {
		rec, ok := byID[r.ID]
		if !ok {
			rec = &Record{Reservation: r, Kind: kind, Day: day}
			byID[r.ID] = rec
		}
		rec.ResourceIDs = append(rec.ResourceIDs, resourceID)
		if short != nil {
			rec.Shortfalls = append(rec.Shortfalls, *short)
		}
	}

	for _, req := range requests {
		if req.Resource == nil {
			continue
		}
		window := d.Windows.For(req.Resource.Kind)

		type hit struct {
			res  *reservation.Reservation
			kind interval.OverlapKind
			day  interval.Day
			qty  int
		}
		var hits []hit
		used := 0
		for _, r := range existing {
			if !r.Active() {
				continue
			}
			qty, ok := r.Holds(req.Resource.ID)
			if !ok {
				continue
			}
			kind, day, ok := window.FirstOverlap(attempted, r.Interval(), d.loc())
			if !ok {
				continue
			}
			hits = append(hits, hit{res: r, kind: kind, day: day, qty: qty})
			used += qty
		}

		if !req.Resource.Kind.Pooled() {
			for _, h := range hits {
				add(h.res, h.kind, h.day, req.Resource.ID, nil)
			}
			continue
		}

		remaining := req.Resource.Capacity() - used
		if req.Quantity <= remaining {
			continue
		}
		if remaining < 0 {
			remaining = 0
		}
		short := &Shortfall{ResourceID: req.Resource.ID, Requested: req.Quantity, Available: remaining}
		for _, h := range hits {
			add(h.res, h.kind, h.day, req.Resource.ID, short)
		}
	}

	out := make([]*Record, 0, len(byID))
	for _, rec := range byID {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Reservation, out[j].Reservation
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		return a.ID < b.ID
	})
	return out
}

// Remaining returns how many units of a pooled resource are free over attempted.
// Single-unit resources report 1 or 0.
func (d Detector) Remaining(attempted interval.Interval, res *resource.Resource, existing []*reservation.Reservation) int {
	var holdings []interval.Holding
	for _, r := range existing {
		if !r.Active() {
			continue
		}
		if qty, ok := r.Holds(res.ID); ok {
			holdings = append(holdings, interval.Holding{Interval: r.Interval(), Quantity: qty})
		}
	}
	left := d.Windows.For(res.Kind).Remaining(res.Capacity(), attempted, holdings, d.loc())
	if left < 0 {
		return 0
	}
	return left
}

// Shortfalls collects the distinct pooled shortfalls across records.
func Shortfalls(records []*Record) []Shortfall {
	seen := make(map[string]bool)
	var out []Shortfall
	for _, rec := range records {
		for _, s := range rec.Shortfalls {
			if seen[s.ResourceID] {
				continue
			}
			seen[s.ResourceID] = true
			out = append(out, s)
		}
	}
	return out
}

func (d Detector) loc() *time.Location {
	if d.Location == nil {
		return time.UTC
	}
	return d.Location
}
