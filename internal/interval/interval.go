package interval

import (
	"errors"
	"time"
)

var ErrInvalidRange = errors.New("end time must be after start time")

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// New builds an Interval and rejects empty or inverted ranges.
func New(start, end time.Time) (Interval, error) {
	if !end.After(start) {
		return Interval{}, ErrInvalidRange
	}
	return Interval{Start: start, End: end}, nil
}

// IsZero reports whether the interval is empty.
func (i Interval) IsZero() bool {
	return !i.End.After(i.Start)
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether two intervals share at least one instant.
// Touching endpoints do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}

// Covers reports whether i contains the whole of o.
func (i Interval) Covers(o Interval) bool {
	return !i.Start.After(o.Start) && !i.End.Before(o.End)
}

// Intersect returns the shared part of both intervals. ok is false when they do not overlap.
func (i Interval) Intersect(o Interval) (Interval, bool) {
	if !i.Overlaps(o) {
		return Interval{}, false
	}
	start := i.Start
	if o.Start.After(start) {
		start = o.Start
	}
	end := i.End
	if o.End.Before(end) {
		end = o.End
	}
	return Interval{Start: start, End: end}, true
}

// OverlapKind describes how an attempted interval meets an existing one.
type OverlapKind string

const (
	CompleteOverlap OverlapKind = "COMPLETE_OVERLAP"
	WithinExisting  OverlapKind = "WITHIN_EXISTING"
	OverlapStart    OverlapKind = "OVERLAP_START"
	OverlapEnd      OverlapKind = "OVERLAP_END"
	Adjacent        OverlapKind = "ADJACENT"
)

// IsConflict reports whether the kind represents a real collision.
func (k OverlapKind) IsConflict() bool {
	return k != Adjacent && k != ""
}

// Classify returns the shape of the overlap between attempted and existing.
// Argument order matters: CompleteOverlap and WithinExisting swap when reversed.
func Classify(attempted, existing Interval) OverlapKind {
	if !attempted.Overlaps(existing) {
		return Adjacent
	}
	switch {
	case attempted.Start.Before(existing.Start) && attempted.End.After(existing.End):
		return CompleteOverlap
	case !attempted.Start.Before(existing.Start) && !attempted.End.After(existing.End):
		return WithinExisting
	case attempted.Start.Before(existing.Start):
		return OverlapStart
	default:
		return OverlapEnd
	}
}
