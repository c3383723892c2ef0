package interval

import "time"

// Holding is a quantity of a pooled resource held over an interval.
type Holding struct {
	Interval Interval
	Quantity int
}

// Remaining returns total minus the quantity held by every holding that overlaps
// attempted inside business hours. The result may be negative when the pool is
// already oversubscribed.
func (w Window) Remaining(total int, attempted Interval, holdings []Holding, loc *time.Location) int {
	used := 0
	for _, h := range holdings {
		if w.OverlapsWithin(attempted, h.Interval, loc) {
			used += h.Quantity
		}
	}
	return total - used
}

// Satisfiable reports whether qty units are still available over attempted.
func (w Window) Satisfiable(qty, total int, attempted Interval, holdings []Holding, loc *time.Location) bool {
	return qty <= w.Remaining(total, attempted, holdings, loc)
}
