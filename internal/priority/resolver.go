package priority

import (
	"context"
	"fmt"

	"github.com/nekogravitycat/reservation-engine/internal/conflict"
	"github.com/nekogravitycat/reservation-engine/internal/reservation"
)

// Outcome is the terminal state of a single decision.
type Outcome string

const (
	Allow             Outcome = "ALLOW"
	AllowWithOverride Outcome = "ALLOW_WITH_OVERRIDE"
	Deny              Outcome = "DENY"
)

// Decision is the result of resolving a conflict list against a requester.
type Decision struct {
	Outcome       Outcome
	RequesterRank Rank
	Conflicts     []*conflict.Record
	// Set when Outcome is Deny: the highest-ranked role among blocking reservations.
	BlockingRole string
	BlockingRank Rank
}

// Resolve decides between allow, override and deny. Any conflicting reservation
// whose requester ranks at or above the requester denies the attempt.
func (t Table) Resolve(conflicts []*conflict.Record, requesterRole string) Decision {
	d := Decision{
		RequesterRank: t.RankOf(requesterRole),
		Conflicts:     conflicts,
	}
	if len(conflicts) == 0 {
		d.Outcome = Allow
		return d
	}

	d.Outcome = AllowWithOverride
	for _, c := range conflicts {
		rank := t.RankOf(c.Reservation.RequesterRole)
		if rank < d.RequesterRank {
			continue
		}
		if d.Outcome != Deny || rank > d.BlockingRank {
			d.BlockingRole = c.Reservation.RequesterRole
			d.BlockingRank = rank
		}
		d.Outcome = Deny
	}
	return d
}

// Override cancels every conflicting reservation and then creates next, all through tx.
// The first failure aborts; the caller's transaction discards whatever ran before it.
func Override(ctx context.Context, tx reservation.Writer, d Decision, next *reservation.Reservation) ([]string, error) {
	if d.Outcome != AllowWithOverride && d.Outcome != Allow {
		return nil, fmt.Errorf("cannot override a %s decision", d.Outcome)
	}

	cancelled := make([]string, 0, len(d.Conflicts))
	for _, c := range d.Conflicts {
		if err := tx.SetStatus(ctx, c.Reservation.ID, reservation.StatusCancelled); err != nil {
			return nil, fmt.Errorf("cancel reservation %s: %w", c.Reservation.ID, err)
		}
		cancelled = append(cancelled, c.Reservation.ID)
	}

	if err := tx.Create(ctx, next); err != nil {
		return nil, fmt.Errorf("create reservation: %w", err)
	}
	return cancelled, nil
}
