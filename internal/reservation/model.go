package reservation

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/reservation-engine/internal/interval"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/apperror"
)

var (
	ErrNotFound         = apperror.New(http.StatusNotFound, "reservation not found")
	ErrInvalidStatus    = apperror.New(http.StatusBadRequest, "invalid reservation status")
	ErrStatusTransition = apperror.NewKind(http.StatusConflict, apperror.KindTransaction, "reservation status changed concurrently")
	ErrTxConflict       = apperror.NewKind(http.StatusServiceUnavailable, apperror.KindTransaction, "reservation transaction aborted, please retry")
)

type Status string

const (
	StatusReserved  Status = "reserved"
	StatusPending   Status = "pending"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	return s == StatusReserved || s == StatusPending || s == StatusCancelled
}

// CanTransition reports whether a reservation may move from s to next.
// Cancelled is terminal; pending may be promoted to reserved.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusReserved || next == StatusCancelled
	case StatusReserved:
		return next == StatusCancelled
	default:
		return false
	}
}

// Item is one resource held by a reservation.
type Item struct {
	ResourceID string
	Quantity   int
}

// Reservation holds one or more resources over a time interval.
// Apart from Status, a stored reservation is never mutated.
type Reservation struct {
	ID            string
	Items         []Item
	StartTime     time.Time
	EndTime       time.Time
	Status        Status
	RequesterRole string
	RequesterID   string
	Title         string
	Description   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r *Reservation) Interval() interval.Interval {
	return interval.Interval{Start: r.StartTime, End: r.EndTime}
}

// Active reports whether the reservation takes part in conflict checks.
func (r *Reservation) Active() bool {
	return r.Status == StatusReserved
}

// Holds returns the quantity of resourceID held by the reservation.
func (r *Reservation) Holds(resourceID string) (int, bool) {
	for _, it := range r.Items {
		if it.ResourceID == resourceID {
			return it.Quantity, true
		}
	}
	return 0, false
}

// ResourceIDs lists the ids of all held resources.
func (r *Reservation) ResourceIDs() []string {
	ids := make([]string, len(r.Items))
	for i, it := range r.Items {
		ids[i] = it.ResourceID
	}
	return ids
}

func (r *Reservation) clone() *Reservation {
	cp := *r
	cp.Items = append([]Item(nil), r.Items...)
	return &cp
}

type Filter struct {
	RequesterID string
	ResourceID  string
	Status      string
	StartTime   *time.Time // Filter reservations ending after this time
	EndTime     *time.Time // Filter reservations starting before this time
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}
