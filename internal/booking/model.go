package booking

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/reservation-engine/internal/conflict"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/apperror"
	"github.com/nekogravitycat/reservation-engine/internal/reservation"
)

var (
	ErrNotFound             = apperror.New(http.StatusNotFound, "booking not found")
	ErrNoResources          = apperror.New(http.StatusBadRequest, "at least one resource is required")
	ErrDuplicateResource    = apperror.New(http.StatusBadRequest, "each resource may be requested only once")
	ErrInvalidResourceID    = apperror.New(http.StatusBadRequest, "resource ids must be UUIDs")
	ErrInvalidTimeRange     = apperror.New(http.StatusBadRequest, "start time must be before end time")
	ErrInvalidDateRange     = apperror.New(http.StatusBadRequest, "date range must run forward and span at most 366 days")
	ErrInvalidQuantity      = apperror.New(http.StatusBadRequest, "equipment quantity must be at least 1")
	ErrOutsideBusinessHours = apperror.New(http.StatusBadRequest, "booking must start and end within business hours")
	ErrStartTimePast        = apperror.New(http.StatusBadRequest, "cannot create booking in the past")
	ErrHoliday              = apperror.New(http.StatusBadRequest, "cannot book on a holiday")
	ErrResourceNotFound     = apperror.New(http.StatusNotFound, "resource not found")
	ErrPermissionDenied     = apperror.New(http.StatusForbidden, "permission denied")
	ErrAlreadyCancelled     = apperror.New(http.StatusConflict, "booking is already cancelled")
	ErrCapacity             = apperror.NewKind(http.StatusConflict, apperror.KindCapacity, "requested quantity exceeds availability")
	ErrPriorityDenied       = apperror.NewKind(http.StatusConflict, apperror.KindPriorityDenied, "time slot is held by an equal or higher priority booking")
	ErrCommitFailed         = apperror.NewKind(http.StatusServiceUnavailable, apperror.KindTransaction, "booking could not be committed, please retry")
)

// Outcome is what ResolveAndMaybeCommit did with an attempt.
// Denied attempts are reported as errors rather than outcomes.
type Outcome string

const (
	OutcomeAllowed           Outcome = "ALLOWED"
	OutcomeNeedsConfirmation Outcome = "NEEDS_CONFIRMATION"
	OutcomeDenied            Outcome = "DENIED"
)

// ResourceRequest asks for quantity units of one resource.
// Quantity is ignored for single-unit kinds.
type ResourceRequest struct {
	ResourceID string
	Quantity   int
}

// Attempt is a proposed booking.
type Attempt struct {
	Resources       []ResourceRequest
	StartTime       time.Time
	EndTime         time.Time
	RequesterID     string
	RequesterRole   string
	Title           string
	Description     string
	ConfirmOverride bool
}

// Result is the outcome of a booking attempt that was not denied.
type Result struct {
	Outcome     Outcome
	Reservation *reservation.Reservation // set when Outcome is ALLOWED
	Conflicts   []*conflict.Record       // reservations that must be or were bumped
	Cancelled   []string                 // ids cancelled by a committed override
}

// Actor is the caller of an operation on an existing booking.
type Actor struct {
	ID    string
	Role  string
	Admin bool
}

// CapacityDetails is attached to ErrCapacity.
type CapacityDetails struct {
	ResourceID   string `json:"resource_id"`
	Requested    int    `json:"requested"`
	MaxAvailable int    `json:"max_available"`
}

// DenyDetails is attached to ErrPriorityDenied.
type DenyDetails struct {
	BlockingRole  string   `json:"blocking_role"`
	BlockingRank  int      `json:"blocking_rank"`
	RequesterRank int      `json:"requester_rank"`
	Conflicts     []string `json:"conflicting_reservation_ids"`
}
