package http

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nekogravitycat/reservation-engine/internal/booking"
	"github.com/nekogravitycat/reservation-engine/internal/conflict"
	"github.com/nekogravitycat/reservation-engine/internal/interval"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/request"
	"github.com/nekogravitycat/reservation-engine/internal/reservation"
)

// ListBookingsRequest defines query parameters for listing bookings.
type ListBookingsRequest struct {
	request.ListParams
	ResourceID    string     `form:"resource_id" binding:"omitempty,uuid"`
	Status        string     `form:"status" binding:"omitempty,oneof=reserved pending cancelled"`
	RequesterID   string     `form:"requester_id"`
	StartTimeFrom *time.Time `form:"start_time_from" time_format:"2006-01-02T15:04:05Z07:00"`
	StartTimeTo   *time.Time `form:"start_time_to" time_format:"2006-01-02T15:04:05Z07:00"`
	SortBy        string     `form:"sort_by" binding:"omitempty,oneof=start_time end_time created_at status"`
}

// Validate performs custom validation for ListBookingsRequest.
func (r *ListBookingsRequest) Validate() error {
	if r.StartTimeFrom != nil && r.StartTimeTo != nil {
		if !r.StartTimeFrom.Before(*r.StartTimeTo) {
			return booking.ErrInvalidTimeRange
		}
	}
	return nil
}

// AvailabilityRequest selects the resource set and the inclusive day range to color.
type AvailabilityRequest struct {
	ResourceIDs string `form:"resource_ids" binding:"required"`
	From        string `form:"from" binding:"required"`
	To          string `form:"to" binding:"required"`
}

// Parse splits the comma separated ids, checks that each is a UUID and parses both days.
func (r *AvailabilityRequest) Parse() ([]string, interval.Day, interval.Day, error) {
	var ids []string
	for _, id := range strings.Split(r.ResourceIDs, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			return nil, interval.Day{}, interval.Day{}, booking.ErrInvalidResourceID
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, interval.Day{}, interval.Day{}, booking.ErrNoResources
	}
	from, err := interval.ParseDay(r.From)
	if err != nil {
		return nil, interval.Day{}, interval.Day{}, booking.ErrInvalidDateRange
	}
	to, err := interval.ParseDay(r.To)
	if err != nil {
		return nil, interval.Day{}, interval.Day{}, booking.ErrInvalidDateRange
	}
	return ids, from, to, nil
}

type ResourceRequestBody struct {
	ResourceID string `json:"resource_id" binding:"required,uuid"`
	Quantity   int    `json:"quantity" binding:"omitempty,min=0"`
}

// AttemptRequest is the body of both the check and the create endpoints.
type AttemptRequest struct {
	Resources       []ResourceRequestBody `json:"resources" binding:"required,min=1,dive"`
	StartTime       time.Time             `json:"start_time" binding:"required"`
	EndTime         time.Time             `json:"end_time" binding:"required"`
	Title           string                `json:"title" binding:"max=200"`
	Description     string                `json:"description" binding:"max=2000"`
	ConfirmOverride bool                  `json:"confirm_override"`
}

// Validate performs custom validation for AttemptRequest.
func (r *AttemptRequest) Validate() error {
	if !r.StartTime.Before(r.EndTime) {
		return booking.ErrInvalidTimeRange
	}
	return nil
}

func (r *AttemptRequest) ToAttempt(requesterID, requesterRole string) booking.Attempt {
	reqs := make([]booking.ResourceRequest, len(r.Resources))
	for i, res := range r.Resources {
		reqs[i] = booking.ResourceRequest{ResourceID: res.ResourceID, Quantity: res.Quantity}
	}
	return booking.Attempt{
		Resources:       reqs,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		RequesterID:     requesterID,
		RequesterRole:   requesterRole,
		Title:           strings.TrimSpace(r.Title),
		Description:     r.Description,
		ConfirmOverride: r.ConfirmOverride,
	}
}

type ItemResponse struct {
	ResourceID string `json:"resource_id"`
	Quantity   int    `json:"quantity"`
}

type BookingResponse struct {
	ID            string         `json:"id"`
	Resources     []ItemResponse `json:"resources"`
	StartTime     time.Time      `json:"start_time"`
	EndTime       time.Time      `json:"end_time"`
	Status        string         `json:"status"`
	RequesterID   string         `json:"requester_id"`
	RequesterRole string         `json:"requester_role"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func NewBookingResponse(r *reservation.Reservation) BookingResponse {
	items := make([]ItemResponse, len(r.Items))
	for i, it := range r.Items {
		items[i] = ItemResponse{ResourceID: it.ResourceID, Quantity: it.Quantity}
	}
	return BookingResponse{
		ID:            r.ID,
		Resources:     items,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		Status:        string(r.Status),
		RequesterID:   r.RequesterID,
		RequesterRole: r.RequesterRole,
		Title:         r.Title,
		Description:   r.Description,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type ConflictResponse struct {
	ReservationID string               `json:"reservation_id"`
	OverlapKind   string               `json:"overlap_kind"`
	Day           string               `json:"day"`
	ResourceIDs   []string             `json:"resource_ids"`
	RequesterRole string               `json:"requester_role"`
	StartTime     time.Time            `json:"start_time"`
	EndTime       time.Time            `json:"end_time"`
	Shortfalls    []conflict.Shortfall `json:"shortfalls,omitempty"`
}

func NewConflictResponses(records []*conflict.Record) []ConflictResponse {
	out := make([]ConflictResponse, len(records))
	for i, rec := range records {
		out[i] = ConflictResponse{
			ReservationID: rec.Reservation.ID,
			OverlapKind:   string(rec.Kind),
			Day:           rec.Day.String(),
			ResourceIDs:   rec.ResourceIDs,
			RequesterRole: rec.Reservation.RequesterRole,
			StartTime:     rec.Reservation.StartTime,
			EndTime:       rec.Reservation.EndTime,
			Shortfalls:    rec.Shortfalls,
		}
	}
	return out
}

type DecisionResponse struct {
	Outcome   string             `json:"outcome"`
	Booking   *BookingResponse   `json:"booking,omitempty"`
	Conflicts []ConflictResponse `json:"conflicts"`
	Cancelled []string           `json:"cancelled_ids,omitempty"`
}

func NewDecisionResponse(res *booking.Result) DecisionResponse {
	out := DecisionResponse{
		Outcome:   string(res.Outcome),
		Conflicts: NewConflictResponses(res.Conflicts),
		Cancelled: res.Cancelled,
	}
	if res.Reservation != nil {
		b := NewBookingResponse(res.Reservation)
		out.Booking = &b
	}
	return out
}
