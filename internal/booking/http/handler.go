package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/reservation-engine/internal/auth"
	"github.com/nekogravitycat/reservation-engine/internal/booking"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/request"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/response"
	"github.com/nekogravitycat/reservation-engine/internal/reservation"
)

type Handler struct {
	service booking.Service
}

func NewHandler(service booking.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Availability(c *gin.Context) {
	var req AvailabilityRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}

	ids, from, to, err := req.Parse()
	if err != nil {
		response.Error(c, err)
		return
	}

	days, err := h.service.GetAvailability(c.Request.Context(), ids, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"resource_ids": ids,
		"from":         from,
		"to":           to,
		"days":         days,
	})
}

func (h *Handler) Check(c *gin.Context) {
	var body AttemptRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}
	if err := body.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	attempt := body.ToAttempt(auth.GetUserID(c), auth.GetUserRole(c))
	records, err := h.service.CheckConflicts(c.Request.Context(), attempt)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conflicts": NewConflictResponses(records)})
}

func (h *Handler) Create(c *gin.Context) {
	var body AttemptRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}
	if err := body.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	userID := auth.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	res, err := h.service.ResolveAndMaybeCommit(c.Request.Context(), body.ToAttempt(userID, auth.GetUserRole(c)))
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusCreated
	if res.Outcome == booking.OutcomeNeedsConfirmation {
		status = http.StatusAccepted
	}
	c.JSON(status, NewDecisionResponse(res))
}

func (h *Handler) List(c *gin.Context) {
	var req ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	// Admins may list anyone's bookings; everyone else only sees their own.
	requesterID := auth.GetUserID(c)
	if auth.IsAdmin(c) {
		requesterID = req.RequesterID
	}

	filter := reservation.Filter{
		RequesterID: requesterID,
		ResourceID:  req.ResourceID,
		Status:      req.Status,
		StartTime:   req.StartTimeFrom,
		EndTime:     req.StartTimeTo,
		Page:        req.Page,
		PageSize:    req.PageSize,
		SortBy:      req.SortBy,
		SortOrder:   req.Order(),
	}

	list, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]BookingResponse, len(list))
	for i, r := range list {
		items[i] = NewBookingResponse(r)
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

func (h *Handler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	r, err := h.service.GetByID(c.Request.Context(), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	if !auth.IsAdmin(c) && r.RequesterID != auth.GetUserID(c) {
		response.Error(c, booking.ErrPermissionDenied)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(r))
}

func (h *Handler) Cancel(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	actor := booking.Actor{
		ID:    auth.GetUserID(c),
		Role:  auth.GetUserRole(c),
		Admin: auth.IsAdmin(c),
	}

	r, err := h.service.Cancel(c.Request.Context(), req.ID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(r))
}
