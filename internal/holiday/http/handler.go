package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/reservation-engine/internal/holiday"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/response"
)

type Handler struct {
	source holiday.Source
}

func NewHandler(source holiday.Source) *Handler {
	return &Handler{source: source}
}

func (h *Handler) List(c *gin.Context) {
	var req ListHolidaysRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}

	list, err := h.source.HolidaysForYear(c.Request.Context(), req.Year)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]HolidayResponse, len(list))
	for i, hd := range list {
		items[i] = NewResponse(hd)
	}

	c.JSON(http.StatusOK, gin.H{"year": req.Year, "items": items})
}
