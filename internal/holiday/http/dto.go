package http

import (
	"github.com/nekogravitycat/reservation-engine/internal/holiday"
)

type ListHolidaysRequest struct {
	Year int `form:"year" binding:"required,min=1970,max=9999"`
}

type HolidayResponse struct {
	Date string `json:"date"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

func NewResponse(h holiday.Holiday) HolidayResponse {
	return HolidayResponse{
		Date: h.Date.String(),
		Name: h.Name,
		Kind: h.Kind,
	}
}
