package http

import (
	"time"

	"github.com/nekogravitycat/reservation-engine/internal/pkg/request"
	"github.com/nekogravitycat/reservation-engine/internal/resource"
)

// ListResourcesRequest defines query parameters for listing resources.
type ListResourcesRequest struct {
	request.ListParams
	Kind   string `form:"kind" binding:"omitempty,oneof=venue vehicle equipment driver"`
	SortBy string `form:"sort_by" binding:"omitempty,oneof=created_at name kind total_quantity"`
}

type ResourceResponse struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Name          string    `json:"name"`
	TotalQuantity int       `json:"total_quantity"`
	BusinessHours string    `json:"business_hours"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewResponse(r *resource.Resource, windows resource.Windows) ResourceResponse {
	return ResourceResponse{
		ID:            r.ID,
		Kind:          string(r.Kind),
		Name:          r.Name,
		TotalQuantity: r.Capacity(),
		BusinessHours: windows.For(r.Kind).String(),
		CreatedAt:     r.CreatedAt,
	}
}

type CreateRequest struct {
	Name          string `json:"name" binding:"required,max=200"`
	Kind          string `json:"kind" binding:"required,oneof=venue vehicle equipment driver"`
	TotalQuantity int    `json:"total_quantity" binding:"omitempty,min=1"`
}
