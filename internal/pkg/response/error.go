package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/apperror"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/logger"
)

// ErrorResponse defines the JSON structure for error responses.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Details   any    `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Error sends a JSON error response.
// It checks if the error is an AppError to determine the status code.
// If it's not an AppError, it defaults to 500 Internal Server Error and logs the cause.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.Code, ErrorResponse{
			Error:     appErr.Message,
			Kind:      string(appErr.Kind),
			Details:   appErr.Details,
			Retryable: appErr.Retryable,
		})
		return
	}

	if logg := logger.FromGin(c); logg != nil {
		logg.Error(c.Request.Context(), "unhandled error", err)
	}
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error: "internal server error",
		Kind:  string(apperror.KindInternal),
	})
}

// BadRequest sends a 400 validation response for binding failures.
func BadRequest(c *gin.Context, message string, err error) {
	resp := ErrorResponse{Error: message, Kind: string(apperror.KindValidation)}
	if err != nil {
		resp.Details = err.Error()
	}
	c.JSON(http.StatusBadRequest, resp)
}
