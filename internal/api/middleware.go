package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/reservation-engine/internal/pkg/apperror"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/logger"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/response"
)

// Recovery turns a panic into a 500 JSON error and logs it with the request's fields.
// It MUST be used after logger.Middleware.
func Recovery(logg *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logg.Error(c.Request.Context(), "panic recovered", fmt.Errorf("%v", r))
				c.AbortWithStatusJSON(http.StatusInternalServerError, response.ErrorResponse{
					Error: "internal server error",
					Kind:  string(apperror.KindInternal),
				})
			}
		}()
		c.Next()
	}
}
