package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jebisys/switchboard/internal/auth"
	"github.com/jebisys/switchboard/internal/types"
	"go.uber.org/zap"
)

// respondError maps the error taxonomy onto HTTP statuses. Database and
// unexpected errors are logged in full but reach the client as a generic
// message only.
func (s *Server) respondError(c *gin.Context, err error) {
	var validationErr *types.ValidationError
	var deviceErr *types.DeviceError
	var dbErr *types.DatabaseError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("VALIDATION_400", validationErr.Message, validationErr.Field))
	case errors.Is(err, types.ErrNotFound):
		c.JSON(http.StatusNotFound, types.NewErrorResponse("NOT_FOUND_404", "resource not found", nil))
	case errors.Is(err, auth.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, types.NewErrorResponse("AUTH_429", "too many login attempts, try again later", nil))
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, types.NewErrorResponse("AUTH_401", "Invalid credentials", nil))
	case errors.As(err, &deviceErr):
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("DEVICE_500", deviceErr.Message, deviceErr.DeviceID))
	case errors.As(err, &dbErr):
		s.logger.Error("database error", zap.String("operation", dbErr.Operation), zap.Error(err))
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("DB_500", "internal storage error", nil))
	default:
		s.logger.Error("unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("INTERNAL_500", "internal server error", nil))
	}
}
