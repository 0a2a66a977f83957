package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/dairy/internal/domain/models"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrInvalidPeriod),
		errors.Is(err, models.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrPeriodConflict),
		errors.Is(err, models.ErrItemSettled),
		errors.Is(err, models.ErrConcurrentUpdate),
		errors.Is(err, models.ErrLockUnavailable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError aborts the request with the status matching err. Internal
// failures are logged and hidden from the caller.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err))
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}

	body := gin.H{"error": err.Error()}
	var conflict *models.PeriodConflictError
	if errors.As(err, &conflict) {
		body["conflicts"] = conflict.Conflicts
	}
	c.AbortWithStatusJSON(status, body)
}

// bindError marks a request body or query that failed to bind.
func bindError(err error) error {
	return fmt.Errorf("%w: %w", models.ErrInvalidRequest, err)
}
