package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/claim-workflow/internal/application/service"
	"github.com/garyjia/claim-workflow/internal/domain/workflow"
)

// statusFor maps workflow errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, workflow.ErrNotFound), errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, workflow.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError responds with the mapped status. Storage details are logged, not returned.
func (h *Handlers) writeError(c *gin.Context, op string, err error) {
	status := statusFor(err)
	msg := err.Error()

	switch status {
	case http.StatusServiceUnavailable:
		h.logger.Warn("Retryable failure", zap.String("operation", op), zap.Error(err))
		msg = "temporarily unavailable, retry the request"
		if errors.Is(err, workflow.ErrConcurrentUpdate) {
			msg = "claim was modified concurrently, retry the request"
		}
		c.Header("Retry-After", "1")
	case http.StatusInternalServerError:
		h.logger.Error("Request failed", zap.String("operation", op), zap.Error(err))
		msg = "internal error"
	}

	c.JSON(status, Response{Success: false, Error: msg})
}
