package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"receivables-conciliation-backend/internal/conciliation"
	"receivables-conciliation-backend/internal/services/auth"
	service "receivables-conciliation-backend/internal/services/reconciliation"
	"receivables-conciliation-backend/internal/workflow"
)

// statusFor maps a service error to the HTTP status and message the
// front end shows. fallback is used when a gateway failure carries no
// readable detail.
func statusFor(err error, fallback string) (int, string) {
	var gwErr *conciliation.GatewayError

	switch {
	case errors.Is(err, service.ErrWorkflowNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, workflow.ErrBusy),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrStaleResponse),
		errors.Is(err, service.ErrNoResults):
		return http.StatusConflict, err.Error()
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrNotSignedIn):
		return http.StatusUnauthorized, err.Error()
	case errors.As(err, &gwErr),
		errors.Is(err, conciliation.ErrInvalidPayload),
		errors.Is(err, workflow.ErrTokenChanged),
		errors.Is(err, workflow.ErrMissingToken):
		return http.StatusBadGateway, conciliation.UserMessage(err, fallback)
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeError(c *gin.Context, err error, fallback string) {
	status, msg := statusFor(err, fallback)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": msg})
}
