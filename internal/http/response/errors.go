package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bloomquiz-backend/internal/modules/generation"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/apierr"
	"github.com/yungbote/bloomquiz-backend/internal/services"
)

var errInternal = errors.New("internal error")

// FromError maps a service error onto the status and code clients see.
// Unrecognised errors become a 500 whose message does not leak internals.
func FromError(err error) *apierr.Error {
	if ae, ok := apierr.As(err); ok {
		return ae
	}
	var qe *generation.QuotaError
	var ee *services.EnqueueError
	switch {
	case err == nil:
		return apierr.New(http.StatusInternalServerError, "internal_error", errInternal)
	case errors.As(err, &qe):
		return apierr.New(http.StatusBadRequest, "invalid_quota", err)
	case errors.As(err, &ee):
		return apierr.New(http.StatusServiceUnavailable, "queue_unavailable", errors.New("job queue unavailable"))
	case errors.Is(err, services.ErrInvalidInput):
		return apierr.New(http.StatusBadRequest, "invalid_request", err)
	case errors.Is(err, services.ErrNotPDF):
		return apierr.New(http.StatusBadRequest, "not_pdf", err)
	case errors.Is(err, services.ErrDuplicateEmail):
		return apierr.New(http.StatusConflict, "duplicate_email", err)
	case errors.Is(err, services.ErrInvalidCredentials):
		return apierr.New(http.StatusUnauthorized, "invalid_credentials", err)
	case errors.Is(err, services.ErrInvalidToken), errors.Is(err, services.ErrExpiredToken):
		// expired and forged tokens look the same to clients
		return apierr.New(http.StatusUnauthorized, "invalid_token", services.ErrInvalidToken)
	case errors.Is(err, services.ErrUserNotFound):
		return apierr.New(http.StatusNotFound, "user_not_found", err)
	case errors.Is(err, services.ErrUnknownJob):
		return apierr.New(http.StatusNotFound, "job_not_found", err)
	case errors.Is(err, services.ErrNotFound):
		return apierr.New(http.StatusNotFound, "not_found", err)
	default:
		return apierr.New(http.StatusInternalServerError, "internal_error", errInternal)
	}
}

func RespondServiceError(c *gin.Context, err error) {
	ae := FromError(err)
	if ae.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	RespondError(c, ae.Status, ae.Code, ae)
}
