package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/backofficehq/backoffice/internal/httputil"
	"github.com/backofficehq/backoffice/internal/metrics"
	"github.com/backofficehq/backoffice/internal/models"
)

// Error code constants for standardized API responses.
const (
	ErrCodeInvalidRequest  = "invalid_request"
	ErrCodeNotFound        = "not_found"
	ErrCodeInternalError   = "internal_error"
	ErrCodeUnauthorized    = "unauthorized"
	ErrCodeForbidden       = "forbidden"
	ErrCodeConflict        = "conflict"
	ErrCodeRateLimited     = "rate_limited"
	ErrCodeValidationError = "validation_error"
)

// respondError writes a standardized JSON error response, pulling the request
// ID from the Gin context (set by the request ID middleware).
func respondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	httputil.RespondError(c, status, code, message)
}

// respondDomainError maps service-layer errors onto HTTP responses. Unknown
// errors are logged and surface as opaque 500s.
func respondDomainError(c *gin.Context, log *logrus.Logger, err error) {
	switch {
	case errors.Is(err, models.ErrRecordNotFound):
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "record not found")

	case errors.Is(err, models.ErrEntityNotFound):
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "unknown entity")

	default:
		if ve, ok := models.AsValidation(err); ok {
			respondError(c, http.StatusBadRequest, ErrCodeValidationError, ve.Error())

			return
		}

		if ce, ok := models.AsConflict(err); ok {
			respondError(c, http.StatusConflict, ErrCodeConflict, ce.Error())

			return
		}

		log.WithError(err).Error("request failed")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
	}
}
