package handlers

import (
	"net/http"

	"example.com/coastwatch/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, models.ErrUnknownDevice):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDuplicateDevice):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidInterval),
		errors.Is(err, models.ErrInvalidDevice),
		errors.Is(err, models.ErrInvalidRule),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrSchedulerStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
