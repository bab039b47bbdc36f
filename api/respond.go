package api

import (
	"errors"
	"net/http"

	"github.com/feelincoding/openmat/internal/domain"
	"github.com/gin-gonic/gin"
)

// statusForError maps the engine's error kinds onto HTTP statuses:
// validation conflicts are terminal 409s, Unavailable is a retryable 503.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateBooking),
		errors.Is(err, domain.ErrSlotExpired),
		errors.Is(err, domain.ErrOverlapConflict),
		errors.Is(err, domain.ErrAlreadyCancelled):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}
