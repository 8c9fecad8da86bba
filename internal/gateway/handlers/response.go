package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"vendra-system/internal/database"
	"vendra-system/internal/services/allocator"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func successResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func errorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
	}
}

func parseIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid ID"))
		return 0, false
	}
	return id, true
}

// statusForError maps engine failures onto HTTP codes. Version conflicts and
// binding inconsistencies are surfaced as 409 so clients know to re-read and
// retry rather than treat the request as malformed.
func statusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusBadRequest
	case errors.Is(err, database.ErrVersionConflict),
		errors.Is(err, allocator.ErrInconsistentBinding),
		errors.Is(err, allocator.ErrSlotAlreadyAssigned):
		return http.StatusConflict
	case errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, allocator.ErrUnitNotFound):
		return http.StatusNotFound
	case errors.Is(err, allocator.ErrUnitExpired),
		errors.Is(err, allocator.ErrSlotNotFound),
		errors.Is(err, allocator.ErrSlotNeedsUpdate),
		errors.Is(err, allocator.ErrNoSlotSelected):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondMessage(m *string, fallback string) string {
	if m != nil {
		return *m
	}
	return fallback
}
