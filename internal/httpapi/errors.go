package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rfid-attendance/tracker/internal/lib/logger"
	"rfid-attendance/tracker/internal/services/attendance"
)

func (s *Server) writeServiceError(c *gin.Context, err error) {
	var storageErr *attendance.StorageError
	switch {
	case errors.Is(err, attendance.ErrInvalidUID):
		writeError(c, http.StatusBadRequest, "validation", "uid is required")
	case errors.Is(err, attendance.ErrUnknownCard):
		writeError(c, http.StatusNotFound, "unknown_card", "present your card to an operator")
	case errors.Is(err, attendance.ErrNotFound):
		writeError(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, attendance.ErrDuplicate):
		writeError(c, http.StatusConflict, "duplicate", err.Error())
	case errors.Is(err, attendance.ErrUIDConflict):
		writeError(c, http.StatusConflict, "uid_conflict", "card is already bound to another user")
	case errors.Is(err, attendance.ErrNotQueued):
		writeError(c, http.StatusConflict, "not_queued", "user is not queued on this scanner")
	case errors.As(err, &storageErr):
		s.log.WithField("op", storageErr.Op).WithFields(logger.Err(storageErr.Err)).Error("storage failure")
		writeError(c, http.StatusServiceUnavailable, "storage", "storage unavailable")
	default:
		s.log.WithFields(logger.Err(err)).Error("unhandled service error")
		writeError(c, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func writeBindError(c *gin.Context, err error) {
	code, msg := validationMessage(err)
	writeError(c, http.StatusBadRequest, code, msg)
}
