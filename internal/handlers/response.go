package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/uptwn/booking-backend/internal/middleware"
	"github.com/uptwn/booking-backend/internal/services"
	"github.com/uptwn/booking-backend/internal/utils"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	Available *int   `json:"available,omitempty"`
	Requested *int   `json:"requested,omitempty"`
}

func abortWithError(c *gin.Context, status int, errCode, message, code string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: errCode, Message: message, Code: code})
}

// respondError maps a service error onto an HTTP status. Internal errors are
// logged and their message is not exposed.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var capErr *services.CapacityError
	if errors.As(err, &capErr) {
		c.AbortWithStatusJSON(http.StatusConflict, ErrorResponse{
			Error:     "conflict",
			Message:   capErr.Error(),
			Code:      "INSUFFICIENT_CAPACITY",
			Available: &capErr.Available,
			Requested: &capErr.Requested,
		})
		return
	}

	switch services.KindOf(err) {
	case services.ErrKindNotFound:
		abortWithError(c, http.StatusNotFound, "not_found", err.Error(), "NOT_FOUND")
	case services.ErrKindConflict:
		abortWithError(c, http.StatusConflict, "conflict", err.Error(), "CONFLICT")
	case services.ErrKindInvalidArgument:
		abortWithError(c, http.StatusBadRequest, "invalid_argument", err.Error(), "INVALID_ARGUMENT")
	default:
		logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).WithError(err).Error("Request failed with internal error")
		abortWithError(c, http.StatusInternalServerError, "internal_error", "An unexpected error occurred", "INTERNAL_ERROR")
	}
}

func respondBindingError(c *gin.Context, err error) {
	abortWithError(c, http.StatusBadRequest, "invalid_request", err.Error(), "INVALID_REQUEST")
}

// uuidParam parses a UUID path parameter, answering 400 when malformed
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "Invalid "+name, "INVALID_ID")
		return uuid.Nil, false
	}
	return id, true
}

// dateQuery parses an optional YYYY-MM-DD query parameter
func dateQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	d, err := utils.ParseDate(raw)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", name+" must be YYYY-MM-DD", "INVALID_DATE")
		return nil, false
	}
	return &d, true
}

// currentUser returns the authenticated caller, answering 401 when absent
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, "unauthorized", "Authentication required", "MISSING_USER_CONTEXT")
		return uuid.Nil, false
	}
	return userCtx.UserID, true
}
