package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"procureflow.io/procureflow/internal/repository"
)

const defaultNotificationLimit = 50

// ListNotifications handles GET /notifications. unread_only narrows to
// unread rows; limit caps the page, newest first.
func (s *Server) ListNotifications(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	unreadOnly := c.Query("unread_only") == "true"
	limit := defaultNotificationLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST_BODY", "message": "limit must be between 1 and 200"})
			return
		}
		limit = n
	}

	items, err := s.store.Notifications().ListByUser(c.Request.Context(), userID, unreadOnly, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// MarkNotificationRead handles POST /notifications/{notification_id}/read.
// Only the recipient can mark their own rows.
func (s *Server) MarkNotificationRead(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	err := s.store.Notifications().MarkRead(c.Request.Context(), c.Param("notification_id"), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "NOTIFICATION_NOT_FOUND", "message": "notification not found"})
			return
		}
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
