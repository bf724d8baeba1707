package delivery

import (
	"net/http"

	authdelivery "tasksync-backend/internal/auth/delivery"
	"tasksync-backend/internal/notification"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	service *notification.Service
}

func NewNotificationHandler(service *notification.Service) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// GetUnread returns the latest unread notifications
// GET /api/notifications
func (h *NotificationHandler) GetUnread(c *gin.Context) {
	notifications, err := h.service.ListUnread(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"unread":        len(notifications),
	})
}

// POST /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.service.MarkRead(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "marked as read"})
}

// POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	count, err := h.service.MarkAllRead(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": count})
}
