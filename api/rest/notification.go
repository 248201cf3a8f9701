package rest

import (
	"errors"
	"net/http"

	mw "github.com/gamegoo/socialgraph/middleware"
	"github.com/gamegoo/socialgraph/notification"
	"github.com/gin-gonic/gin"
)

// NotificationHandler serves the member's notification inbox.
type NotificationHandler struct {
	svc *notification.Service
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(svc *notification.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// Register mounts the inbox routes on an authenticated group.
func (h *NotificationHandler) Register(g *gin.RouterGroup) {
	g.GET("/notifications", h.List)
	g.GET("/notifications/unread", h.UnreadCount)
	g.POST("/notifications/read", h.MarkAllRead)
	g.POST("/notifications/:id/read", h.MarkRead)
}

// List handles GET /api/notifications?cursor=&size=.
func (h *NotificationHandler) List(c *gin.Context) {
	cursor, size, ok := pageParams(c)
	if !ok {
		return
	}
	page, err := h.svc.List(c.Request.Context(), mw.GetMemberID(c), cursor, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, page)
}

// UnreadCount handles GET /api/notifications/unread.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	n, err := h.svc.UnreadCount(c.Request.Context(), mw.GetMemberID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

// MarkRead handles POST /api/notifications/:id/read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	err := h.svc.MarkRead(c.Request.Context(), mw.GetMemberID(c), id)
	switch {
	case errors.Is(err, notification.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "read"})
	}
}

// MarkAllRead handles POST /api/notifications/read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.svc.MarkAllRead(c.Request.Context(), mw.GetMemberID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}
