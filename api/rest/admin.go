package rest

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/gamegoo/socialgraph/api/sse"
	"github.com/gamegoo/socialgraph/audit"
	"github.com/gamegoo/socialgraph/scheduler"
	"github.com/gamegoo/socialgraph/social"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	svc    *social.Service
	audit  *audit.Service
	sched  *scheduler.Scheduler
	sse    *sse.Handler
	logger *zap.Logger
}

// NewAdminHandler creates an AdminHandler. auditSvc and sseH may be nil.
func NewAdminHandler(
	svc *social.Service,
	auditSvc *audit.Service,
	sched *scheduler.Scheduler,
	sseH *sse.Handler,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{svc: svc, audit: auditSvc, sched: sched, sse: sseH, logger: logger}
}

// Register mounts the admin routes.
func (h *AdminHandler) Register(g *gin.RouterGroup) {
	g.GET("/scheduler", h.ListSchedulerTasks)
	g.POST("/scheduler/:name/run", h.RunSchedulerTask)
	g.POST("/members/:id/purge", h.PurgeMember)
	g.GET("/members/:id/audit", h.MemberAudit)
	g.POST("/announce", h.Announce)
}

// PurgeMember removes every relationship of a deleted member.
// POST /api/admin/members/:id/purge
func (h *AdminHandler) PurgeMember(c *gin.Context) {
	memberID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.PurgeMember(c.Request.Context(), memberID); err != nil {
		writeError(c, err)
		return
	}
	h.logger.Info("admin purged member relationships", zap.Int64("member_id", memberID))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// MemberAudit returns recent audit entries recorded for a member.
// GET /api/admin/members/:id/audit
func (h *AdminHandler) MemberAudit(c *gin.Context) {
	memberID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if h.audit == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit disabled"})
		return
	}
	logs, err := h.audit.ListByActor(c.Request.Context(), memberID, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": logs})
}

// ListSchedulerTasks returns the status of all registered ticker tasks.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.Tasks()})
}

// RunSchedulerTask runs a maintenance task immediately.
// POST /api/admin/scheduler/:name/run
func (h *AdminHandler) RunSchedulerTask(c *gin.Context) {
	name := c.Param("name")
	if !h.sched.RunNow(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Announce broadcasts a message to every connected SSE client.
// POST /api/admin/announce
func (h *AdminHandler) Announce(c *gin.Context) {
	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.sse == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "push disabled"})
		return
	}
	payload, _ := json.Marshal(req.Message)
	if err := h.sse.Announce(c.Request.Context(), string(payload)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "publish failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// WARNING: if adminKey is empty all admin endpoints are disabled (503) so the
// server cannot be accidentally deployed without protection. Set a non-empty
// server.admin_key in config to enable admin routes.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
