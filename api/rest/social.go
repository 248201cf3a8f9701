package rest

import (
	"net/http"
	"time"

	"github.com/gamegoo/socialgraph/audit"
	"github.com/gamegoo/socialgraph/config"
	mw "github.com/gamegoo/socialgraph/middleware"
	"github.com/gamegoo/socialgraph/social"
	"github.com/gin-gonic/gin"
)

// SocialHandler handles friends, friend requests and blocks.
type SocialHandler struct {
	svc   *social.Service
	audit *audit.Service
	cfg   config.SocialConfig
}

// NewSocialHandler creates a new SocialHandler. auditSvc may be nil.
func NewSocialHandler(svc *social.Service, auditSvc *audit.Service, cfg config.SocialConfig) *SocialHandler {
	return &SocialHandler{svc: svc, audit: auditSvc, cfg: cfg}
}

// Register mounts the social routes on an authenticated group.
func (h *SocialHandler) Register(g *gin.RouterGroup) {
	g.GET("/social/friends", h.ListFriends)
	g.GET("/social/friends/search", h.SearchFriends)
	g.POST("/social/friends/check", h.CheckFriends)
	g.DELETE("/social/friends/:id", h.RemoveFriend)
	g.GET("/social/relationship/:id", h.Relationship)

	g.POST("/social/requests", h.SendFriendRequest)
	g.GET("/social/requests/incoming", h.ListIncoming)
	g.GET("/social/requests/outgoing", h.ListOutgoing)
	g.POST("/social/requests/:id/accept", h.AcceptFriendRequest)
	g.POST("/social/requests/:id/reject", h.RejectFriendRequest)
	g.POST("/social/requests/:id/cancel", h.CancelFriendRequest)

	g.GET("/social/blocks", h.ListBlocks)
	g.POST("/social/blocks/:id", h.BlockMember)
	g.DELETE("/social/blocks/:id", h.UnblockMember)
}

// retry runs fn with the configured transient-error retry policy.
func (h *SocialHandler) retry(c *gin.Context, fn func() error) error {
	return social.RetryTransient(c.Request.Context(), h.cfg.RetryAttempts, h.cfg.RetryBackoff, fn)
}

// record writes an audit entry for a mutating call.
func (h *SocialHandler) record(c *gin.Context, action string, target int64, req interface{}, start time.Time, err error) {
	if h.audit == nil {
		return
	}
	actor := mw.GetMemberID(c)
	entry := audit.AuditEntry{
		TraceID:    mw.GetTraceID(c),
		ActorID:    &actor,
		Action:     action,
		Request:    req,
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(start).Milliseconds()),
	}
	if target != 0 {
		entry.TargetID = &target
	}
	if err != nil {
		entry.Error = err.Error()
	}
	h.audit.Log(entry)
}

// ListFriends handles GET /api/social/friends?cursor=&size=.
func (h *SocialHandler) ListFriends(c *gin.Context) {
	cursor, size, ok := pageParams(c)
	if !ok {
		return
	}
	page, err := h.svc.FindFriendsByCursor(c.Request.Context(), mw.GetMemberID(c), cursor, size)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// SearchFriends handles GET /api/social/friends/search?q=.
func (h *SocialHandler) SearchFriends(c *gin.Context) {
	friends, err := h.svc.FindFriendsByQueryString(c.Request.Context(), mw.GetMemberID(c), c.Query("q"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

// CheckFriends handles POST /api/social/friends/check.
func (h *SocialHandler) CheckFriends(c *gin.Context) {
	var req struct {
		MemberIDs []int64 `json:"member_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.MemberIDs) > h.cfg.MaxPageSize && h.cfg.MaxPageSize > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many member ids"})
		return
	}
	res, err := h.svc.IsFriendBatch(c.Request.Context(), mw.GetMemberID(c), req.MemberIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": res})
}

// Relationship handles GET /api/social/relationship/:id.
func (h *SocialHandler) Relationship(c *gin.Context) {
	other, ok := pathID(c, "id")
	if !ok {
		return
	}
	me := mw.GetMemberID(c)
	ctx := c.Request.Context()

	friend, err := h.svc.IsFriend(ctx, me, other)
	if err != nil {
		writeError(c, err)
		return
	}
	blocking, err := h.svc.IsBlocked(ctx, me, other)
	if err != nil {
		writeError(c, err)
		return
	}
	blockedBy, err := h.svc.IsBlocked(ctx, other, me)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"member_id":  other,
		"is_friend":  friend,
		"blocking":   blocking,
		"blocked_by": blockedBy,
	})
}

// RemoveFriend handles DELETE /api/social/friends/:id.
func (h *SocialHandler) RemoveFriend(c *gin.Context) {
	friendID, ok := pathID(c, "id")
	if !ok {
		return
	}
	start := time.Now()
	err := h.retry(c, func() error {
		return h.svc.RemoveFriend(c.Request.Context(), mw.GetMemberID(c), friendID)
	})
	h.record(c, "friend.remove", friendID, nil, start, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "friend removed"})
}

// SendFriendRequest handles POST /api/social/requests.
func (h *SocialHandler) SendFriendRequest(c *gin.Context) {
	var req struct {
		TargetID int64 `json:"target_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	var sum social.RequestSummary
	err := h.retry(c, func() error {
		var err error
		sum, err = h.svc.SendFriendRequest(c.Request.Context(), mw.GetMemberID(c), req.TargetID)
		return err
	})
	h.record(c, "friend_request.send", req.TargetID, req, start, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sum)
}

// ListIncoming handles GET /api/social/requests/incoming.
func (h *SocialHandler) ListIncoming(c *gin.Context) {
	cursor, size, ok := pageParams(c)
	if !ok {
		return
	}
	page, err := h.svc.ListIncomingRequests(c.Request.Context(), mw.GetMemberID(c), cursor, size)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ListOutgoing handles GET /api/social/requests/outgoing.
func (h *SocialHandler) ListOutgoing(c *gin.Context) {
	cursor, size, ok := pageParams(c)
	if !ok {
		return
	}
	page, err := h.svc.ListOutgoingRequests(c.Request.Context(), mw.GetMemberID(c), cursor, size)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

type requestTransition func(svc *social.Service, c *gin.Context, member, requestID int64) (social.RequestSummary, error)

func (h *SocialHandler) resolve(c *gin.Context, action string, fn requestTransition) {
	requestID, ok := pathID(c, "id")
	if !ok {
		return
	}
	start := time.Now()
	var sum social.RequestSummary
	err := h.retry(c, func() error {
		var err error
		sum, err = fn(h.svc, c, mw.GetMemberID(c), requestID)
		return err
	})
	counterpart := sum.RequesterID
	if counterpart == mw.GetMemberID(c) {
		counterpart = sum.TargetID
	}
	h.record(c, action, counterpart, gin.H{"request_id": requestID}, start, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// AcceptFriendRequest handles POST /api/social/requests/:id/accept.
func (h *SocialHandler) AcceptFriendRequest(c *gin.Context) {
	h.resolve(c, "friend_request.accept", func(svc *social.Service, c *gin.Context, member, id int64) (social.RequestSummary, error) {
		return svc.AcceptFriendRequest(c.Request.Context(), member, id)
	})
}

// RejectFriendRequest handles POST /api/social/requests/:id/reject.
func (h *SocialHandler) RejectFriendRequest(c *gin.Context) {
	h.resolve(c, "friend_request.reject", func(svc *social.Service, c *gin.Context, member, id int64) (social.RequestSummary, error) {
		return svc.RejectFriendRequest(c.Request.Context(), member, id)
	})
}

// CancelFriendRequest handles POST /api/social/requests/:id/cancel.
func (h *SocialHandler) CancelFriendRequest(c *gin.Context) {
	h.resolve(c, "friend_request.cancel", func(svc *social.Service, c *gin.Context, member, id int64) (social.RequestSummary, error) {
		return svc.CancelFriendRequest(c.Request.Context(), member, id)
	})
}

// ListBlocks handles GET /api/social/blocks.
func (h *SocialHandler) ListBlocks(c *gin.Context) {
	cursor, size, ok := pageParams(c)
	if !ok {
		return
	}
	page, err := h.svc.ListBlockedMembers(c.Request.Context(), mw.GetMemberID(c), cursor, size)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// BlockMember handles POST /api/social/blocks/:id.
func (h *SocialHandler) BlockMember(c *gin.Context) {
	targetID, ok := pathID(c, "id")
	if !ok {
		return
	}
	start := time.Now()
	err := h.retry(c, func() error {
		return h.svc.BlockMember(c.Request.Context(), mw.GetMemberID(c), targetID)
	})
	h.record(c, "block", targetID, nil, start, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "blocked"})
}

// UnblockMember handles DELETE /api/social/blocks/:id.
func (h *SocialHandler) UnblockMember(c *gin.Context) {
	targetID, ok := pathID(c, "id")
	if !ok {
		return
	}
	start := time.Now()
	err := h.retry(c, func() error {
		return h.svc.UnblockMember(c.Request.Context(), mw.GetMemberID(c), targetID)
	})
	h.record(c, "unblock", targetID, nil, start, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "unblocked"})
}
