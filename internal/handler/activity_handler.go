package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"socialpulse/internal/middleware"
	"socialpulse/internal/models"
	"socialpulse/internal/service"
	"socialpulse/pkg/wire"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ActivityService is implemented by service.ActivityService.
type ActivityService interface {
	SendMessage(ctx context.Context, senderID, conversationID uint, content string) (*models.ChatMessage, error)
	AnnounceGroupActivity(ctx context.Context, actorID uint, activity wire.GroupActivity) (int, error)
	Follow(ctx context.Context, followerID, followeeID uint) (bool, error)
	NotifyUser(ctx context.Context, actorID, targetID uint, notifType string, referenceID uint, content string) (int, error)
}

type ActivityHandler struct {
	svc ActivityService
	log *zap.Logger
}

func NewActivityHandler(svc ActivityService, log *zap.Logger) *ActivityHandler {
	return &ActivityHandler{svc: svc, log: log.Named("activity_handler")}
}

func (h *ActivityHandler) SendMessage(c *gin.Context) {
	conversationID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	msg, err := h.svc.SendMessage(c.Request.Context(), middleware.GetUserID(c), conversationID, req.Content)
	if err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

func (h *ActivityHandler) AnnounceGroupActivity(c *gin.Context) {
	groupID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Type      string `json:"type" binding:"required,oneof=post_created event_created comment_created"`
		PostID    uint   `json:"post_id"`
		EventID   uint   `json:"event_id"`
		CommentID uint   `json:"comment_id"`
		Title     string `json:"title"`
		Content   string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	delivered, err := h.svc.AnnounceGroupActivity(c.Request.Context(), middleware.GetUserID(c), wire.GroupActivity{
		Type:      req.Type,
		GroupID:   groupID,
		PostID:    req.PostID,
		EventID:   req.EventID,
		CommentID: req.CommentID,
		Title:     req.Title,
		Content:   req.Content,
	})
	if err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"delivered": delivered})
}

func (h *ActivityHandler) Follow(c *gin.Context) {
	followeeID, ok := idParam(c, "id")
	if !ok {
		return
	}
	created, err := h.svc.Follow(c.Request.Context(), middleware.GetUserID(c), followeeID)
	if err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": true, "created": created})
}

func (h *ActivityHandler) NotifyUser(c *gin.Context) {
	targetID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Type        string `json:"type" binding:"required"`
		ReferenceID uint   `json:"reference_id"`
		Content     string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type is required"})
		return
	}
	delivered, err := h.svc.NotifyUser(c.Request.Context(), middleware.GetUserID(c), targetID, req.Type, req.ReferenceID, req.Content)
	if err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"delivered": delivered})
}

func (h *ActivityHandler) respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotParticipant), errors.Is(err, service.ErrNotMember):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidTarget), errors.Is(err, service.ErrUnsupportedType),
		errors.Is(err, service.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error("activity failed", zap.String("path", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, _ := strconv.ParseUint(c.Param(name), 10, 64)
	if id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}
