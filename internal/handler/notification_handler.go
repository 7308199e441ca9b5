package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"socialpulse/internal/middleware"
	"socialpulse/internal/service"
	"socialpulse/pkg/wire"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NotificationService is implemented by service.NotificationService.
type NotificationService interface {
	List(ctx context.Context, userID uint, limit int) ([]wire.StoredNotification, error)
	Unread(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, userID, id uint) error
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
	CleanupExpired(ctx context.Context, userID uint) (int64, error)
	RegisterDevice(ctx context.Context, userID uint, token string) error
}

type NotificationHandler struct {
	svc NotificationService
	log *zap.Logger
}

func NewNotificationHandler(svc NotificationService, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, log: log.Named("notification_handler")}
}

func (h *NotificationHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	list, err := h.svc.List(c.Request.Context(), userID, limit)
	if err != nil {
		h.fail(c, "list failed", err)
		return
	}
	if list == nil {
		list = []wire.StoredNotification{}
	}
	c.JSON(http.StatusOK, wire.NotificationList{Notifications: list})
}

func (h *NotificationHandler) Unread(c *gin.Context) {
	n, err := h.svc.Unread(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.fail(c, "count failed", err)
		return
	}
	c.JSON(http.StatusOK, wire.UnreadCount{Count: n})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	if id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	err := h.svc.MarkRead(c.Request.Context(), middleware.GetUserID(c), uint(id))
	switch {
	case errors.Is(err, service.ErrNotificationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case err != nil:
		h.fail(c, "update failed", err)
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.svc.MarkAllRead(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.fail(c, "update failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "updated": n})
}

func (h *NotificationHandler) CleanupExpired(c *gin.Context) {
	n, err := h.svc.CleanupExpired(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.fail(c, "cleanup failed", err)
		return
	}
	c.JSON(http.StatusOK, wire.CleanupResult{Removed: n})
}

func (h *NotificationHandler) UpdateFCMToken(c *gin.Context) {
	var req struct {
		Token string `json:"fcm_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if err := h.svc.RegisterDevice(c.Request.Context(), middleware.GetUserID(c), req.Token); err != nil {
		h.fail(c, "update failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *NotificationHandler) fail(c *gin.Context, msg string, err error) {
	h.log.Error(msg, zap.Uint("user_id", middleware.GetUserID(c)), zap.Error(err))
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
