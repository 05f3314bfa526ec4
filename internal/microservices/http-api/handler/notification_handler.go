package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"guestpulse/internal/microservices/http-api/dto"
	"guestpulse/internal/microservices/http-api/models"
	"guestpulse/internal/microservices/http-api/service"
)

const requestTimeout = 5 * time.Second

type NotificationHandler struct {
	svc       service.NotificationService
	readState service.ReadStateService
}

func NewNotificationHandler(svc service.NotificationService, readState service.ReadStateService) *NotificationHandler {
	return &NotificationHandler{svc: svc, readState: readState}
}

// RegisterRoutes mounts the notification surface. rg is already behind auth;
// admin is additionally behind a role check for the producer endpoints.
func (h *NotificationHandler) RegisterRoutes(rg, admin *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/unread-count", h.UnreadCount)
	rg.PUT("/:id/read", h.MarkRead)
	rg.PUT("/read-all", h.MarkAllRead)
	rg.DELETE("/:id", h.Delete)

	admin.POST("", h.Create)
	admin.POST("/broadcast", h.Broadcast)
	admin.POST("/broadcast-all", h.BroadcastAll)
}

// List returns the caller's notifications, newest first. Unread only by
// default; ?include_read=true returns everything.
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	includeRead := c.Query("include_read") == "true"

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	notifications, err := h.svc.List(ctx, userID, includeRead)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// UnreadCount returns the caller's unread badge count.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	count, err := h.svc.UnreadCount(ctx, userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// MarkRead marks one of the caller's notifications as read. Marking an
// already-read notification succeeds as a no-op.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.readState.MarkRead(ctx, userID, c.Param("id")); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllRead marks every notification of the caller as read and reports how
// many rows changed.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	affected, err := h.readState.MarkAllRead(ctx, userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"affected": affected})
}

// Delete hard-removes one of the caller's notifications.
func (h *NotificationHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.readState.Delete(ctx, userID, c.Param("id")); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Create persists a notification for a single recipient on behalf of a
// producer subsystem.
func (h *NotificationHandler) Create(c *gin.Context) {
	var req dto.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	notification, err := h.svc.Create(ctx, req.RecipientID, service.CreateNotificationInput{
		Title:       req.Title,
		Message:     req.Message,
		Type:        models.NotificationType(req.Type),
		RelatedID:   req.RelatedID,
		RelatedType: req.RelatedType,
		Metadata:    req.Metadata,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, notification)
}

// Broadcast materializes one notification per current member of a role.
func (h *NotificationHandler) Broadcast(c *gin.Context) {
	var req dto.BroadcastNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Broadcasts touch one row per member, so allow more headroom than a
	// single-row operation.
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	notifications, err := h.svc.BroadcastToRole(ctx, req.Role, service.CreateNotificationInput{
		Title:       req.Title,
		Message:     req.Message,
		Type:        models.NotificationType(req.Type),
		RelatedID:   req.RelatedID,
		RelatedType: req.RelatedType,
		Metadata:    req.Metadata,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"notifications": notifications, "count": len(notifications)})
}

// BroadcastAll materializes one notification per registered user.
func (h *NotificationHandler) BroadcastAll(c *gin.Context) {
	var req dto.BroadcastAllNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// One row per user; same headroom as a role broadcast.
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	notifications, err := h.svc.BroadcastToAll(ctx, service.CreateNotificationInput{
		Title:       req.Title,
		Message:     req.Message,
		Type:        models.NotificationType(req.Type),
		RelatedID:   req.RelatedID,
		RelatedType: req.RelatedType,
		Metadata:    req.Metadata,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"notifications": notifications, "count": len(notifications)})
}

// currentUserID pulls the authenticated caller's id set by the auth middleware.
func currentUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return "", false
	}
	return userID.(string), true
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
