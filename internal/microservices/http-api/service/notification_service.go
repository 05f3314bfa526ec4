package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"guestpulse/internal/microservices/http-api/models"
	"guestpulse/internal/microservices/http-api/repository"
	"guestpulse/internal/microservices/realtime"
)

// CreateNotificationInput carries the producer-supplied fields of a new
// notification. Recipient is set separately because broadcasts reuse the same
// content for many recipients.
type CreateNotificationInput struct {
	Title       string
	Message     string
	Type        models.NotificationType
	RelatedID   string
	RelatedType string
	Metadata    json.RawMessage
}

// NotificationService is the producer-facing API: business-event producers
// (form creation, review submission, escalations) call these four entry
// points and nothing else.
type NotificationService interface {
	Create(ctx context.Context, recipientID string, input CreateNotificationInput) (*models.Notification, error)
	BroadcastToRole(ctx context.Context, role string, input CreateNotificationInput) ([]models.Notification, error)
	BroadcastToAll(ctx context.Context, input CreateNotificationInput) ([]models.Notification, error)
	List(ctx context.Context, userID string, includeRead bool) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

type notificationService struct {
	repo     repository.NotificationRepository
	userRepo repository.UserRepository
	router   *realtime.Router
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewNotificationService wires the service. limiter paces broadcast fan-out so
// a role-wide multicast cannot saturate the store; pass nil to disable pacing.
func NewNotificationService(
	repo repository.NotificationRepository,
	userRepo repository.UserRepository,
	router *realtime.Router,
	limiter *rate.Limiter,
	logger *slog.Logger,
) NotificationService {
	return &notificationService{
		repo:     repo,
		userRepo: userRepo,
		router:   router,
		limiter:  limiter,
		logger:   logger,
	}
}

// Create validates, persists and then fans out a notification for a single
// recipient. The store write is the source of truth: a failed publish is
// logged and swallowed because polling clients will recover, while a failed
// write is returned to the producer.
func (s *notificationService) Create(ctx context.Context, recipientID string, input CreateNotificationInput) (*models.Notification, error) {
	if recipientID == "" {
		return nil, fmt.Errorf("%w: empty recipient id", ErrInvalidArgument)
	}
	if !input.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown notification type %q", ErrInvalidArgument, input.Type)
	}

	notification := &models.Notification{
		RecipientID: recipientID,
		Title:       input.Title,
		Message:     input.Message,
		Type:        input.Type,
		RelatedID:   input.RelatedID,
		RelatedType: input.RelatedType,
		Metadata:    input.Metadata,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.router.Publish(ctx, realtime.SingleUser(recipientID), realtime.NewNotificationEvent(notification))
	return notification, nil
}

// BroadcastToRole materializes one notification row per current member of the
// role and publishes one event per resulting recipient channel. Membership is
// resolved exactly once, at call time. A best-effort multicast, not an atomic
// operation: members whose row fails to persist are skipped and logged while
// the call still succeeds for the rest.
func (s *notificationService) BroadcastToRole(ctx context.Context, role string, input CreateNotificationInput) ([]models.Notification, error) {
	if role == "" {
		return nil, fmt.Errorf("%w: empty role", ErrInvalidArgument)
	}
	if !input.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown notification type %q", ErrInvalidArgument, input.Type)
	}

	memberIDs, err := s.userRepo.GetIDsByRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	created, err := s.fanOut(ctx, memberIDs, input)
	s.logger.Info("role broadcast complete",
		"role", role,
		"members", len(memberIDs),
		"delivered", len(created))
	return created, err
}

// BroadcastToAll materializes one notification row per registered user. Like a
// role broadcast it is a best-effort multicast resolved once at call time.
func (s *notificationService) BroadcastToAll(ctx context.Context, input CreateNotificationInput) ([]models.Notification, error) {
	if !input.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown notification type %q", ErrInvalidArgument, input.Type)
	}

	userIDs, err := s.userRepo.GetAllIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	created, err := s.fanOut(ctx, userIDs, input)
	s.logger.Info("global broadcast complete",
		"users", len(userIDs),
		"delivered", len(created))
	return created, err
}

// fanOut persists one row per recipient and publishes each on the recipient's
// user channel, paced by the limiter. Persist failures skip the member.
func (s *notificationService) fanOut(ctx context.Context, recipientIDs []string, input CreateNotificationInput) ([]models.Notification, error) {
	created := make([]models.Notification, 0, len(recipientIDs))
	for _, recipientID := range recipientIDs {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return created, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
		}

		notification := &models.Notification{
			RecipientID: recipientID,
			Title:       input.Title,
			Message:     input.Message,
			Type:        input.Type,
			RelatedID:   input.RelatedID,
			RelatedType: input.RelatedType,
			Metadata:    input.Metadata,
		}
		if err := s.repo.Create(ctx, notification); err != nil {
			s.logger.Warn("skipping broadcast member, persist failed",
				"recipient_id", recipientID,
				"error", err)
			continue
		}

		s.router.Publish(ctx, realtime.SingleUser(recipientID), realtime.NewNotificationEvent(notification))
		created = append(created, *notification)
	}
	return created, nil
}

// List returns the user's notifications newest first. Read path only.
func (s *notificationService) List(ctx context.Context, userID string, includeRead bool) ([]models.Notification, error) {
	notifications, err := s.repo.ListByRecipient(ctx, userID, includeRead)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return notifications, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}
