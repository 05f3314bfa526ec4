package service

import (
	"context"
	"fmt"

	"guestpulse/internal/microservices/http-api/repository"
	"guestpulse/internal/microservices/realtime"
)

// ReadStateService owns every mutation of the read flag and deletion. All
// three operations are idempotent: repeating a call after it succeeded leaves
// the same observable state and does not error on the no-op path. After each
// store update a state-change event is re-published so sibling sessions of
// the same user converge.
type ReadStateService interface {
	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, userID, notificationID string) error
}

type readStateService struct {
	repo   repository.NotificationRepository
	router *realtime.Router
}

func NewReadStateService(repo repository.NotificationRepository, router *realtime.Router) ReadStateService {
	return &readStateService{repo: repo, router: router}
}

// MarkRead flips a single notification to read. The repository update is
// scoped to the owning user, so a foreign or deleted notification surfaces as
// ErrNotFound: a concurrent delete always wins over a mark-read.
func (s *readStateService) MarkRead(ctx context.Context, userID, notificationID string) error {
	found, err := s.repo.MarkRead(ctx, userID, notificationID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !found {
		return ErrNotFound
	}

	s.router.Publish(ctx, realtime.SingleUser(userID), realtime.NotificationReadEvent(notificationID))
	return nil
}

// MarkAllRead bulk-updates the user's unread rows in one store operation and
// returns the affected count. Zero affected rows is a success.
func (s *readStateService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	affected, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.router.Publish(ctx, realtime.SingleUser(userID), realtime.MarkAllReadEvent())
	return affected, nil
}

// Delete hard-removes a notification. Once deleted it must never reappear;
// clients treat stale events for the removed id as no-ops.
func (s *readStateService) Delete(ctx context.Context, userID, notificationID string) error {
	found, err := s.repo.Delete(ctx, userID, notificationID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !found {
		return ErrNotFound
	}

	s.router.Publish(ctx, realtime.SingleUser(userID), realtime.NotificationDeletedEvent(notificationID))
	return nil
}
