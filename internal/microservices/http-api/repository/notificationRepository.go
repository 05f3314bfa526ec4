package repository

import (
	"context"

	"gorm.io/gorm"

	"guestpulse/internal/microservices/http-api/models"
)

// NotificationRepository is the durable store boundary for notifications.
// Persistence is the source of truth; everything above it (fan-out, client
// merge) is an optimization layered on these five operations.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByRecipient(ctx context.Context, userID string, includeRead bool) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	// MarkRead sets the read flag on a notification owned by userID. The
	// returned bool reports whether a row matched; marking an already-read
	// row still counts as a match.
	MarkRead(ctx context.Context, userID, notificationID string) (bool, error)
	// MarkAllRead flips every unread row for userID and returns how many
	// rows were affected.
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	// Delete hard-removes a notification owned by userID. The returned bool
	// reports whether a row existed.
	Delete(ctx context.Context, userID, notificationID string) (bool, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, userID string, includeRead bool) ([]models.Notification, error) {
	var notifications []models.Notification
	q := r.db.WithContext(ctx).Where("recipient_id = ?", userID)
	if !includeRead {
		q = q.Where("read = false")
	}
	// created_at alone is not deterministic under concurrent inserts, so the
	// id tiebreak is part of the contract.
	err := q.Order("created_at DESC, id DESC").Find(&notifications).Error
	return notifications, err
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND read = false", userID).
		Count(&count).Error
	return count, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, notificationID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", notificationID, userID).
		Update("read", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND read = false", userID).
		Update("read", true)
	return res.RowsAffected, res.Error
}

func (r *notificationRepository) Delete(ctx context.Context, userID, notificationID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", notificationID, userID).
		Delete(&models.Notification{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
