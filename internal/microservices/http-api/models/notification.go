package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationType is a closed enumeration. It drives icon/severity rendering
// on the client and is the only field clients use for semantic dispatch.
type NotificationType string

const (
	TypeNewReview            NotificationType = "NEW_REVIEW"
	TypeReviewApproved       NotificationType = "REVIEW_APPROVED"
	TypeSubscriptionExpiring NotificationType = "SUBSCRIPTION_EXPIRING"
	TypeEscalationReceived   NotificationType = "ESCALATION_RECEIVED"
	TypeNewHotelRegistration NotificationType = "NEW_HOTEL_REGISTRATION"
	TypeNewFormCreated       NotificationType = "NEW_FORM_CREATED"
	TypeSuccess              NotificationType = "SUCCESS"
	TypeInfo                 NotificationType = "INFO"
	TypeWarning              NotificationType = "WARNING"
	TypeError                NotificationType = "ERROR"
)

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	switch t {
	case TypeNewReview, TypeReviewApproved, TypeSubscriptionExpiring,
		TypeEscalationReceived, TypeNewHotelRegistration, TypeNewFormCreated,
		TypeSuccess, TypeInfo, TypeWarning, TypeError:
		return true
	}
	return false
}

// Notification is immutable after creation except for Read, which only ever
// transitions false -> true. Ordering is created_at descending, id as tiebreak.
type Notification struct {
	ID          string           `gorm:"primaryKey;type:uuid" json:"id"`
	RecipientID string           `gorm:"type:uuid;not null;index" json:"recipient_id"`
	Title       string           `gorm:"not null" json:"title"`
	Message     string           `gorm:"not null" json:"message"`
	Type        NotificationType `gorm:"not null" json:"type"`
	RelatedID   string           `json:"related_id,omitempty"`
	RelatedType string           `json:"related_type,omitempty"`
	Metadata    json.RawMessage  `gorm:"type:jsonb" json:"metadata,omitempty"` // producer-defined, never interpreted here
	Read        bool             `gorm:"default:false" json:"read"`
	CreatedAt   time.Time        `gorm:"default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// BeforeCreate hook to set UUID before creating a Notification
func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return
}

func (Notification) TableName() string {
	return "notifications"
}
