package dto

import "encoding/json"

// CreateNotificationRequest is the producer-facing payload for a single
// recipient notification.
type CreateNotificationRequest struct {
	RecipientID string          `json:"recipient_id" binding:"required"`
	Title       string          `json:"title" binding:"required"`
	Message     string          `json:"message" binding:"required"`
	Type        string          `json:"type" binding:"required"`
	RelatedID   string          `json:"related_id"`
	RelatedType string          `json:"related_type"`
	Metadata    json.RawMessage `json:"metadata"`
}

// BroadcastNotificationRequest addresses every current member of a role.
type BroadcastNotificationRequest struct {
	Role        string          `json:"role" binding:"required"`
	Title       string          `json:"title" binding:"required"`
	Message     string          `json:"message" binding:"required"`
	Type        string          `json:"type" binding:"required"`
	RelatedID   string          `json:"related_id"`
	RelatedType string          `json:"related_type"`
	Metadata    json.RawMessage `json:"metadata"`
}

// BroadcastAllNotificationRequest addresses every registered user.
type BroadcastAllNotificationRequest struct {
	Title       string          `json:"title" binding:"required"`
	Message     string          `json:"message" binding:"required"`
	Type        string          `json:"type" binding:"required"`
	RelatedID   string          `json:"related_id"`
	RelatedType string          `json:"related_type"`
	Metadata    json.RawMessage `json:"metadata"`
}
