package realtime

import (
	"encoding/json"

	"guestpulse/internal/microservices/http-api/models"
)

// EventKind tags a real-time event on the wire.
type EventKind string

const (
	EventNewNotification     EventKind = "NEW_NOTIFICATION"
	EventNotificationRead    EventKind = "NOTIFICATION_READ"
	EventMarkAllRead         EventKind = "MARK_ALL_READ"
	EventNotificationDeleted EventKind = "NOTIFICATION_DELETED"
)

// Event is the envelope published on notification channels. NEW_NOTIFICATION
// carries the full row; the other kinds only need an id (MARK_ALL_READ none).
type Event struct {
	Kind           EventKind            `json:"kind"`
	Notification   *models.Notification `json:"notification,omitempty"`
	NotificationID string               `json:"notification_id,omitempty"`
}

func NewNotificationEvent(n *models.Notification) Event {
	return Event{Kind: EventNewNotification, Notification: n}
}

func NotificationReadEvent(notificationID string) Event {
	return Event{Kind: EventNotificationRead, NotificationID: notificationID}
}

func MarkAllReadEvent() Event {
	return Event{Kind: EventMarkAllRead}
}

func NotificationDeletedEvent(notificationID string) Event {
	return Event{Kind: EventNotificationDeleted, NotificationID: notificationID}
}

// Encode converts the event to JSON bytes for publishing.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent parses an incoming wire payload.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}
