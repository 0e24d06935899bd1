package models

import "time"

// EventType enumerates the realtime hub's server-to-client frame types
// and the outbound webhook's event names (the two sets overlap but are
// not identical: pong/connected/error never leave the socket).
type EventType string

const (
	EventConnected         EventType = "connected"
	EventMessageNew        EventType = "message.new"
	EventMessageEdited     EventType = "message.edited"
	EventMessageDeleted    EventType = "message.deleted"
	EventMessageRead       EventType = "message.read"
	EventParticipantJoined EventType = "participant.joined"
	EventParticipantLeft   EventType = "participant.left"
	EventDialogArchived    EventType = "dialog.archived"
	EventDialogUnarchived  EventType = "dialog.unarchived"
	EventPresenceUpdate    EventType = "presence.update"
	EventPong              EventType = "pong"
	EventError             EventType = "error"

	EventNotificationPending EventType = "notification.pending"
)

// WSFrame is the envelope every server->client WebSocket message uses.
type WSFrame struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// WSClientFrame is the envelope accepted from a client.
type WSClientFrame struct {
	Type     string `json:"type"`
	DialogID string `json:"dialog_id,omitempty"`
}

// WebhookPayload is the canonical outbound webhook body shape.
type WebhookPayload struct {
	Event     EventType   `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// MessageEventData accompanies message.new/edited/deleted broadcasts
// and webhooks.
type MessageEventData struct {
	DialogID   string  `json:"dialog_id"`
	ObjectID   string  `json:"object_id,omitempty"`
	ObjectType string  `json:"object_type,omitempty"`
	Message    Message `json:"message"`
}

// ReadEventData accompanies message.read broadcasts.
type ReadEventData struct {
	DialogID          string `json:"dialog_id"`
	UserID            string `json:"user_id"`
	LastReadMessageID string `json:"last_read_message_id"`
}

// ParticipantEventData accompanies participant.joined/left broadcasts
// and webhooks.
type ParticipantEventData struct {
	DialogID   string `json:"dialog_id"`
	ObjectID   string `json:"object_id,omitempty"`
	ObjectType string `json:"object_type,omitempty"`
	UserID     string `json:"user_id"`
}

// DialogEventData accompanies dialog.archived/unarchived broadcasts.
type DialogEventData struct {
	DialogID string `json:"dialog_id"`
}

// PresenceEventData accompanies presence.update broadcasts.
type PresenceEventData struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

// ErrorEventData accompanies the WebSocket's typed error frame.
type ErrorEventData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NotificationPendingData accompanies the notification.pending webhook.
type NotificationPendingData struct {
	DialogID    string `json:"dialog_id"`
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
	SenderID    string `json:"sender_id"`
}
