package models

import "time"

// MessageType distinguishes user-authored messages from
// server-synthesized lifecycle notices.
type MessageType string

const (
	MessageTypeUser   MessageType = "user"
	MessageTypeSystem MessageType = "system"
)

// Message is identified by a time-ordered id, so ordering and
// pagination windows fall out of lexicographic id comparison.
type Message struct {
	ID          string      `json:"id"`
	DialogID    string      `json:"dialog_id"`
	SenderID    string      `json:"sender_id,omitempty"`
	MessageType MessageType `json:"message_type"`
	Content     string      `json:"content"`
	ReplyToID   string      `json:"reply_to_id,omitempty"`
	IsEdited    bool        `json:"is_edited"`
	IsDeleted   bool        `json:"is_deleted"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	Attachments []Attachment `json:"attachments,omitempty"`
}

// MessageEditHistory is the audit side-table populated on every edit.
// Nothing reads it back out over HTTP — only the message service
// writes to it.
type MessageEditHistory struct {
	ID              string    `json:"id"`
	MessageID       string    `json:"message_id"`
	PreviousContent string    `json:"previous_content"`
	EditedAt        time.Time `json:"edited_at"`
}

// Attachment binds an already-uploaded object to a message.
type Attachment struct {
	ID                  string `json:"id"`
	MessageID           string `json:"message_id"`
	Filename            string `json:"filename"`
	ContentType         string `json:"content_type"`
	SizeBytes           int64  `json:"size_bytes"`
	ObjectKey           string `json:"object_key"`
	Width               int    `json:"width,omitempty"`
	Height              int    `json:"height,omitempty"`
	ThumbnailObjectKey  string `json:"thumbnail_object_key,omitempty"`
}

// AttachmentDescriptor is the wire shape the Chat API accepts when
// binding an already-uploaded object to a new message.
type AttachmentDescriptor struct {
	ObjectKey   string `json:"object_key"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

const (
	MaxAttachmentsPerMessage = 10
	MaxAttachmentSizeBytes   = 100 * 1024 * 1024
)

// AllowedAttachmentContentTypes is the server-side allow-list; the
// uploaded file's extension is never trusted for routing decisions.
var AllowedAttachmentContentTypes = map[string]bool{
	"image/png":        true,
	"image/jpeg":       true,
	"image/gif":        true,
	"image/webp":       true,
	"application/pdf":  true,
	"text/plain":       true,
	"application/zip":  true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
}

// SendMessageRequest is the Chat API's message submission body.
type SendMessageRequest struct {
	Content     string                 `json:"content"`
	ReplyToID   string                 `json:"reply_to_id,omitempty"`
	Attachments []AttachmentDescriptor `json:"attachments,omitempty"`
}

// EditMessageRequest is the Chat API's message edit body.
type EditMessageRequest struct {
	Content string `json:"content"`
}

// AdvanceReadRequest is the Chat API's read-cursor advance body.
type AdvanceReadRequest struct {
	LastReadMessageID string `json:"last_read_message_id"`
}

// MessagePage is the listing endpoint's response shape.
type MessagePage struct {
	Messages             []Message `json:"messages"`
	FirstUnreadMessageID string    `json:"first_unread_message_id,omitempty"`
	HasMoreBefore        bool      `json:"has_more_before"`
	HasMoreAfter         bool      `json:"has_more_after"`
}

// PaginationMode is the single listing endpoint's mutually exclusive
// window selector.
type PaginationMode string

const (
	PaginationBefore PaginationMode = "before"
	PaginationAfter  PaginationMode = "after"
	PaginationAround PaginationMode = "around"
	PaginationNone   PaginationMode = ""
)
