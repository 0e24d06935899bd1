package models

import "time"

// Dialog is a conversation bound to a single business object.
// Identity is a time-ordered id (see internal/idgen) so that list
// ordering by creation falls naturally out of id ordering.
type Dialog struct {
	ID         string    `json:"id"`
	ObjectID   string    `json:"object_id"`
	ObjectType string    `json:"object_type"`
	Title      string    `json:"title,omitempty"`
	ObjectURL  string    `json:"object_url,omitempty"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// DialogListType selects the Dialog service's listing mode.
type DialogListType string

const (
	DialogListParticipating DialogListType = "participating"
	DialogListAvailable     DialogListType = "available"
)

// ArchivedFilter is the tri-state filter for ListParticipating.
type ArchivedFilter string

const (
	ArchivedOnly    ArchivedFilter = "only"
	ArchivedExclude ArchivedFilter = "exclude"
	ArchivedAny     ArchivedFilter = "any"
)

// DialogSummary is a Dialog annotated with the caller's per-participant
// state, the shape returned by the dialog listing endpoints.
type DialogSummary struct {
	Dialog
	UnreadCount           int    `json:"unread_count"`
	IsPinned              bool   `json:"is_pinned"`
	IsArchived            bool   `json:"is_archived"`
	NotificationsEnabled  bool   `json:"notifications_enabled"`
	ParticipantsCount     int    `json:"participants_count"`
	CanJoin               bool   `json:"can_join,omitempty"`
	LastMessageAt         *time.Time `json:"last_message_at,omitempty"`
}

// DialogDetail is a Dialog with its participants and access scopes, the
// shape returned by the Management API's get-by-id endpoint.
type DialogDetail struct {
	Dialog
	Participants []Participant  `json:"participants"`
	AccessScopes []AccessScope  `json:"access_scopes"`
}

// CreateDialogRequest is the Management API's dialog creation body.
type CreateDialogRequest struct {
	ObjectID     string                    `json:"object_id"`
	ObjectType   string                    `json:"object_type"`
	Title        string                    `json:"title,omitempty"`
	ObjectURL    string                    `json:"object_url,omitempty"`
	CreatedBy    string                    `json:"created_by"`
	Participants []SeedParticipantRequest  `json:"participants,omitempty"`
	AccessScopes []AccessScopeRequest      `json:"access_scopes,omitempty"`
}

// SeedParticipantRequest describes a participant to add at creation time
// or via the Management API's add-participant endpoint.
type SeedParticipantRequest struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Company     string `json:"company,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// JoinDialogRequest is the Chat API's self-join body.
type JoinDialogRequest struct {
	DisplayName string `json:"display_name"`
	Company     string `json:"company,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}
