package models

import "time"

// JoinedAs records how a participant entered the dialog. Set exactly
// once by the path that created the row.
type JoinedAs string

const (
	JoinedAsCreator     JoinedAs = "creator"
	JoinedAsParticipant JoinedAs = "participant"
	JoinedAsJoined      JoinedAs = "joined"
)

// Participant is the (dialog_id, user_id) membership row. Profile
// fields are per-dialog: the same user may present a different
// display_name/company/email/phone in different dialogs.
type Participant struct {
	DialogID             string     `json:"dialog_id"`
	UserID               string     `json:"user_id"`
	DisplayName          string     `json:"display_name"`
	Company              string     `json:"company,omitempty"`
	Email                string     `json:"email,omitempty"`
	Phone                string     `json:"phone,omitempty"`
	JoinedAt             time.Time  `json:"joined_at"`
	JoinedAs             JoinedAs   `json:"joined_as"`
	NotificationsEnabled bool       `json:"notifications_enabled"`
	LastReadMessageID    string     `json:"last_read_message_id,omitempty"`
	UnreadCount          int        `json:"unread_count"`
	IsArchived           bool       `json:"is_archived"`
	IsPinned             bool       `json:"is_pinned"`
}

// AccessScope is one rule row attached to a dialog. Empty slices on
// either axis act as a wildcard for that axis (see internal/access).
type AccessScope struct {
	DialogID     string   `json:"dialog_id"`
	TenantUID    string   `json:"tenant_uid"`
	ScopeLevel1  []string `json:"scope_level1"`
	ScopeLevel2  []string `json:"scope_level2"`
}

// AccessScopeRequest is the wire shape for creating/replacing scopes.
type AccessScopeRequest struct {
	TenantUID   string   `json:"tenant_uid"`
	ScopeLevel1 []string `json:"scope_level1"`
	ScopeLevel2 []string `json:"scope_level2"`
}

// ScopeClaim is the caller-presented (tenant, L1, L2) tuple decoded
// from the Chat API's X-Scope-Config header.
type ScopeClaim struct {
	TenantUID   string   `json:"tenant_uid"`
	ScopeLevel1 []string `json:"scope_level1"`
	ScopeLevel2 []string `json:"scope_level2"`
}

// AccessLevel is the access evaluator's verdict.
type AccessLevel string

const (
	AccessParticipant     AccessLevel = "participant"
	AccessPotentialMember AccessLevel = "potential_member"
	AccessDenied          AccessLevel = "denied"
)
