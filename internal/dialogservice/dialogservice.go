// Package dialogservice implements the dialog lifecycle: creation with
// seed members/scopes, membership mutation, the per-participant flag
// toggles, and the two listing modes (participating/available) the
// Chat API exposes. Multi-row writes always go through
// database.Transaction, never piecemeal statements.
package dialogservice

import (
	"context"
	"database/sql"

	"github.com/pohodnya/mtchat/internal/access"
	"github.com/pohodnya/mtchat/internal/database"
	"github.com/pohodnya/mtchat/internal/errors"
	"github.com/pohodnya/mtchat/internal/models"
	"github.com/pohodnya/mtchat/internal/realtime"
	"github.com/pohodnya/mtchat/internal/services"
	"github.com/pohodnya/mtchat/internal/webhook"
)

const defaultListLimit = 50

type Service struct {
	db        *database.DB
	evaluator *access.Evaluator
	hub       *realtime.Hub
	webhook   *webhook.Sender
	cache     services.CacheService
}

func New(db *database.DB, evaluator *access.Evaluator, hub *realtime.Hub, sender *webhook.Sender, cache services.CacheService) *Service {
	return &Service{db: db, evaluator: evaluator, hub: hub, webhook: sender, cache: cache}
}

// Create builds a dialog with optional seed participants/scopes and a
// chat_created system message, all inside one transaction.
func (s *Service) Create(ctx context.Context, req models.CreateDialogRequest) (*models.DialogDetail, error) {
	if req.ObjectID == "" || req.ObjectType == "" || req.CreatedBy == "" {
		return nil, errors.New(errors.ErrMissingRequiredField, "object_id, object_type and created_by are required")
	}

	var dialog *models.Dialog
	err := s.db.Transaction(func(tx *sql.Tx) error {
		var err error
		dialog, err = s.db.CreateDialogTx(tx, ctx, database.CreateDialogParams{
			ObjectID:   req.ObjectID,
			ObjectType: req.ObjectType,
			Title:      req.Title,
			ObjectURL:  req.ObjectURL,
			CreatedBy:  req.CreatedBy,
		})
		if err != nil {
			return err
		}

		for i, p := range req.Participants {
			joinedAs := models.JoinedAsParticipant
			if p.UserID == req.CreatedBy && i == 0 {
				joinedAs = models.JoinedAsCreator
			}
			if err := s.db.AddParticipantTx(tx, ctx, models.Participant{
				DialogID: dialog.ID, UserID: p.UserID, DisplayName: p.DisplayName,
				Company: p.Company, Email: p.Email, Phone: p.Phone, JoinedAs: joinedAs,
			}); err != nil {
				return err
			}
		}

		if len(req.AccessScopes) > 0 {
			if err := s.db.InsertScopesTx(tx, ctx, dialog.ID, req.AccessScopes); err != nil {
				return err
			}
		}

		_, err = s.db.InsertMessageTx(tx, ctx, database.NewMessageParams{
			DialogID:    dialog.ID,
			MessageType: models.MessageTypeSystem,
			Content:     `{"event":"chat_created"}`,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.GetDetail(ctx, dialog.ID)
}

// GetDetail returns a dialog with its participants and access scopes,
// the Management API's get-by-id shape.
func (s *Service) GetDetail(ctx context.Context, dialogID string) (*models.DialogDetail, error) {
	dialog, err := s.db.GetDialog(ctx, dialogID)
	if err != nil {
		return nil, err
	}
	participants, err := s.db.ListParticipants(ctx, dialogID)
	if err != nil {
		return nil, err
	}
	scopes, err := s.db.ListScopes(ctx, dialogID)
	if err != nil {
		return nil, err
	}
	return &models.DialogDetail{Dialog: *dialog, Participants: participants, AccessScopes: scopes}, nil
}

// GetDetailForUser returns dialog metadata for the Chat API, gated to
// callers who are at least a potential member (participants get the
// same shape; potential members use it to decide whether to join).
func (s *Service) GetDetailForUser(ctx context.Context, dialogID, userID string, claim *models.ScopeClaim) (*models.DialogDetail, error) {
	if _, err := s.evaluator.RequireAtLeastPotential(ctx, userID, dialogID, claim); err != nil {
		return nil, err
	}
	return s.GetDetail(ctx, dialogID)
}

// ListParticipantsForUser returns the participant list for the Chat
// API, gated to existing participants only.
func (s *Service) ListParticipantsForUser(ctx context.Context, dialogID, userID string, claim *models.ScopeClaim) ([]models.Participant, error) {
	if err := s.evaluator.RequireParticipant(ctx, userID, dialogID, claim); err != nil {
		return nil, err
	}
	return s.db.ListParticipants(ctx, dialogID)
}

// AddParticipant inserts one participant, used by the Management API.
func (s *Service) AddParticipant(ctx context.Context, dialogID string, req models.SeedParticipantRequest) error {
	return s.db.Transaction(func(tx *sql.Tx) error {
		return s.db.AddParticipantTx(tx, ctx, models.Participant{
			DialogID: dialogID, UserID: req.UserID, DisplayName: req.DisplayName,
			Company: req.Company, Email: req.Email, Phone: req.Phone, JoinedAs: models.JoinedAsParticipant,
		})
	})
}

// RemoveParticipant deletes one participant row and broadcasts
// participant.left.
func (s *Service) RemoveParticipant(ctx context.Context, dialogID, userID string) error {
	if err := s.db.RemoveParticipant(ctx, dialogID, userID); err != nil {
		return err
	}
	s.hub.BroadcastToDialog(ctx, dialogID, realtime.Frame(models.EventParticipantLeft, models.ParticipantEventData{
		DialogID: dialogID, UserID: userID,
	}))
	return nil
}

// Join self-adds a caller as a participant, requiring at least
// PotentialMember access. In the same transaction it persists a
// participant_joined system message; after commit it broadcasts
// participant.joined to the dialog and sends the matching webhook.
func (s *Service) Join(ctx context.Context, dialogID, userID string, req models.JoinDialogRequest, claim *models.ScopeClaim) error {
	if _, err := s.evaluator.RequireAtLeastPotential(ctx, userID, dialogID, claim); err != nil {
		return err
	}
	err := s.db.Transaction(func(tx *sql.Tx) error {
		if err := s.db.AddParticipantTx(tx, ctx, models.Participant{
			DialogID: dialogID, UserID: userID, DisplayName: req.DisplayName,
			Company: req.Company, Email: req.Email, Phone: req.Phone, JoinedAs: models.JoinedAsJoined,
		}); err != nil {
			return err
		}
		_, err := s.db.InsertMessageTx(tx, ctx, database.NewMessageParams{
			DialogID:    dialogID,
			MessageType: models.MessageTypeSystem,
			Content:     `{"event":"participant_joined","user_id":"` + userID + `"}`,
		})
		return err
	})
	if err != nil {
		return err
	}
	s.hub.BroadcastToDialog(ctx, dialogID, realtime.Frame(models.EventParticipantJoined, models.ParticipantEventData{
		DialogID: dialogID, UserID: userID,
	}))
	if s.webhook != nil {
		go s.webhook.Send(context.Background(), models.WebhookPayload{
			Event: models.EventParticipantJoined,
			Data:  models.ParticipantEventData{DialogID: dialogID, UserID: userID},
		})
	}
	return nil
}

// Leave removes the caller from dialogID.
func (s *Service) Leave(ctx context.Context, dialogID, userID string) error {
	return s.RemoveParticipant(ctx, dialogID, userID)
}

// ReplaceScopes atomically replaces the dialog's access-scope rules.
func (s *Service) ReplaceScopes(ctx context.Context, dialogID string, scopes []models.AccessScopeRequest) error {
	return s.db.Transaction(func(tx *sql.Tx) error {
		return s.db.ReplaceScopesTx(tx, ctx, dialogID, scopes)
	})
}

// Delete cascades the dialog and everything it owns.
func (s *Service) Delete(ctx context.Context, dialogID string) error {
	return s.db.DeleteDialog(ctx, dialogID)
}

// flagOp is one of the per-participant toggles.
type flagOp struct {
	column string
	value  bool
}

var (
	archiveOp    = flagOp{"is_archived", true}
	unarchiveOp  = flagOp{"is_archived", false}
	pinOp        = flagOp{"is_pinned", true}
	unpinOp      = flagOp{"is_pinned", false}
	muteOp       = flagOp{"notifications_enabled", false}
	unmuteOp     = flagOp{"notifications_enabled", true}
)

func (s *Service) Archive(ctx context.Context, dialogID, userID string) error {
	if err := s.db.SetParticipantFlag(ctx, dialogID, userID, archiveOp.column, archiveOp.value); err != nil {
		return err
	}
	s.hub.SendToUser(userID, realtime.Frame(models.EventDialogArchived, models.DialogEventData{DialogID: dialogID}))
	return nil
}

func (s *Service) Unarchive(ctx context.Context, dialogID, userID string) error {
	if err := s.db.SetParticipantFlag(ctx, dialogID, userID, unarchiveOp.column, unarchiveOp.value); err != nil {
		return err
	}
	s.hub.SendToUser(userID, realtime.Frame(models.EventDialogUnarchived, models.DialogEventData{DialogID: dialogID}))
	return nil
}

func (s *Service) Pin(ctx context.Context, dialogID, userID string) error {
	return s.db.SetParticipantFlag(ctx, dialogID, userID, pinOp.column, pinOp.value)
}

func (s *Service) Unpin(ctx context.Context, dialogID, userID string) error {
	return s.db.SetParticipantFlag(ctx, dialogID, userID, unpinOp.column, unpinOp.value)
}

func (s *Service) Mute(ctx context.Context, dialogID, userID string) error {
	return s.db.SetParticipantFlag(ctx, dialogID, userID, muteOp.column, muteOp.value)
}

func (s *Service) Unmute(ctx context.Context, dialogID, userID string) error {
	return s.db.SetParticipantFlag(ctx, dialogID, userID, unmuteOp.column, unmuteOp.value)
}

// ListParticipating returns the caller's dialogs, cached briefly per
// (user, filters) combination since ordering depends on volatile
// per-message state.
func (s *Service) ListParticipating(ctx context.Context, userID string, archived models.ArchivedFilter, search string, limit int) ([]models.DialogSummary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	cacheKey := services.DialogListCacheKey(userID, "participating", string(archived), search)
	var cached []models.DialogSummary
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	rows, err := s.db.ListParticipatingDialogs(ctx, userID, archived, search, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.DialogSummary, 0, len(rows))
	for _, r := range rows {
		summary := models.DialogSummary{
			Dialog:               r.Dialog,
			UnreadCount:          r.UnreadCount,
			IsPinned:             r.IsPinned,
			IsArchived:           r.IsArchived,
			NotificationsEnabled: r.NotificationsEnabled,
			ParticipantsCount:    r.ParticipantsCount,
		}
		if r.LastMessageAt.Valid {
			t := r.LastMessageAt.Time
			summary.LastMessageAt = &t
		}
		out = append(out, summary)
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, out, services.DialogListCacheTTL)
	}
	return out, nil
}

// ListAvailable returns dialogs matched by claim that userID is not
// yet a participant of.
func (s *Service) ListAvailable(ctx context.Context, userID string, claim *models.ScopeClaim, search string, limit int) ([]models.DialogSummary, error) {
	if claim == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.ListAvailableDialogs(ctx, userID, claim.TenantUID, claim.ScopeLevel1, claim.ScopeLevel2, search, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.DialogSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.DialogSummary{
			Dialog:            r.Dialog,
			ParticipantsCount: r.ParticipantsCount,
			CanJoin:           true,
		})
	}
	return out, nil
}

// GetByObject returns the newest dialog bound to (objectType, objectID)
// and whether userID could join it.
func (s *Service) GetByObject(ctx context.Context, userID, objectType, objectID string, claim *models.ScopeClaim) (*models.DialogSummary, error) {
	dialog, err := s.db.GetLatestDialogByObject(ctx, objectType, objectID)
	if err != nil {
		return nil, err
	}
	if dialog == nil {
		return nil, errors.New(errors.ErrDialogNotFound, "no dialog bound to this object")
	}
	level, err := s.evaluator.Evaluate(ctx, userID, dialog.ID, claim)
	if err != nil {
		return nil, err
	}
	if level == models.AccessDenied {
		return nil, errors.New(errors.ErrForbidden, "dialog access denied")
	}
	count, err := s.db.CountParticipants(ctx, dialog.ID)
	if err != nil {
		return nil, err
	}
	summary := &models.DialogSummary{Dialog: *dialog, ParticipantsCount: count, CanJoin: level == models.AccessPotentialMember}
	if level == models.AccessParticipant {
		p, err := s.db.GetParticipant(ctx, dialog.ID, userID)
		if err == nil {
			summary.UnreadCount = p.UnreadCount
			summary.IsPinned = p.IsPinned
			summary.IsArchived = p.IsArchived
			summary.NotificationsEnabled = p.NotificationsEnabled
		}
	}
	return summary, nil
}
