// Package messageservice implements the message submission pipeline:
// sanitize, validate attachments, write transactionally, then fan the
// result out to the realtime hub, the outbound webhook, and the
// notification scheduler.
package messageservice

import (
	"context"
	"database/sql"

	"github.com/pohodnya/mtchat/internal/access"
	"github.com/pohodnya/mtchat/internal/database"
	"github.com/pohodnya/mtchat/internal/errors"
	"github.com/pohodnya/mtchat/internal/models"
	"github.com/pohodnya/mtchat/internal/objectstore"
	"github.com/pohodnya/mtchat/internal/realtime"
	"github.com/pohodnya/mtchat/internal/sanitize"
	"github.com/pohodnya/mtchat/internal/scheduler"
	"github.com/pohodnya/mtchat/internal/webhook"
)

const defaultPageLimit = 50

type Service struct {
	db        *database.DB
	evaluator *access.Evaluator
	store     *objectstore.Store
	hub       *realtime.Hub
	webhook   *webhook.Sender
	scheduler *scheduler.Scheduler
}

func New(db *database.DB, evaluator *access.Evaluator, store *objectstore.Store, hub *realtime.Hub, sender *webhook.Sender, sched *scheduler.Scheduler) *Service {
	return &Service{db: db, evaluator: evaluator, store: store, hub: hub, webhook: sender, scheduler: sched}
}

// Send sanitizes content, validates attachments against the
// object store, writes the message plus its side effects in one
// transaction, then fans the result out once it has committed.
func (s *Service) Send(ctx context.Context, dialogID, senderID string, req models.SendMessageRequest, claim *models.ScopeClaim) (*models.Message, error) {
	if err := s.evaluator.RequireParticipant(ctx, senderID, dialogID, claim); err != nil {
		return nil, err
	}

	cleaned := sanitize.Sanitize(req.Content)
	if sanitize.IsEmpty(cleaned) && len(req.Attachments) == 0 {
		return nil, errors.New(errors.ErrValidationFailed, "message must have content or at least one attachment")
	}

	if err := s.validateAttachments(req.Attachments); err != nil {
		return nil, err
	}
	if err := s.probeAttachments(ctx, req.Attachments); err != nil {
		return nil, err
	}

	if req.ReplyToID != "" {
		parent, err := s.db.GetMessage(ctx, req.ReplyToID)
		if err != nil {
			return nil, err
		}
		if parent.DialogID != dialogID {
			return nil, errors.New(errors.ErrValidationFailed, "reply_to_id must reference a message in the same dialog")
		}
	}

	var message *models.Message
	err := s.db.Transaction(func(tx *sql.Tx) error {
		var err error
		message, err = s.db.InsertMessageTx(tx, ctx, database.NewMessageParams{
			DialogID: dialogID, SenderID: senderID, MessageType: models.MessageTypeUser,
			Content: cleaned, ReplyToID: req.ReplyToID,
		})
		if err != nil {
			return err
		}
		atts, err := s.db.InsertAttachmentsTx(tx, ctx, message.ID, req.Attachments)
		if err != nil {
			return err
		}
		message.Attachments = atts

		if err := s.db.IncrementUnreadForOthersTx(tx, ctx, dialogID, senderID); err != nil {
			return err
		}
		return s.db.SetSenderCursorTx(tx, ctx, dialogID, senderID, message.ID)
	})
	if err != nil {
		return nil, err
	}

	s.fanOut(dialogID, senderID, message)
	return message, nil
}

// fanOut runs the realtime broadcast, webhook delivery, and
// notification scheduling after the transaction has committed. It
// never blocks Send's caller on delivery to peers.
func (s *Service) fanOut(dialogID, senderID string, message *models.Message) {
	ctx := context.Background()
	frame := realtime.Frame(models.EventMessageNew, models.MessageEventData{DialogID: dialogID, Message: *message})
	s.hub.BroadcastToDialog(ctx, dialogID, frame)

	if s.webhook != nil && s.webhook.Configured() {
		go s.webhook.Send(ctx, models.WebhookPayload{
			Event: models.EventMessageNew,
			Data:  models.MessageEventData{DialogID: dialogID, Message: *message},
		})
	}

	if s.scheduler == nil {
		return
	}
	recipients, err := s.db.ListParticipantUserIDs(ctx, dialogID)
	if err != nil {
		return
	}
	for _, recipientID := range recipients {
		if recipientID == senderID {
			continue
		}
		s.scheduler.Enqueue(ctx, dialogID, recipientID, message.ID, senderID)
	}
}

func (s *Service) validateAttachments(descs []models.AttachmentDescriptor) error {
	if len(descs) > models.MaxAttachmentsPerMessage {
		return errors.New(errors.ErrValidationFailed, "too many attachments")
	}
	for _, d := range descs {
		if d.Size > models.MaxAttachmentSizeBytes {
			return errors.New(errors.ErrPayloadTooLarge, "attachment exceeds the maximum allowed size")
		}
		if !models.AllowedAttachmentContentTypes[d.ContentType] {
			return errors.New(errors.ErrUnsupportedMedia, "attachment content type is not allowed")
		}
		if d.ObjectKey == "" {
			return errors.New(errors.ErrValidationFailed, "attachment is missing object_key")
		}
	}
	return nil
}

// probeAttachments confirms every referenced object actually exists
// in the store before the message is written, so a client can never
// bind a message to an object it never uploaded.
func (s *Service) probeAttachments(ctx context.Context, descs []models.AttachmentDescriptor) error {
	for _, d := range descs {
		exists, err := s.store.Exists(ctx, d.ObjectKey)
		if err != nil {
			return errors.Wrap(err, errors.ErrObjectStoreError)
		}
		if !exists {
			return errors.New(errors.ErrValidationFailed, "attachment object_key was never uploaded")
		}
	}
	return nil
}

// List returns one pagination window for the dialog, scoped to
// callers who are already participants.
func (s *Service) List(ctx context.Context, dialogID, userID string, mode models.PaginationMode, anchorID string, limit int, claim *models.ScopeClaim) (*models.MessagePage, error) {
	if err := s.evaluator.RequireParticipant(ctx, userID, dialogID, claim); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}

	msgs, hasBefore, hasAfter, err := s.db.ListMessagesPage(ctx, dialogID, mode, anchorID, limit)
	if err != nil {
		return nil, err
	}
	if err := s.db.AttachMessagesToWindow(ctx, msgs); err != nil {
		return nil, err
	}

	page := &models.MessagePage{Messages: msgs, HasMoreBefore: hasBefore, HasMoreAfter: hasAfter}
	participant, err := s.db.GetParticipant(ctx, dialogID, userID)
	if err == nil && participant.LastReadMessageID != "" {
		firstUnread, err := s.db.FirstUnreadMessageID(ctx, dialogID, participant.LastReadMessageID)
		if err == nil {
			page.FirstUnreadMessageID = firstUnread
		}
	}
	return page, nil
}

// Edit replaces a message's content, recording the prior content into
// the edit-history side table, and broadcasts message.edited.
func (s *Service) Edit(ctx context.Context, dialogID, messageID, userID string, req models.EditMessageRequest, claim *models.ScopeClaim) (*models.Message, error) {
	if err := s.evaluator.RequireParticipant(ctx, userID, dialogID, claim); err != nil {
		return nil, err
	}
	existing, err := s.db.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if existing.DialogID != dialogID {
		return nil, errors.New(errors.ErrMessageNotFound, "message not found in this dialog")
	}
	if existing.SenderID != userID {
		return nil, errors.New(errors.ErrForbidden, "only the original sender may edit this message")
	}
	if existing.IsDeleted {
		return nil, errors.New(errors.ErrConflict, "cannot edit a deleted message")
	}

	cleaned := sanitize.Sanitize(req.Content)
	if sanitize.IsEmpty(cleaned) && len(existing.Attachments) == 0 {
		return nil, errors.New(errors.ErrValidationFailed, "edited message must retain content or an attachment")
	}

	err = s.db.Transaction(func(tx *sql.Tx) error {
		return s.db.EditMessageTx(tx, ctx, messageID, existing.Content, cleaned)
	})
	if err != nil {
		return nil, err
	}
	existing.Content = cleaned
	existing.IsEdited = true

	s.hub.BroadcastToDialog(ctx, dialogID, realtime.Frame(models.EventMessageEdited, models.MessageEventData{DialogID: dialogID, Message: *existing}))
	return existing, nil
}

// Delete soft-deletes a message and broadcasts message.deleted.
func (s *Service) Delete(ctx context.Context, dialogID, messageID, userID string, claim *models.ScopeClaim) error {
	if err := s.evaluator.RequireParticipant(ctx, userID, dialogID, claim); err != nil {
		return err
	}
	existing, err := s.db.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if existing.DialogID != dialogID {
		return errors.New(errors.ErrMessageNotFound, "message not found in this dialog")
	}
	if existing.SenderID != userID {
		return errors.New(errors.ErrForbidden, "only the original sender may delete this message")
	}

	if err := s.db.SoftDeleteMessage(ctx, messageID); err != nil {
		return err
	}
	existing.IsDeleted = true
	s.hub.BroadcastToDialog(ctx, dialogID, realtime.Frame(models.EventMessageDeleted, models.MessageEventData{DialogID: dialogID, Message: *existing}))
	return nil
}

// AdvanceRead moves userID's read cursor forward and broadcasts
// message.read so peers can update delivery receipts.
func (s *Service) AdvanceRead(ctx context.Context, dialogID, userID string, req models.AdvanceReadRequest, claim *models.ScopeClaim) error {
	if err := s.evaluator.RequireParticipant(ctx, userID, dialogID, claim); err != nil {
		return err
	}
	if req.LastReadMessageID == "" {
		return errors.New(errors.ErrMissingRequiredField, "last_read_message_id is required")
	}
	if err := s.db.AdvanceReadCursor(ctx, dialogID, userID, req.LastReadMessageID); err != nil {
		return err
	}
	s.hub.BroadcastToDialog(ctx, dialogID, realtime.Frame(models.EventMessageRead, models.ReadEventData{
		DialogID: dialogID, UserID: userID, LastReadMessageID: req.LastReadMessageID,
	}))
	return nil
}
