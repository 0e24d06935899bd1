package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pohodnya/mtchat/internal/access"
	"github.com/pohodnya/mtchat/internal/auth"
	"github.com/pohodnya/mtchat/internal/database"
	"github.com/pohodnya/mtchat/internal/errors"
	"github.com/pohodnya/mtchat/internal/models"
	"github.com/pohodnya/mtchat/internal/objectstore"
)

// UploadHandler presigns attachment uploads and downloads. Every
// route requires the caller to already be a dialog participant.
type UploadHandler struct {
	store     *objectstore.Store
	evaluator *access.Evaluator
	db        *database.DB
}

func NewUploadHandler(store *objectstore.Store, evaluator *access.Evaluator, db *database.DB) *UploadHandler {
	return &UploadHandler{store: store, evaluator: evaluator, db: db}
}

func (h *UploadHandler) PresignUpload(c *fiber.Ctx) error {
	dialogID := c.Params("dialogId")
	userID, err := auth.RequireUserID(c)
	if err != nil {
		return err
	}
	claim, err := auth.ExtractScopeClaim(c)
	if err != nil {
		return err
	}
	if err := h.evaluator.RequireParticipant(c.Context(), userID, dialogID, claim); err != nil {
		return err
	}
	if !h.store.Configured() {
		return errors.New(errors.ErrDependencyUnavailable, "attachment uploads are not configured")
	}

	var req struct {
		ContentType string `json:"content_type"`
	}
	if err := c.BodyParser(&req); err != nil {
		return errors.New(errors.ErrBadRequest, "invalid request body")
	}
	if req.ContentType == "" || !models.AllowedAttachmentContentTypes[req.ContentType] {
		return errors.New(errors.ErrUnsupportedMedia, "content_type is missing or not allowed")
	}

	url, objectKey, expiresAt, err := h.store.PresignUpload(c.Context(), dialogID, req.ContentType)
	if err != nil {
		return err
	}
	return c.JSON(models.PresignResponse{
		UploadURL: url,
		ObjectKey: objectKey,
		ExpiresIn: int(time.Until(expiresAt).Seconds()),
	})
}

// PresignDownload mints a download URL for one attachment by id. The
// attachment's owning dialog is resolved server-side (via its message)
// rather than trusted from the caller, so a participant of dialog A
// can never mint a URL for an object_key that only ever belonged to
// dialog B.
func (h *UploadHandler) PresignDownload(c *fiber.Ctx) error {
	attachmentID := c.Params("attachmentId")
	userID, err := auth.RequireUserID(c)
	if err != nil {
		return err
	}
	claim, err := auth.ExtractScopeClaim(c)
	if err != nil {
		return err
	}
	if !h.store.Configured() {
		return errors.New(errors.ErrDependencyUnavailable, "attachment downloads are not configured")
	}

	attachment, err := h.db.GetAttachment(c.Context(), attachmentID)
	if err != nil {
		return err
	}
	message, err := h.db.GetMessage(c.Context(), attachment.MessageID)
	if err != nil {
		return err
	}
	if err := h.evaluator.RequireParticipant(c.Context(), userID, message.DialogID, claim); err != nil {
		return err
	}

	url, expiresAt, err := h.store.PresignDownload(c.Context(), attachment.ObjectKey)
	if err != nil {
		return err
	}
	return c.JSON(models.DownloadURLResponse{
		URL:       url,
		ExpiresIn: int(time.Until(expiresAt).Seconds()),
	})
}
