package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/pohodnya/mtchat/internal/auth"
	"github.com/pohodnya/mtchat/internal/dialogservice"
	"github.com/pohodnya/mtchat/internal/errors"
	"github.com/pohodnya/mtchat/internal/models"
	"github.com/pohodnya/mtchat/internal/validation"
)

// DialogHandler exposes the end-user-facing Chat API for dialog
// membership and per-participant preferences.
type DialogHandler struct {
	dialogs *dialogservice.Service
}

func NewDialogHandler(dialogs *dialogservice.Service) *DialogHandler {
	return &DialogHandler{dialogs: dialogs}
}

func (h *DialogHandler) ListParticipating(c *fiber.Ctx) error {
	userID, err := auth.RequireUserID(c)
	if err != nil {
		return err
	}
	archived := models.ArchivedFilter(c.Query("archived", string(models.ArchivedExclude)))
	search := c.Query("search")
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	dialogs, err := h.dialogs.ListParticipating(c.Context(), userID, archived, search, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"dialogs": dialogs})
}

func (h *DialogHandler) ListAvailable(c *fiber.Ctx) error {
	userID, err := auth.RequireUserID(c)
	if err != nil {
		return err
	}
	claim, err := auth.ExtractScopeClaim(c)
	if err != nil {
		return err
	}
	if claim == nil {
		return errors.New(errors.ErrMissingRequiredField, "X-Scope-Config is required to list available dialogs")
	}
	search := c.Query("search")
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	dialogs, err := h.dialogs.ListAvailable(c.Context(), userID, claim, search, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"dialogs": dialogs})
}

func (h *DialogHandler) GetByObject(c *fiber.Ctx) error {
	userID, err := auth.RequireUserID(c)
	if err != nil {
		return err
	}
	claim, err := auth.ExtractScopeClaim(c)
	if err != nil {
		return err
	}
	objectType := c.Query("object_type")
	objectID := c.Query("object_id")
	if err := validation.ValidateObjectIDAndType(objectType, objectID); err != nil {
		return err
	}

	summary, err := h.dialogs.GetByObject(c.Context(), userID, objectType, objectID, claim)
	if err != nil {
		return err
	}
	return c.JSON(models.ByObjectResponse{Dialog: summary, CanJoin: summary.CanJoin})
}

// GetDetail returns dialog metadata for a caller who is at least a
// potential member — participants and potential members alike need
// this to render a dialog before deciding whether to join it.
func (h *DialogHandler) GetDetail(c *fiber.Ctx) error {
	dialogID := c.Params("dialogId")
	userID, err := auth.RequireUserID(c)
	if err != nil {
		return err
	}
	claim, err := auth.ExtractScopeClaim(c)
	if err != nil {
		return err
	}
	detail, err := h.dialogs.GetDetailForUser(c.Context(), dialogID, userID, claim)
	if err != nil {
		return err
	}
	return c.JSON(detail)
}

// ListParticipants returns the participant roster, participants only.
func (h *DialogHandler) ListParticipants(c *fiber.Ctx) error {
	dialogID := c.Params("dialogId")
	userID, err := auth.RequireUserID(c)
	if err != nil {
		return err
	}
	claim, err := auth.ExtractScopeClaim(c)
	if err != nil {
		return err
	}
	participants, err := h.dialogs.ListParticipantsForUser(c.Context(), dialogID, userID, claim)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"participants": participants})
}

func (h *DialogHandler) Join(c *fiber.Ctx) error {
	dialogID := c.Params("dialogId")
	userID, err := auth.RequireUserID(c)
	if err != nil {
		return err
	}
	claim, err := auth.ExtractScopeClaim(c)
	if err != nil {
		return err
	}
	var req models.JoinDialogRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.New(errors.ErrBadRequest, "invalid request body")
	}
	if err := h.dialogs.Join(c.Context(), dialogID, userID, req, claim); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *DialogHandler) Leave(c *fiber.Ctx) error {
	dialogID := c.Params("dialogId")
	userID, err := auth.RequireUserID(c)
	if err != nil {
		return err
	}
	if err := h.dialogs.Leave(c.Context(), dialogID, userID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *DialogHandler) Archive(c *fiber.Ctx) error {
	return h.toggle(c, h.dialogs.Archive)
}

func (h *DialogHandler) Unarchive(c *fiber.Ctx) error {
	return h.toggle(c, h.dialogs.Unarchive)
}

func (h *DialogHandler) Pin(c *fiber.Ctx) error {
	return h.toggle(c, h.dialogs.Pin)
}

func (h *DialogHandler) Unpin(c *fiber.Ctx) error {
	return h.toggle(c, h.dialogs.Unpin)
}

func (h *DialogHandler) Mute(c *fiber.Ctx) error {
	return h.toggle(c, h.dialogs.Mute)
}

func (h *DialogHandler) Unmute(c *fiber.Ctx) error {
	return h.toggle(c, h.dialogs.Unmute)
}

func (h *DialogHandler) toggle(c *fiber.Ctx, op func(ctx context.Context, dialogID, userID string) error) error {
	dialogID := c.Params("dialogId")
	userID, err := auth.RequireUserID(c)
	if err != nil {
		return err
	}
	if err := op(c.Context(), dialogID, userID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
