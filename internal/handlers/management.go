package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pohodnya/mtchat/internal/dialogservice"
	"github.com/pohodnya/mtchat/internal/errors"
	"github.com/pohodnya/mtchat/internal/models"
	"github.com/pohodnya/mtchat/internal/validation"
)

// ManagementHandler exposes the host-application-facing API: creating
// dialogs, seeding/removing participants, and replacing access scopes.
// Every route here sits behind auth.AdminMiddleware.
type ManagementHandler struct {
	dialogs *dialogservice.Service
}

func NewManagementHandler(dialogs *dialogservice.Service) *ManagementHandler {
	return &ManagementHandler{dialogs: dialogs}
}

func (h *ManagementHandler) CreateDialog(c *fiber.Ctx) error {
	var req models.CreateDialogRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.New(errors.ErrBadRequest, "invalid request body")
	}
	if err := validation.ValidateCreateDialogRequest(req); err != nil {
		return err
	}
	for _, p := range req.Participants {
		if err := validation.ValidateSeedParticipant(p); err != nil {
			return err
		}
	}
	for _, s := range req.AccessScopes {
		if err := validation.ValidateAccessScopeRequest(s); err != nil {
			return err
		}
	}

	detail, err := h.dialogs.Create(c.Context(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(detail)
}

func (h *ManagementHandler) GetDialog(c *fiber.Ctx) error {
	dialogID := c.Params("dialogId")
	detail, err := h.dialogs.GetDetail(c.Context(), dialogID)
	if err != nil {
		return err
	}
	return c.JSON(detail)
}

func (h *ManagementHandler) DeleteDialog(c *fiber.Ctx) error {
	dialogID := c.Params("dialogId")
	if err := h.dialogs.Delete(c.Context(), dialogID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ManagementHandler) AddParticipant(c *fiber.Ctx) error {
	dialogID := c.Params("dialogId")
	var req models.SeedParticipantRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.New(errors.ErrBadRequest, "invalid request body")
	}
	if err := validation.ValidateSeedParticipant(req); err != nil {
		return err
	}
	if err := h.dialogs.AddParticipant(c.Context(), dialogID, req); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusCreated)
}

func (h *ManagementHandler) RemoveParticipant(c *fiber.Ctx) error {
	dialogID := c.Params("dialogId")
	userID := c.Params("userId")
	if err := h.dialogs.RemoveParticipant(c.Context(), dialogID, userID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ManagementHandler) ReplaceScopes(c *fiber.Ctx) error {
	dialogID := c.Params("dialogId")
	var req struct {
		AccessScopes []models.AccessScopeRequest `json:"access_scopes"`
	}
	if err := c.BodyParser(&req); err != nil {
		return errors.New(errors.ErrBadRequest, "invalid request body")
	}
	for _, s := range req.AccessScopes {
		if err := validation.ValidateAccessScopeRequest(s); err != nil {
			return err
		}
	}
	if err := h.dialogs.ReplaceScopes(c.Context(), dialogID, req.AccessScopes); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
