package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/pohodnya/mtchat/internal/auth"
	"github.com/pohodnya/mtchat/internal/errors"
	"github.com/pohodnya/mtchat/internal/messageservice"
	"github.com/pohodnya/mtchat/internal/models"
	"github.com/pohodnya/mtchat/internal/validation"
)

// MessageHandler exposes the Chat API's message submission,
// pagination, edit, delete and read-cursor endpoints.
type MessageHandler struct {
	messages *messageservice.Service
}

func NewMessageHandler(messages *messageservice.Service) *MessageHandler {
	return &MessageHandler{messages: messages}
}

func (h *MessageHandler) Send(c *fiber.Ctx) error {
	dialogID := c.Params("dialogId")
	userID, err := auth.RequireUserID(c)
	if err != nil {
		return err
	}
	claim, err := auth.ExtractScopeClaim(c)
	if err != nil {
		return err
	}
	var req models.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.New(errors.ErrBadRequest, "invalid request body")
	}
	if err := validation.ValidateSendMessageRequest(req); err != nil {
		return err
	}

	message, err := h.messages.Send(c.Context(), dialogID, userID, req, claim)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(message)
}

func (h *MessageHandler) List(c *fiber.Ctx) error {
	dialogID := c.Params("dialogId")
	userID, err := auth.RequireUserID(c)
	if err != nil {
		return err
	}
	claim, err := auth.ExtractScopeClaim(c)
	if err != nil {
		return err
	}

	mode, anchorID, err := validation.ParsePaginationParams(c.Query("before"), c.Query("after"), c.Query("around"))
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if err := validation.ValidatePagination(limit, mode, anchorID); err != nil {
		return err
	}

	page, err := h.messages.List(c.Context(), dialogID, userID, mode, anchorID, limit, claim)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (h *MessageHandler) Edit(c *fiber.Ctx) error {
	dialogID := c.Params("dialogId")
	messageID := c.Params("messageId")
	userID, err := auth.RequireUserID(c)
	if err != nil {
		return err
	}
	claim, err := auth.ExtractScopeClaim(c)
	if err != nil {
		return err
	}
	var req models.EditMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.New(errors.ErrBadRequest, "invalid request body")
	}

	message, err := h.messages.Edit(c.Context(), dialogID, messageID, userID, req, claim)
	if err != nil {
		return err
	}
	return c.JSON(message)
}

func (h *MessageHandler) Delete(c *fiber.Ctx) error {
	dialogID := c.Params("dialogId")
	messageID := c.Params("messageId")
	userID, err := auth.RequireUserID(c)
	if err != nil {
		return err
	}
	claim, err := auth.ExtractScopeClaim(c)
	if err != nil {
		return err
	}
	if err := h.messages.Delete(c.Context(), dialogID, messageID, userID, claim); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *MessageHandler) AdvanceRead(c *fiber.Ctx) error {
	dialogID := c.Params("dialogId")
	userID, err := auth.RequireUserID(c)
	if err != nil {
		return err
	}
	claim, err := auth.ExtractScopeClaim(c)
	if err != nil {
		return err
	}
	var req models.AdvanceReadRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.New(errors.ErrBadRequest, "invalid request body")
	}
	if err := h.messages.AdvanceRead(c.Context(), dialogID, userID, req, claim); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
