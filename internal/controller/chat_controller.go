package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/pkg/serverutils"
	"ai-tutor-be/internal/service"
	"ai-tutor-be/pkg/fallback"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	SendMessage(ctx *fiber.Ctx) error
	Classify(ctx *fiber.Ctx) error
	Subjects(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
}

func NewChatController(chatService service.IChatService) IChatController {
	return &chatController{
		chatService: chatService,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/")
	h.Use(auth)
	h.Post("chat/message", c.SendMessage)
	h.Post("classify", c.Classify)
	h.Get("subjects", c.Subjects)
}

func (c *chatController) SendMessage(ctx *fiber.Ctx) error {
	userIdStr, _ := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	res, err := c.chatService.SendMessage(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}

	// Offline degradation keeps its envelope but signals the outage.
	status := fiber.StatusOK
	if res.FallbackLevel == fallback.FamilyOffline {
		status = fiber.StatusServiceUnavailable
	}
	return ctx.Status(status).JSON(serverutils.SuccessResponse("Success send message", res))
}

func (c *chatController) Classify(ctx *fiber.Ctx) error {
	var req dto.ClassifyRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	res := c.chatService.Classify(ctx.UserContext(), &req)
	return ctx.JSON(serverutils.SuccessResponse("Success classify query", res))
}

func (c *chatController) Subjects(ctx *fiber.Ctx) error {
	res := c.chatService.Subjects(ctx.UserContext())
	return ctx.JSON(serverutils.SuccessResponse("Success list subjects", res))
}
