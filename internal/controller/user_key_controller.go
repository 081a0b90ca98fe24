package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/pkg/serverutils"
	"ai-tutor-be/internal/service"
)

type IUserKeyController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	PutKeys(ctx *fiber.Ctx) error
}

type userKeyController struct {
	keyService service.IUserKeyService
}

func NewUserKeyController(keyService service.IUserKeyService) IUserKeyController {
	return &userKeyController{
		keyService: keyService,
	}
}

func (c *userKeyController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/user")
	h.Use(auth)
	h.Put("keys", c.PutKeys)
}

func (c *userKeyController) PutKeys(ctx *fiber.Ctx) error {
	userIdStr, _ := ctx.Locals("user_id").(string)
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid user")
	}

	var req dto.PutUserKeysRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	res, err := c.keyService.PutKeys(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success update keys", res))
}
