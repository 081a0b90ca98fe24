package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"ai-tutor-be/internal/pkg/serverutils"
	"ai-tutor-be/internal/service"
)

type IStatusController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	GetStatus(ctx *fiber.Ctx) error
}

type statusController struct {
	statusService service.IStatusService
}

func NewStatusController(statusService service.IStatusService) IStatusController {
	return &statusController{
		statusService: statusService,
	}
}

func (c *statusController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/")
	h.Use(auth)
	h.Get("status", c.GetStatus)
}

func (c *statusController) GetStatus(ctx *fiber.Ctx) error {
	userIdStr, _ := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	res := c.statusService.GetStatus(ctx.UserContext(), userId)
	return ctx.JSON(serverutils.SuccessResponse("Success get status", res))
}
