package serverutils

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"ai-tutor-be/pkg/envelope"
)

// AppError is the service-layer error surfaced over HTTP. The kind maps to a
// status code; anything unknown becomes a 500.
type AppError struct {
	Kind       envelope.ErrorKind
	Message    string
	RetryAfter time.Duration
}

func (e *AppError) Error() string { return e.Message }

func NewAppError(kind envelope.ErrorKind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func statusFor(kind envelope.ErrorKind) int {
	switch kind {
	case envelope.KindPreconditionFailed:
		return fiber.StatusBadRequest
	case envelope.KindUnauthenticated:
		return fiber.StatusUnauthorized
	case envelope.KindQuotaExceeded:
		return fiber.StatusTooManyRequests
	case envelope.KindTransient:
		return fiber.StatusServiceUnavailable
	case envelope.KindPermanent:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandlerMiddleware converts AppErrors into JSON error responses.
// Unrecognized errors are masked; their details stay in the logs.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var appErr *AppError
		if errors.As(err, &appErr) {
			status := statusFor(appErr.Kind)
			if appErr.RetryAfter > 0 {
				secs := int(appErr.RetryAfter.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				ctx.Set("Retry-After", strconv.Itoa(secs))
			}
			return ctx.Status(status).JSON(ErrorResponse(status, appErr.Message))
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		}

		return ctx.Status(fiber.StatusInternalServerError).
			JSON(ErrorResponse(fiber.StatusInternalServerError, "Internal server error"))
	}
}
