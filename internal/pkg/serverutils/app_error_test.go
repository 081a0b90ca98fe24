package serverutils

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-tutor-be/pkg/envelope"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind envelope.ErrorKind
		want int
	}{
		{envelope.KindPreconditionFailed, fiber.StatusBadRequest},
		{envelope.KindUnauthenticated, fiber.StatusUnauthorized},
		{envelope.KindQuotaExceeded, fiber.StatusTooManyRequests},
		{envelope.KindTransient, fiber.StatusServiceUnavailable},
		{envelope.KindPermanent, fiber.StatusBadGateway},
		{envelope.ErrorKind("something-new"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.kind), "kind %q", tt.kind)
	}
}

func newErrorApp(handler fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/boom", handler)
	return app
}

func TestErrorHandlerMapsAppError(t *testing.T) {
	app := newErrorApp(func(c *fiber.Ctx) error {
		return NewAppError(envelope.KindPreconditionFailed, "query must not be empty")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestErrorHandlerSetsRetryAfter(t *testing.T) {
	app := newErrorApp(func(c *fiber.Ctx) error {
		return &AppError{
			Kind:       envelope.KindQuotaExceeded,
			Message:    "daily limit reached",
			RetryAfter: 90 * time.Second,
		}
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "90", resp.Header.Get("Retry-After"))
}

func TestErrorHandlerMasksUnknownErrors(t *testing.T) {
	app := newErrorApp(func(c *fiber.Ctx) error {
		return assert.AnError
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestValidateRequest(t *testing.T) {
	type body struct {
		Query string `validate:"required"`
		Limit int    `validate:"max=10"`
	}

	assert.NoError(t, ValidateRequest(body{Query: "q", Limit: 5}))

	err := ValidateRequest(body{Limit: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Query")
	assert.Contains(t, err.Error(), "required")

	err = ValidateRequest(body{Query: "q", Limit: 50})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max")
}
