package controller

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/pkg/serverutils"
	"ai-tutor-be/pkg/envelope"
	"ai-tutor-be/pkg/fallback"
)

// stubChatService replays a fixed response or error.
type stubChatService struct {
	res *dto.SendMessageResponse
	err error
}

func (s stubChatService) SendMessage(ctx context.Context, userId uuid.UUID, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	return s.res, s.err
}

func (s stubChatService) Classify(ctx context.Context, req *dto.ClassifyRequest) *dto.ClassifyResponse {
	return &dto.ClassifyResponse{}
}

func (s stubChatService) Subjects(ctx context.Context) []*dto.SubjectDTO { return nil }

func newChatApp(svc stubChatService) *fiber.App {
	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())

	auth := func(c *fiber.Ctx) error {
		c.Locals("user_id", uuid.NewString())
		return c.Next()
	}
	NewChatController(svc).RegisterRoutes(app.Group("/api"), auth)
	return app
}

func TestSendMessageSuccessIs200(t *testing.T) {
	app := newChatApp(stubChatService{res: &dto.SendMessageResponse{
		Answer:        "4",
		Mode:          "direct",
		FallbackLevel: fallback.FamilyPrimary,
		Timestamp:     time.Now().UTC(),
	}})

	req := httptest.NewRequest("POST", "/api/chat/message", strings.NewReader(`{"query":"What is 2 + 2?"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestSendMessageOfflineEnvelopeIs503(t *testing.T) {
	app := newChatApp(stubChatService{res: &dto.SendMessageResponse{
		Answer:        "All study backends are unreachable right now.",
		Mode:          "offline",
		FallbackLevel: fallback.FamilyOffline,
		Timestamp:     time.Now().UTC(),
	}})

	req := httptest.NewRequest("POST", "/api/chat/message", strings.NewReader(`{"query":"help"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	// The envelope still rides in the body.
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "unreachable")
	assert.Contains(t, string(body), `"fallback_level":4`)
}

func TestSendMessageRateLimitIs429(t *testing.T) {
	appErr := serverutils.NewAppError(envelope.KindQuotaExceeded, "rate limit reached; retry shortly")
	appErr.RetryAfter = 30 * time.Second
	app := newChatApp(stubChatService{err: appErr})

	req := httptest.NewRequest("POST", "/api/chat/message", strings.NewReader(`{"query":"help"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "30", resp.Header.Get("Retry-After"))
}
