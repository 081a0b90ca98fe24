package serverutils

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-signing-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newAuthApp() *fiber.App {
	app := fiber.New()
	app.Get("/me", JwtMiddleware(testSecret), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": c.Locals("user_id")})
	})
	return app
}

func TestJwtMiddleware(t *testing.T) {
	app := newAuthApp()

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{
			name:   "valid token",
			header: "Bearer " + signToken(t, testSecret, jwt.MapClaims{"user_id": "8f14e45f-ea1a-4f6b-9f40-000000000001"}),
			want:   fiber.StatusOK,
		},
		{
			name: "missing header",
			want: fiber.StatusUnauthorized,
		},
		{
			name:   "malformed header",
			header: "Token abc",
			want:   fiber.StatusUnauthorized,
		},
		{
			name:   "wrong secret",
			header: "Bearer " + signToken(t, "some-other-secret", jwt.MapClaims{"user_id": "u"}),
			want:   fiber.StatusUnauthorized,
		},
		{
			name:   "no user_id claim",
			header: "Bearer " + signToken(t, testSecret, jwt.MapClaims{"sub": "u"}),
			want:   fiber.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
