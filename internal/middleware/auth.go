package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/TutorLinkBack/internal/models"
	"github.com/saeid-a/TutorLinkBack/pkg/utils"
)

const (
	LocalUserID = "user_id"
	LocalRole   = "role"
)

// AuthRequired accepts a bearer token in the Authorization header. When
// allowQuery is set, a ?token= parameter is also accepted, which browsers
// need for WebSocket handshakes.
func AuthRequired(secret string, allowQuery ...bool) fiber.Handler {
	queryAllowed := len(allowQuery) > 0 && allowQuery[0]

	return func(c *fiber.Ctx) error {
		tokenString, msg := bearerToken(c.Get("Authorization"))
		if tokenString == "" && queryAllowed {
			tokenString = strings.TrimSpace(c.Query("token"))
		}
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": msg,
			})
		}

		claims, err := utils.ValidateToken(tokenString, secret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalRole, claims.Role)

		return c.Next()
	}
}

// ParticipantsOnly rejects any role that cannot take part in a conversation.
func ParticipantsOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(LocalRole).(string)
		if role != models.RoleParent && role != models.RoleTutor {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
		}
		return c.Next()
	}
}

func bearerToken(header string) (string, string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", "Missing authorization header"
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Invalid authorization header format"
	}
	return parts[1], ""
}
