package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-api/internal/domain"
)

const identityKey = "auth_identity"

// Identity is what a protected handler sees once the gate accepts a request.
type Identity struct {
	Session       *domain.Account     `json:"session"`
	SessionClient *domain.RoleProfile `json:"sessionClient"`
}

// IdentityFromContext retrieves the authenticated identity.
func IdentityFromContext(c *fiber.Ctx) (*Identity, bool) {
	val := c.Locals(identityKey)
	if val == nil {
		return nil, false
	}
	identity, ok := val.(*Identity)
	return identity, ok
}
