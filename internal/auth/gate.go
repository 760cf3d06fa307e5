package auth

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-api/internal/domain"
	apperrors "github.com/spec-kit/marketplace-api/pkg/util/errorutil"
)

// Rejection messages surfaced to clients.
const (
	MsgTokensRequired = "Authentication tokens required"
	MsgInvalidTokens  = "Invalid authentication tokens"
	MsgSessionCleared = "Session cleared due to invalid credentials"
)

// SessionLookup resolves a verified subject to its records.
type SessionLookup interface {
	LoadSession(ctx context.Context, subjectID string) (*domain.Account, error)
	LoadRoleProfile(ctx context.Context, subjectID string, roles domain.RoleSet) (*domain.RoleProfile, error)
}

// Gate authenticates requests from the cookie pair, rotates the pair when only the
// refresh token is still good, and enforces a required role.
type Gate struct {
	tokens   *TokenCodec
	issuer   *SessionIssuer
	sessions SessionLookup
	logger   *zap.Logger
}

// NewGate constructs the gate.
func NewGate(tokens *TokenCodec, issuer *SessionIssuer, sessions SessionLookup, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{tokens: tokens, issuer: issuer, sessions: sessions, logger: logger}
}

// Authenticate accepts any authenticated principal.
func (g *Gate) Authenticate() fiber.Handler {
	return g.handler("")
}

// Require accepts only principals whose account holds role.
func (g *Gate) Require(role domain.Role) fiber.Handler {
	if !role.Valid() {
		panic(fmt.Sprintf("auth: gate configured with unknown role %q", role))
	}
	return g.handler(role)
}

func (g *Gate) handler(required domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, err := g.authorize(c, required)
		if err != nil {
			return err
		}
		c.Locals(identityKey, identity)
		return c.Next()
	}
}

// authorize runs the gate state machine. Any error clears both cookies before it is returned.
func (g *Gate) authorize(c *fiber.Ctx, required domain.Role) (identity *Identity, err error) {
	defer func() {
		if err != nil {
			g.issuer.ClearSession(c)
			g.logger.Debug("session rejected",
				zap.String("path", c.Path()),
				zap.String("code", apperrors.KindOf(err)),
				zap.Error(err))
		}
	}()

	ctx := c.UserContext()
	accessRaw := c.Cookies(AccessCookie)
	refreshRaw := c.Cookies(RefreshCookie)

	if accessRaw == "" && refreshRaw == "" {
		return nil, apperrors.NewUnauthorized(MsgTokensRequired)
	}

	var (
		payload *Payload
		account *domain.Account
	)

	if accessRaw != "" {
		if p, verr := g.tokens.Verify(AccessToken, accessRaw); verr == nil {
			payload = p
		}
	}

	if payload == nil {
		if refreshRaw == "" {
			return nil, apperrors.NewUnauthorized(MsgInvalidTokens)
		}
		p, verr := g.tokens.Verify(RefreshToken, refreshRaw)
		if verr != nil {
			return nil, apperrors.NewUnauthorizedWithCause(MsgSessionCleared, verr)
		}

		account, err = g.sessions.LoadSession(ctx, p.SubjectID)
		if err != nil {
			return nil, err
		}
		if err = g.issuer.SignSession(c, account); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		g.logger.Debug("session rotated", zap.String("subject_id", p.SubjectID))
		payload = p
	}

	if account == nil {
		if account, err = g.sessions.LoadSession(ctx, payload.SubjectID); err != nil {
			return nil, err
		}
	}
	profile, err := g.sessions.LoadRoleProfile(ctx, account.ID, account.Roles)
	if err != nil {
		return nil, err
	}

	if required != "" && !account.Roles.Has(required) {
		return nil, apperrors.NewUnauthorized(fmt.Sprintf("Access denied: %s role required", required))
	}

	return &Identity{Session: account, SessionClient: profile}, nil
}
