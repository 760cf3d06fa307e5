package auth

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-api/internal/config"
	"github.com/spec-kit/marketplace-api/internal/domain"
)

// Cookie names carrying the two tokens.
const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

// SessionIssuer mints token pairs and writes them as http-only cookies.
type SessionIssuer struct {
	tokens *TokenCodec
	domain string
	secure bool
}

// NewSessionIssuer constructs an issuer scoped by the cookie configuration.
func NewSessionIssuer(tokens *TokenCodec, cfg config.CookieConfig) *SessionIssuer {
	return &SessionIssuer{tokens: tokens, domain: cfg.Domain, secure: cfg.Secure}
}

// SignSession signs both tokens for the account and sets the cookie pair. Nothing is
// written unless both tokens were signed.
func (s *SessionIssuer) SignSession(c *fiber.Ctx, account *domain.Account) error {
	access, err := s.tokens.Sign(AccessToken, account.ID, account.Roles)
	if err != nil {
		return fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.tokens.Sign(RefreshToken, account.ID, account.Roles)
	if err != nil {
		return fmt.Errorf("sign refresh token: %w", err)
	}

	c.Cookie(s.cookie(AccessCookie, access, s.tokens.TTL(AccessToken)))
	c.Cookie(s.cookie(RefreshCookie, refresh, s.tokens.TTL(RefreshToken)))
	return nil
}

// ClearSession expires both cookies using the attributes they were set with.
func (s *SessionIssuer) ClearSession(c *fiber.Ctx) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		cookie := s.cookie(name, "", 0)
		cookie.Expires = time.Unix(0, 0).UTC()
		c.Cookie(cookie)
	}
}

func (s *SessionIssuer) cookie(name, value string, ttl time.Duration) *fiber.Cookie {
	// Browsers drop SameSite=None without Secure, so local HTTP falls back to Lax.
	sameSite := fiber.CookieSameSiteLaxMode
	if s.secure {
		sameSite = fiber.CookieSameSiteNoneMode
	}
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   s.domain,
		MaxAge:   int(ttl.Seconds()),
		Secure:   s.secure,
		HTTPOnly: true,
		SameSite: sameSite,
	}
}
