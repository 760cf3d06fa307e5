package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-api/internal/api/dto"
	"github.com/spec-kit/marketplace-api/internal/auth"
	"github.com/spec-kit/marketplace-api/internal/domain"
	"github.com/spec-kit/marketplace-api/internal/service"
	"github.com/spec-kit/marketplace-api/pkg/util/errorutil"
)

// AuthHandler exposes registration, login and session endpoints.
type AuthHandler struct {
	auth   *service.AuthService
	issuer *auth.SessionIssuer
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, issuer *auth.SessionIssuer) *AuthHandler {
	return &AuthHandler{auth: authService, issuer: issuer}
}

// Register handles POST /auth/register/<role>.
func (h *AuthHandler) Register(role domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req dto.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid payload")
		}

		account, err := h.auth.Register(c.UserContext(), role, service.RegisterInput{
			Name:         req.Name,
			Email:        req.Email,
			Password:     req.Password,
			Phone:        req.Phone,
			Address:      req.Address,
			BusinessName: req.BusinessName,
		})
		if err != nil {
			return err
		}

		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"data": dto.RegisterResponse{
				Account: account,
				Message: "Verification code sent to " + account.Email,
			},
		})
	}
}

// VerifyEmail handles POST /auth/verify-email and signs the first session.
func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	var req dto.VerifyEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	account, err := h.auth.VerifyEmail(c.UserContext(), req.Email, req.Code)
	if err != nil {
		return err
	}
	if err := h.issuer.SignSession(c, account); err != nil {
		return errorutil.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.SessionResponse{Session: account}})
}

// ResendOTP handles POST /auth/otp/resend.
func (h *AuthHandler) ResendOTP(c *fiber.Ctx) error {
	var req dto.ResendOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := h.auth.ResendOTP(c.UserContext(), req.Email); err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"data": dto.MessageResponse{Message: "If the account exists and is unverified, a new code has been sent"},
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	account, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	if err := h.issuer.SignSession(c, account); err != nil {
		return errorutil.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.SessionResponse{Session: account}})
}

// Logout handles POST /auth/logout. It needs no session; it only expires the cookies.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.issuer.ClearSession(c)
	return c.JSON(fiber.Map{"data": dto.MessageResponse{Message: "Logged out"}})
}

// Session handles GET /auth/session.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": identity})
}

// ChangePassword handles POST /auth/password/change.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	if err := h.auth.ChangePassword(c.UserContext(), identity.Session.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.MessageResponse{Message: "Password updated"}})
}

// RequestPasswordReset handles POST /auth/password/reset/request.
func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := h.auth.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"data": dto.MessageResponse{Message: "If the account exists, a reset code has been sent"},
	})
}

// ConfirmPasswordReset handles POST /auth/password/reset/confirm. Existing sessions
// stay valid until their tokens expire.
func (h *AuthHandler) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := h.auth.ConfirmPasswordReset(c.UserContext(), req.Email, req.Code, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.MessageResponse{Message: "Password updated"}})
}

// DeleteAccount handles DELETE /auth/account.
func (h *AuthHandler) DeleteAccount(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	if err := h.auth.DeleteAccount(c.UserContext(), identity.Session.ID); err != nil {
		return err
	}
	h.issuer.ClearSession(c)
	return c.SendStatus(http.StatusNoContent)
}

func requireIdentity(c *fiber.Ctx) (*auth.Identity, error) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok || identity.Session == nil {
		return nil, errorutil.NewUnauthorized(auth.MsgTokensRequired)
	}
	return identity, nil
}
