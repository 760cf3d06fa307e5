package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-api/internal/api/dto"
	"github.com/spec-kit/marketplace-api/internal/service"
	"github.com/spec-kit/marketplace-api/pkg/util/errorutil"
)

// AccountHandler exposes profile image and moderation endpoints.
type AccountHandler struct {
	accounts *service.AccountService
}

// NewAccountHandler constructs handler.
func NewAccountHandler(accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// CreateUploadURL handles POST /account/profile-image/upload-url.
func (h *AccountHandler) CreateUploadURL(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	var req dto.UploadURLRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	upload, err := h.accounts.CreateProfileImageUpload(c.UserContext(), identity.Session.ID, req.ContentType)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.UploadURLResponse{Key: upload.Key, URL: upload.URL, ExpiresAt: upload.ExpiresAt},
	})
}

// SetProfileImage handles PUT /account/profile-image.
func (h *AccountHandler) SetProfileImage(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	var req dto.SetProfileImageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	imageURL, err := h.accounts.SetProfileImage(c.UserContext(), identity.Session.ID, req.Key)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ProfileImageResponse{ProfileImage: imageURL}})
}

// SetVendorApproval handles PATCH /admin/vendors/:id/approval.
func (h *AccountHandler) SetVendorApproval(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	var req dto.VendorApprovalRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Approved == nil {
		return errorutil.NewValidationError("approved is required", nil)
	}

	if err := h.accounts.SetVendorApproval(c.UserContext(), identity.Session.ID, c.Params("id"), *req.Approved); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.MessageResponse{Message: "Vendor approval updated"}})
}

// Me handles GET /users/me, /vendors/me and /admin/me with the role record the gate
// resolved for the session.
func (h *AccountHandler) Me(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": identity.SessionClient})
}
