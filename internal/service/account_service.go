package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-api/internal/events"
	"github.com/spec-kit/marketplace-api/internal/repository"
	"github.com/spec-kit/marketplace-api/internal/storage"
	"github.com/spec-kit/marketplace-api/pkg/util/errorutil"
)

var errUnavailableStorage = errorutil.NewUnavailable("image storage is not configured")

// ImageStorage issues upload URLs and validates the keys clients hand back.
type ImageStorage interface {
	PresignProfileUpload(ctx context.Context, accountID, contentType string) (*storage.Upload, error)
	OwnsKey(accountID, key string) bool
	PublicURL(key string) string
}

// AccountService manages account attributes outside the credential flows.
type AccountService struct {
	accounts   repository.AccountRepository
	profiles   repository.ProfileRepository
	images     ImageStorage
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAccountService builds the service. images may be nil when no bucket is configured.
func NewAccountService(accounts repository.AccountRepository, profiles repository.ProfileRepository, images ImageStorage, dispatcher events.Dispatcher, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		accounts:   accounts,
		profiles:   profiles,
		images:     images,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// CreateProfileImageUpload presigns an upload slot owned by the account.
func (s *AccountService) CreateProfileImageUpload(ctx context.Context, accountID, contentType string) (*storage.Upload, error) {
	if s.images == nil {
		return nil, errUnavailableStorage
	}
	upload, err := s.images.PresignProfileUpload(ctx, accountID, contentType)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedContentType) {
			return nil, errorutil.NewValidationError("unsupported content type", map[string]any{"content_type": contentType})
		}
		return nil, errorutil.NewInternalError(err)
	}
	return upload, nil
}

// SetProfileImage stores the public URL of an uploaded object on the account.
func (s *AccountService) SetProfileImage(ctx context.Context, accountID, key string) (string, error) {
	if s.images == nil {
		return "", errUnavailableStorage
	}
	if !s.images.OwnsKey(accountID, key) {
		return "", errorutil.NewValidationError("invalid image key", map[string]any{"key": key})
	}
	imageURL := s.images.PublicURL(key)
	if err := s.accounts.UpdateProfileImage(ctx, accountID, imageURL); err != nil {
		return "", accountLookupError(err)
	}
	return imageURL, nil
}

// SetVendorApproval approves or suspends a vendor on behalf of an admin.
func (s *AccountService) SetVendorApproval(ctx context.Context, adminID, vendorAccountID string, approved bool) error {
	if vendorAccountID == "" {
		return errorutil.NewValidationError("vendor id is required", nil)
	}
	// Account ids are UUIDs; anything else cannot name a vendor.
	if _, err := uuid.Parse(vendorAccountID); err != nil {
		return errorutil.NewNotFound("vendor", map[string]any{"id": vendorAccountID})
	}
	if err := s.profiles.SetVendorApproval(ctx, vendorAccountID, approved); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorutil.NewNotFound("vendor", map[string]any{"id": vendorAccountID})
		}
		return errorutil.NewInternalError(err)
	}

	s.logger.Info("vendor approval changed",
		zap.String("vendor_account_id", vendorAccountID),
		zap.String("admin_id", adminID),
		zap.Bool("approved", approved))

	if s.dispatcher != nil {
		err := s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventVendorApproval,
			AccountID: vendorAccountID,
			Timestamp: time.Now().UTC(),
			Payload:   events.VendorApprovalPayload{Approved: approved, ApprovedBy: adminID},
		})
		if err != nil {
			s.logger.Warn("event handler failed", zap.String("event_type", string(events.EventVendorApproval)), zap.Error(err))
		}
	}
	return nil
}
