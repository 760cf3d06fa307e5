package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/marketplace-api/internal/config"
	"github.com/spec-kit/marketplace-api/internal/domain"
	"github.com/spec-kit/marketplace-api/internal/events"
	"github.com/spec-kit/marketplace-api/internal/repository/repositorytest"
	"github.com/spec-kit/marketplace-api/internal/storage"
	"github.com/spec-kit/marketplace-api/pkg/util/errorutil"
)

func newImageStore(t *testing.T) *storage.ImageStore {
	t.Helper()
	t.Setenv("AWS_CONFIG_FILE", "/nonexistent")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent")

	images, err := storage.NewImageStore(context.Background(), config.StorageConfig{
		Bucket:          "images",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)
	return images
}

func TestProfileImage_UploadThenSet(t *testing.T) {
	store := repositorytest.NewStore()
	store.Seed("u1", domain.RoleUser)
	svc := NewAccountService(store, store, newImageStore(t), nil, nil)
	ctx := context.Background()

	upload, err := svc.CreateProfileImageUpload(ctx, "u1", "image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(upload.Key, "profile-images/u1/"))

	imageURL, err := svc.SetProfileImage(ctx, "u1", upload.Key)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/images/"+upload.Key, imageURL)

	account, _ := store.Account("u1")
	assert.Equal(t, imageURL, account.ProfileImage)
}

func TestProfileImage_Rejections(t *testing.T) {
	store := repositorytest.NewStore()
	store.Seed("u1", domain.RoleUser)
	svc := NewAccountService(store, store, newImageStore(t), nil, nil)
	ctx := context.Background()

	_, err := svc.CreateProfileImageUpload(ctx, "u1", "text/html")
	assert.Equal(t, errorutil.CodeValidation, errorutil.KindOf(err))

	_, err = svc.SetProfileImage(ctx, "u1", "profile-images/u2/stolen.png")
	assert.Equal(t, errorutil.CodeValidation, errorutil.KindOf(err))

	_, err = svc.SetProfileImage(ctx, "gone", "profile-images/gone/a.png")
	assert.Equal(t, errorutil.CodeNotFound, errorutil.KindOf(err))
}

func TestProfileImage_StorageNotConfigured(t *testing.T) {
	store := repositorytest.NewStore()
	svc := NewAccountService(store, store, nil, nil, nil)

	_, err := svc.CreateProfileImageUpload(context.Background(), "u1", "image/png")
	assert.Equal(t, errorutil.CodeUnavailable, errorutil.KindOf(err))
}

func TestSetVendorApproval(t *testing.T) {
	const (
		vendorID = "6f1c2a8e-3b4d-4e5f-9a0b-1c2d3e4f5a6b"
		userID   = "0b9a8c7d-6e5f-4a3b-8c2d-1e0f9a8b7c6d"
	)
	store := repositorytest.NewStore()
	store.Seed(vendorID, domain.RoleVendor)
	store.Seed(userID, domain.RoleUser)

	dispatcher := events.NewInMemoryDispatcher()
	var got []events.VendorApprovalPayload
	dispatcher.Subscribe(events.EventVendorApproval, func(_ context.Context, e events.Event) error {
		got = append(got, e.Payload.(events.VendorApprovalPayload))
		return nil
	})
	svc := NewAccountService(store, store, nil, dispatcher, nil)
	ctx := context.Background()

	require.NoError(t, svc.SetVendorApproval(ctx, "a1", vendorID, true))
	vendor, err := store.GetVendorByAccountID(ctx, vendorID)
	require.NoError(t, err)
	assert.True(t, vendor.Approved)
	assert.True(t, vendor.Active)
	assert.Equal(t, []events.VendorApprovalPayload{{Approved: true, ApprovedBy: "a1"}}, got)

	err = svc.SetVendorApproval(ctx, "a1", userID, true)
	assert.Equal(t, errorutil.CodeNotFound, errorutil.KindOf(err))

	err = svc.SetVendorApproval(ctx, "a1", "", true)
	assert.Equal(t, errorutil.CodeValidation, errorutil.KindOf(err))
}

func TestSetVendorApproval_MalformedIDIsNotFound(t *testing.T) {
	store := repositorytest.NewStore()
	store.Seed("v1", domain.RoleVendor)
	store.Err = errors.New("invalid input syntax for type uuid")
	svc := NewAccountService(store, store, nil, nil, nil)

	err := svc.SetVendorApproval(context.Background(), "a1", "v1", true)
	assert.Equal(t, errorutil.CodeNotFound, errorutil.KindOf(err))
}
