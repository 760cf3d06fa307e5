package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/marketplace-api/internal/config"
)

func newTestStore(t *testing.T, endpoint string) *ImageStore {
	t.Helper()
	t.Setenv("AWS_CONFIG_FILE", "/nonexistent")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent")

	store, err := NewImageStore(context.Background(), config.StorageConfig{
		Bucket:          "images",
		Region:          "eu-west-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		UploadTTLMinute: 5,
	})
	require.NoError(t, err)
	return store
}

func TestPresignProfileUpload(t *testing.T) {
	store := newTestStore(t, "http://localhost:9000")

	up, err := store.PresignProfileUpload(context.Background(), "acc-1", "image/png")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(up.Key, "profile-images/acc-1/"))
	assert.True(t, strings.HasSuffix(up.Key, ".png"))
	assert.True(t, store.OwnsKey("acc-1", up.Key))

	u, err := url.Parse(up.URL)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/images/"+up.Key, u.Path)
	assert.Equal(t, "300", u.Query().Get("X-Amz-Expires"))
}

func TestPresignProfileUpload_RejectsNonImages(t *testing.T) {
	store := newTestStore(t, "")

	_, err := store.PresignProfileUpload(context.Background(), "acc-1", "application/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedContentType)
}

func TestOwnsKey(t *testing.T) {
	store := newTestStore(t, "")

	assert.False(t, store.OwnsKey("acc-1", "profile-images/acc-2/a.png"))
	assert.False(t, store.OwnsKey("acc-1", "profile-images/acc-1/"))
	assert.False(t, store.OwnsKey("acc-1", "profile-images/acc-1/../acc-2/a.png"))
	assert.False(t, store.OwnsKey("", "profile-images//a.png"))
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://images.s3.eu-west-1.amazonaws.com/profile-images/a/b.png",
		newTestStore(t, "").PublicURL("profile-images/a/b.png"))
	assert.Equal(t, "http://localhost:9000/images/profile-images/a/b.png",
		newTestStore(t, "http://localhost:9000/").PublicURL("profile-images/a/b.png"))
}

func TestNewImageStore_RequiresBucket(t *testing.T) {
	_, err := NewImageStore(context.Background(), config.StorageConfig{})
	assert.Error(t, err)
}
