package dto

import "time"

// UploadURLRequest payload.
type UploadURLRequest struct {
	ContentType string `json:"content_type"`
}

// UploadURLResponse payload.
type UploadURLResponse struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SetProfileImageRequest payload.
type SetProfileImageRequest struct {
	Key string `json:"key"`
}

// ProfileImageResponse payload.
type ProfileImageResponse struct {
	ProfileImage string `json:"profile_image"`
}

// VendorApprovalRequest payload.
type VendorApprovalRequest struct {
	Approved *bool `json:"approved"`
}
