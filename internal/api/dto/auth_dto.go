package dto

import "github.com/spec-kit/marketplace-api/internal/domain"

// RegisterRequest is accepted by every /auth/register/:role route.
type RegisterRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	BusinessName string `json:"business_name"`
}

// VerifyEmailRequest payload.
type VerifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// ResendOTPRequest payload.
type ResendOTPRequest struct {
	Email string `json:"email"`
}

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// PasswordResetRequest asks for a reset code.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordResetConfirmRequest payload.
type PasswordResetConfirmRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

// SessionResponse is returned once session cookies have been written.
type SessionResponse struct {
	Session *domain.Account `json:"session"`
}

// RegisterResponse tells the client where the verification code went.
type RegisterResponse struct {
	Account *domain.Account `json:"account"`
	Message string          `json:"message"`
}

// MessageResponse payload.
type MessageResponse struct {
	Message string `json:"message"`
}
