package events

import (
	"time"

	"github.com/spec-kit/marketplace-api/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAccountRegistered EventType = "account_registered"
	EventOTPIssued         EventType = "otp_issued"
	EventEmailVerified     EventType = "email_verified"
	EventPasswordChanged   EventType = "password_changed"
	EventAccountDeleted    EventType = "account_deleted"
	EventVendorApproval    EventType = "vendor_approval_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	AccountID string      `json:"account_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// AccountRegisteredPayload payload.
type AccountRegisteredPayload struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// OTPIssuedPayload carries the code to the delivery channel. It is never logged.
type OTPIssuedPayload struct {
	Email   string        `json:"email"`
	Name    string        `json:"name"`
	Purpose string        `json:"purpose"`
	Code    string        `json:"-"`
	TTL     time.Duration `json:"ttl"`
}

// EmailVerifiedPayload payload.
type EmailVerifiedPayload struct {
	Email string `json:"email"`
}

// VendorApprovalPayload payload.
type VendorApprovalPayload struct {
	Approved   bool   `json:"approved"`
	ApprovedBy string `json:"approved_by"`
}
