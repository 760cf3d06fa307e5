package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-api/internal/auth"
	"github.com/spec-kit/marketplace-api/internal/config"
	"github.com/spec-kit/marketplace-api/internal/domain"
	"github.com/spec-kit/marketplace-api/internal/events"
	"github.com/spec-kit/marketplace-api/internal/repository"
	"github.com/spec-kit/marketplace-api/pkg/util/errorutil"
)

const (
	minPasswordLength = 8

	msgInvalidCredentials = "Invalid email or password"
	msgInvalidCode        = "Invalid or expired verification code"
)

// RegisterInput carries the fields accepted by every registration route. Role-specific
// fields are ignored for other roles.
type RegisterInput struct {
	Name         string
	Email        string
	Password     string
	Phone        string
	Address      string
	BusinessName string
}

// AuthService coordinates registration, verification and credential flows.
type AuthService struct {
	accounts    repository.AccountRepository
	otps        repository.OTPRepository
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	bcryptCost  int
	otpTTL      time.Duration
	maxAttempts int
	newCode     func() (string, error)
	now         func() time.Time

	comparePassword func(hashed, plain string) error
	decoyOnce       sync.Once
	decoyHash       string
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	AccountRepo repository.AccountRepository
	OTPRepo     repository.OTPRepository
	Dispatcher  events.Dispatcher
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxAttempts := cfg.OTPMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &AuthService{
		accounts:    deps.AccountRepo,
		otps:        deps.OTPRepo,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		bcryptCost:  cfg.BcryptCost,
		otpTTL:      cfg.OTPTTL(),
		maxAttempts: maxAttempts,
		newCode:     generateOTP,
		now:         time.Now,

		comparePassword: auth.ComparePassword,
	}
}

// Register creates an unverified account holding exactly role, together with its role
// record, and sends a verification code.
func (s *AuthService) Register(ctx context.Context, role domain.Role, in RegisterInput) (*domain.Account, error) {
	if !role.Valid() {
		return nil, errorutil.NewValidationError("unknown role", map[string]any{"role": string(role)})
	}
	email, err := validateRegistration(role, in)
	if err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, errorutil.NewInternalError(err)
	}

	account := &domain.Account{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Roles:        domain.NewRoleSet(role),
	}
	profile := newRoleProfile(role, in)
	if err := s.accounts.CreateWithProfile(ctx, account, profile); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, errorutil.NewConflict("Email already registered", map[string]any{"email": email})
		}
		return nil, errorutil.NewInternalError(err)
	}
	account.PasswordHash = ""

	s.publish(ctx, events.EventAccountRegistered, account.ID, events.AccountRegisteredPayload{Email: email, Role: role})
	if err := s.issueOTP(ctx, account, repository.OTPPurposeEmailVerification); err != nil {
		return nil, err
	}
	return account, nil
}

// VerifyEmail consumes a verification code and marks the account verified. The returned
// account is ready to have a session signed for it.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (*domain.Account, error) {
	email = normalizeEmail(email)
	if email == "" || strings.TrimSpace(code) == "" {
		return nil, errorutil.NewValidationError("email and code are required", nil)
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errorutil.NewValidationError(msgInvalidCode, nil)
		}
		return nil, errorutil.NewInternalError(err)
	}
	if account.EmailVerified {
		return nil, errorutil.NewConflict("Email already verified", nil)
	}

	if err := s.consumeOTP(ctx, repository.OTPPurposeEmailVerification, email, code); err != nil {
		return nil, err
	}

	if err := s.accounts.MarkEmailVerified(ctx, account.ID); err != nil {
		return nil, errorutil.NewInternalError(err)
	}
	account.EmailVerified = true
	account.PasswordHash = ""

	s.publish(ctx, events.EventEmailVerified, account.ID, events.EmailVerifiedPayload{Email: email})
	return account, nil
}

// ResendOTP issues a fresh code for an unverified account. Unknown and already verified
// emails succeed silently so the endpoint cannot be used to probe for accounts.
func (s *AuthService) ResendOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return errorutil.NewValidationError("email is required", nil)
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return errorutil.NewInternalError(err)
	}
	if account.EmailVerified {
		return nil
	}
	return s.issueOTP(ctx, account, repository.OTPPurposeEmailVerification)
}

// RequestPasswordReset sends a reset code to a verified account. Like ResendOTP it
// never reveals whether the email is registered.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return errorutil.NewValidationError("email is required", nil)
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return errorutil.NewInternalError(err)
	}
	if !account.EmailVerified {
		return nil
	}
	return s.issueOTP(ctx, account, repository.OTPPurposePasswordReset)
}

// ConfirmPasswordReset consumes a reset code and stores the new password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)
	if email == "" || strings.TrimSpace(code) == "" {
		return errorutil.NewValidationError("email and code are required", nil)
	}
	if len(newPassword) < minPasswordLength {
		return errorutil.NewValidationError("new password is too short", map[string]any{"min_length": minPasswordLength})
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorutil.NewValidationError(msgInvalidCode, nil)
		}
		return errorutil.NewInternalError(err)
	}
	if err := s.consumeOTP(ctx, repository.OTPPurposePasswordReset, email, code); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return errorutil.NewInternalError(err)
	}
	if err := s.accounts.UpdatePassword(ctx, account.ID, hash); err != nil {
		return accountLookupError(err)
	}

	s.publish(ctx, events.EventPasswordChanged, account.ID, nil)
	return nil
}

// Login checks credentials and returns the account to sign a session for.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Account, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, errorutil.NewValidationError("email and password are required", nil)
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Unknown emails pay for one bcrypt comparison, like a wrong password.
			_ = s.comparePassword(s.unknownAccountHash(), password)
			return nil, errorutil.NewUnauthorized(msgInvalidCredentials)
		}
		return nil, errorutil.NewInternalError(err)
	}
	if err := s.comparePassword(account.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, errorutil.NewUnauthorized(msgInvalidCredentials)
		}
		return nil, errorutil.NewInternalError(err)
	}
	if !account.EmailVerified {
		return nil, errorutil.NewForbidden("Email not verified")
	}

	account.PasswordHash = ""
	return account, nil
}

// ChangePassword verifies the current password before storing the new hash.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return errorutil.NewValidationError("new password is too short", map[string]any{"min_length": minPasswordLength})
	}

	currentHash, err := s.accounts.GetPasswordHash(ctx, accountID)
	if err != nil {
		return accountLookupError(err)
	}
	if err := s.comparePassword(currentHash, currentPassword); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return errorutil.NewValidationError("current password is incorrect", nil)
		}
		return errorutil.NewInternalError(err)
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return errorutil.NewInternalError(err)
	}
	if err := s.accounts.UpdatePassword(ctx, accountID, hash); err != nil {
		return accountLookupError(err)
	}

	s.publish(ctx, events.EventPasswordChanged, accountID, nil)
	return nil
}

// unknownAccountHash is a bcrypt hash at the configured cost that no password matches
// in practice.
func (s *AuthService) unknownAccountHash() string {
	s.decoyOnce.Do(func() {
		hash, err := auth.HashPassword(uuid.NewString(), s.bcryptCost)
		if err != nil {
			s.logger.Warn("decoy password hash", zap.Error(err))
			return
		}
		s.decoyHash = hash
	})
	return s.decoyHash
}

// DeleteAccount removes the account and, through the store, its role records.
func (s *AuthService) DeleteAccount(ctx context.Context, accountID string) error {
	if err := s.accounts.Delete(ctx, accountID); err != nil {
		return accountLookupError(err)
	}
	s.publish(ctx, events.EventAccountDeleted, accountID, nil)
	return nil
}

func (s *AuthService) consumeOTP(ctx context.Context, purpose repository.OTPPurpose, email, code string) error {
	err := s.otps.Verify(ctx, purpose, email, strings.TrimSpace(code), s.maxAttempts)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrOTPAttemptsExceeded):
		return errorutil.NewTooManyRequests("Too many attempts, request a new code")
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrOTPMismatch):
		return errorutil.NewValidationError(msgInvalidCode, nil)
	default:
		return errorutil.NewInternalError(err)
	}
}

func (s *AuthService) issueOTP(ctx context.Context, account *domain.Account, purpose repository.OTPPurpose) error {
	code, err := s.newCode()
	if err != nil {
		return errorutil.NewInternalError(err)
	}
	if err := s.otps.Save(ctx, purpose, account.Email, code, s.otpTTL); err != nil {
		return errorutil.NewInternalError(err)
	}
	s.publish(ctx, events.EventOTPIssued, account.ID, events.OTPIssuedPayload{
		Email:   account.Email,
		Name:    account.Name,
		Purpose: string(purpose),
		Code:    code,
		TTL:     s.otpTTL,
	})
	return nil
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, accountID string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	err := s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		AccountID: accountID,
		Timestamp: s.now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}

func validateRegistration(role domain.Role, in RegisterInput) (string, error) {
	details := map[string]any{}
	email := normalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		details["email"] = "must be a valid email address"
	}
	if strings.TrimSpace(in.Name) == "" {
		details["name"] = "is required"
	}
	if len(in.Password) < minPasswordLength {
		details["password"] = fmt.Sprintf("must be at least %d characters", minPasswordLength)
	}
	if role == domain.RoleVendor && strings.TrimSpace(in.BusinessName) == "" {
		details["business_name"] = "is required"
	}
	if len(details) > 0 {
		return "", errorutil.NewValidationError("invalid registration", details)
	}
	return email, nil
}

func newRoleProfile(role domain.Role, in RegisterInput) *domain.RoleProfile {
	profile := &domain.RoleProfile{Role: role}
	switch role {
	case domain.RoleUser:
		profile.Customer = &domain.Customer{Phone: strings.TrimSpace(in.Phone), Address: strings.TrimSpace(in.Address)}
	case domain.RoleVendor:
		profile.Vendor = &domain.Vendor{BusinessName: strings.TrimSpace(in.BusinessName)}
	case domain.RoleAdmin:
		profile.Admin = &domain.Admin{}
	}
	return profile
}

func accountLookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errorutil.NewNotFound("account", nil)
	}
	return errorutil.NewInternalError(err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
