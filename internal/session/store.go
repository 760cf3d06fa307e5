// Package session resolves verified token subjects to their authoritative account and
// role-specific records.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/spec-kit/marketplace-api/internal/domain"
	"github.com/spec-kit/marketplace-api/internal/repository"
	apperrors "github.com/spec-kit/marketplace-api/pkg/util/errorutil"
)

// MsgInvalidSessionClient is returned when a verified subject has no account.
const MsgInvalidSessionClient = "Invalid session client"

// Store looks up session and role records.
type Store struct {
	accounts repository.AccountRepository
	profiles repository.ProfileRepository
}

// NewStore constructs a Store.
func NewStore(accounts repository.AccountRepository, profiles repository.ProfileRepository) *Store {
	return &Store{accounts: accounts, profiles: profiles}
}

// LoadSession fetches the account for subjectID without its password hash.
func (s *Store) LoadSession(ctx context.Context, subjectID string) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, subjectID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NewUnauthorized(MsgInvalidSessionClient)
		case errors.Is(err, repository.ErrMalformedRoles):
			return nil, apperrors.NewValidationError("session has malformed role data", nil)
		}
		return nil, apperrors.NewInternalError(fmt.Errorf("load session: %w", err))
	}
	account.PasswordHash = ""
	return account, nil
}

// PrimaryRole picks the single lookup path for a role set: admin, then vendor, then user.
func PrimaryRole(roles domain.RoleSet) (domain.Role, bool) {
	for _, role := range []domain.Role{domain.RoleAdmin, domain.RoleVendor, domain.RoleUser} {
		if roles.Has(role) {
			return role, true
		}
	}
	return "", false
}

// LoadRoleProfile fetches the one role-specific record selected by PrimaryRole.
func (s *Store) LoadRoleProfile(ctx context.Context, subjectID string, roles domain.RoleSet) (*domain.RoleProfile, error) {
	role, ok := PrimaryRole(roles)
	if !ok {
		return nil, apperrors.NewValidationError("session has no recognised role", nil)
	}

	profile := &domain.RoleProfile{Role: role}
	var err error
	switch role {
	case domain.RoleAdmin:
		profile.Admin, err = s.profiles.GetAdminByAccountID(ctx, subjectID)
	case domain.RoleVendor:
		profile.Vendor, err = s.profiles.GetVendorByAccountID(ctx, subjectID)
	default:
		profile.Customer, err = s.profiles.GetCustomerByAccountID(ctx, subjectID)
	}
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NewValidationError(fmt.Sprintf("%s record not found for session", role), map[string]any{"role": role})
		case errors.Is(err, repository.ErrMalformedRoles):
			return nil, apperrors.NewValidationError("session has malformed role data", nil)
		}
		return nil, apperrors.NewInternalError(fmt.Errorf("load %s profile: %w", role, err))
	}
	return profile, nil
}
