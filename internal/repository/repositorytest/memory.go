// Package repositorytest provides in-memory repositories for tests.
package repositorytest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/marketplace-api/internal/domain"
	"github.com/spec-kit/marketplace-api/internal/repository"
)

// Store implements AccountRepository and ProfileRepository over maps.
type Store struct {
	mu        sync.Mutex
	accounts  map[string]domain.Account
	customers map[string]domain.Customer
	vendors   map[string]domain.Vendor
	admins    map[string]domain.Admin

	// Err, when set, is returned by every call.
	Err error

	AccountLookups int
	ProfileLookups int
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		accounts:  map[string]domain.Account{},
		customers: map[string]domain.Customer{},
		vendors:   map[string]domain.Vendor{},
		admins:    map[string]domain.Admin{},
	}
}

// Lookups returns the total number of read calls served.
func (s *Store) Lookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AccountLookups + s.ProfileLookups
}

// Seed inserts an account with the given id and one role record per role.
func (s *Store) Seed(id string, roles ...domain.Role) domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	account := domain.Account{
		ID:            id,
		Email:         id + "@example.com",
		PasswordHash:  "hash-" + id,
		Name:          strings.ToUpper(id),
		Roles:         domain.NewRoleSet(roles...),
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.accounts[id] = account
	for _, role := range roles {
		switch role {
		case domain.RoleUser:
			s.customers[id] = domain.Customer{ID: "c-" + id, AccountID: id}
		case domain.RoleVendor:
			s.vendors[id] = domain.Vendor{ID: "v-" + id, AccountID: id, BusinessName: "Kitchen " + id}
		case domain.RoleAdmin:
			s.admins[id] = domain.Admin{ID: "a-" + id, AccountID: id}
		}
	}
	return account
}

// DropProfiles removes every role record for id, leaving the account.
func (s *Store) DropProfiles(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.customers, id)
	delete(s.vendors, id)
	delete(s.admins, id)
}

// Account returns the stored account, including its password hash.
func (s *Store) Account(id string) (domain.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	return a, ok
}

func (s *Store) CreateWithProfile(_ context.Context, account *domain.Account, profile *domain.RoleProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, existing := range s.accounts {
		if strings.EqualFold(existing.Email, account.Email) {
			return repository.ErrDuplicate
		}
	}
	now := time.Now()
	account.ID = uuid.NewString()
	account.CreatedAt, account.UpdatedAt = now, now
	s.accounts[account.ID] = *account
	if profile == nil {
		return nil
	}
	switch {
	case profile.Customer != nil:
		profile.Customer.ID, profile.Customer.AccountID = uuid.NewString(), account.ID
		s.customers[account.ID] = *profile.Customer
	case profile.Vendor != nil:
		profile.Vendor.ID, profile.Vendor.AccountID = uuid.NewString(), account.ID
		s.vendors[account.ID] = *profile.Vendor
	case profile.Admin != nil:
		profile.Admin.ID, profile.Admin.AccountID = uuid.NewString(), account.ID
		s.admins[account.ID] = *profile.Admin
	}
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AccountLookups++
	if s.Err != nil {
		return nil, s.Err
	}
	a, ok := s.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a.PasswordHash = ""
	return &a, nil
}

func (s *Store) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AccountLookups++
	if s.Err != nil {
		return nil, s.Err
	}
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			out := a
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) GetPasswordHash(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AccountLookups++
	if s.Err != nil {
		return "", s.Err
	}
	a, ok := s.accounts[id]
	if !ok {
		return "", repository.ErrNotFound
	}
	return a.PasswordHash, nil
}

func (s *Store) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return s.mutate(id, func(a *domain.Account) { a.PasswordHash = passwordHash })
}

func (s *Store) MarkEmailVerified(_ context.Context, id string) error {
	return s.mutate(id, func(a *domain.Account) { a.EmailVerified = true })
}

func (s *Store) UpdateProfileImage(_ context.Context, id, imageRef string) error {
	return s.mutate(id, func(a *domain.Account) { a.ProfileImage = imageRef })
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.accounts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.accounts, id)
	delete(s.customers, id)
	delete(s.vendors, id)
	delete(s.admins, id)
	return nil
}

func (s *Store) mutate(id string, fn func(*domain.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	a, ok := s.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&a)
	a.UpdatedAt = time.Now()
	s.accounts[id] = a
	return nil
}

func (s *Store) parent(id string) *domain.Account {
	a := s.accounts[id]
	a.PasswordHash = ""
	return &a
}

func (s *Store) GetCustomerByAccountID(_ context.Context, accountID string) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ProfileLookups++
	if s.Err != nil {
		return nil, s.Err
	}
	c, ok := s.customers[accountID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c.Account = s.parent(accountID)
	return &c, nil
}

func (s *Store) GetVendorByAccountID(_ context.Context, accountID string) (*domain.Vendor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ProfileLookups++
	if s.Err != nil {
		return nil, s.Err
	}
	v, ok := s.vendors[accountID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	v.Account = s.parent(accountID)
	return &v, nil
}

func (s *Store) GetAdminByAccountID(_ context.Context, accountID string) (*domain.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ProfileLookups++
	if s.Err != nil {
		return nil, s.Err
	}
	a, ok := s.admins[accountID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a.Account = s.parent(accountID)
	return &a, nil
}

func (s *Store) SetVendorApproval(_ context.Context, accountID string, approved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	v, ok := s.vendors[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	v.Approved, v.Active = approved, approved
	s.vendors[accountID] = v
	return nil
}

var (
	_ repository.AccountRepository = (*Store)(nil)
	_ repository.ProfileRepository = (*Store)(nil)
)
