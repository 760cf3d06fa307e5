package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/marketplace-api/internal/domain"
)

var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned on unique constraint violations.
	ErrDuplicate = errors.New("record already exists")
	// ErrMalformedRoles marks stored role data that does not parse.
	ErrMalformedRoles = errors.New("malformed role data")
)

const uniqueViolation = "23505"

// AccountRepository defines persistence access for session/account records.
type AccountRepository interface {
	// CreateWithProfile inserts the account and its role record atomically.
	CreateWithProfile(ctx context.Context, account *domain.Account, profile *domain.RoleProfile) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetPasswordHash(ctx context.Context, id string) (string, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	MarkEmailVerified(ctx context.Context, id string) error
	UpdateProfileImage(ctx context.Context, id, imageRef string) error
	Delete(ctx context.Context, id string) error
}

type accountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository returns a Postgres-backed implementation.
func NewAccountRepository(pool *pgxpool.Pool) AccountRepository {
	return &accountRepository{pool: pool}
}

func (r *accountRepository) CreateWithProfile(ctx context.Context, account *domain.Account, profile *domain.RoleProfile) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
        INSERT INTO accounts (email, password_hash, name, roles, email_verified)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`

		err := tx.QueryRow(ctx, query,
			account.Email,
			account.PasswordHash,
			account.Name,
			account.Roles.Strings(),
			account.EmailVerified,
		).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
		if err != nil {
			return translateError(err)
		}

		if profile == nil {
			return nil
		}
		switch {
		case profile.Customer != nil:
			profile.Customer.AccountID = account.ID
			return insertCustomer(ctx, tx, profile.Customer)
		case profile.Vendor != nil:
			profile.Vendor.AccountID = account.ID
			return insertVendor(ctx, tx, profile.Vendor)
		case profile.Admin != nil:
			profile.Admin.AccountID = account.ID
			return insertAdmin(ctx, tx, profile.Admin)
		}
		return nil
	})
}

// GetByID never selects the password hash; it feeds the session gate.
func (r *accountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	const query = `
        SELECT id, email, name, roles, email_verified, profile_image, created_at, updated_at
        FROM accounts WHERE id=$1`

	var (
		account domain.Account
		roles   []string
	)
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&account.ID,
		&account.Email,
		&account.Name,
		&roles,
		&account.EmailVerified,
		&account.ProfileImage,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, translateError(err)
	}
	return withRoles(&account, roles)
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	const query = `
        SELECT id, email, password_hash, name, roles, email_verified, profile_image, created_at, updated_at
        FROM accounts WHERE email=$1`

	var (
		account domain.Account
		roles   []string
	)
	if err := r.pool.QueryRow(ctx, query, email).Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.Name,
		&roles,
		&account.EmailVerified,
		&account.ProfileImage,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, translateError(err)
	}
	return withRoles(&account, roles)
}

func (r *accountRepository) GetPasswordHash(ctx context.Context, id string) (string, error) {
	var hash string
	if err := r.pool.QueryRow(ctx, `SELECT password_hash FROM accounts WHERE id=$1`, id).Scan(&hash); err != nil {
		return "", translateError(err)
	}
	return hash, nil
}

func (r *accountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.execOne(ctx, `UPDATE accounts SET password_hash=$1, updated_at=NOW() WHERE id=$2`, passwordHash, id)
}

func (r *accountRepository) MarkEmailVerified(ctx context.Context, id string) error {
	return r.execOne(ctx, `UPDATE accounts SET email_verified=TRUE, updated_at=NOW() WHERE id=$1`, id)
}

func (r *accountRepository) UpdateProfileImage(ctx context.Context, id, imageRef string) error {
	return r.execOne(ctx, `UPDATE accounts SET profile_image=$1, updated_at=NOW() WHERE id=$2`, imageRef, id)
}

// Delete removes the account; role records go with it through ON DELETE CASCADE.
func (r *accountRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM accounts WHERE id=$1`, id)
}

func (r *accountRepository) execOne(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return translateError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func withRoles(account *domain.Account, raw []string) (*domain.Account, error) {
	roles, err := domain.ParseRoleSet(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: account %s: %v", ErrMalformedRoles, account.ID, err)
	}
	account.Roles = roles
	return account, nil
}

func translateError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
