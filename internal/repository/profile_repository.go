package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/marketplace-api/internal/domain"
)

// ProfileRepository reads role-specific records by their account foreign key. Each
// lookup joins the parent account, minus the password hash.
type ProfileRepository interface {
	GetCustomerByAccountID(ctx context.Context, accountID string) (*domain.Customer, error)
	GetVendorByAccountID(ctx context.Context, accountID string) (*domain.Vendor, error)
	GetAdminByAccountID(ctx context.Context, accountID string) (*domain.Admin, error)
	SetVendorApproval(ctx context.Context, accountID string, approved bool) error
}

type profileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository instantiates the repository.
func NewProfileRepository(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepository{pool: pool}
}

const accountColumns = `a.id, a.email, a.name, a.roles, a.email_verified, a.profile_image, a.created_at, a.updated_at`

func (r *profileRepository) GetCustomerByAccountID(ctx context.Context, accountID string) (*domain.Customer, error) {
	const query = `
        SELECT c.id, c.account_id, c.phone, c.address, c.created_at, c.updated_at, ` + accountColumns + `
        FROM customers c JOIN accounts a ON a.id = c.account_id
        WHERE c.account_id=$1`

	var (
		customer domain.Customer
		account  domain.Account
		roles    []string
	)
	err := r.pool.QueryRow(ctx, query, accountID).Scan(
		&customer.ID,
		&customer.AccountID,
		&customer.Phone,
		&customer.Address,
		&customer.CreatedAt,
		&customer.UpdatedAt,
		&account.ID,
		&account.Email,
		&account.Name,
		&roles,
		&account.EmailVerified,
		&account.ProfileImage,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	if customer.Account, err = withRoles(&account, roles); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *profileRepository) GetVendorByAccountID(ctx context.Context, accountID string) (*domain.Vendor, error) {
	const query = `
        SELECT v.id, v.account_id, v.business_name, v.approved, v.active, v.offers_delivery, v.delivery_fee_kobo,
               v.created_at, v.updated_at, ` + accountColumns + `
        FROM vendors v JOIN accounts a ON a.id = v.account_id
        WHERE v.account_id=$1`

	var (
		vendor  domain.Vendor
		account domain.Account
		roles   []string
	)
	err := r.pool.QueryRow(ctx, query, accountID).Scan(
		&vendor.ID,
		&vendor.AccountID,
		&vendor.BusinessName,
		&vendor.Approved,
		&vendor.Active,
		&vendor.OffersDelivery,
		&vendor.DeliveryFeeKobo,
		&vendor.CreatedAt,
		&vendor.UpdatedAt,
		&account.ID,
		&account.Email,
		&account.Name,
		&roles,
		&account.EmailVerified,
		&account.ProfileImage,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	if vendor.Account, err = withRoles(&account, roles); err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *profileRepository) GetAdminByAccountID(ctx context.Context, accountID string) (*domain.Admin, error) {
	const query = `
        SELECT ad.id, ad.account_id, ad.super_admin, ad.created_at, ad.updated_at, ` + accountColumns + `
        FROM admins ad JOIN accounts a ON a.id = ad.account_id
        WHERE ad.account_id=$1`

	var (
		admin   domain.Admin
		account domain.Account
		roles   []string
	)
	err := r.pool.QueryRow(ctx, query, accountID).Scan(
		&admin.ID,
		&admin.AccountID,
		&admin.SuperAdmin,
		&admin.CreatedAt,
		&admin.UpdatedAt,
		&account.ID,
		&account.Email,
		&account.Name,
		&roles,
		&account.EmailVerified,
		&account.ProfileImage,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	if admin.Account, err = withRoles(&account, roles); err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *profileRepository) SetVendorApproval(ctx context.Context, accountID string, approved bool) error {
	const query = `
        UPDATE vendors SET approved=$1, active=$1, updated_at=NOW()
        WHERE account_id=$2`

	cmd, err := r.pool.Exec(ctx, query, approved, accountID)
	if err != nil {
		return translateError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func insertCustomer(ctx context.Context, tx pgx.Tx, customer *domain.Customer) error {
	const query = `
        INSERT INTO customers (account_id, phone, address)
        VALUES ($1, $2, $3)
        RETURNING id, created_at, updated_at`
	return translateError(tx.QueryRow(ctx, query,
		customer.AccountID,
		customer.Phone,
		customer.Address,
	).Scan(&customer.ID, &customer.CreatedAt, &customer.UpdatedAt))
}

func insertVendor(ctx context.Context, tx pgx.Tx, vendor *domain.Vendor) error {
	const query = `
        INSERT INTO vendors (account_id, business_name, approved, active, offers_delivery, delivery_fee_kobo)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at`
	return translateError(tx.QueryRow(ctx, query,
		vendor.AccountID,
		vendor.BusinessName,
		vendor.Approved,
		vendor.Active,
		vendor.OffersDelivery,
		vendor.DeliveryFeeKobo,
	).Scan(&vendor.ID, &vendor.CreatedAt, &vendor.UpdatedAt))
}

func insertAdmin(ctx context.Context, tx pgx.Tx, admin *domain.Admin) error {
	const query = `
        INSERT INTO admins (account_id, super_admin)
        VALUES ($1, $2)
        RETURNING id, created_at, updated_at`
	return translateError(tx.QueryRow(ctx, query,
		admin.AccountID,
		admin.SuperAdmin,
	).Scan(&admin.ID, &admin.CreatedAt, &admin.UpdatedAt))
}
