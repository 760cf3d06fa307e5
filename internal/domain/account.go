package domain

import "time"

// Account is the root identity shared by every role. It backs the session cookies.
type Account struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Name          string    `json:"name"`
	Roles         RoleSet   `json:"roles"`
	EmailVerified bool      `json:"emailVerified"`
	ProfileImage  string    `json:"profileImage,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Customer holds user-role attributes.
type Customer struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Account   *Account  `json:"account,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Vendor holds restaurant attributes, including moderation flags.
type Vendor struct {
	ID              string    `json:"id"`
	AccountID       string    `json:"accountId"`
	BusinessName    string    `json:"businessName"`
	Approved        bool      `json:"approved"`
	Active          bool      `json:"active"`
	OffersDelivery  bool      `json:"offersDelivery"`
	DeliveryFeeKobo int64     `json:"deliveryFeeKobo"`
	Account         *Account  `json:"account,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Admin holds console operator attributes.
type Admin struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"accountId"`
	SuperAdmin bool      `json:"superAdmin"`
	Account    *Account  `json:"account,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// RoleProfile is the role-specific record resolved for a session. Exactly one of the
// pointers is set, matching Role.
type RoleProfile struct {
	Role     Role      `json:"role"`
	Customer *Customer `json:"customer,omitempty"`
	Vendor   *Vendor   `json:"vendor,omitempty"`
	Admin    *Admin    `json:"admin,omitempty"`
}
