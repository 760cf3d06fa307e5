package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/marketplace-api/internal/auth"
	"github.com/spec-kit/marketplace-api/internal/config"
	"github.com/spec-kit/marketplace-api/internal/domain"
	"github.com/spec-kit/marketplace-api/internal/events"
	"github.com/spec-kit/marketplace-api/internal/repository"
	"github.com/spec-kit/marketplace-api/internal/repository/repositorytest"
	"github.com/spec-kit/marketplace-api/pkg/util/errorutil"
)

type authHarness struct {
	svc    *AuthService
	store  *repositorytest.Store
	redis  *miniredis.Miniredis
	mu     sync.Mutex
	codes  map[string]string
	events []events.EventType
}

func newAuthHarness(t *testing.T) *authHarness {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := &authHarness{store: repositorytest.NewStore(), redis: mr, codes: map[string]string{}}
	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range []events.EventType{
		events.EventAccountRegistered, events.EventOTPIssued, events.EventEmailVerified,
		events.EventPasswordChanged, events.EventAccountDeleted,
	} {
		dispatcher.Subscribe(et, h.record)
	}

	h.svc = NewAuthService(config.AuthConfig{
		BcryptCost:     bcrypt.MinCost,
		OTPTTLMinutes:  10,
		OTPMaxAttempts: 3,
	}, AuthDependencies{
		AccountRepo: h.store,
		OTPRepo:     repository.NewOTPRepository(client),
		Dispatcher:  dispatcher,
	}, nil)
	return h
}

func (h *authHarness) record(_ context.Context, e events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e.Type)
	if p, ok := e.Payload.(events.OTPIssuedPayload); ok {
		h.codes[p.Email] = p.Code
	}
	return nil
}

func (h *authHarness) code(email string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.codes[email]
}

func (h *authHarness) registerVerified(t *testing.T, role domain.Role, email, password string) *domain.Account {
	t.Helper()
	ctx := context.Background()
	in := RegisterInput{Name: "Ada", Email: email, Password: password, BusinessName: "Mama Put"}
	_, err := h.svc.Register(ctx, role, in)
	require.NoError(t, err)
	account, err := h.svc.VerifyEmail(ctx, email, h.code(email))
	require.NoError(t, err)
	return account
}

func TestRegister_CreatesUnverifiedAccountAndIssuesCode(t *testing.T) {
	h := newAuthHarness(t)

	account, err := h.svc.Register(context.Background(), domain.RoleVendor, RegisterInput{
		Name:         "Ada",
		Email:        "  Ada@Example.com ",
		Password:     "correct-horse",
		BusinessName: "Mama Put",
	})
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", account.Email)
	assert.Equal(t, domain.NewRoleSet(domain.RoleVendor), account.Roles)
	assert.False(t, account.EmailVerified)
	assert.Empty(t, account.PasswordHash)

	stored, ok := h.store.Account(account.ID)
	require.True(t, ok)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct-horse")))

	vendor, err := h.store.GetVendorByAccountID(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mama Put", vendor.BusinessName)
	assert.False(t, vendor.Approved)

	assert.Len(t, h.code("ada@example.com"), 6)
	assert.Equal(t, []events.EventType{events.EventAccountRegistered, events.EventOTPIssued}, h.events)
}

func TestRegister_Validation(t *testing.T) {
	h := newAuthHarness(t)

	_, err := h.svc.Register(context.Background(), domain.RoleVendor, RegisterInput{
		Name:     "",
		Email:    "not-an-email",
		Password: "short",
	})
	require.Error(t, err)
	assert.Equal(t, errorutil.CodeValidation, errorutil.KindOf(err))

	de := errorutil.ToDomainError(err)
	assert.Contains(t, de.Details, "email")
	assert.Contains(t, de.Details, "name")
	assert.Contains(t, de.Details, "password")
	assert.Contains(t, de.Details, "business_name")

	_, err = h.svc.Register(context.Background(), domain.Role("courier"), RegisterInput{})
	assert.Equal(t, errorutil.CodeValidation, errorutil.KindOf(err))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	h := newAuthHarness(t)
	in := RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "correct-horse"}

	_, err := h.svc.Register(context.Background(), domain.RoleUser, in)
	require.NoError(t, err)
	_, err = h.svc.Register(context.Background(), domain.RoleUser, in)
	assert.Equal(t, errorutil.CodeConflict, errorutil.KindOf(err))
}

func TestVerifyEmail(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	_, err := h.svc.Register(ctx, domain.RoleUser, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	_, err = h.svc.VerifyEmail(ctx, "ada@example.com", "000000x")
	assert.Equal(t, errorutil.CodeValidation, errorutil.KindOf(err))

	account, err := h.svc.VerifyEmail(ctx, "ADA@example.com", h.code("ada@example.com"))
	require.NoError(t, err)
	assert.True(t, account.EmailVerified)
	assert.Empty(t, account.PasswordHash)

	_, err = h.svc.VerifyEmail(ctx, "ada@example.com", h.code("ada@example.com"))
	assert.Equal(t, errorutil.CodeConflict, errorutil.KindOf(err))
}

func TestVerifyEmail_UnknownEmailLooksLikeBadCode(t *testing.T) {
	h := newAuthHarness(t)

	_, err := h.svc.VerifyEmail(context.Background(), "ghost@example.com", "123456")
	assert.True(t, errors.Is(err, &errorutil.DomainError{Code: errorutil.CodeValidation, Message: msgInvalidCode}))
}

func TestVerifyEmail_TooManyAttempts(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	_, err := h.svc.Register(ctx, domain.RoleUser, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	good := h.code("ada@example.com")
	bad := "999999"
	if good == bad {
		bad = "888888"
	}
	for i := 0; i < 3; i++ {
		_, err = h.svc.VerifyEmail(ctx, "ada@example.com", bad)
		assert.Equal(t, errorutil.CodeValidation, errorutil.KindOf(err))
	}
	_, err = h.svc.VerifyEmail(ctx, "ada@example.com", bad)
	assert.Equal(t, errorutil.CodeTooManyRequests, errorutil.KindOf(err))

	// the code is burned once attempts run out
	_, err = h.svc.VerifyEmail(ctx, "ada@example.com", good)
	assert.Equal(t, errorutil.CodeValidation, errorutil.KindOf(err))
}

func TestResendOTP(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	assert.NoError(t, h.svc.ResendOTP(ctx, "ghost@example.com"))
	assert.Empty(t, h.events)

	_, err := h.svc.Register(ctx, domain.RoleUser, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	require.NoError(t, h.svc.ResendOTP(ctx, "ada@example.com"))

	_, err = h.svc.VerifyEmail(ctx, "ada@example.com", h.code("ada@example.com"))
	assert.NoError(t, err)

	before := len(h.events)
	assert.NoError(t, h.svc.ResendOTP(ctx, "ada@example.com"))
	assert.Len(t, h.events, before)
}

func TestLogin(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	registered := h.registerVerified(t, domain.RoleUser, "ada@example.com", "correct-horse")

	account, err := h.svc.Login(ctx, "ada@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, account.ID)
	assert.Empty(t, account.PasswordHash)

	_, err = h.svc.Login(ctx, "ada@example.com", "wrong-horse")
	assert.Equal(t, errorutil.CodeUnauthorized, errorutil.KindOf(err))

	_, err = h.svc.Login(ctx, "ghost@example.com", "correct-horse")
	assert.Equal(t, errorutil.CodeUnauthorized, errorutil.KindOf(err))
}

func TestLogin_UnverifiedAccountForbidden(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	_, err := h.svc.Register(ctx, domain.RoleUser, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	_, err = h.svc.Login(ctx, "ada@example.com", "correct-horse")
	assert.Equal(t, errorutil.CodeForbidden, errorutil.KindOf(err))
}

func TestLogin_StoreFailure(t *testing.T) {
	h := newAuthHarness(t)
	h.store.Err = errors.New("connection reset")

	_, err := h.svc.Login(context.Background(), "ada@example.com", "correct-horse")
	assert.Equal(t, errorutil.CodeInternal, errorutil.KindOf(err))
}

func TestChangePassword(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	account := h.registerVerified(t, domain.RoleUser, "ada@example.com", "correct-horse")

	err := h.svc.ChangePassword(ctx, account.ID, "wrong-horse", "battery-staple")
	assert.Equal(t, errorutil.CodeValidation, errorutil.KindOf(err))

	err = h.svc.ChangePassword(ctx, account.ID, "correct-horse", "short")
	assert.Equal(t, errorutil.CodeValidation, errorutil.KindOf(err))

	require.NoError(t, h.svc.ChangePassword(ctx, account.ID, "correct-horse", "battery-staple"))
	_, err = h.svc.Login(ctx, "ada@example.com", "battery-staple")
	assert.NoError(t, err)
	assert.Contains(t, h.events, events.EventPasswordChanged)

	err = h.svc.ChangePassword(ctx, "missing", "correct-horse", "battery-staple")
	assert.Equal(t, errorutil.CodeNotFound, errorutil.KindOf(err))
}

func TestChangePassword_SingleHashLookup(t *testing.T) {
	h := newAuthHarness(t)
	account := h.registerVerified(t, domain.RoleUser, "ada@example.com", "correct-horse")
	before := h.store.Lookups()

	require.NoError(t, h.svc.ChangePassword(context.Background(), account.ID, "correct-horse", "battery-staple"))
	assert.Equal(t, 1, h.store.Lookups()-before)
}

func TestLogin_UnknownEmailStillComparesPassword(t *testing.T) {
	h := newAuthHarness(t)
	var hashes []string
	h.svc.comparePassword = func(hashed, plain string) error {
		hashes = append(hashes, hashed)
		return auth.ComparePassword(hashed, plain)
	}

	_, err := h.svc.Login(context.Background(), "ghost@example.com", "correct-horse")
	assert.Equal(t, errorutil.CodeUnauthorized, errorutil.KindOf(err))
	require.Len(t, hashes, 1)
	cost, err := bcrypt.Cost([]byte(hashes[0]))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)

	_, _ = h.svc.Login(context.Background(), "nobody@example.com", "correct-horse")
	require.Len(t, hashes, 2)
	assert.Equal(t, hashes[0], hashes[1])
}

func TestDeleteAccount(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	account := h.registerVerified(t, domain.RoleUser, "ada@example.com", "correct-horse")

	require.NoError(t, h.svc.DeleteAccount(ctx, account.ID))
	_, ok := h.store.Account(account.ID)
	assert.False(t, ok)
	_, err := h.store.GetCustomerByAccountID(ctx, account.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Contains(t, h.events, events.EventAccountDeleted)

	err = h.svc.DeleteAccount(ctx, account.ID)
	assert.Equal(t, errorutil.CodeNotFound, errorutil.KindOf(err))
}

func TestGenerateOTP(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateOTP()
		require.NoError(t, err)
		assert.Regexp(t, `^\d{6}$`, code)
	}
}

func TestPasswordReset(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	h.registerVerified(t, domain.RoleUser, "ada@example.com", "correct-horse")

	assert.NoError(t, h.svc.RequestPasswordReset(ctx, "ghost@example.com"))
	require.NoError(t, h.svc.RequestPasswordReset(ctx, "ada@example.com"))
	code := h.code("ada@example.com")

	err := h.svc.ConfirmPasswordReset(ctx, "ada@example.com", code, "short")
	assert.Equal(t, errorutil.CodeValidation, errorutil.KindOf(err))

	require.NoError(t, h.svc.ConfirmPasswordReset(ctx, "ada@example.com", code, "battery-staple"))
	_, err = h.svc.Login(ctx, "ada@example.com", "battery-staple")
	assert.NoError(t, err)

	// codes are single use
	err = h.svc.ConfirmPasswordReset(ctx, "ada@example.com", code, "another-one")
	assert.Equal(t, errorutil.CodeValidation, errorutil.KindOf(err))
}

func TestPasswordReset_VerificationCodeDoesNotResetPassword(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	_, err := h.svc.Register(ctx, domain.RoleUser, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	err = h.svc.ConfirmPasswordReset(ctx, "ada@example.com", h.code("ada@example.com"), "battery-staple")
	assert.Equal(t, errorutil.CodeValidation, errorutil.KindOf(err))

	// unverified accounts get no reset code
	before := len(h.events)
	require.NoError(t, h.svc.RequestPasswordReset(ctx, "ada@example.com"))
	assert.Len(t, h.events, before)
}
