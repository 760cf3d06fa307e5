package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrOTPMismatch is returned when the submitted code does not match.
	ErrOTPMismatch = errors.New("otp mismatch")
	// ErrOTPAttemptsExceeded is returned once a code has been guessed too often; the code is discarded.
	ErrOTPAttemptsExceeded = errors.New("otp attempts exceeded")
)

// OTPPurpose namespaces codes so a verification code cannot be replayed elsewhere.
type OTPPurpose string

const (
	OTPPurposeEmailVerification OTPPurpose = "email_verification"
	OTPPurposePasswordReset     OTPPurpose = "password_reset"
)

// OTPRepository stores one-time codes with a TTL.
type OTPRepository interface {
	Save(ctx context.Context, purpose OTPPurpose, email, code string, ttl time.Duration) error
	Verify(ctx context.Context, purpose OTPPurpose, email, code string, maxAttempts int) error
	Delete(ctx context.Context, purpose OTPPurpose, email string) error
}

type otpRepository struct {
	client *redis.Client
}

// NewOTPRepository returns a Redis-backed implementation.
func NewOTPRepository(client *redis.Client) OTPRepository {
	return &otpRepository{client: client}
}

func otpKey(purpose OTPPurpose, email string) string {
	return "otp:" + string(purpose) + ":" + strings.ToLower(email)
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// Save replaces any previous code for the same email and purpose.
func (r *otpRepository) Save(ctx context.Context, purpose OTPPurpose, email, code string, ttl time.Duration) error {
	key := otpKey(purpose, email)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "hash", hashCode(code), "attempts", 0)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

// verifyOTPLua counts the attempt and checks the code in one step, so an
// expiring key is never recreated without its TTL.
//
// KEYS[1] = otp key
// ARGV[1] = submitted code hash
// ARGV[2] = max attempts, 0 for unlimited
var verifyOTPLua = redis.NewScript(`
local stored = redis.call('HGET', KEYS[1], 'hash')
if not stored then
  return 0
end

local attempts = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
local maxAttempts = tonumber(ARGV[2])
if maxAttempts > 0 and attempts > maxAttempts then
  redis.call('DEL', KEYS[1])
  return 1
end

if stored ~= ARGV[1] then
  return 2
end

redis.call('DEL', KEYS[1])
return 3
`)

const (
	otpMissing = iota
	otpAttemptsExceeded
	otpMismatch
	otpAccepted
)

func (r *otpRepository) Verify(ctx context.Context, purpose OTPPurpose, email, code string, maxAttempts int) error {
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	res, err := verifyOTPLua.Run(ctx, r.client, []string{otpKey(purpose, email)}, hashCode(code), maxAttempts).Int()
	if err != nil {
		return err
	}
	switch res {
	case otpMissing:
		return ErrNotFound
	case otpAttemptsExceeded:
		return ErrOTPAttemptsExceeded
	case otpMismatch:
		return ErrOTPMismatch
	case otpAccepted:
		return nil
	}
	return fmt.Errorf("verify otp: unexpected script result %d", res)
}

func (r *otpRepository) Delete(ctx context.Context, purpose OTPPurpose, email string) error {
	return r.client.Del(ctx, otpKey(purpose, email)).Err()
}
