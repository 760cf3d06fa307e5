package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/marketplace-api/internal/domain"
)

// TokenKind distinguishes the two credential classes.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

var (
	// ErrInvalidToken covers bad signatures, malformed tokens and kind mismatches.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned once the embedded expiry has passed.
	ErrExpiredToken = errors.New("token expired")
)

// Claims describes the JWT payload shared by both token kinds.
type Claims struct {
	Roles    domain.RoleSet `json:"roles"`
	TokenUse TokenKind      `json:"token_use"`
	jwt.RegisteredClaims
}

// Payload is the verified identity carried by a token.
type Payload struct {
	SubjectID string
	Roles     domain.RoleSet
	ExpiresAt time.Time
}

type tokenKey struct {
	secret []byte
	ttl    time.Duration
}

// TokenCodec signs and verifies access and refresh tokens with independent keys.
type TokenCodec struct {
	keys map[TokenKind]tokenKey
	now  func() time.Time
}

// CodecOption customizes a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) CodecOption {
	return func(tc *TokenCodec) {
		tc.now = now
	}
}

// NewTokenCodec builds a codec. The two secrets must be non-empty and distinct.
func NewTokenCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, opts ...CodecOption) (*TokenCodec, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("token secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	tc := &TokenCodec{
		keys: map[TokenKind]tokenKey{
			AccessToken:  {secret: []byte(accessSecret), ttl: accessTTL},
			RefreshToken: {secret: []byte(refreshSecret), ttl: refreshTTL},
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(tc)
	}
	return tc, nil
}

// TTL returns the lifetime of tokens of the given kind.
func (tc *TokenCodec) TTL(kind TokenKind) time.Duration {
	return tc.keys[kind].ttl
}

// Sign builds and signs a token of the given kind.
func (tc *TokenCodec) Sign(kind TokenKind, subjectID string, roles domain.RoleSet) (string, error) {
	key, ok := tc.keys[kind]
	if !ok {
		return "", fmt.Errorf("unknown token kind %q", kind)
	}
	if subjectID == "" {
		return "", errors.New("subject id is required")
	}
	if len(roles) == 0 {
		return "", errors.New("at least one role is required")
	}

	issuedAt := tc.now()
	claims := &Claims{
		Roles:    roles,
		TokenUse: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(key.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key.secret)
}

// Verify validates signature, expiry and kind, returning the embedded identity.
func (tc *TokenCodec) Verify(kind TokenKind, tokenStr string) (*Payload, error) {
	key, ok := tc.keys[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown token kind %q", ErrInvalidToken, kind)
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return key.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(tc.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpiredToken, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenUse != kind || claims.Subject == "" || len(claims.Roles) == 0 {
		return nil, ErrInvalidToken
	}

	return &Payload{
		SubjectID: claims.Subject,
		Roles:     claims.Roles,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
