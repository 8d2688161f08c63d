package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrSecretRequired is returned when no signing secret is configured.
	ErrSecretRequired = errors.New("token secret must be provided")
	// ErrInvalidToken is returned for malformed, expired or forged tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidSubject is returned when a token subject is not a hex address.
	ErrInvalidSubject = errors.New("token subject must be a hex address")
)

// Authority signs and verifies caller tokens with a shared secret.
type Authority struct {
	// secret is the HMAC key.
	secret []byte
	// issuer is written into and expected from every token.
	issuer string
	// ttl is the lifetime of issued tokens.
	ttl time.Duration
	// now returns the current time, replaced in tests.
	now func() time.Time
}

// NewAuthority creates an Authority for the given secret, issuer and token lifetime.
func NewAuthority(secret, issuer string, ttl time.Duration) (*Authority, error) {
	if secret == "" {
		return nil, ErrSecretRequired
	}

	return &Authority{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue returns a signed token that authenticates subject.
func (a *Authority) Issue(subject common.Address) (string, error) {
	if subject == (common.Address{}) {
		return "", ErrInvalidSubject
	}

	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject.Hex(),
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return token, nil
}

// Verify checks the token signature, issuer and lifetime and returns its subject.
func (a *Authority) Verify(token string) (common.Address, error) {
	var claims jwt.RegisteredClaims

	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !common.IsHexAddress(claims.Subject) {
		return common.Address{}, ErrInvalidSubject
	}

	subject := common.HexToAddress(claims.Subject)
	if subject == (common.Address{}) {
		return common.Address{}, ErrInvalidSubject
	}

	return subject, nil
}
