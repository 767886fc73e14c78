package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "websitelelo"

type tokenClaims struct {
	Email string `json:"email"`
	Kind  Issuer `json:"kind"`
	jwt.RegisteredClaims
}

// TokenSigner issues and checks the HS256 tokens for local and demo logins.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenSigner(secret []byte, ttl time.Duration) *TokenSigner {
	return &TokenSigner{secret: secret, ttl: ttl, now: time.Now}
}

func (s *TokenSigner) TTL() time.Duration { return s.ttl }

func (s *TokenSigner) Issue(id Identity) (*Session, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := tokenClaims{
		Email: id.Email,
		Kind:  id.Issuer,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   id.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &Session{Identity: id, Token: signed, ExpiresAt: expires}, nil
}

// Parse checks signature, issuer and expiry and returns the identity the
// token was issued to.
func (s *TokenSigner) Parse(token string) (*Identity, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}
	switch claims.Kind {
	case IssuerLocal, IssuerDemo:
	default:
		return nil, fmt.Errorf("%w: unknown token kind %q", ErrUnauthorized, claims.Kind)
	}
	return &Identity{Subject: claims.Subject, Email: claims.Email, Issuer: claims.Kind}, nil
}

// isMalformed reports whether err means token is not one of ours at all, as
// opposed to one of ours that is expired or tampered with.
func isMalformed(err error) bool {
	return errors.Is(err, jwt.ErrTokenMalformed) ||
		errors.Is(err, jwt.ErrTokenInvalidIssuer) ||
		errors.Is(err, jwt.ErrTokenSignatureInvalid) ||
		errors.Is(err, jwt.ErrTokenUnverifiable)
}
