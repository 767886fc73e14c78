// Package auth decides who may use the admin API. Credentials are tried
// against the hosted identity provider, then the local admin store, then
// the demo policy; the first that accepts them issues the session token.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/websitelelo/websitelelo/internal/models"
)

var (
	// ErrInvalidCredentials is returned for every rejected login, whichever
	// path rejected it.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("not authorized")
)

type Issuer string

const (
	IssuerLocal    Issuer = "local"
	IssuerDemo     Issuer = "demo"
	IssuerFirebase Issuer = "firebase"
)

// Identity is the admin behind a token. Subject and Issuer are kept for
// audit logs only; every admin has the same rights.
type Identity struct {
	Subject string `json:"id"`
	Email   string `json:"email"`
	Issuer  Issuer `json:"provider"`
}

func (i Identity) IsDemo() bool { return i.Issuer == IssuerDemo }

// Session is the result of a successful login.
type Session struct {
	Identity
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Provider is a hosted identity service.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	Verify(ctx context.Context, token string) (*Identity, error)
}

// AdminStore looks up locally managed admins. A nil admin with a nil error
// means no such admin.
type AdminStore interface {
	GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error)
}
