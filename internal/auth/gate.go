package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/crypto/bcrypt"
)

// Gate runs the login chain and checks bearer tokens. Provider and Admins
// may be nil when the deployment has neither.
type Gate struct {
	provider Provider
	admins   AdminStore
	demo     *DemoPolicy
	tokens   *TokenSigner
}

func NewGate(provider Provider, admins AdminStore, demo *DemoPolicy, tokens *TokenSigner) *Gate {
	return &Gate{provider: provider, admins: admins, demo: demo, tokens: tokens}
}

func (g *Gate) Demo() *DemoPolicy { return g.demo }

// Login tries each credential source in turn. The caller only ever sees
// ErrInvalidCredentials, never which source said no.
func (g *Gate) Login(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	if g.provider != nil {
		sess, err := g.provider.SignIn(ctx, email, password)
		if err == nil {
			slog.Info("Admin logged in", "issuer", IssuerFirebase, "subject", sess.Subject)
			return sess, nil
		}
		slog.Debug("Provider sign-in failed, trying local admins", "error", err)
	}

	if g.admins != nil {
		sess, err := g.localLogin(ctx, email, password)
		switch {
		case err == nil:
			slog.Info("Admin logged in", "issuer", IssuerLocal, "subject", sess.Subject)
			return sess, nil
		case !errors.Is(err, ErrInvalidCredentials):
			slog.Warn("Admin lookup failed, trying demo policy", "error", err)
		}
	}

	if g.demo.Match(email, password) {
		sess, err := g.tokens.Issue(Identity{Subject: DemoSubject, Email: g.demo.Email(), Issuer: IssuerDemo})
		if err != nil {
			return nil, err
		}
		slog.Info("Admin logged in", "issuer", IssuerDemo, "subject", DemoSubject)
		return sess, nil
	}

	slog.Info("Admin login rejected")
	return nil, ErrInvalidCredentials
}

func (g *Gate) localLogin(ctx context.Context, email, password string) (*Session, error) {
	admin, err := g.admins.GetAdminByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("look up admin: %w", err)
	}
	if admin == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return g.tokens.Issue(Identity{
		Subject: strconv.FormatInt(admin.ID, 10),
		Email:   admin.Email,
		Issuer:  IssuerLocal,
	})
}

// Verify resolves a bearer token to an identity. Locally signed tokens are
// checked first; anything that is not one of ours goes to the provider.
func (g *Gate) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	id, err := g.tokens.Parse(token)
	if err == nil {
		if id.IsDemo() && !g.demo.Enabled() {
			return nil, fmt.Errorf("%w: demo mode is disabled", ErrUnauthorized)
		}
		return id, nil
	}
	if g.provider == nil || !isMalformed(err) {
		return nil, err
	}
	return g.provider.Verify(ctx, token)
}
