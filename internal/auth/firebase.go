package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/api/option"
)

const defaultFirebaseBaseURL = "https://identitytoolkit.googleapis.com"

// FirebaseProvider signs in through the Firebase Auth REST API, which is
// the only place password sign-in is offered. ID tokens are checked by
// Tokens when set, and by an accounts:lookup call otherwise.
type FirebaseProvider struct {
	APIKey    string
	ProjectID string
	BaseURL   string
	Client    *http.Client
	Tokens    IDTokenVerifier
}

// IDTokenVerifier checks a Firebase ID token. *fbauth.Client satisfies it.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// NewFirebaseVerifier returns an Admin SDK auth client that verifies ID
// tokens offline against Google's published signing certificates. Only the
// project id is needed for that.
func NewFirebaseVerifier(ctx context.Context, projectID string) (*fbauth.Client, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, option.WithoutAuthentication())
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	return client, nil
}

func NewFirebaseProvider(apiKey, projectID string) *FirebaseProvider {
	return &FirebaseProvider{
		APIKey:    apiKey,
		ProjectID: projectID,
		BaseURL:   defaultFirebaseBaseURL,
		Client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type firebaseError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type signInResponse struct {
	LocalID   string `json:"localId"`
	Email     string `json:"email"`
	IDToken   string `json:"idToken"`
	ExpiresIn string `json:"expiresIn"`
}

type lookupResponse struct {
	Users []struct {
		LocalID  string `json:"localId"`
		Email    string `json:"email"`
		Disabled bool   `json:"disabled"`
	} `json:"users"`
}

func (f *FirebaseProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var resp signInResponse
	err := f.call(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	expiresIn, err := strconv.Atoi(resp.ExpiresIn)
	if err != nil {
		expiresIn = 3600
	}
	return &Session{
		Identity:  Identity{Subject: resp.LocalID, Email: resp.Email, Issuer: IssuerFirebase},
		Token:     resp.IDToken,
		ExpiresAt: time.Now().Add(time.Duration(expiresIn) * time.Second),
	}, nil
}

func (f *FirebaseProvider) Verify(ctx context.Context, token string) (*Identity, error) {
	if f.Tokens != nil {
		return f.verifyIDToken(ctx, token)
	}
	return f.lookup(ctx, token)
}

func (f *FirebaseProvider) verifyIDToken(ctx context.Context, token string) (*Identity, error) {
	t, err := f.Tokens.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	email, _ := t.Claims["email"].(string)
	return &Identity{Subject: t.UID, Email: email, Issuer: IssuerFirebase}, nil
}

// lookup asks Firebase who the ID token belongs to. The audience check
// runs first so tokens minted for other projects never leave the process.
func (f *FirebaseProvider) lookup(ctx context.Context, token string) (*Identity, error) {
	if f.ProjectID != "" && !f.audienceMatches(token) {
		return nil, fmt.Errorf("%w: token audience mismatch", ErrUnauthorized)
	}

	var resp lookupResponse
	if err := f.call(ctx, "accounts:lookup", map[string]any{"idToken": token}, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if len(resp.Users) == 0 || resp.Users[0].Disabled {
		return nil, fmt.Errorf("%w: no active firebase user for token", ErrUnauthorized)
	}
	u := resp.Users[0]
	return &Identity{Subject: u.LocalID, Email: u.Email, Issuer: IssuerFirebase}, nil
}

func (f *FirebaseProvider) audienceMatches(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	aud, err := claims.GetAudience()
	if err != nil {
		return false
	}
	for _, a := range aud {
		if a == f.ProjectID {
			return true
		}
	}
	return false
}

func (f *FirebaseProvider) call(ctx context.Context, method string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/v1/%s?key=%s", f.BaseURL, method, url.QueryEscape(f.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("firebase %s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("firebase %s: read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		var fe firebaseError
		if json.Unmarshal(data, &fe) == nil && fe.Error.Message != "" {
			slog.Debug("Firebase rejected request", "method", method, "status", resp.StatusCode, "reason", fe.Error.Message)
			return fmt.Errorf("firebase %s: %s", method, fe.Error.Message)
		}
		return fmt.Errorf("firebase %s: status %d", method, resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("firebase %s: decode response: %w", method, err)
	}
	return nil
}
