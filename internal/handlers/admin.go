package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"

	"github.com/websitelelo/websitelelo/internal/auth"
	"github.com/websitelelo/websitelelo/internal/content"
	"github.com/websitelelo/websitelelo/internal/metrics"
)

const (
	sessionName     = "admin-session"
	sessionTokenKey = "token"
)

type AdminHandler struct {
	Gate         *auth.Gate
	Catalog      *content.Catalog
	SessionStore sessions.Store
	// CSRF guards requests authenticated by the session cookie. Bearer
	// requests skip it. Nil disables the check.
	CSRF         func(http.Handler) http.Handler
	CookieSecure bool
	Metrics      *metrics.Metrics
}

type identityKey struct{}

// IdentityFrom returns the admin that AuthMiddleware let through.
func IdentityFrom(ctx context.Context) (*auth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*auth.Identity)
	return id, ok
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Token     string      `json:"token"`
	IsDemo    bool        `json:"isDemo"`
	Provider  auth.Issuer `json:"provider"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	sess, err := h.Gate.Login(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.Metrics.Login("rejected")
			writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		slog.Error("Login failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	h.Metrics.Login(string(sess.Issuer))

	if h.SessionStore != nil {
		session, _ := h.SessionStore.Get(r, sessionName)
		session.Values[sessionTokenKey] = sess.Token
		session.Options.MaxAge = int(time.Until(sess.ExpiresAt).Seconds())
		if err := session.Save(r, w); err != nil {
			// bearer clients do not need the cookie
			slog.Error("Failed to save session", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, loginResponse{
		ID:        sess.Subject,
		Email:     sess.Email,
		Token:     sess.Token,
		IsDemo:    sess.IsDemo(),
		Provider:  sess.Issuer,
		ExpiresAt: sess.ExpiresAt,
	})
}

func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.SessionStore != nil {
		session, _ := h.SessionStore.Get(r, sessionName)
		delete(session.Values, sessionTokenKey)
		session.Options.MaxAge = -1 // Expire immediately
		if err := session.Save(r, w); err != nil {
			slog.Error("Failed to clear session", "error", err)
		}
	}
	writeMessage(w, http.StatusOK, "Logged out")
}

type meResponse struct {
	ID       string      `json:"id"`
	Email    string      `json:"email"`
	Provider auth.Issuer `json:"provider"`
	IsDemo   bool        `json:"isDemo"`
}

func (h *AdminHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Not authorized")
		return
	}
	if token := csrf.Token(r); token != "" {
		w.Header().Set("X-CSRF-Token", token)
	}
	writeJSON(w, http.StatusOK, meResponse{ID: id.Subject, Email: id.Email, Provider: id.Issuer, IsDemo: id.IsDemo()})
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Catalog.Stats(r.Context())
	if err != nil {
		writeStoreError(w, r, "Stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// AuthMiddleware lets a request through when it carries a valid bearer
// token, or an admin session cookie plus a valid CSRF token.
func (h *AdminHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	var cookieChain http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.serveVerified(w, r, sessionToken(h.SessionStore, r), next)
	})
	if h.CSRF != nil {
		cookieChain = h.CSRF(cookieChain)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if token, ok := bearerToken(r); ok {
			h.serveVerified(w, r, token, next)
			return
		}
		if sessionToken(h.SessionStore, r) == "" {
			slog.Debug("AuthMiddleware: no credentials", "path", r.URL.Path)
			writeMessage(w, http.StatusUnauthorized, "Not authorized")
			return
		}
		if !h.CookieSecure {
			r = csrf.PlaintextHTTPRequest(r)
		}
		cookieChain.ServeHTTP(w, r)
	}
}

func (h *AdminHandler) serveVerified(w http.ResponseWriter, r *http.Request, token string, next http.HandlerFunc) {
	id, err := h.Gate.Verify(r.Context(), token)
	if err != nil {
		slog.Info("AuthMiddleware: rejected token", "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusUnauthorized, "Not authorized")
		return
	}
	slog.Debug("AuthMiddleware: admin authenticated", "subject", id.Subject, "issuer", id.Issuer, "path", r.URL.Path)
	next(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func sessionToken(store sessions.Store, r *http.Request) string {
	if store == nil {
		return ""
	}
	session, err := store.Get(r, sessionName)
	if err != nil {
		return ""
	}
	token, _ := session.Values[sessionTokenKey].(string)
	return token
}

// CSRFErrorHandler answers failed CSRF checks in the API's JSON shape.
func CSRFErrorHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Warn("CSRF check failed", "path", r.URL.Path, "reason", csrf.FailureReason(r))
		writeMessage(w, http.StatusForbidden, "Invalid CSRF token")
	})
}
