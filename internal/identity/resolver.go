// Package identity resolves a stable anonymous voter identity carried in
// a signed cookie. Identities are not tied to any account; tampering with
// the cookie just yields a fresh identity.
package identity

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	sessionName      = "polls_voter"
	sessionKeyVoter  = "voter_id"
	identityValidity = 86400 * 30 // 30 days, in seconds
)

// Resolver derives the voter identity from a request's signed cookie,
// minting a new one when absent or invalid.
type Resolver struct {
	store *sessions.CookieStore
}

// NewResolver creates a resolver whose cookies are signed with secret.
func NewResolver(secret string, secure bool) *Resolver {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   identityValidity,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Resolver{store: store}
}

// Resolve returns the voter identity carried by the request, or mints a
// new one. fresh reports whether the identity was newly minted and still
// needs to be issued onto a response.
func (r *Resolver) Resolve(req *http.Request) (voterID uuid.UUID, fresh bool) {
	session, err := r.store.Get(req, sessionName)
	if err == nil {
		if raw, ok := session.Values[sessionKeyVoter].(string); ok {
			if id, parseErr := uuid.Parse(raw); parseErr == nil {
				return id, false
			}
		}
	}
	return uuid.New(), true
}

// Issue writes the identity carrier onto the response so the browser
// presents the same voter identity for the next 30 days.
func (r *Resolver) Issue(req *http.Request, w http.ResponseWriter, voterID uuid.UUID) error {
	session, _ := r.store.New(req, sessionName)
	session.Values[sessionKeyVoter] = voterID.String()
	if err := session.Save(req, w); err != nil {
		return fmt.Errorf("failed to save identity cookie: %w", err)
	}
	return nil
}
