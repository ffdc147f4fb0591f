// Package session is the auth boundary. The login flow lives elsewhere; this
// package only carries read-only accessors to what it produced — the bearer
// token and the local identity — plus the logout callback invoked on fatal
// auth failure. Components receive a Boundary at construction instead of
// reading ambient globals.
package session

import "sync"

// Boundary supplies the current token and identity as call-time snapshots.
type Boundary struct {
	// Token returns the current bearer token, or "" when logged out.
	Token func() string
	// UserID returns the authenticated user's id, or "" when logged out.
	UserID func() string
	// Logout is invoked when the server rejects the token. May be nil.
	Logout func()
}

// Static builds a fixed boundary, mostly for tests and single-run tools.
func Static(token, userID string, logout func()) Boundary {
	return Boundary{
		Token:  func() string { return token },
		UserID: func() string { return userID },
		Logout: logout,
	}
}

// Holder is a mutable token/identity pair safe for concurrent access.
// The daemon updates it when credentials rotate; stores read through
// the Boundary it exposes.
type Holder struct {
	mu     sync.RWMutex
	token  string
	userID string
	logout func()
}

func NewHolder(logout func()) *Holder {
	return &Holder{logout: logout}
}

// Set replaces the current credentials.
func (h *Holder) Set(token, userID string) {
	h.mu.Lock()
	h.token = token
	h.userID = userID
	h.mu.Unlock()
}

// Clear drops the credentials (logout).
func (h *Holder) Clear() {
	h.Set("", "")
}

func (h *Holder) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

func (h *Holder) UserID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.userID
}

// Boundary exposes the holder as a read-only boundary.
func (h *Holder) Boundary() Boundary {
	return Boundary{
		Token:  h.Token,
		UserID: h.UserID,
		Logout: func() {
			h.Clear()
			if h.logout != nil {
				h.logout()
			}
		},
	}
}
