package services

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Session is one user's isolated context: an id and the credentials the
// user entered. Sessions never share credentials or cached handles.
type Session struct {
	id          string
	credentials *CredentialStore
	closed      atomic.Bool
}

// NewSession creates a session whose credentials validate against schemas.
func NewSession(schemas SchemaSource) *Session {
	return &Session{
		id:          uuid.NewString(),
		credentials: NewCredentialStore(schemas),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Credentials returns the session's credential store.
func (s *Session) Credentials() *CredentialStore { return s.credentials }

// Closed reports whether Close has been called.
func (s *Session) Closed() bool { return s.closed.Load() }

// Close clears every credential held by the session.
func (s *Session) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.credentials.ClearAll()
	}
}
