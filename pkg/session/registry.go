package session

import (
	"sync"

	"github.com/systerel/s2opc-go/pkg/obslog"
	"github.com/systerel/s2opc-go/pkg/types"
)

// Registry is the long-lived session registry singleton, addressed by
// both request handle (client-side correlation) and session token
// (server-side correlation).
type Registry struct {
	mu       sync.Mutex
	byToken  map[types.SessionToken]*Session
	byHandle map[types.RequestHandle]*Session
}

// NewRegistry builds an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		byToken:  make(map[types.SessionToken]*Session),
		byHandle: make(map[types.RequestHandle]*Session),
	}
}

// NewClientSession creates an init-state client-side session, not yet
// registered under any token (the client learns its token from the
// CreateSessionResponse).
func (r *Registry) NewClientSession() *Session {
	return newSession(true)
}

// CreateServerSession mints a fresh token, transitions a new
// server-side session to created, and registers it. Token uniqueness
// across live sessions is a hard invariant, enforced by retrying the
// draw against byToken.
func (r *Registry) CreateServerSession(ch types.ChannelHandle, configIndex types.ChannelConfigIndex) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, err := allocateToken(func(t types.SessionToken) bool {
		_, taken := r.byToken[t]
		return taken
	})
	if err != nil {
		return nil, err
	}

	s := newSession(false)
	if err := s.ServerCreate(ch, configIndex, token); err != nil {
		return nil, err
	}
	r.byToken[token] = s
	logger := obslog.WithSessionID(s.ID)
	logger.Info().Msg("server session created")
	return s, nil
}

// BindRequestHandle records that handle was issued on behalf of s,
// for both the session's own pending set and the registry's reverse
// index used by client-side response dispatch.
func (r *Registry) BindRequestHandle(s *Session, h types.RequestHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.AddPendingHandle(h)
	r.byHandle[h] = s
}

// SessionByRequestHandle resolves the session that owns h, for
// client-side response dispatch.
func (r *Registry) SessionByRequestHandle(h types.RequestHandle) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byHandle[h]
	return s, ok
}

// SessionByToken resolves a session by its server-issued token, for
// server-side activate/close dispatch (which correlates by token, not
// request handle).
func (r *Registry) SessionByToken(token types.SessionToken) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byToken[token]
	return s, ok
}

// RegisterToken indexes a client-side session under the token it
// learned from a successful CreateSessionResponse.
func (r *Registry) RegisterToken(token types.SessionToken, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byToken[token] = s
}

// ReleaseRequestHandle drops h from the reverse index and from its
// owning session's pending set, run on response dispatch or timeout.
func (r *Registry) ReleaseRequestHandle(h types.RequestHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byHandle[h]; ok {
		s.RemovePendingHandle(h)
		delete(r.byHandle, h)
	}
}

// Close transitions s to closed and removes it, along with every
// pending handle it owned, from the registry; freeing a session frees
// every contained handle.
func (r *Registry) Close(s *Session, token types.SessionToken) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.CloseComplete()
	delete(r.byToken, token)
	for h, owner := range r.byHandle {
		if owner == s {
			delete(r.byHandle, h)
		}
	}
}

// SessionsForConfigIndex returns every session bound to configIndex,
// used on channel loss to decide orphan-vs-close per session.
func (r *Registry) SessionsForConfigIndex(configIndex types.ChannelConfigIndex) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Session
	seen := make(map[*Session]bool)
	for _, s := range r.byToken {
		if s.ConfigIndex() == configIndex && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// StateCounts returns the number of registered sessions in each state,
// for metrics collection. Close removes a session from the registry,
// so it no longer appears here; a session closed by Session.Fail stays
// registered and is counted as closed.
func (r *Registry) StateCounts() map[State]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[State]int)
	seen := make(map[*Session]bool)
	for _, s := range r.byToken {
		if !seen[s] {
			seen[s] = true
			counts[s.State()]++
		}
	}
	return counts
}
