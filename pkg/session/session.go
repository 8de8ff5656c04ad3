// Package session implements the Session Core: the client- and
// server-side session state machines, server-side token allocation,
// pending-request-handle bookkeeping, and the channel-loss/
// reactivation rules. Tokens are crypto/rand-drawn identifiers,
// retried on collision against the registry's live sessions.
package session

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/systerel/s2opc-go/pkg/obslog"
	"github.com/systerel/s2opc-go/pkg/types"
)

// State is one of the nine session states.
type State int

const (
	StateInit State = iota
	StateCreating
	StateCreated
	StateUserActivating
	StateUserActivated
	StateScOrphaned
	StateScActivating
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateCreating:
		return "creating"
	case StateCreated:
		return "created"
	case StateUserActivating:
		return "userActivating"
	case StateUserActivated:
		return "userActivated"
	case StateScOrphaned:
		return "scOrphaned"
	case StateScActivating:
		return "scActivating"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one per-session record. IsClient distinguishes the
// client-side state machine (full nine-state diagram) from the
// server-side mirror (init -> created -> userActivated, plus the
// shared closing/orphan handling).
type Session struct {
	mu sync.Mutex

	// ID is a stable identifier for logs and audit records. Unlike the
	// numeric token it is never reused after closure.
	ID string

	IsClient    bool
	state       State
	history     []State
	channel     types.ChannelHandle
	hasChannel  bool
	configIndex types.ChannelConfigIndex
	token       types.SessionToken
	user        types.UserIdentityToken
	pending     map[types.RequestHandle]struct{}
}

func newSession(isClient bool) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		IsClient: isClient,
		state:    StateInit,
		pending:  make(map[types.RequestHandle]struct{}),
	}
	s.history = append(s.history, StateInit)
	return s
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns the recorded sequence of states the session has
// occupied, oldest first.
func (s *Session) History() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]State, len(s.history))
	copy(out, s.history)
	return out
}

// Channel returns the currently bound channel and whether one is
// bound (indeterminate in init and scOrphaned).
func (s *Session) Channel() (types.ChannelHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel, s.hasChannel
}

// Token returns the session's token.
func (s *Session) Token() types.SessionToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// User returns the currently bound user identity.
func (s *Session) User() types.UserIdentityToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// AddPendingHandle records a request handle as belonging to this
// session.
func (s *Session) AddPendingHandle(h types.RequestHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[h] = struct{}{}
}

// RemovePendingHandle removes a handle on response dispatch.
func (s *Session) RemovePendingHandle(h types.RequestHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, h)
}

// OwnsPendingHandle reports whether h currently belongs to this
// session.
func (s *Session) OwnsPendingHandle(h types.RequestHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[h]
	return ok
}

// clearPendingHandles drops every pending handle, run on close so
// late-arriving responses are silently dropped.
func (s *Session) clearPendingHandles() {
	s.pending = make(map[types.RequestHandle]struct{})
}

func (s *Session) transitionLocked(next State) {
	s.state = next
	s.history = append(s.history, next)
}

var errInvalidState = func(from State, event string) error {
	return types.NewError(types.StatusBadInvalidState, fmt.Errorf("session in state %s cannot handle %s", from, event))
}

// --- Client-side transitions ---

// ClientCreateRequest moves init -> creating.
func (s *Session) ClientCreateRequest(ch types.ChannelHandle, configIndex types.ChannelConfigIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInit {
		return errInvalidState(s.state, "cli_create_req")
	}
	s.channel = ch
	s.hasChannel = true
	s.configIndex = configIndex
	s.transitionLocked(StateCreating)
	return nil
}

// ClientCreateResponse moves creating -> created on ok, or -> closed
// on failure.
func (s *Session) ClientCreateResponse(ok bool, token types.SessionToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCreating {
		return errInvalidState(s.state, "cli_create_resp")
	}
	if !ok {
		s.transitionLocked(StateClosed)
		return nil
	}
	s.token = token
	s.transitionLocked(StateCreated)
	return nil
}

// ClientUserActivate moves created -> userActivating.
func (s *Session) ClientUserActivate(user types.UserIdentityToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCreated {
		return errInvalidState(s.state, "cli_user_activate")
	}
	s.user = user
	s.transitionLocked(StateUserActivating)
	return nil
}

// ClientActivateResponse moves userActivating -> userActivated, or
// scActivating -> userActivated (the reactivation path), on ok; on
// failure the session closes.
func (s *Session) ClientActivateResponse(ok bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUserActivating && s.state != StateScActivating {
		return errInvalidState(s.state, "activate_resp")
	}
	if !ok {
		s.transitionLocked(StateClosed)
		return nil
	}
	s.transitionLocked(StateUserActivated)
	return nil
}

// ClientScActivateRequest moves scOrphaned -> scActivating. The
// reactivation request must carry the same user identity the session
// last activated with.
func (s *Session) ClientScActivateRequest(ch types.ChannelHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateScOrphaned {
		return errInvalidState(s.state, "cli_sc_activate_req")
	}
	s.channel = ch
	s.hasChannel = true
	s.transitionLocked(StateScActivating)
	return nil
}

// CloseRequest moves any non-closed state to closing.
func (s *Session) CloseRequest() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return errInvalidState(s.state, "cli_close_req")
	}
	s.transitionLocked(StateClosing)
	return nil
}

// CloseComplete moves closing -> closed, on a close response, a
// timeout, or an outright failure; it is also the generic
// fatal/mismatch transition used from any non-closed state.
func (s *Session) CloseComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitionLocked(StateClosed)
	s.clearPendingHandles()
}

// Fail forces the session to closed from any non-closed state, the
// "any state --fatal/mismatch--> closed" transition.
func (s *Session) Fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.transitionLocked(StateClosed)
	s.clearPendingHandles()
}

// --- Server-side mirror ---

// ServerCreate moves init -> created in one step (the server performs
// create_req_and_resp atomically from the dispatcher's perspective).
func (s *Session) ServerCreate(ch types.ChannelHandle, configIndex types.ChannelConfigIndex, token types.SessionToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInit {
		return errInvalidState(s.state, "create_req_and_resp")
	}
	s.channel = ch
	s.hasChannel = true
	s.configIndex = configIndex
	s.token = token
	s.transitionLocked(StateCreated)
	return nil
}

// ServerActivate moves created -> userActivated on first activation,
// and governs reactivation after orphaning: channel-transfer
// reactivation is allowed only when the presented identity equals the
// currently bound user; a user change requires staying on the same
// channel. A request that changes BOTH the channel and the user in
// the same call is rejected.
func (s *Session) ServerActivate(ch types.ChannelHandle, user types.UserIdentityToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateCreated:
		s.channel = ch
		s.hasChannel = true
		s.user = user
		s.transitionLocked(StateUserActivated)
		return nil
	case StateUserActivated, StateScOrphaned:
		channelChanged := !s.hasChannel || s.channel != ch
		userChanged := !s.user.Equal(user)
		if channelChanged && userChanged {
			logger := obslog.WithComponent("session")
			logger.Warn().Msg("rejected reactivation changing both channel and user identity")
			return types.NewError(types.StatusBadIdentityTokenInvalid,
				fmt.Errorf("reactivation cannot change both channel and user identity in one request"))
		}
		s.channel = ch
		s.hasChannel = true
		s.user = user
		s.transitionLocked(StateUserActivated)
		return nil
	default:
		return errInvalidState(s.state, "activate_req_and_resp")
	}
}

// MarkOrphaned transitions a connected session to scOrphaned when its
// channel drops and a replacement with the same configuration index
// already exists. The stale channel handle
// is cleared; ClientScActivateRequest/ServerActivate will bind the
// replacement.
func (s *Session) MarkOrphaned() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.hasChannel = false
	s.transitionLocked(StateScOrphaned)
}

// ConfigIndex returns the configuration index the session was created
// under, used to find replacement channels on loss.
func (s *Session) ConfigIndex() types.ChannelConfigIndex {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configIndex
}

// allocateToken draws a fresh, non-zero SessionToken via crypto/rand,
// retrying on collision against the registry's live sessions. Reuse
// after closure is acceptable; this only guards against collisions
// with currently-live tokens.
func allocateToken(taken func(types.SessionToken) bool) (types.SessionToken, error) {
	buf := make([]byte, 4)
	for attempt := 0; attempt < 64; attempt++ {
		if _, err := rand.Read(buf); err != nil {
			return 0, types.NewError(types.StatusBadOutOfMemory, fmt.Errorf("draw session token entropy: %w", err))
		}
		token := types.SessionToken(binary.BigEndian.Uint32(buf))
		if token == 0 {
			continue
		}
		if !taken(token) {
			return token, nil
		}
	}
	return 0, types.NewError(types.StatusBadOutOfMemory, fmt.Errorf("exhausted attempts to allocate a unique session token"))
}

