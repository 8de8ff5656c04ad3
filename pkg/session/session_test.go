package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/systerel/s2opc-go/pkg/types"
)

func TestClientHappyPath(t *testing.T) {
	reg := NewRegistry()
	s := reg.NewClientSession()
	require.Equal(t, StateInit, s.State())

	require.NoError(t, s.ClientCreateRequest(1, types.ChannelConfigIndex(1)))
	require.Equal(t, StateCreating, s.State())

	require.NoError(t, s.ClientCreateResponse(true, types.SessionToken(42)))
	require.Equal(t, StateCreated, s.State())
	require.Equal(t, types.SessionToken(42), s.Token())

	require.NoError(t, s.ClientUserActivate(types.UserIdentityToken{Opaque: "alice"}))
	require.Equal(t, StateUserActivating, s.State())

	require.NoError(t, s.ClientActivateResponse(true))
	require.Equal(t, StateUserActivated, s.State())

	require.NoError(t, s.CloseRequest())
	require.Equal(t, StateClosing, s.State())
	s.CloseComplete()
	require.Equal(t, StateClosed, s.State())
}

func TestClientCreateResponseFailureCloses(t *testing.T) {
	reg := NewRegistry()
	s := reg.NewClientSession()
	require.NoError(t, s.ClientCreateRequest(1, types.ChannelConfigIndex(1)))
	require.NoError(t, s.ClientCreateResponse(false, 0))
	require.Equal(t, StateClosed, s.State())
}

func TestClosedSessionNeverTransitionsBackwards(t *testing.T) {
	reg := NewRegistry()
	s := reg.NewClientSession()
	s.Fail()
	require.Equal(t, StateClosed, s.State())
	require.Error(t, s.ClientCreateRequest(1, types.ChannelConfigIndex(1)))
	require.Error(t, s.CloseRequest())
	require.Equal(t, StateClosed, s.State())
}

func TestOrphanAndReactivation(t *testing.T) {
	reg := NewRegistry()
	s := reg.NewClientSession()
	require.NoError(t, s.ClientCreateRequest(1, types.ChannelConfigIndex(1)))
	require.NoError(t, s.ClientCreateResponse(true, types.SessionToken(7)))
	require.NoError(t, s.ClientUserActivate(types.UserIdentityToken{Opaque: "bob"}))
	require.NoError(t, s.ClientActivateResponse(true))

	s.MarkOrphaned()
	require.Equal(t, StateScOrphaned, s.State())
	_, hasChannel := s.Channel()
	require.False(t, hasChannel)

	require.NoError(t, s.ClientScActivateRequest(types.ChannelHandle(2)))
	require.Equal(t, StateScActivating, s.State())
	require.NoError(t, s.ClientActivateResponse(true))
	require.Equal(t, StateUserActivated, s.State())
}

func TestServerCreateAndActivate(t *testing.T) {
	reg := NewRegistry()
	s, err := reg.CreateServerSession(types.ChannelHandle(1), types.ChannelConfigIndex(1<<31))
	require.NoError(t, err)
	require.Equal(t, StateCreated, s.State())

	require.NoError(t, s.ServerActivate(types.ChannelHandle(1), types.UserIdentityToken{Opaque: "carol"}))
	require.Equal(t, StateUserActivated, s.State())
}

func TestServerRejectsSimultaneousChannelAndUserChange(t *testing.T) {
	reg := NewRegistry()
	s, err := reg.CreateServerSession(types.ChannelHandle(1), types.ChannelConfigIndex(1<<31))
	require.NoError(t, err)
	require.NoError(t, s.ServerActivate(types.ChannelHandle(1), types.UserIdentityToken{Opaque: "carol"}))

	err = s.ServerActivate(types.ChannelHandle(2), types.UserIdentityToken{Opaque: "dave"})
	require.Error(t, err)
	require.Equal(t, StateUserActivated, s.State())
}

func TestServerAllowsChannelChangeWithSameUser(t *testing.T) {
	reg := NewRegistry()
	s, err := reg.CreateServerSession(types.ChannelHandle(1), types.ChannelConfigIndex(1<<31))
	require.NoError(t, err)
	require.NoError(t, s.ServerActivate(types.ChannelHandle(1), types.UserIdentityToken{Opaque: "carol"}))

	require.NoError(t, s.ServerActivate(types.ChannelHandle(2), types.UserIdentityToken{Opaque: "carol"}))
	require.Equal(t, StateUserActivated, s.State())
}

func TestPendingHandlesClearedOnClose(t *testing.T) {
	reg := NewRegistry()
	s := reg.NewClientSession()
	h := types.RequestHandle(5)
	reg.BindRequestHandle(s, h)
	require.True(t, s.OwnsPendingHandle(h))

	reg.Close(s, s.Token())
	require.False(t, s.OwnsPendingHandle(h))
	_, ok := reg.SessionByRequestHandle(h)
	require.False(t, ok)
}

func TestHistoryIsAValidPath(t *testing.T) {
	reg := NewRegistry()
	s := reg.NewClientSession()
	require.NoError(t, s.ClientCreateRequest(1, types.ChannelConfigIndex(1)))
	require.NoError(t, s.ClientCreateResponse(true, types.SessionToken(1)))
	s.Fail()

	history := s.History()
	require.Equal(t, []State{StateInit, StateCreating, StateCreated, StateClosed}, history)
}
