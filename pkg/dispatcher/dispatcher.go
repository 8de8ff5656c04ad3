// Package dispatcher implements the I/O dispatcher: the single entry
// point the transport calls into, wiring together the channel
// registry, session core, request handle table, and message header
// attachment.
package dispatcher

import (
	"errors"

	"github.com/systerel/s2opc-go/pkg/channel"
	"github.com/systerel/s2opc-go/pkg/msgheader"
	"github.com/systerel/s2opc-go/pkg/obslog"
	"github.com/systerel/s2opc-go/pkg/reqhandle"
	"github.com/systerel/s2opc-go/pkg/session"
	"github.com/systerel/s2opc-go/pkg/types"
)

// ServiceHandler forwards a service request (read/write/browse) to
// the application layer and produces the matching response body.
type ServiceHandler interface {
	HandleServiceRequest(s *session.Session, req *types.Message) (*types.Message, error)
}

// ResponseHandler delivers a forwarded service response to the
// application callback on the client side.
type ResponseHandler interface {
	HandleServiceResponse(resp *types.Message)
}

// ChannelHandler delegates channel-level messages (HELLO/ACK/open or
// close secure channel) to the channel collaborator.
type ChannelHandler interface {
	HandleChannelMessage(ch types.ChannelHandle, msg *types.Message) error
}

// Dispatcher routes decoded messages between the transport and the
// session layer. It never blocks on the transport: every send goes
// through channel.Registry.SendOnChannel, which is fire-and-forget
// from the dispatcher's perspective.
type Dispatcher struct {
	Channels  *channel.Registry
	Sessions  *session.Registry
	Requests  *reqhandle.Table
	Service   ServiceHandler
	Responses ResponseHandler
	ChannelH  ChannelHandler
}

// OnMessage is the transport's single entry point for decoded
// inbound messages.
func (d *Dispatcher) OnMessage(ch types.ChannelHandle, msg *types.Message) error {
	// Step 1: validate the channel handle.
	if !d.Channels.IsValidChannel(ch) {
		logger := obslog.WithChannelID(uint32(ch))
		logger.Warn().Msg("message received on unknown channel, dropped")
		return types.NewError(types.StatusBadSecureChannelIDInvalid, nil)
	}

	// Step 2: channel-level messages never touch session state.
	if msg.Type.IsChannelLevel() {
		return d.ChannelH.HandleChannelMessage(ch, msg)
	}

	if d.Channels.IsClientChannel(ch) {
		return d.onClientMessage(ch, msg)
	}
	return d.onServerMessage(ch, msg)
}

// onClientMessage handles the client side, which only ever receives
// responses.
func (d *Dispatcher) onClientMessage(ch types.ChannelHandle, msg *types.Message) error {
	s, ok := d.Sessions.SessionByRequestHandle(msg.RequestHandle)
	if !ok {
		logger := obslog.WithChannelID(uint32(ch))
		logger.Warn().Msg("response for unknown request handle, dropped")
		return nil
	}
	if !d.Requests.Validate(msg.RequestHandle, msg.Type) {
		d.Requests.Remove(msg.RequestHandle)
		d.Sessions.ReleaseRequestHandle(msg.RequestHandle)
		s.Fail()
		return types.NewError(types.StatusBadInvalidState, nil)
	}
	d.Requests.Remove(msg.RequestHandle)
	d.Sessions.ReleaseRequestHandle(msg.RequestHandle)

	switch msg.Type {
	case types.MessageTypeCreateSessionResponse:
		ok := msg.Body == nil || isOKBody(msg.Body)
		if err := s.ClientCreateResponse(ok, msg.SessionToken); err != nil {
			s.Fail()
			return err
		}
		if ok {
			d.Sessions.RegisterToken(msg.SessionToken, s)
		}
		return nil
	case types.MessageTypeActivateSessionResponse:
		ok := msg.Body == nil || isOKBody(msg.Body)
		if err := s.ClientActivateResponse(ok); err != nil {
			s.Fail()
			return err
		}
		return nil
	case types.MessageTypeCloseSessionResponse:
		s.CloseComplete()
		return nil
	default:
		// Service response: forward to the application callback.
		if d.Responses != nil {
			d.Responses.HandleServiceResponse(msg)
		}
		return nil
	}
}

// onServerMessage handles inbound requests on a server-side channel.
func (d *Dispatcher) onServerMessage(ch types.ChannelHandle, msg *types.Message) error {
	switch msg.Type {
	case types.MessageTypeCreateSessionRequest:
		configIndex, _ := d.Channels.ConfigIndex(ch)
		s, err := d.Sessions.CreateServerSession(ch, configIndex)
		if err != nil {
			return err
		}
		resp := msgheader.Attach(&types.Message{Type: types.MessageTypeCreateSessionResponse}, msg.RequestHandle, s.Token())
		if err := d.Channels.SendOnChannel(ch, resp); err != nil {
			d.Sessions.Close(s, s.Token())
			return err
		}
		return nil

	case types.MessageTypeActivateSessionRequest:
		s, ok := d.Sessions.SessionByToken(msg.SessionToken)
		if !ok {
			return types.NewError(types.StatusBadSessionIDInvalid, nil)
		}
		user := userFromBody(msg.Body)
		activateErr := s.ServerActivate(ch, user)
		resp := msgheader.Attach(&types.Message{Type: types.MessageTypeActivateSessionResponse, Body: activateErr == nil}, msg.RequestHandle, s.Token())
		if err := d.Channels.SendOnChannel(ch, resp); err != nil {
			d.Sessions.Close(s, s.Token())
			return err
		}
		// A reactivation that tried to change both the channel and the
		// user identity closes the session after the failure response
		// is sent.
		var coded *types.CodedError
		if errors.As(activateErr, &coded) && coded.Code == types.StatusBadIdentityTokenInvalid {
			d.Sessions.Close(s, s.Token())
		}
		return activateErr

	case types.MessageTypeCloseSessionRequest:
		s, ok := d.Sessions.SessionByToken(msg.SessionToken)
		if !ok {
			return types.NewError(types.StatusBadSessionIDInvalid, nil)
		}
		resp := msgheader.Attach(&types.Message{Type: types.MessageTypeCloseSessionResponse}, msg.RequestHandle, msg.SessionToken)
		sendErr := d.Channels.SendOnChannel(ch, resp)
		d.Sessions.Close(s, msg.SessionToken)
		return sendErr

	default:
		s, ok := d.Sessions.SessionByToken(msg.SessionToken)
		if !ok {
			return types.NewError(types.StatusBadSessionIDInvalid, nil)
		}
		if boundCh, has := s.Channel(); !has || boundCh != ch {
			return types.NewError(types.StatusBadSecureChannelIDInvalid, nil)
		}
		resp, err := d.Service.HandleServiceRequest(s, msg)
		if err != nil {
			return err
		}
		msgheader.Attach(resp, msg.RequestHandle, msg.SessionToken)
		return d.Channels.SendOnChannel(ch, resp)
	}
}

// OnConnect runs when a channel (re)connects: any session orphaned
// under its configuration index gets a reactivation request enqueued
// on the new channel.
func (d *Dispatcher) OnConnect(ch types.ChannelHandle) error {
	configIndex, ok := d.Channels.ConfigIndex(ch)
	if !ok {
		return types.NewError(types.StatusBadSecureChannelIDInvalid, nil)
	}
	for _, s := range d.Sessions.SessionsForConfigIndex(configIndex) {
		if s.State() != session.StateScOrphaned {
			continue
		}
		if err := s.ClientScActivateRequest(ch); err != nil {
			continue
		}
		handle := d.Requests.FreshRequestHandle(types.MessageTypeActivateSessionResponse)
		d.Sessions.BindRequestHandle(s, handle)
		req := msgheader.Attach(&types.Message{Type: types.MessageTypeActivateSessionRequest, Body: s.User()}, handle, s.Token())
		if err := d.Channels.SendOnChannel(ch, req); err != nil {
			s.Fail()
		}
	}
	return nil
}

// OnChannelLost handles the loss of a channel: for every session
// bound to ch, orphan it if a replacement channel with the same
// configuration index is already connected, otherwise close it.
// Server-side sessions always close; servers never migrate sessions
// across channels.
func (d *Dispatcher) OnChannelLost(ch types.ChannelHandle) {
	configIndex, ok := d.Channels.ConfigIndex(ch)
	if !ok {
		return
	}
	isClient := d.Channels.IsClientChannel(ch)
	for _, s := range d.Sessions.SessionsForConfigIndex(configIndex) {
		boundCh, has := s.Channel()
		if !has || boundCh != ch {
			continue
		}
		if isClient && s.IsClient {
			replacements := d.Channels.ChannelsWithConfigIndex(configIndex)
			if len(replacements) > 0 {
				s.MarkOrphaned()
				continue
			}
		}
		s.Fail()
	}
}

func isOKBody(body interface{}) bool {
	ok, isBool := body.(bool)
	return !isBool || ok
}

func userFromBody(body interface{}) types.UserIdentityToken {
	if u, ok := body.(types.UserIdentityToken); ok {
		return u
	}
	return types.UserIdentityToken{}
}
