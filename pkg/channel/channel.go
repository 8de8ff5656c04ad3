// Package channel models the Channel Registry collaborator: the
// opaque handle type the dispatcher addresses channels by, the four
// operations it requires of the transport layer, and the event types
// the transport raises into the dispatcher.
package channel

import (
	"sync"

	"github.com/systerel/s2opc-go/pkg/types"
)

// EventType enumerates the events the transport raises into the
// dispatcher.
type EventType int

const (
	EventChannelConnected EventType = iota
	EventChannelLost
	EventChannelConnectionTimeout
	EventMessageReceived
	EventNewServerChannel
)

func (e EventType) String() string {
	switch e {
	case EventChannelConnected:
		return "channel_connected"
	case EventChannelLost:
		return "channel_lost"
	case EventChannelConnectionTimeout:
		return "channel_connection_timeout"
	case EventMessageReceived:
		return "message_received"
	case EventNewServerChannel:
		return "new_server_channel"
	default:
		return "unknown"
	}
}

// Event is one transport-originated occurrence for the dispatcher.
type Event struct {
	Type    EventType
	Channel types.ChannelHandle
	Message *types.Message // set only for EventMessageReceived
}

// Sender is the narrow surface the dispatcher needs from the
// transport to push a message out on a channel. Implementations may
// reject synchronously, but must never block.
type Sender interface {
	SendOnChannel(ch types.ChannelHandle, msg *types.Message) error
}

// record is the registry's internal bookkeeping for one channel.
type record struct {
	isClient    bool
	connected   bool
	configIndex types.ChannelConfigIndex
}

// Registry is the in-memory Channel Registry. It is the
// single point through which the dispatcher asks "is this handle
// valid / client-side / connected" and obtains a channel's
// configuration index.
type Registry struct {
	mu       sync.Mutex
	channels map[types.ChannelHandle]*record
	sender   Sender
}

// NewRegistry builds an empty registry that sends outbound messages
// through sender.
func NewRegistry(sender Sender) *Registry {
	return &Registry{
		channels: make(map[types.ChannelHandle]*record),
		sender:   sender,
	}
}

// Register adds a channel, e.g. on EventChannelConnected or
// EventNewServerChannel.
func (r *Registry) Register(ch types.ChannelHandle, configIndex types.ChannelConfigIndex) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch] = &record{
		isClient:    configIndex.IsClientConfig(),
		connected:   true,
		configIndex: configIndex,
	}
}

// SetConnected updates a channel's connectivity, e.g. on
// EventChannelLost (connected = false).
func (r *Registry) SetConnected(ch types.ChannelHandle, connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.channels[ch]; ok {
		rec.connected = connected
	}
}

// Remove drops a channel record entirely.
func (r *Registry) Remove(ch types.ChannelHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, ch)
}

// IsValidChannel reports whether ch is a currently registered channel.
func (r *Registry) IsValidChannel(ch types.ChannelHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.channels[ch]
	return ok
}

// IsClientChannel reports whether ch was configured client-side.
func (r *Registry) IsClientChannel(ch types.ChannelHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.channels[ch]
	return ok && rec.isClient
}

// IsConnected reports whether ch is currently connected.
func (r *Registry) IsConnected(ch types.ChannelHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.channels[ch]
	return ok && rec.connected
}

// ConfigIndex returns ch's configuration index and whether ch is
// valid.
func (r *Registry) ConfigIndex(ch types.ChannelHandle) (types.ChannelConfigIndex, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.channels[ch]
	if !ok {
		return 0, false
	}
	return rec.configIndex, true
}

// ChannelsWithConfigIndex returns every connected channel currently
// registered under configIndex, used to find a replacement channel on
// channel loss.
func (r *Registry) ChannelsWithConfigIndex(configIndex types.ChannelConfigIndex) []types.ChannelHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.ChannelHandle
	for ch, rec := range r.channels {
		if rec.connected && rec.configIndex == configIndex {
			out = append(out, ch)
		}
	}
	return out
}

// RoleCounts returns the number of connected channels by role
// ("client"/"server"), for metrics collection.
func (r *Registry) RoleCounts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, rec := range r.channels {
		if !rec.connected {
			continue
		}
		if rec.isClient {
			counts["client"]++
		} else {
			counts["server"]++
		}
	}
	return counts
}

// SendOnChannel forwards to the configured Sender. It is
// fire-and-forget from the dispatcher's perspective but may return a
// synchronous rejection.
func (r *Registry) SendOnChannel(ch types.ChannelHandle, msg *types.Message) error {
	if !r.IsValidChannel(ch) {
		return types.NewError(types.StatusBadSecureChannelIDInvalid, nil)
	}
	if !r.IsConnected(ch) {
		return types.NewError(types.StatusBadSecureChannelClosed, nil)
	}
	return r.sender.SendOnChannel(ch, msg)
}
