/*
Package types defines the shared vocabulary for the session/secure-channel
core: the status-code taxonomy, opaque message and session identifiers,
and the handful of typed accessors the dispatcher needs on an otherwise
opaque decoded message.

# Architecture

	┌──────────────────── SHARED VOCABULARY ───────────────────┐
	│                                                            │
	│  StatusCode / CodedError                                  │
	│    - fixed taxonomy (Invalid, Untrusted, Revoked, ...)    │
	│    - the module's own failures carry one of these         │
	│                                                            │
	│  MessageType                                              │
	│    - channel-level vs session-level vs service            │
	│    - IsChannelLevel(), IsResponse()                       │
	│                                                            │
	│  RequestHandle / SessionToken / ChannelHandle             │
	│    - opaque correlation ids, never interpreted as values  │
	│                                                            │
	│  UserIdentityToken                                        │
	│    - opaque handle compared for equality across           │
	│      reactivation, never inspected                        │
	└────────────────────────────────────────────────────────────┘

Nothing in this package allocates resources or performs I/O; it exists so
pkg/session, pkg/channel, pkg/reqhandle, pkg/msgheader, pkg/dispatcher,
and pkg/pki can share identifiers without importing each other.
*/
package types
