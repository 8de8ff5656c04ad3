// Package msgheader implements the Message Header Table: it
// attaches the request_handle and session_token fields to an outgoing
// message before it reaches the wire codec.
package msgheader

import "github.com/systerel/s2opc-go/pkg/types"

// Attach sets RequestHandle and SessionToken on msg and returns it,
// the two fields every session-scoped outgoing request or response
// carries. token may be the zero value for requests
// issued before a session exists (e.g. CreateSessionRequest).
func Attach(msg *types.Message, handle types.RequestHandle, token types.SessionToken) *types.Message {
	msg.RequestHandle = handle
	msg.SessionToken = token
	return msg
}
