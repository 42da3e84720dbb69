package ws

import "encoding/json"

// Client to server message types
const (
	MsgJoinSession = "join-session"
)

// MsgError is sent when a join could not be served for reasons other than
// an unknown session
const MsgError = "error"

// InboundMessage is a frame received from a display client
type InboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// JoinPayload asks to follow the session holding SessionCode
type JoinPayload struct {
	SessionCode string `json:"sessionCode"`
}

// ErrorPayload describes a failed request
type ErrorPayload struct {
	Error string `json:"error"`
}
