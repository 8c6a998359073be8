// Package protocol holds the wire shapes shared by the HTTP and websocket
// transports, the error codes they carry and the request schemas.
package protocol

import "encoding/json"

const Version = "1.0"

// Websocket message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeRequest = "REQ"
	TypeResult  = "RESULT"
)

// Websocket request operations.
const (
	OpLook      = "LOOK"
	OpEnter     = "ENTER"
	OpFindHouse = "FIND_HOUSE"
	OpMove      = "MOVE"
	OpLeave     = "LEAVE"
	OpBuild     = "BUILD"
	OpClear     = "CLEAR"
	OpMoveVault = "MOVE_VAULT"
	OpVault     = "VAULT"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
