package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello    = "HELLO"
	TypeWelcome  = "WELCOME"
	TypeAct      = "ACT"
	TypeChat     = "CHAT"
	TypeSound    = "SOUND"
	TypeProgress = "BREAK_PROGRESS"
	TypeStatus   = "RAID_STATUS"
	TypeError    = "ERROR"
)

// Session roles.
const (
	RoleObserver = "observer"
	RolePlayer   = "player"
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
