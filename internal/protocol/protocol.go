package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello = "HELLO"
	TypeState = "STATE"
	TypeCmd   = "CMD"
	TypeError = "ERROR"
)

// CMD operations.
const (
	OpSelect  = "select"
	OpAdd     = "add"
	OpDelete  = "delete"
	OpUpdate  = "update"
	OpPreset  = "preset"
	OpTexture = "texture"
	OpSave    = "save"
	OpReload  = "reload"
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
