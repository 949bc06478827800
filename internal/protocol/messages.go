package protocol

import "blockedit.ai/internal/blocks"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
}

// STATE (server -> client): the whole table plus session status. Sent after
// HELLO and broadcast after every accepted CMD.
type StateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             uint64 `json:"seq"`
	ClientID        string `json:"client_id,omitempty"`

	Path     string          `json:"path"`
	Loaded   bool            `json:"loaded"`
	Dirty    bool            `json:"dirty"`
	Selected int             `json:"selected"`
	Blocks   []blocks.Record `json:"blocks"`
	Presets  []string        `json:"presets"`
	Atlas    AtlasInfo       `json:"atlas"`

	Selection *SelectionView `json:"selection,omitempty"`
	Last      *CmdResult     `json:"last,omitempty"`
}

type AtlasInfo struct {
	Size     int  `json:"size"`
	Cells    int  `json:"cells"`
	TileSize int  `json:"tile_size"`
	Exists   bool `json:"exists"`
}

// SelectionView resolves the three faces of the selected block.
type SelectionView struct {
	Index int                 `json:"index"`
	Label string              `json:"label"`
	Faces map[string]FaceView `json:"faces"`
}

type FaceView struct {
	Cell      blocks.Cell `json:"cell"`
	Inherited bool        `json:"inherited"`
}

type CmdResult struct {
	ReqID  string `json:"req_id,omitempty"`
	Op     string `json:"op"`
	Index  int    `json:"index"`
	Detail string `json:"detail,omitempty"`
}

// CMD (client -> server)
type CmdMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Op              string `json:"op"`

	// Index defaults to the selected block.
	Index *int `json:"index,omitempty"`

	Set    []string     `json:"set,omitempty"` // update: key=value assignments
	Preset string       `json:"preset,omitempty"`
	Face   string       `json:"face,omitempty"`
	Cell   *blocks.Cell `json:"cell,omitempty"`
	Reset  bool         `json:"reset,omitempty"`
	Path   string       `json:"path,omitempty"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(reqID string, err error) ErrorMsg {
	return ErrorMsg{
		Type:            TypeError,
		ProtocolVersion: Version,
		ReqID:           reqID,
		Code:            CodeFor(err),
		Message:         err.Error(),
	}
}
