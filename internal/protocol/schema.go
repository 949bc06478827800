package protocol

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/cmd.schema.json
var cmdSchemaText string

var (
	cmdSchemaOnce sync.Once
	cmdSchema     *jsonschema.Schema
	cmdSchemaErr  error
)

// DecodeCmd validates raw against the CMD schema and decodes it. Failures
// wrap ErrInvalidCmd.
func DecodeCmd(raw []byte) (CmdMsg, error) {
	cmdSchemaOnce.Do(func() {
		cmdSchema, cmdSchemaErr = jsonschema.CompileString("cmd.schema.json", cmdSchemaText)
	})
	if cmdSchemaErr != nil {
		return CmdMsg{}, fmt.Errorf("compile cmd schema: %w", cmdSchemaErr)
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return CmdMsg{}, fmt.Errorf("%w: %v", ErrInvalidCmd, err)
	}
	if err := cmdSchema.Validate(doc); err != nil {
		return CmdMsg{}, fmt.Errorf("%w: %v", ErrInvalidCmd, err)
	}
	var cmd CmdMsg
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return CmdMsg{}, fmt.Errorf("%w: %v", ErrInvalidCmd, err)
	}
	return cmd, nil
}
