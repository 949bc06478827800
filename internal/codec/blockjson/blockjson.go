// Package blockjson exchanges the block table as schema-checked JSON.
package blockjson

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"blockedit.ai/internal/blocks"
)

//go:embed blocks.schema.json
var schemaText string

const schemaURL = "blocks.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// Schema returns the compiled schema for a block list.
func Schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString(schemaURL, schemaText)
	})
	return schema, schemaErr
}

// SchemaText is the raw JSON schema, served to web front ends.
func SchemaText() string { return schemaText }

// Marshal renders recs as indented JSON in the given order.
func Marshal(recs []blocks.Record) ([]byte, error) {
	if recs == nil {
		recs = []blocks.Record{}
	}
	b, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Unmarshal validates raw against the schema, rejects duplicate ids and
// returns the records sorted by id.
func Unmarshal(raw []byte) ([]blocks.Record, error) {
	s, err := Schema()
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("blocks json: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("blocks json: %w", err)
	}

	var recs []blocks.Record
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("blocks json: %w", err)
	}
	if dups := blocks.Duplicates(recs); len(dups) > 0 {
		return nil, fmt.Errorf("blocks json: duplicate ids %v", dups)
	}
	blocks.SortByID(recs)
	return recs, nil
}
