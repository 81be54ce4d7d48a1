// Package globalid encodes and decodes Relay-style global object identifiers
// and names the synthetic columns that carry their components.
package globalid

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the only payload version Encode produces and Decode accepts.
const Version = 1

// ColumnPrefix namespaces the synthetic columns fetched for global ids.
const ColumnPrefix = "__global_id_col_"

// ID is a decoded global id.
type ID struct {
	Version  int            `json:"version"`
	TypeName string         `json:"typename"`
	Fields   map[string]any `json:"id"`
}

// ColumnSeparator splits the alias from the field in a column alias. GraphQL
// names cannot contain it.
const ColumnSeparator = "."

// ColumnAlias returns the result key under which a component field of the global id
// selected as alias is fetched. The first separator ends alias, so distinct
// (alias, field) pairs get distinct keys, and no GraphQL alias can equal one.
func ColumnAlias(alias, field string) string {
	return ColumnPrefix + alias + ColumnSeparator + field
}

// Encode marshals the type name and the id field values into a base64-encoded JSON object.
func Encode(typeName string, fields map[string]any) (string, error) {
	if typeName == "" {
		return "", errors.New("global id requires a type name")
	}
	if len(fields) == 0 {
		return "", errors.New("global id requires at least one field value")
	}
	data, err := json.Marshal(ID{Version: Version, TypeName: typeName, Fields: fields})
	if err != nil {
		return "", fmt.Errorf("failed to encode global id: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Decode parses a global id. Numbers are kept as json.Number so large integer keys survive.
func Decode(id string) (*ID, error) {
	raw, err := base64.StdEncoding.DecodeString(id)
	if err != nil {
		return nil, fmt.Errorf("invalid id: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload ID
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("invalid id: %w", err)
	}
	if payload.Version != Version {
		return nil, fmt.Errorf("invalid id: unsupported version %d", payload.Version)
	}
	if payload.TypeName == "" {
		return nil, errors.New("invalid id: missing type name")
	}
	if len(payload.Fields) == 0 {
		return nil, errors.New("invalid id: missing field values")
	}
	return &payload, nil
}
