package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBaseURL = "https://fairdice.ai/schemas/"

var schemaFiles = map[string]string{
	TypeStartBatch:    "start_batch.schema.json",
	TypeRollOnce:      "roll_once.schema.json",
	TypeWelcome:       "welcome.schema.json",
	TypeAck:           "ack.schema.json",
	TypeRoll:          "roll.schema.json",
	TypeBatchComplete: "batch_complete.schema.json",
	TypeError:         "error.schema.json",
}

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

func compileSchemas() (map[string]*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	files, err := fs.Glob(schemaFS, "schemas/*.schema.json")
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		b, err := schemaFS.ReadFile(f)
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBaseURL+path.Base(f), bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", f, err)
		}
	}
	out := make(map[string]*jsonschema.Schema, len(schemaFiles))
	for typ, name := range schemaFiles {
		s, err := c.Compile(schemaBaseURL + name)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		out[typ] = s
	}
	return out, nil
}

// Schema returns the compiled schema for a message type.
func Schema(msgType string) (*jsonschema.Schema, error) {
	schemasOnce.Do(func() { schemas, schemasErr = compileSchemas() })
	if schemasErr != nil {
		return nil, schemasErr
	}
	s, ok := schemas[msgType]
	if !ok {
		return nil, fmt.Errorf("no schema for message type %q", msgType)
	}
	return s, nil
}

// Validate checks raw against the schema named by its "type" field.
func Validate(raw []byte) (BaseMessage, error) {
	base, err := DecodeBase(raw)
	if err != nil {
		return base, fmt.Errorf("decode message: %w", err)
	}
	s, err := Schema(base.Type)
	if err != nil {
		return base, err
	}
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	var v any
	if err := d.Decode(&v); err != nil {
		return base, fmt.Errorf("decode message: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return base, err
	}
	return base, nil
}

// ValidateInbound is Validate restricted to client commands.
func ValidateInbound(raw []byte) (BaseMessage, error) {
	base, err := DecodeBase(raw)
	if err != nil {
		return base, fmt.Errorf("decode message: %w", err)
	}
	switch base.Type {
	case TypeStartBatch, TypeRollOnce:
		return Validate(raw)
	default:
		return base, fmt.Errorf("unexpected message type %q", base.Type)
	}
}
