package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

// schemaFiles maps message types to their schema file.
var schemaFiles = map[string]string{
	TypeHello: "hello.schema.json",
	TypeAct:   "act.schema.json",
	"EVENT":   "event.schema.json",
}

func loadSchemas() {
	c := jsonschema.NewCompiler()
	schemas = map[string]*jsonschema.Schema{}
	for typ, name := range schemaFiles {
		raw, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			schemasErr = err
			return
		}
		if err := c.AddResource(name, bytes.NewReader(raw)); err != nil {
			schemasErr = fmt.Errorf("%s: %w", name, err)
			return
		}
		s, err := c.Compile(name)
		if err != nil {
			schemasErr = fmt.Errorf("%s: %w", name, err)
			return
		}
		schemas[typ] = s
	}
}

// ValidateClient checks an inbound client frame against the schema for its type.
func ValidateClient(b []byte) (BaseMessage, error) {
	base, err := DecodeBase(b)
	if err != nil {
		return base, err
	}
	if base.Type != TypeHello && base.Type != TypeAct {
		return base, fmt.Errorf("unsupported message type %q", base.Type)
	}
	return base, validate(base.Type, b)
}

// ValidateEvent checks an outbound server event.
func ValidateEvent(b []byte) error {
	return validate("EVENT", b)
}

func validate(key string, b []byte) error {
	schemasOnce.Do(loadSchemas)
	if schemasErr != nil {
		return schemasErr
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	return schemas[key].Validate(v)
}
