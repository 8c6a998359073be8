package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	reflectschema "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Request schema names, one per request body.
const (
	SchemaCoord     = "coord"
	SchemaBuild     = "build"
	SchemaTrade     = "trade"
	SchemaEnter     = "enter"
	SchemaMove      = "move"
	SchemaConfigSet = "config_set"
	SchemaHello     = "hello"
	SchemaRequest   = "request"

	SchemaSelfRegister = "self_register"
	SchemaPurge        = "purge"
)

var requestTypes = map[string]any{
	SchemaCoord:     &CoordRequest{},
	SchemaBuild:     &BuildRequest{},
	SchemaTrade:     &TradeRequest{},
	SchemaEnter:     &EnterRequest{},
	SchemaMove:      &MoveRequest{},
	SchemaConfigSet: &ConfigSetRequest{},
	SchemaHello:     &HelloMsg{},
	SchemaRequest:   &RequestMsg{},

	SchemaSelfRegister: &SelfRegisterRequest{},
	SchemaPurge:        &PurgeRequest{},
}

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

// SchemaNames lists every request schema.
func SchemaNames() []string {
	out := make([]string, 0, len(requestTypes))
	for name := range requestTypes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SchemaJSON reflects the named request struct into a JSON schema document.
func SchemaJSON(name string) ([]byte, error) {
	v, ok := requestTypes[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	r := reflectschema.Reflector{DoNotReference: true}
	s := r.Reflect(v)
	s.Title = name
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal %s schema: %w", name, err)
	}
	// The reflected $id points at the Go package path; the compiler keys
	// schemas by our own URL instead.
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	delete(doc, "$id")
	return json.MarshalIndent(doc, "", "  ")
}

func compileAll() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		out := make(map[string]*jsonschema.Schema, len(requestTypes))
		for _, name := range SchemaNames() {
			doc, err := SchemaJSON(name)
			if err != nil {
				compileErr = err
				return
			}
			url := "mem://housevault/" + name + ".schema.json"
			if err := c.AddResource(url, bytes.NewReader(doc)); err != nil {
				compileErr = fmt.Errorf("add %s schema: %w", name, err)
				return
			}
			s, err := c.Compile(url)
			if err != nil {
				compileErr = fmt.Errorf("compile %s schema: %w", name, err)
				return
			}
			out[name] = s
		}
		compiled = out
	})
	return compiled, compileErr
}

// Decode validates raw against the named schema and unmarshals it into dst.
func Decode(name string, raw []byte, dst any) error {
	schemas, err := compileAll()
	if err != nil {
		return err
	}
	s, ok := schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return &ValidationError{Reason: "malformed json"}
	}
	if err := s.Validate(doc); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	return nil
}

// ValidationError is a request that failed to parse or match its schema.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }
