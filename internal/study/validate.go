package study

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed attempt.schema.json
var attemptSchemaJSON []byte

const attemptSchemaURL = "schema://attempt.json"

var attemptSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	// The compiler expects a parsed JSON value, not raw bytes.
	var def any
	if err := json.Unmarshal(attemptSchemaJSON, &def); err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(attemptSchemaURL, def); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	compiled, err := c.Compile(attemptSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	return compiled, nil
})

// validateAttempt checks raw attempt JSON against the embedded schema.
func validateAttempt(raw []byte) error {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrInvalidResult, err)
	}
	schema, err := attemptSchema()
	if err != nil {
		return fmt.Errorf("compile attempt schema: %w", err)
	}
	if err := schema.Validate(parsed); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	return nil
}
