// Package schema validates credential claims against JSON Schemas.
package schema

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/pilacorp/go-credential-trust/credential/common/model"
)

// JSONSchemaValidator2018 is the credentialSchema type recorded on issued credentials.
const JSONSchemaValidator2018 = "JsonSchemaValidator2018"

// Opt configures a Validator.
type Opt func(*Validator)

// WithRemoteSchemas lets the validator fetch schemas that were not
// registered, treating the schema id as a URL.
func WithRemoteSchemas() Opt {
	return func(v *Validator) {
		v.allowRemote = true
	}
}

// WithSchema registers a schema document under id.
func WithSchema(id, schemaJSON string) Opt {
	return func(v *Validator) {
		v.pending[id] = schemaJSON
	}
}

// Validator validates claims against compiled JSON Schemas.
type Validator struct {
	mu          sync.RWMutex
	schemas     map[string]*gojsonschema.Schema
	pending     map[string]string
	allowRemote bool
}

// NewValidator compiles the registered schemas and returns a Validator.
func NewValidator(opts ...Opt) (*Validator, error) {
	v := &Validator{
		schemas: make(map[string]*gojsonschema.Schema),
		pending: make(map[string]string),
	}
	for _, opt := range opts {
		opt(v)
	}
	for id, raw := range v.pending {
		if err := v.Register(id, raw); err != nil {
			return nil, err
		}
	}
	v.pending = nil
	return v, nil
}

// Register compiles schemaJSON and stores it under id.
func (v *Validator) Register(id, schemaJSON string) error {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", id, err)
	}
	v.mu.Lock()
	v.schemas[id] = compiled
	v.mu.Unlock()
	return nil
}

// Validate checks claims against the schema registered under schemaID.
// Violations are reported as a validation error on credentialSubject.
func (v *Validator) Validate(ctx context.Context, schemaID string, claims map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	compiled, err := v.schema(schemaID)
	if err != nil {
		return err
	}

	result, err := compiled.Validate(gojsonschema.NewGoLoader(claims))
	if err != nil {
		return fmt.Errorf("failed to validate schema: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return model.Validation("credentialSubject", "does not conform to schema %s: %s", schemaID, strings.Join(msgs, "; "))
}

func (v *Validator) schema(id string) (*gojsonschema.Schema, error) {
	v.mu.RLock()
	compiled, ok := v.schemas[id]
	v.mu.RUnlock()
	if ok {
		return compiled, nil
	}
	if !v.allowRemote {
		return nil, model.NewError(model.KindNotFound, "credentialSchema.id", "schema %s is not registered", id)
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewReferenceLoader(id))
	if err != nil {
		return nil, model.WrapError(model.KindNotFound, err, "failed to load schema %s", id)
	}
	v.mu.Lock()
	v.schemas[id] = compiled
	v.mu.Unlock()
	return compiled, nil
}
