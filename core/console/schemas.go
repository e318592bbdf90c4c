package console

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/relaydeck/relaydeck/core/scopes"
)

// Payload schemas for create/update bodies. The scope of a resource is
// positional, so no schema carries a scope field; route payloads carry only
// endpoint ids and a template.
const (
	sourceSchema = `{
		"type": "object",
		"required": ["name"],
		"properties": {
			"name":   {"type": "string", "minLength": 1},
			"kind":   {"type": "string"},
			"secret": {"type": "string"}
		},
		"additionalProperties": false
	}`
	targetSchema = `{
		"type": "object",
		"required": ["name", "url"],
		"properties": {
			"name":    {"type": "string", "minLength": 1},
			"url":     {"type": "string", "minLength": 1, "pattern": "^https?://"},
			"headers": {"type": "object", "additionalProperties": {"type": "string"}}
		},
		"additionalProperties": false
	}`
	routeSchema = `{
		"type": "object",
		"required": ["source_id", "target_id"],
		"properties": {
			"source_id": {"type": "integer", "minimum": 1},
			"target_id": {"type": "integer", "minimum": 1},
			"template":  {"type": "string"}
		},
		"additionalProperties": false
	}`
)

var payloadSchemas = map[scopes.ResourceKind]*jsonschema.Schema{}

func init() {
	for kind, raw := range map[scopes.ResourceKind]string{
		scopes.KindSource: sourceSchema,
		scopes.KindTarget: targetSchema,
		scopes.KindRoute:  routeSchema,
	} {
		compiler := jsonschema.NewCompiler()
		id := "inmemory://" + string(kind)
		if err := compiler.AddResource(id, bytes.NewReader([]byte(raw))); err != nil {
			panic(fmt.Sprintf("add %s schema: %v", kind, err))
		}
		payloadSchemas[kind] = compiler.MustCompile(id)
	}
}

// validatePayload checks a decoded create/update body against the kind's
// schema.
func validatePayload(kind scopes.ResourceKind, body []byte) error {
	schema := payloadSchemas[kind]
	if schema == nil {
		return fmt.Errorf("no schema for kind %s", kind)
	}
	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
