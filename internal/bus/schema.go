package bus

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// SchemaRegistry validates wire payloads against per-topic JSON schemas.
// The schema is part of the bus contract: a message that fails validation
// is dropped at the adapter boundary and never reaches a handler.
type SchemaRegistry struct {
	byFilter []filterSchema
}

type filterSchema struct {
	filter string
	schema *jsonschema.Schema
}

// topicSchemas binds topic filters to schema files. First match wins;
// order from most to least specific.
var topicSchemas = []struct {
	filter string
	file   string
}{
	{"stf/+/cmd/move", "cmd-move.json"},
	{"stf/+/cmd/gripper", "cmd-gripper.json"},
	{"stf/+/cmd/vacuum", "cmd-vacuum.json"},
	{"stf/+/cmd/belt", "cmd-belt.json"},
	{"stf/+/cmd/#", "cmd-generic.json"},
	{"stf/+/status", "status.json"},
	{"stf/global/#", "global.json"},
}

// NewSchemaRegistry compiles all embedded schemas.
func NewSchemaRegistry() (*SchemaRegistry, error) {
	compiler := jsonschema.NewCompiler()

	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded schemas: %w", err)
	}
	for _, e := range entries {
		data, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", e.Name(), err)
		}
		if err := compiler.AddResource(e.Name(), strings.NewReader(string(data))); err != nil {
			return nil, fmt.Errorf("failed to add schema resource %s: %w", e.Name(), err)
		}
	}

	reg := &SchemaRegistry{}
	for _, ts := range topicSchemas {
		schema, err := compiler.Compile(ts.file)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", ts.file, err)
		}
		reg.byFilter = append(reg.byFilter, filterSchema{filter: ts.filter, schema: schema})
	}
	return reg, nil
}

// Validate checks a payload against the schema bound to its topic. Topics
// outside the stf hierarchy pass unchecked.
func (r *SchemaRegistry) Validate(topic string, payload []byte) error {
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("invalid JSON on %s: %w", topic, err)
	}
	for _, fs := range r.byFilter {
		if MatchTopic(fs.filter, topic) {
			if err := fs.schema.Validate(doc); err != nil {
				return fmt.Errorf("schema validation failed on %s: %w", topic, err)
			}
			return nil
		}
	}
	return nil
}
