package ai

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

var schemaCache sync.Map // reflect.Type -> *jsonschema.Schema

// GenerateSchema creates a JSON Schema from the Go type of value for use with
// structured output. Schemas are reflected once per type.
func GenerateSchema(value any) *jsonschema.Schema {
	t := reflect.TypeOf(value)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := schemaCache.Load(t); ok {
		return cached.(*jsonschema.Schema)
	}

	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(reflect.New(t).Interface())
	schemaCache.Store(t, schema)
	return schema
}

// SchemaJSON returns the encoded schema for value, for providers that take raw JSON.
func SchemaJSON(value any) (json.RawMessage, error) {
	b, err := json.Marshal(GenerateSchema(value))
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	return b, nil
}

func stripDuplicateLeadingBrace(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		rest := strings.TrimSpace(s[1:])
		if strings.HasPrefix(rest, "{") {
			return rest
		}
	}
	return s
}

// UnmarshalFlexible decodes model output into out. Plain JSON is tried first,
// then a double-encoded JSON string, then a jsonrepair pass over the input.
//
//	UnmarshalFlexible(`{"triples": []}`, &resp)         // standard JSON
//	UnmarshalFlexible(`"{\"triples\": []}"`, &resp)     // double-encoded
//	UnmarshalFlexible(`{triples: [],}`, &resp)           // repaired
func UnmarshalFlexible(input string, out any) error {
	input = strings.TrimSpace(input)

	if err := json.Unmarshal([]byte(input), out); err == nil {
		return nil
	}

	var asString string
	if err := json.Unmarshal([]byte(input), &asString); err == nil {
		asString = strings.TrimSpace(asString)
		if err := json.Unmarshal([]byte(asString), out); err == nil {
			return nil
		}
		input = asString
	}

	input = stripDuplicateLeadingBrace(input)
	repaired, err := jsonrepair.JSONRepair(input)
	if err != nil {
		return fmt.Errorf("json repair failed: %w", err)
	}

	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("unmarshal failed after repair: %w", err)
	}
	return nil
}
