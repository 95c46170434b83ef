package ai

import (
	"encoding/json"
	"testing"
)

type testTriple struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

type testTriples struct {
	Triples []testTriple `json:"triples"`
}

func TestUnmarshalFlexible(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "valid json",
			input: `{"triples":[{"subject":"cell","predicate":"contains","object":"nucleus"}]}`,
		},
		{
			name:  "unquoted keys and single quotes",
			input: `{triples:[{subject:'cell',predicate:'contains',object:'nucleus'}]}`,
		},
		{
			name:  "trailing comma",
			input: `{"triples":[{"subject":"cell","predicate":"contains","object":"nucleus"},]}`,
		},
		{
			name:  "missing closing brackets",
			input: `{"triples":[{"subject":"cell","predicate":"contains","object":"nucleus"}`,
		},
		{
			name:  "double encoded",
			input: `"{\"triples\":[{\"subject\":\"cell\",\"predicate\":\"contains\",\"object\":\"nucleus\"}]}"`,
		},
		{
			name:  "duplicate leading brace",
			input: "{\n{\"triples\":[{\"subject\":\"cell\",\"predicate\":\"contains\",\"object\":\"nucleus\"}]}\n",
		},
	}

	want := testTriple{Subject: "cell", Predicate: "contains", Object: "nucleus"}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got testTriples
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if len(got.Triples) != 1 || got.Triples[0] != want {
				t.Fatalf("UnmarshalFlexible() got = %+v", got)
			}
		})
	}
}

func TestUnmarshalFlexible_Unrecoverable(t *testing.T) {
	var got testTriples
	if err := UnmarshalFlexible("hello", &got); err == nil {
		t.Fatalf("UnmarshalFlexible() expected error for unrecoverable input")
	}
}

func TestSchemaJSON(t *testing.T) {
	raw, err := SchemaJSON(&testTriples{})
	if err != nil {
		t.Fatalf("SchemaJSON() error = %v", err)
	}

	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		t.Fatalf("schema is not valid json: %v", err)
	}
	if schema["type"] != "object" {
		t.Fatalf("expected object schema, got %v", schema["type"])
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties: %s", raw)
	}
	if _, ok := props["triples"]; !ok {
		t.Fatalf("schema misses triples property: %s", raw)
	}
	if schema["additionalProperties"] != false {
		t.Fatalf("schema must forbid additional properties: %s", raw)
	}

	if GenerateSchema(testTriples{}) != GenerateSchema(&testTriples{}) {
		t.Fatal("schema should be cached per type")
	}
}
