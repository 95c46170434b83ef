package graph

import (
	"reflect"
	"testing"
)

func triple(s, p, o string) map[string]any {
	return map[string]any{"subject": s, "predicate": p, "object": o}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantStage JSONStage
		want      any
	}{
		{
			name:      "plain array",
			input:     `[{"subject":"A","predicate":"has","object":"B"}]`,
			wantStage: StageDirect,
			want:      []any{triple("A", "has", "B")},
		},
		{
			name:      "fenced block with trailing comma",
			input:     "Sure! ```json [{\"subject\":\"A\",\"predicate\":\"has\",\"object\":\"B\"},] ```",
			wantStage: StageTrailingComma,
			want:      []any{triple("A", "has", "B")},
		},
		{
			name:      "fence without language tag",
			input:     "```\n{\"triples\": []}\n```",
			wantStage: StageDirect,
			want:      map[string]any{"triples": []any{}},
		},
		{
			name:      "array surrounded by prose",
			input:     `Here are the triples: [{"subject":"A","predicate":"has","object":"B"}] Hope this helps.`,
			wantStage: StageArray,
			want:      []any{triple("A", "has", "B")},
		},
		{
			name:      "object surrounded by prose",
			input:     `Result: {"subject":"A","predicate":"has","object":"B"} done`,
			wantStage: StageObject,
			want:      triple("A", "has", "B"),
		},
		{
			name:      "brackets inside strings",
			input:     `Output: [{"subject":"A]","predicate":"has","object":"{B"}] end`,
			wantStage: StageArray,
			want:      []any{triple("A]", "has", "{B")},
		},
		{
			name:      "truncated array salvages complete objects",
			input:     `[{"subject":"A","predicate":"has","object":"B"},{"subject":"C","predicate":"is","object":"D"},{"subject":"E","pred`,
			wantStage: StageSalvaged,
			want:      []any{triple("A", "has", "B"), triple("C", "is", "D")},
		},
		{
			name:      "balanced array with broken element salvages the rest",
			input:     `[{"subject":"A","predicate":"has","object":"B"}, {"subject": C}]`,
			wantStage: StageSalvaged,
			want:      []any{triple("A", "has", "B")},
		},
		{
			name:      "no json at all",
			input:     "I could not find any relationships in this text.",
			wantStage: StageFailed,
			want:      nil,
		},
		{
			name:      "empty",
			input:     "  \n ",
			wantStage: StageFailed,
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractJSON(tt.input)
			if got.Stage != tt.wantStage {
				t.Fatalf("stage = %s, want %s (attempts: %v)", got.Stage, tt.wantStage, got.Attempts)
			}
			if !reflect.DeepEqual(got.Value, tt.want) {
				t.Fatalf("value = %#v, want %#v", got.Value, tt.want)
			}
			if got.OK() != (tt.wantStage != StageFailed) {
				t.Fatalf("OK() = %v for stage %s", got.OK(), got.Stage)
			}
		})
	}
}

func TestExtractJSON_RecordsFailedStages(t *testing.T) {
	got := ExtractJSON(`[{"subject":"A","predicate":"has","object":"B"},]`)
	if got.Stage != StageTrailingComma {
		t.Fatalf("stage = %s", got.Stage)
	}
	stages := make([]JSONStage, 0, len(got.Attempts))
	for _, a := range got.Attempts {
		stages = append(stages, a.Stage)
	}
	want := []JSONStage{StageDirect, StageArray}
	if !reflect.DeepEqual(stages, want) {
		t.Fatalf("attempted stages = %v, want %v", stages, want)
	}
	if got.Err() != nil {
		t.Fatalf("Err() = %v for a recovered value", got.Err())
	}

	failed := ExtractJSON("nothing here")
	if failed.Err() == nil {
		t.Fatal("expected an error summary for a failed extraction")
	}
}
