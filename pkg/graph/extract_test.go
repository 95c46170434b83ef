package graph

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/cognify-labs/cognify/backend/pkg/ai"
	"github.com/cognify-labs/cognify/backend/pkg/ai/aitest"
	"github.com/cognify-labs/cognify/backend/pkg/common"
)

func TestTriplesFromJSON(t *testing.T) {
	conf := 0.8
	tests := []struct {
		name  string
		value any
		want  []common.Triple
	}{
		{
			name:  "array",
			value: []any{triple("a", "has", "b")},
			want:  []common.Triple{tr("a", "has", "b")},
		},
		{
			name:  "wrapped in triples",
			value: map[string]any{"triples": []any{triple("a", "has", "b")}},
			want:  []common.Triple{tr("a", "has", "b")},
		},
		{
			name:  "single object",
			value: triple(" a ", "has", "b"),
			want:  []common.Triple{tr("a", "has", "b")},
		},
		{
			name: "incomplete items dropped",
			value: []any{
				map[string]any{"subject": "a", "predicate": "has"},
				map[string]any{"subject": "a", "predicate": "", "object": "b"},
				"not an object",
				triple("c", "uses", "d"),
			},
			want: []common.Triple{tr("c", "uses", "d")},
		},
		{
			name: "confidence kept when in range",
			value: []any{
				map[string]any{"subject": "a", "predicate": "has", "object": "b", "confidence": 0.8},
				map[string]any{"subject": "c", "predicate": "has", "object": "d", "confidence": 7.0},
			},
			want: []common.Triple{
				{Subject: "a", Predicate: "has", Object: "b", Confidence: &conf},
				tr("c", "has", "d"),
			},
		},
		{
			name:  "scalar",
			value: "nope",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TriplesFromJSON(tt.value)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("TriplesFromJSON() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTripleExtractor_FreeText(t *testing.T) {
	client := &aitest.Client{
		Complete: func(_ context.Context, _ string, opts ai.GenerateOptions) (string, error) {
			if len(opts.SystemPrompts) != 1 || opts.SystemPrompts[0] != ai.TripleExtractionSystemPrompt {
				t.Errorf("expected the extraction system prompt, got %v", opts.SystemPrompts)
			}
			if opts.Model != "extract-model" {
				t.Errorf("expected extract-model, got %q", opts.Model)
			}
			return "```json\n[{\"subject\":\"a\",\"predicate\":\"has\",\"object\":\"b\"},]\n```", nil
		},
	}
	ex := NewTripleExtractor(NewTripleExtractorParams{Client: client, Model: "extract-model"})

	got, err := ex.ExtractTriples(context.Background(), Chunk{Text: "a has b"})
	if err != nil {
		t.Fatalf("ExtractTriples() error = %v", err)
	}
	if !reflect.DeepEqual(got, []common.Triple{tr("a", "has", "b")}) {
		t.Fatalf("ExtractTriples() = %+v", got)
	}
}

func TestTripleExtractor_Structured(t *testing.T) {
	client := &aitest.Client{
		Format: func(_ context.Context, _ string, out any) error {
			resp, ok := out.(*tripleResponse)
			if !ok {
				t.Fatalf("unexpected output type %T", out)
			}
			resp.Triples = []tripleItem{
				{Subject: "a", Predicate: "has", Object: "b"},
				{Subject: "", Predicate: "has", Object: "b"},
			}
			return nil
		},
	}
	ex := NewTripleExtractor(NewTripleExtractorParams{Client: client, StructuredOutput: true})

	got, err := ex.ExtractTriples(context.Background(), Chunk{Text: "a has b"})
	if err != nil {
		t.Fatalf("ExtractTriples() error = %v", err)
	}
	if !reflect.DeepEqual(got, []common.Triple{tr("a", "has", "b")}) {
		t.Fatalf("ExtractTriples() = %+v", got)
	}
}

func TestTripleExtractor_RetriesThenFails(t *testing.T) {
	client := &aitest.Client{
		Complete: func(context.Context, string, ai.GenerateOptions) (string, error) {
			return "I cannot help with that.", nil
		},
	}
	ex := NewTripleExtractor(NewTripleExtractorParams{Client: client, MaxRetries: 2})

	_, err := ex.ExtractTriples(context.Background(), Chunk{Index: 4, Text: "x"})
	var chunkErr *ChunkExtractionError
	if !errors.As(err, &chunkErr) {
		t.Fatalf("expected ChunkExtractionError, got %v", err)
	}
	if chunkErr.Index != 4 || chunkErr.Attempts != 3 {
		t.Fatalf("unexpected error details %+v", chunkErr)
	}
	if !errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput in chain, got %v", err)
	}
	if client.Calls() != 3 {
		t.Fatalf("expected 3 model calls, got %d", client.Calls())
	}
}

func TestTripleExtractor_AttemptTimeout(t *testing.T) {
	calls := 0
	client := &aitest.Client{
		Complete: func(ctx context.Context, _ string, _ ai.GenerateOptions) (string, error) {
			calls++
			if calls == 1 {
				<-ctx.Done()
				return "", ctx.Err()
			}
			return `[{"subject":"a","predicate":"has","object":"b"}]`, nil
		},
	}
	ex := NewTripleExtractor(NewTripleExtractorParams{
		Client:       client,
		ChunkTimeout: 10 * time.Millisecond,
		MaxRetries:   1,
	})

	got, err := ex.ExtractTriples(context.Background(), Chunk{Text: "a has b"})
	if err != nil {
		t.Fatalf("a timed out attempt must be retried, got %v", err)
	}
	if len(got) != 1 || calls != 2 {
		t.Fatalf("expected one triple after two calls, got %d triples after %d calls", len(got), calls)
	}
}
