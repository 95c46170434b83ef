package common

import (
	"encoding/json"
	"testing"
)

func TestEventPayload(t *testing.T) {
	conf := 0.5
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{
			name:  "status",
			event: StatusEvent("Processing chunk 1 of 2"),
			want:  `{"message":"Processing chunk 1 of 2"}`,
		},
		{
			name:  "node",
			event: NodeEvent(GraphNode{ID: "abc", Label: "Cell", Group: GroupExtracted, Weight: 1}),
			want:  `{"node":{"id":"abc","label":"Cell","group":"extracted","weight":1}}`,
		},
		{
			name:  "edge without confidence",
			event: EdgeEvent(GraphEdge{Source: "a", Target: "b", Relation: "includes", Type: EdgeRoot}),
			want:  `{"edge":{"source":"a","target":"b","relation":"includes","type":"root"}}`,
		},
		{
			name:  "edge with confidence",
			event: EdgeEvent(GraphEdge{Source: "a", Target: "b", Relation: "has", Type: EdgeExtracted, Confidence: &conf}),
			want:  `{"edge":{"source":"a","target":"b","relation":"has","type":"extracted","confidence":0.5}}`,
		},
		{
			name:  "complete",
			event: CompleteEvent(3, 2),
			want:  `{"summary":{"nodes":3,"edges":2}}`,
		},
		{
			name:  "error",
			event: ErrorEvent("No input text found for graph"),
			want:  `{"message":"No input text found for graph"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.event.Payload())
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(got) != tt.want {
				t.Fatalf("payload = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEdgeKeyString(t *testing.T) {
	k := GraphEdge{Source: "s", Relation: "part of", Target: "t"}.Key()
	if k.String() != "s-part of-t" {
		t.Fatalf("unexpected key %q", k.String())
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []GraphStatus{StatusComplete, StatusError} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	for _, s := range []GraphStatus{StatusPending, StatusBuilding} {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}
