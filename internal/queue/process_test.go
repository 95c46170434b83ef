package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cognify-labs/cognify/backend/pkg/common"
	"github.com/cognify-labs/cognify/backend/pkg/graph"
	"github.com/cognify-labs/cognify/backend/pkg/store"
	"github.com/cognify-labs/cognify/backend/pkg/stream"
)

type fakeStreamer struct {
	err    error
	ids    []string
	events int
}

func (s *fakeStreamer) Stream(ctx context.Context, graphID string, sink stream.Sink) error {
	s.ids = append(s.ids, graphID)
	if err := sink.Send(common.StatusEvent("Processing chunk 1 of 1")); err == nil {
		s.events++
	}
	return s.err
}

func TestProcessGraphMessage(t *testing.T) {
	tests := []struct {
		name      string
		msg       string
		err       error
		wantErr   bool
		wantCalls int
	}{
		{name: "success", msg: `{"graph_id":"g1"}`, wantCalls: 1},
		{name: "malformed is dropped", msg: `{not json`},
		{name: "missing id is dropped", msg: `{"user_id":"u"}`},
		{name: "busy is retried", msg: `{"graph_id":"g1"}`, err: stream.ErrBuildInProgress, wantErr: true, wantCalls: 1},
		{name: "unknown graph is dropped", msg: `{"graph_id":"g1"}`, err: store.ErrNotFound, wantCalls: 1},
		{name: "failed run is dropped", msg: `{"graph_id":"g1"}`, err: fmt.Errorf("x: %w", graph.ErrExtractionFailed), wantCalls: 1},
		{name: "persistence failure is dropped", msg: `{"graph_id":"g1"}`, err: &stream.PersistenceError{GraphID: "g1", Err: errors.New("db")}, wantCalls: 1},
		{name: "unexpected error is retried", msg: `{"graph_id":"g1"}`, err: errors.New("lease db down"), wantErr: true, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeStreamer{err: tt.err}
			err := ProcessGraphMessage(context.Background(), s, []byte(tt.msg))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ProcessGraphMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(s.ids) != tt.wantCalls {
				t.Fatalf("Stream called %d times, want %d", len(s.ids), tt.wantCalls)
			}
			if tt.wantCalls > 0 && s.events != 1 {
				t.Fatal("log sink must accept events")
			}
		})
	}
}

func TestEnqueueGraphBuild(t *testing.T) {
	pub := &fakePublisher{}
	if err := EnqueueGraphBuild(pub, "g1", "u1"); err != nil {
		t.Fatalf("EnqueueGraphBuild() error = %v", err)
	}
	if len(pub.sent) != 1 || pub.sent[0].key != GraphQueue || pub.sent[0].exchange != "" {
		t.Fatalf("unexpected publish %+v", pub.sent)
	}
	var msg GraphBuildMsg
	if err := json.Unmarshal(pub.sent[0].msg.Body, &msg); err != nil {
		t.Fatalf("body is not a GraphBuildMsg: %v", err)
	}
	if msg.GraphID != "g1" || msg.UserID != "u1" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if pub.sent[0].msg.DeliveryMode != 2 {
		t.Fatal("build requests must be persistent")
	}
}

func TestNotifier_PublishGraphComplete(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNotifier(pub)
	n.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	g := &common.Graph{ID: "g1", UserID: "u1", Name: "Biology", SourceType: common.SourceTopic}
	if err := n.PublishGraphComplete(context.Background(), g, common.Summary{Nodes: 3, Edges: 2}); err != nil {
		t.Fatalf("PublishGraphComplete() error = %v", err)
	}
	if len(pub.sent) != 1 || pub.sent[0].exchange != TopicExchange || pub.sent[0].key != GraphCompleteTopic {
		t.Fatalf("unexpected publish %+v", pub.sent)
	}

	var msg GraphCompleteMsg
	if err := json.Unmarshal(pub.sent[0].msg.Body, &msg); err != nil {
		t.Fatalf("body is not a GraphCompleteMsg: %v", err)
	}
	want := GraphCompleteMsg{
		GraphID: "g1", UserID: "u1", Name: "Biology", SourceType: common.SourceTopic,
		Nodes: 3, Edges: 2, CompletedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if msg != want {
		t.Fatalf("message = %+v, want %+v", msg, want)
	}

	failing := NewNotifier(&fakePublisher{err: errors.New("closed")})
	if err := failing.PublishGraphComplete(context.Background(), g, common.Summary{}); err == nil {
		t.Fatal("expected publish error")
	}
}
