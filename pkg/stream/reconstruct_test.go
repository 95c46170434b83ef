package stream

import (
	"testing"

	"github.com/cognify-labs/cognify/backend/pkg/common"

	"github.com/stretchr/testify/require"
)

func TestReconstruct(t *testing.T) {
	a := common.GraphNode{ID: "a", Label: "A", Group: common.GroupExtracted, Weight: 1}
	b := common.GraphNode{ID: "b", Label: "B", Group: common.GroupExtracted, Weight: 1}
	edge := common.GraphEdge{Source: "a", Target: "b", Relation: "has", Type: common.EdgeExtracted}

	tests := []struct {
		name     string
		events   []common.Event
		nodes    int
		edges    int
		complete bool
		errMsg   string
	}{
		{
			name: "complete run",
			events: []common.Event{
				common.StatusEvent("Processing chunk 1 of 1"),
				common.NodeEvent(a), common.NodeEvent(b), common.EdgeEvent(edge),
				common.CompleteEvent(2, 1),
			},
			nodes: 2, edges: 1, complete: true,
		},
		{
			name: "duplicates from a replay are kept once",
			events: []common.Event{
				common.NodeEvent(a), common.NodeEvent(b), common.EdgeEvent(edge),
				common.StatusEvent("Loading cached graph..."),
				common.NodeEvent(a), common.NodeEvent(b), common.EdgeEvent(edge),
				common.CompleteEvent(2, 1),
			},
			nodes: 2, edges: 1, complete: true,
		},
		{
			name: "error keeps partial graph",
			events: []common.Event{
				common.NodeEvent(a),
				common.ErrorEvent("Failed to save the graph"),
			},
			nodes: 1, edges: 0, errMsg: "Failed to save the graph",
		},
		{
			name:  "empty stream",
			nodes: 0, edges: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconstruct(tt.events)
			require.Len(t, got.Snapshot.Nodes, tt.nodes)
			require.Len(t, got.Snapshot.Edges, tt.edges)
			require.Equal(t, tt.complete, got.Complete)
			require.Equal(t, tt.errMsg, got.Error)
			require.NotNil(t, got.Snapshot.Nodes)
			require.NotNil(t, got.Snapshot.Edges)
		})
	}
}

func TestReconstruct_RootFromRootGroup(t *testing.T) {
	root := common.GraphNode{ID: "r", Label: "Topic", Group: common.GroupRoot}
	got := Reconstruct([]common.Event{common.NodeEvent(root)})
	require.Equal(t, "r", got.Snapshot.Root)
}

func TestReconstruct_RootOfUploadGraph(t *testing.T) {
	a := common.GraphNode{ID: "a", Label: "A", Group: common.GroupExtracted}
	b := common.GraphNode{ID: "b", Label: "B", Group: common.GroupExtracted}
	c := common.GraphNode{ID: "c", Label: "C", Group: common.GroupExtracted}
	events := []common.Event{
		common.NodeEvent(a),
		common.NodeEvent(b),
		common.NodeEvent(c),
		common.EdgeEvent(common.GraphEdge{Source: "a", Target: "b", Relation: "has", Type: common.EdgeExtracted}),
		common.EdgeEvent(common.GraphEdge{Source: "c", Target: "b", Relation: "uses", Type: common.EdgeExtracted}),
	}

	tests := []struct {
		name string
		tail []common.Event
		want string
	}{
		{name: "still building", want: ""},
		{name: "complete", tail: []common.Event{common.CompleteEvent(3, 2)}, want: "b"},
		{name: "failed", tail: []common.Event{common.ErrorEvent("boom")}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			all := append(append([]common.Event{}, events...), tt.tail...)
			require.Equal(t, tt.want, Reconstruct(all).Snapshot.Root)
		})
	}
}
