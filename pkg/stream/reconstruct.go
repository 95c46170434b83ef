package stream

import (
	"github.com/cognify-labs/cognify/backend/pkg/common"
	"github.com/cognify-labs/cognify/backend/pkg/graph"
)

// Reconstructor rebuilds a graph from its event stream. Events may repeat,
// for example when a client reconnects and receives a replay; nodes and
// edges are kept once, in first-seen order.
type Reconstructor struct {
	nodes     []common.GraphNode
	edges     []common.GraphEdge
	nodeIndex map[string]struct{}
	edgeIndex map[common.EdgeKey]struct{}

	root     string
	status   string
	summary  *common.Summary
	errorMsg string
}

func NewReconstructor() *Reconstructor {
	return &Reconstructor{
		nodeIndex: make(map[string]struct{}),
		edgeIndex: make(map[common.EdgeKey]struct{}),
	}
}

// Apply folds one event into the graph.
func (r *Reconstructor) Apply(ev common.Event) {
	switch ev.Type {
	case common.EventStatus:
		r.status = ev.Message
	case common.EventNode:
		if ev.Node == nil {
			return
		}
		if _, ok := r.nodeIndex[ev.Node.ID]; ok {
			return
		}
		r.nodeIndex[ev.Node.ID] = struct{}{}
		r.nodes = append(r.nodes, *ev.Node)
		if ev.Node.Group == common.GroupRoot && r.root == "" {
			r.root = ev.Node.ID
		}
	case common.EventEdge:
		if ev.Edge == nil {
			return
		}
		key := ev.Edge.Key()
		if _, ok := r.edgeIndex[key]; ok {
			return
		}
		r.edgeIndex[key] = struct{}{}
		r.edges = append(r.edges, *ev.Edge)
	case common.EventComplete:
		r.summary = ev.Summary
	case common.EventError:
		r.errorMsg = ev.Message
	}
}

// Reconstruction is the state a client holds after consuming a stream.
type Reconstruction struct {
	Snapshot common.GraphSnapshot
	// Complete is set once a complete event arrived.
	Complete bool
	Summary  *common.Summary
	// Error holds the message of an error event. The snapshot then holds
	// whatever arrived before it.
	Error      string
	LastStatus string
}

// Result returns the graph seen so far. A complete graph without a root node
// gets the root the builder picked for it, the node with the most edges.
func (r *Reconstructor) Result() Reconstruction {
	complete := r.summary != nil && r.errorMsg == ""
	snap := common.GraphSnapshot{
		Nodes: append([]common.GraphNode{}, r.nodes...),
		Edges: append([]common.GraphEdge{}, r.edges...),
		Root:  r.root,
	}
	if snap.Root == "" && complete {
		snap.Root = graph.SelectRoot(snap.Nodes, snap.Edges)
	}
	return Reconstruction{
		Snapshot:   snap,
		Complete:   complete,
		Summary:    r.summary,
		Error:      r.errorMsg,
		LastStatus: r.status,
	}
}

// Reconstruct replays events in order and returns the resulting graph.
func Reconstruct(events []common.Event) Reconstruction {
	r := NewReconstructor()
	for _, ev := range events {
		r.Apply(ev)
	}
	return r.Result()
}
