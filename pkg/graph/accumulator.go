package graph

import (
	"strings"

	"github.com/cognify-labs/cognify/backend/pkg/common"
)

// Accumulator collects the deduplicated nodes and edges of one graph run.
// It is owned by a single goroutine and keeps insertion order.
type Accumulator struct {
	nodes     []common.GraphNode
	nodeIndex map[string]int
	edges     []common.GraphEdge
	edgeIndex map[common.EdgeKey]struct{}
}

// AddResult holds what a triple added to the graph. Both fields are empty
// when the triple was rejected or already known.
type AddResult struct {
	Nodes []common.GraphNode
	Edge  *common.GraphEdge
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		nodeIndex: make(map[string]int),
		edgeIndex: make(map[common.EdgeKey]struct{}),
	}
}

// AddTriple merges t into the graph.
//
// Subject and object are identified by NodeID, so surface variants of an
// entity collapse into the node created for the first variant seen. The
// predicate becomes the relation via NormalizePredicate. Triples with a blank
// subject, object or predicate, or which point a node at itself, are dropped.
func (a *Accumulator) AddTriple(t common.Triple) AddResult {
	var res AddResult

	subject := displayLabel(t.Subject)
	object := displayLabel(t.Object)
	relation := NormalizePredicate(t.Predicate)
	if subject == "" || object == "" || relation == "" {
		return res
	}
	if NodeID(subject) == NodeID(object) {
		return res
	}

	source, created := a.AddNode(subject, common.GroupExtracted)
	if created {
		res.Nodes = append(res.Nodes, source)
	}
	target, created := a.AddNode(object, common.GroupExtracted)
	if created {
		res.Nodes = append(res.Nodes, target)
	}

	edge := common.GraphEdge{
		Source:     source.ID,
		Target:     target.ID,
		Relation:   relation,
		Type:       common.EdgeExtracted,
		Confidence: t.Confidence,
	}
	if a.AddEdge(edge) {
		res.Edge = &edge
	}
	return res
}

// AddNode returns the node for label, creating it with group if it does not
// exist yet. The boolean reports whether the node was created.
func (a *Accumulator) AddNode(label, group string) (common.GraphNode, bool) {
	label = displayLabel(label)
	id := NodeID(label)
	if i, ok := a.nodeIndex[id]; ok {
		return a.nodes[i], false
	}

	node := common.GraphNode{
		ID:     id,
		Label:  label,
		Group:  group,
		Weight: 1,
	}
	a.nodeIndex[id] = len(a.nodes)
	a.nodes = append(a.nodes, node)
	return node, true
}

// AddEdge appends edge unless an edge with the same key exists or one of its
// endpoints is unknown. It reports whether the edge was added.
func (a *Accumulator) AddEdge(edge common.GraphEdge) bool {
	if _, ok := a.nodeIndex[edge.Source]; !ok {
		return false
	}
	if _, ok := a.nodeIndex[edge.Target]; !ok {
		return false
	}
	key := edge.Key()
	if _, ok := a.edgeIndex[key]; ok {
		return false
	}
	a.edgeIndex[key] = struct{}{}
	a.edges = append(a.edges, edge)
	return true
}

func (a *Accumulator) Node(id string) (common.GraphNode, bool) {
	i, ok := a.nodeIndex[id]
	if !ok {
		return common.GraphNode{}, false
	}
	return a.nodes[i], true
}

func (a *Accumulator) Nodes() []common.GraphNode {
	return append([]common.GraphNode(nil), a.nodes...)
}

func (a *Accumulator) Edges() []common.GraphEdge {
	return append([]common.GraphEdge(nil), a.edges...)
}

func (a *Accumulator) Len() (nodes int, edges int) {
	return len(a.nodes), len(a.edges)
}

// Snapshot copies the current graph. Nodes and Edges are never nil so the
// snapshot always encodes as arrays.
func (a *Accumulator) Snapshot(root string) common.GraphSnapshot {
	snap := common.GraphSnapshot{
		Nodes: make([]common.GraphNode, len(a.nodes)),
		Edges: make([]common.GraphEdge, len(a.edges)),
		Root:  root,
	}
	copy(snap.Nodes, a.nodes)
	copy(snap.Edges, a.edges)
	return snap
}

func displayLabel(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
