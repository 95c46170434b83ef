package common

import (
	"encoding/json"
	"time"
)

// Node groups.
const (
	GroupExtracted = "extracted"
	GroupRoot      = "root"
)

// Edge types.
const (
	EdgeExtracted = "extracted"
	EdgeRoot      = "root"
)

// BridgeRelation is the relation carried by every edge the connectivity pass adds.
const BridgeRelation = "includes"

// GraphNode is a deduplicated concept in a knowledge graph.
//
// The ID is derived from the normalized label, so two surface forms that
// normalize the same way ("The Cell", "cell") share one node. Label keeps
// the first display form that was seen.
type GraphNode struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Group  string `json:"group"`
	Weight int    `json:"weight"`
}

// GraphEdge is a directed, labeled relation between two nodes.
// Two edges are the same edge when Source, Relation and Target match.
type GraphEdge struct {
	Source     string   `json:"source"`
	Target     string   `json:"target"`
	Relation   string   `json:"relation"`
	Type       string   `json:"type"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Key returns the identity of the edge.
func (e GraphEdge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Relation: e.Relation, Target: e.Target}
}

// EdgeKey identifies an edge inside a graph.
type EdgeKey struct {
	Source   string
	Relation string
	Target   string
}

// String renders the key as "source-relation-target".
func (k EdgeKey) String() string {
	return k.Source + "-" + k.Relation + "-" + k.Target
}

// Triple is a raw subject-predicate-object statement as returned by the model.
// It only lives until the accumulator has merged it.
type Triple struct {
	Subject    string   `json:"subject"`
	Predicate  string   `json:"predicate"`
	Object     string   `json:"object"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// GraphSnapshot is the persisted form of a finished graph.
type GraphSnapshot struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
	Root  string      `json:"root,omitempty"`
}

// GraphStatus is the lifecycle state of a graph run.
type GraphStatus string

const (
	StatusPending  GraphStatus = "pending"
	StatusBuilding GraphStatus = "building"
	StatusComplete GraphStatus = "complete"
	StatusError    GraphStatus = "error"
)

// Terminal reports whether no further transition is possible.
func (s GraphStatus) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// Source types of a graph.
const (
	SourceTopic  = "topic"
	SourceUpload = "upload"
)

// Graph is a persisted graph run: its input, status and, once complete, its snapshot.
type Graph struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Name       string          `json:"name"`
	SourceType string          `json:"source_type"`
	InputMeta  json.RawMessage `json:"input_meta,omitempty"`
	InputText  string          `json:"-"`
	Status     GraphStatus     `json:"status"`
	Snapshot   *GraphSnapshot  `json:"snapshot,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// IncomingRelation is an edge pointing at a node, with the source label resolved.
type IncomingRelation struct {
	Source   string `json:"source"`
	Relation string `json:"relation"`
}

// OutgoingRelation is an edge leaving a node, with the target label resolved.
type OutgoingRelation struct {
	Relation string `json:"relation"`
	Target   string `json:"target"`
}

// NodeRelationships lists the neighbourhood of one node.
type NodeRelationships struct {
	Incoming []IncomingRelation `json:"incoming"`
	Outgoing []OutgoingRelation `json:"outgoing"`
}

// NodeDetail is a cached explanation of one node of a graph.
type NodeDetail struct {
	GraphID       string            `json:"graph_id"`
	NodeID        string            `json:"node_id"`
	NodeLabel     string            `json:"node_label"`
	Content       string            `json:"content"`
	Relationships NodeRelationships `json:"relationships"`
	CreatedAt     time.Time         `json:"created_at"`
}
