// Package store persists graph runs and node explanations.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cognify-labs/cognify/backend/pkg/common"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrNotBuilding is returned when a snapshot is saved for a graph that is
	// not in the building state.
	ErrNotBuilding = errors.New("graph is not building")
)

// GraphStore defines the persistence needed by a graph run.
//
// SaveGraphSnapshot must store the snapshot and flip the status to complete
// in one atomic step, so a reader never sees a complete graph without nodes.
type GraphStore interface {
	CreateGraph(ctx context.Context, g *common.Graph) error
	GetGraph(ctx context.Context, id string) (*common.Graph, error)
	UpdateGraphStatus(ctx context.Context, id string, status common.GraphStatus) error
	SaveGraphSnapshot(ctx context.Context, id string, snap *common.GraphSnapshot) error
	HasBuildingGraph(ctx context.Context, userID string) (bool, error)

	GetNodeDetail(ctx context.Context, graphID, nodeID string) (*common.NodeDetail, error)
	SaveNodeDetail(ctx context.Context, d *common.NodeDetail) error
}

const graphIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewGraphID returns a fresh url-safe graph id.
func NewGraphID() (string, error) {
	return gonanoid.Generate(graphIDAlphabet, 21)
}

// MarshalSnapshot encodes a snapshot for a JSON column. Nil slices are
// written as empty arrays.
func MarshalSnapshot(snap *common.GraphSnapshot) ([]byte, error) {
	if snap == nil {
		return nil, errors.New("snapshot is nil")
	}
	out := *snap
	if out.Nodes == nil {
		out.Nodes = []common.GraphNode{}
	}
	if out.Edges == nil {
		out.Edges = []common.GraphEdge{}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshot decodes a JSON column. An empty column yields nil.
func UnmarshalSnapshot(data []byte) (*common.GraphSnapshot, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var snap common.GraphSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// MarshalRelationships encodes a node's relationships, never as null.
func MarshalRelationships(rel common.NodeRelationships) ([]byte, error) {
	if rel.Incoming == nil {
		rel.Incoming = []common.IncomingRelation{}
	}
	if rel.Outgoing == nil {
		rel.Outgoing = []common.OutgoingRelation{}
	}
	return json.Marshal(rel)
}

func UnmarshalRelationships(data []byte) (common.NodeRelationships, error) {
	rel := common.NodeRelationships{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rel); err != nil {
			return rel, fmt.Errorf("failed to unmarshal relationships: %w", err)
		}
	}
	if rel.Incoming == nil {
		rel.Incoming = []common.IncomingRelation{}
	}
	if rel.Outgoing == nil {
		rel.Outgoing = []common.OutgoingRelation{}
	}
	return rel, nil
}
