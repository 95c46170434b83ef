package graph

import "github.com/cognify-labs/cognify/backend/pkg/common"

// unknownLabel stands in for an edge endpoint missing from the snapshot.
const unknownLabel = "Unknown"

// RelationshipsOf lists the edges entering and leaving nodeID with the labels
// of the other endpoints resolved.
func RelationshipsOf(snap common.GraphSnapshot, nodeID string) common.NodeRelationships {
	labels := make(map[string]string, len(snap.Nodes))
	for _, n := range snap.Nodes {
		labels[n.ID] = n.Label
	}
	label := func(id string) string {
		if l, ok := labels[id]; ok {
			return l
		}
		return unknownLabel
	}

	rel := common.NodeRelationships{
		Incoming: []common.IncomingRelation{},
		Outgoing: []common.OutgoingRelation{},
	}
	for _, e := range snap.Edges {
		if e.Target == nodeID {
			rel.Incoming = append(rel.Incoming, common.IncomingRelation{Source: label(e.Source), Relation: e.Relation})
		}
		if e.Source == nodeID {
			rel.Outgoing = append(rel.Outgoing, common.OutgoingRelation{Relation: e.Relation, Target: label(e.Target)})
		}
	}
	return rel
}

// FindNode looks a node up by id.
func FindNode(snap common.GraphSnapshot, nodeID string) (common.GraphNode, bool) {
	for _, n := range snap.Nodes {
		if n.ID == nodeID {
			return n, true
		}
	}
	return common.GraphNode{}, false
}

// Labels returns the labels of all nodes in snapshot order.
func Labels(snap common.GraphSnapshot) []string {
	out := make([]string, 0, len(snap.Nodes))
	for _, n := range snap.Nodes {
		out = append(out, n.Label)
	}
	return out
}
