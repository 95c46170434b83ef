package graph

import "github.com/cognify-labs/cognify/backend/pkg/common"

// EnforceConnectivity returns the bridging edges that attach every node to rootID.
//
// A node counts as connected when it has at least one incoming edge and is
// reachable from the root when edges are followed in either direction. Nodes
// are checked in the order given; each one that is not connected gets an
// "includes" edge from the root, which also makes the rest of its component
// reachable. Existing edges are never duplicated. A rootID that is not among
// nodes yields no bridges.
func EnforceConnectivity(nodes []common.GraphNode, edges []common.GraphEdge, rootID string) []common.GraphEdge {
	known := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		known[n.ID] = struct{}{}
	}
	if _, ok := known[rootID]; !ok {
		return nil
	}

	adjacent := make(map[string][]string, len(nodes))
	inDegree := make(map[string]int, len(nodes))
	existing := make(map[common.EdgeKey]struct{}, len(edges))
	for _, e := range edges {
		existing[e.Key()] = struct{}{}
		inDegree[e.Target]++
		adjacent[e.Source] = append(adjacent[e.Source], e.Target)
		adjacent[e.Target] = append(adjacent[e.Target], e.Source)
	}

	reachable := make(map[string]bool, len(nodes))
	visit := func(start string) {
		if reachable[start] {
			return
		}
		reachable[start] = true
		queue := []string{start}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			for _, next := range adjacent[id] {
				if !reachable[next] {
					reachable[next] = true
					queue = append(queue, next)
				}
			}
		}
	}
	visit(rootID)

	var bridges []common.GraphEdge
	for _, n := range nodes {
		if n.ID == rootID {
			continue
		}
		if inDegree[n.ID] > 0 && reachable[n.ID] {
			continue
		}

		bridge := common.GraphEdge{
			Source:   rootID,
			Target:   n.ID,
			Relation: common.BridgeRelation,
			Type:     common.EdgeRoot,
		}
		if _, dup := existing[bridge.Key()]; !dup {
			existing[bridge.Key()] = struct{}{}
			bridges = append(bridges, bridge)
		}
		inDegree[n.ID]++
		adjacent[rootID] = append(adjacent[rootID], n.ID)
		adjacent[n.ID] = append(adjacent[n.ID], rootID)
		visit(n.ID)
	}
	return bridges
}

// SelectRoot picks the anchor for a graph without a predefined root: the node
// with the most incident edges, the earliest one on ties. It returns "" for
// an empty graph.
func SelectRoot(nodes []common.GraphNode, edges []common.GraphEdge) string {
	degree := make(map[string]int, len(nodes))
	for _, e := range edges {
		degree[e.Source]++
		degree[e.Target]++
	}

	root := ""
	best := -1
	for _, n := range nodes {
		if degree[n.ID] > best {
			root = n.ID
			best = degree[n.ID]
		}
	}
	return root
}
