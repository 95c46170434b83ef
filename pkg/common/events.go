package common

// EventType names an event on a graph-construction stream.
type EventType string

const (
	EventStatus   EventType = "status"
	EventNode     EventType = "node"
	EventEdge     EventType = "edge"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Summary counts the nodes and edges of a finished graph.
type Summary struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// Event is one step of a graph-construction stream. Exactly one of the
// payload fields is set, depending on Type. Events are append-only: a node or
// edge that was sent is never retracted.
type Event struct {
	Type    EventType
	Message string
	Node    *GraphNode
	Edge    *GraphEdge
	Summary *Summary
}

type messagePayload struct {
	Message string `json:"message"`
}

type nodePayload struct {
	Node GraphNode `json:"node"`
}

type edgePayload struct {
	Edge GraphEdge `json:"edge"`
}

type completePayload struct {
	Summary Summary `json:"summary"`
}

// Payload returns the JSON body that goes on the wire for the event.
func (e Event) Payload() any {
	switch e.Type {
	case EventNode:
		if e.Node != nil {
			return nodePayload{Node: *e.Node}
		}
	case EventEdge:
		if e.Edge != nil {
			return edgePayload{Edge: *e.Edge}
		}
	case EventComplete:
		if e.Summary != nil {
			return completePayload{Summary: *e.Summary}
		}
		return completePayload{}
	}
	return messagePayload{Message: e.Message}
}

func StatusEvent(message string) Event {
	return Event{Type: EventStatus, Message: message}
}

func NodeEvent(node GraphNode) Event {
	return Event{Type: EventNode, Node: &node}
}

func EdgeEvent(edge GraphEdge) Event {
	return Event{Type: EventEdge, Edge: &edge}
}

func CompleteEvent(nodes, edges int) Event {
	return Event{Type: EventComplete, Summary: &Summary{Nodes: nodes, Edges: edges}}
}

func ErrorEvent(message string) Event {
	return Event{Type: EventError, Message: message}
}
