package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cognify-labs/cognify/backend/pkg/ai"
	"github.com/cognify-labs/cognify/backend/pkg/common"
	"github.com/cognify-labs/cognify/backend/pkg/graph"
	"github.com/cognify-labs/cognify/backend/pkg/logger"
	"github.com/cognify-labs/cognify/backend/pkg/store"
)

// DetailEventType names an event of a node explanation stream.
type DetailEventType string

const (
	DetailContent  DetailEventType = "content"
	DetailComplete DetailEventType = "complete"
	DetailError    DetailEventType = "error"
)

// DetailEvent is one step of a node explanation: text deltas followed by
// the node's relationships.
type DetailEvent struct {
	Type          DetailEventType
	Text          string
	Relationships *common.NodeRelationships
}

func (e DetailEvent) Payload() any {
	switch e.Type {
	case DetailContent:
		return map[string]string{"text": e.Text}
	case DetailComplete:
		return map[string]any{"relationships": e.Relationships}
	default:
		return map[string]string{"message": e.Text}
	}
}

// DetailSink receives the events of a node explanation.
type DetailSink func(ev DetailEvent) error

// StreamNodeDetails explains one node of a finished graph. The first
// explanation of a node is generated by the model and stored; later calls
// replay the stored text.
//
// Returns ErrNotComplete if the graph is still building and ErrNodeNotFound
// for an unknown node, both before any event.
func (o *Orchestrator) StreamNodeDetails(ctx context.Context, graphID, nodeID string, sink DetailSink) error {
	g, snap, err := o.Snapshot(ctx, graphID)
	if err != nil {
		return err
	}
	node, ok := graph.FindNode(*snap, nodeID)
	if !ok {
		return ErrNodeNotFound
	}
	rel := graph.RelationshipsOf(*snap, nodeID)

	cached, err := o.store.GetNodeDetail(ctx, graphID, nodeID)
	switch {
	case err == nil:
		if err := sink(DetailEvent{Type: DetailContent, Text: cached.Content}); err != nil {
			return err
		}
		return sink(DetailEvent{Type: DetailComplete, Relationships: &cached.Relationships})
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	prompt := ai.FormatNodeDetailPrompt(g.Name, node.Label, graph.Labels(*snap), incomingLines(rel), outgoingLines(rel))
	events, err := o.aiClient.GenerateChatStream(ctx,
		[]ai.ChatMessage{{Role: ai.RoleUser, Message: prompt}},
		ai.WithSystemPrompts(ai.NodeDetailSystemPrompt),
		ai.WithTemperature(0.3),
	)
	if err != nil {
		_ = sink(DetailEvent{Type: DetailError, Text: "Failed to generate node details"})
		return fmt.Errorf("failed to start node detail stream: %w", err)
	}

	var content strings.Builder
	var sinkErr, streamErr error
	for ev := range events {
		switch ev.Type {
		case ai.StreamError:
			streamErr = ev.Err
		case ai.StreamContent:
			if ev.Content == "" {
				continue
			}
			content.WriteString(ev.Content)
			if sinkErr == nil {
				sinkErr = sink(DetailEvent{Type: DetailContent, Text: ev.Content})
			}
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if streamErr != nil {
		logger.Error("[Stream] Node detail stream failed", "graph_id", graphID, "node_id", nodeID, "err", streamErr)
		if sinkErr == nil {
			_ = sink(DetailEvent{Type: DetailError, Text: "Failed to generate node details"})
		}
		return fmt.Errorf("node detail stream failed: %w", streamErr)
	}

	if content.Len() > 0 {
		detail := &common.NodeDetail{
			GraphID:       graphID,
			NodeID:        nodeID,
			NodeLabel:     node.Label,
			Content:       content.String(),
			Relationships: rel,
		}
		if err := o.store.SaveNodeDetail(context.WithoutCancel(ctx), detail); err != nil {
			logger.Warn("[Stream] Failed to cache node details", "graph_id", graphID, "node_id", nodeID, "err", err)
		}
	}
	if sinkErr != nil {
		return sinkErr
	}
	return sink(DetailEvent{Type: DetailComplete, Relationships: &rel})
}

func incomingLines(rel common.NodeRelationships) []string {
	out := make([]string, 0, len(rel.Incoming))
	for _, in := range rel.Incoming {
		out = append(out, in.Source+" "+in.Relation)
	}
	return out
}

func outgoingLines(rel common.NodeRelationships) []string {
	out := make([]string, 0, len(rel.Outgoing))
	for _, o := range rel.Outgoing {
		out = append(out, o.Relation+" "+o.Target)
	}
	return out
}
