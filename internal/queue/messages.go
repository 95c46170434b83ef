package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cognify-labs/cognify/backend/pkg/common"
	"github.com/cognify-labs/cognify/backend/pkg/stream"
)

// GraphBuildMsg asks the worker to build a graph without a client attached.
type GraphBuildMsg struct {
	Message string `json:"message"`
	GraphID string `json:"graph_id"`
	UserID  string `json:"user_id"`
}

// GraphCompleteMsg is published on GraphCompleteTopic for every finished graph.
type GraphCompleteMsg struct {
	GraphID     string    `json:"graph_id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	SourceType  string    `json:"source_type"`
	Nodes       int       `json:"nodes"`
	Edges       int       `json:"edges"`
	CompletedAt time.Time `json:"completed_at"`
}

// EnqueueGraphBuild publishes a build request for graphID on GraphQueue.
func EnqueueGraphBuild(ch Publisher, graphID, userID string) error {
	data, err := json.Marshal(GraphBuildMsg{
		Message: "Build graph",
		GraphID: graphID,
		UserID:  userID,
	})
	if err != nil {
		return err
	}
	return PublishFIFO(ch, GraphQueue, data)
}

// Notifier publishes completion messages. Channels are not safe for
// concurrent use, so publishing is serialized.
type Notifier struct {
	mu  sync.Mutex
	ch  Publisher
	now func() time.Time
}

var _ stream.Notifier = (*Notifier)(nil)

func NewNotifier(ch Publisher) *Notifier {
	return &Notifier{ch: ch, now: time.Now}
}

func (n *Notifier) PublishGraphComplete(ctx context.Context, g *common.Graph, summary common.Summary) error {
	data, err := json.Marshal(GraphCompleteMsg{
		GraphID:     g.ID,
		UserID:      g.UserID,
		Name:        g.Name,
		SourceType:  g.SourceType,
		Nodes:       summary.Nodes,
		Edges:       summary.Edges,
		CompletedAt: n.now().UTC(),
	})
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if err := PublishTopic(n.ch, GraphCompleteTopic, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", GraphCompleteTopic, err)
	}
	return nil
}
