package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cognify-labs/cognify/backend/pkg/graph"
	"github.com/cognify-labs/cognify/backend/pkg/logger"
	"github.com/cognify-labs/cognify/backend/pkg/store"
	"github.com/cognify-labs/cognify/backend/pkg/stream"
)

// GraphStreamer is the orchestrator operation the worker drives.
type GraphStreamer interface {
	Stream(ctx context.Context, graphID string, sink stream.Sink) error
}

// ProcessGraphMessage builds the graph named by a GraphBuildMsg. Failures
// that a retry cannot fix are logged and swallowed so the message is acked;
// a build running elsewhere is returned so the message is retried later.
func ProcessGraphMessage(ctx context.Context, streamer GraphStreamer, msg []byte) error {
	var data GraphBuildMsg
	if err := json.Unmarshal(msg, &data); err != nil {
		logger.Error("[Queue] Dropping malformed graph message", "err", err)
		return nil
	}
	if data.GraphID == "" {
		logger.Error("[Queue] Dropping graph message without graph id")
		return nil
	}

	err := streamer.Stream(ctx, data.GraphID, stream.LogSink{GraphID: data.GraphID})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stream.ErrBuildInProgress):
		return fmt.Errorf("graph %s: %w", data.GraphID, err)
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, stream.ErrRunFailed),
		errors.Is(err, graph.ErrNoInput),
		errors.Is(err, graph.ErrExtractionFailed):
		logger.Warn("[Queue] Graph build will not be retried", "graph_id", data.GraphID, "err", err)
		return nil
	default:
		var perr *stream.PersistenceError
		if errors.As(err, &perr) {
			logger.Error("[Queue] Graph could not be persisted", "graph_id", data.GraphID, "err", err)
			return nil
		}
		return fmt.Errorf("graph %s: %w", data.GraphID, err)
	}
}
