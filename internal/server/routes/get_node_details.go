package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cognify-labs/cognify/backend/internal/server/middleware"
	"github.com/cognify-labs/cognify/backend/pkg/logger"
	"github.com/cognify-labs/cognify/backend/pkg/stream"
)

// NodeDetailsHandler streams an explanation of one node: content events
// with text deltas, then a complete event with the node's relationships.
func NodeDetailsHandler(c echo.Context) error {
	g, code, msg := accessibleGraph(c)
	if code != 0 {
		return c.JSON(code, errorResponse{Error: msg})
	}
	nodeID := c.Param("node_id")

	orch := c.(*middleware.AppContext).App.Orchestrator
	sse := &lazySSE{c: c}
	err := orch.StreamNodeDetails(c.Request().Context(), g.ID, nodeID, func(ev stream.DetailEvent) error {
		return sse.write(string(ev.Type), ev.Payload())
	})
	if sse.started {
		if err != nil {
			logger.Warn("[Graph] Node detail stream ended with error", "graph_id", g.ID, "node_id", nodeID, "err", err)
		}
		return nil
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, stream.ErrNotComplete):
		return c.JSON(http.StatusConflict, errorResponse{Error: "Graph is not complete yet"})
	case errors.Is(err, stream.ErrNodeNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: "Node not found"})
	default:
		logger.Error("[Graph] Failed to stream node details", "graph_id", g.ID, "node_id", nodeID, "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
}
