package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cognify-labs/cognify/backend/internal/server/middleware"
	serverutil "github.com/cognify-labs/cognify/backend/internal/server/util"
	"github.com/cognify-labs/cognify/backend/pkg/common"
	"github.com/cognify-labs/cognify/backend/pkg/logger"
	"github.com/cognify-labs/cognify/backend/pkg/store"
	"github.com/cognify-labs/cognify/backend/pkg/stream"
)

// lazySSE opens the event stream on the first write, so errors that happen
// before any event can still be answered with a plain status code.
type lazySSE struct {
	c       echo.Context
	started bool
}

func (s *lazySSE) write(event string, payload any) error {
	if err := s.c.Request().Context().Err(); err != nil {
		return err
	}
	if !s.started {
		serverutil.InitSSE(s.c)
		s.started = true
	}
	return serverutil.WriteSSEEvent(s.c, event, payload)
}

func (s *lazySSE) Send(ev common.Event) error {
	return s.write(string(ev.Type), ev.Payload())
}

// StreamGraphHandler streams the construction of a graph as server-sent
// events, or replays it when it is already complete.
func StreamGraphHandler(c echo.Context) error {
	g, code, msg := accessibleGraph(c)
	if code != 0 {
		return c.JSON(code, errorResponse{Error: msg})
	}

	orch := c.(*middleware.AppContext).App.Orchestrator
	sse := &lazySSE{c: c}
	err := orch.Stream(c.Request().Context(), g.ID, sse)
	if sse.started {
		if err != nil {
			logger.Warn("[Graph] Graph stream ended with error", "graph_id", g.ID, "err", err)
		}
		return nil
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: "Graph not found"})
	case errors.Is(err, stream.ErrBuildInProgress):
		return c.JSON(http.StatusConflict, errorResponse{Error: "Graph is already being built"})
	default:
		logger.Error("[Graph] Failed to stream graph", "graph_id", g.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
}
