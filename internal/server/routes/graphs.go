package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cognify-labs/cognify/backend/internal/server/middleware"
	"github.com/cognify-labs/cognify/backend/pkg/common"
	"github.com/cognify-labs/cognify/backend/pkg/logger"
	"github.com/cognify-labs/cognify/backend/pkg/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

// accessibleGraph loads the graph named by the :id parameter and checks
// that the caller may see it. On failure the returned code and message
// describe the HTTP error.
func accessibleGraph(c echo.Context) (*common.Graph, int, string) {
	cc := c.(*middleware.AppContext)
	if cc.User == nil {
		return nil, http.StatusUnauthorized, "Unauthorized"
	}

	id := c.Param("id")
	if id == "" {
		return nil, http.StatusBadRequest, "Missing graph id"
	}

	g, err := cc.App.Store.GetGraph(c.Request().Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, http.StatusNotFound, "Graph not found"
	}
	if err != nil {
		logger.Error("[Graph] Failed to load graph", "graph_id", id, "err", err)
		return nil, http.StatusInternalServerError, "Internal server error"
	}
	if !middleware.CanAccessGraph(cc.User, g) {
		return nil, http.StatusForbidden, "Forbidden"
	}
	return g, 0, ""
}

// GetGraphHandler returns a graph's metadata and, once complete, its snapshot.
func GetGraphHandler(c echo.Context) error {
	g, code, msg := accessibleGraph(c)
	if code != 0 {
		return c.JSON(code, errorResponse{Error: msg})
	}
	return c.JSON(http.StatusOK, g)
}
