package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cognify-labs/cognify/backend/internal/server/middleware"
	"github.com/cognify-labs/cognify/backend/pkg/common"
	"github.com/cognify-labs/cognify/backend/pkg/logger"
	"github.com/cognify-labs/cognify/backend/pkg/stream"
)

// ExportGraphHandler hands out the finished graph: a presigned link to the
// archived snapshot when object storage is configured, the snapshot itself
// otherwise or with ?format=json.
func ExportGraphHandler(c echo.Context) error {
	type exportLinkResponse struct {
		GraphID     string `json:"graph_id"`
		DownloadURL string `json:"download_url"`
	}

	type exportResponse struct {
		GraphID  string               `json:"graph_id"`
		Name     string               `json:"name"`
		Snapshot common.GraphSnapshot `json:"snapshot"`
	}

	g, code, msg := accessibleGraph(c)
	if code != 0 {
		return c.JSON(code, errorResponse{Error: msg})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	_, snap, err := app.Orchestrator.Snapshot(ctx, g.ID)
	if errors.Is(err, stream.ErrNotComplete) {
		return c.JSON(http.StatusConflict, errorResponse{Error: "Graph is not complete yet"})
	}
	if err != nil {
		logger.Error("[Graph] Failed to load snapshot", "graph_id", g.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}

	if app.Exporter != nil && c.QueryParam("format") != "json" {
		link, err := app.Exporter.DownloadLink(ctx, g.ID)
		if err == nil {
			return c.JSON(http.StatusOK, exportLinkResponse{GraphID: g.ID, DownloadURL: link})
		}
		logger.Warn("[Graph] Failed to create download link, returning snapshot", "graph_id", g.ID, "err", err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="graph-`+g.ID+`.json"`)
	return c.JSON(http.StatusOK, exportResponse{GraphID: g.ID, Name: g.Name, Snapshot: *snap})
}
