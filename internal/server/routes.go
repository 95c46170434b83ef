package server

import (
	"github.com/cognify-labs/cognify/backend/internal/server/middleware"
	"github.com/cognify-labs/cognify/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Graph routes
	apiRoutes.POST("/graphs", routes.CreateGraphHandler)
	apiRoutes.GET("/graphs/:id", routes.GetGraphHandler)
	apiRoutes.GET("/graphs/:id/stream", routes.StreamGraphHandler)
	apiRoutes.GET("/graphs/:id/export", routes.ExportGraphHandler)

	// Node routes
	apiRoutes.GET("/graphs/:id/nodes/:node_id/details", routes.NodeDetailsHandler)
}
