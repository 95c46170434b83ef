package middleware

import (
	"context"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/labstack/echo/v4"

	"github.com/cognify-labs/cognify/backend/internal/queue"
	"github.com/cognify-labs/cognify/backend/pkg/ai"
	"github.com/cognify-labs/cognify/backend/pkg/store"
	"github.com/cognify-labs/cognify/backend/pkg/stream"
)

type AppUser struct {
	UserID string
	Role   string
}

// Exporter hands out download links for archived snapshots.
type Exporter interface {
	DownloadLink(ctx context.Context, graphID string) (string, error)
}

// App carries the long-lived dependencies every handler shares. Queue and
// Exporter are nil when RabbitMQ or S3 are not configured.
type App struct {
	Store        store.GraphStore
	Orchestrator *stream.Orchestrator
	AiClient     ai.GraphAIClient
	Queue        queue.Publisher
	Exporter     Exporter
	Key          keyfunc.Keyfunc
	MasterAPIKey string
	MasterUserID string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
