package util

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cognify-labs/cognify/backend/pkg/stream"
)

// InitSSE sends the event-stream headers. Call it before the first event.
func InitSSE(c echo.Context) {
	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Flush()
}

func WriteSSEEvent(c echo.Context, event string, payload any) error {
	if err := stream.WriteSSE(c.Response(), event, payload); err != nil {
		return err
	}
	c.Response().Flush()
	return nil
}
