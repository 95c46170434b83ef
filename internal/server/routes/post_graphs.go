package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cognify-labs/cognify/backend/internal/queue"
	"github.com/cognify-labs/cognify/backend/internal/server/middleware"
	"github.com/cognify-labs/cognify/backend/internal/util"
	"github.com/cognify-labs/cognify/backend/pkg/ai"
	"github.com/cognify-labs/cognify/backend/pkg/common"
	"github.com/cognify-labs/cognify/backend/pkg/graph"
	"github.com/cognify-labs/cognify/backend/pkg/logger"
	"github.com/cognify-labs/cognify/backend/pkg/store"
	"github.com/cognify-labs/cognify/backend/pkg/stream"
)

// MaxInputChars bounds uploaded source text.
const MaxInputChars = graph.MaxInputChars

// CreateGraphHandler registers a new graph from a topic or from uploaded
// text. The graph is built when its stream is opened, or right away by the
// worker when prebuild is set.
func CreateGraphHandler(c echo.Context) error {
	type createGraphBody struct {
		Topic     string `json:"topic" validate:"omitempty,max=500"`
		InputText string `json:"input_text"`
		Name      string `json:"name" validate:"omitempty,max=200"`
		Prebuild  bool   `json:"prebuild"`
	}

	type createGraphResponse struct {
		Message string `json:"message,omitempty"`
		GraphID string `json:"graph_id,omitempty"`
	}

	cc := c.(*middleware.AppContext)
	user := cc.User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
	}

	ctx := c.Request().Context()
	app := cc.App

	building, err := app.Store.HasBuildingGraph(ctx, user.UserID)
	if err != nil {
		logger.Error("[Graph] Failed to check building graphs", "user_id", user.UserID, "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
	if building {
		return c.JSON(http.StatusTooManyRequests, errorResponse{Error: "Please wait for current graph to complete"})
	}

	data := new(createGraphBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
	}

	topic := strings.TrimSpace(data.Topic)
	inputText := strings.TrimSpace(data.InputText)
	if (topic == "") == (inputText == "") {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Must provide either 'topic' or 'input_text', but not both"})
	}

	g := &common.Graph{
		UserID: user.UserID,
		Name:   strings.TrimSpace(data.Name),
		Status: common.StatusPending,
	}
	var meta stream.InputMeta

	if topic != "" {
		text, err := ai.GenerateTopicText(ctx, app.AiClient, topic)
		if errors.Is(err, ai.ErrEmptyCompletion) {
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to generate text from topic"})
		}
		if err != nil {
			logger.Error("[Graph] Failed to generate text from topic", "topic", topic, "err", err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to generate text from topic. Please try again."})
		}

		g.SourceType = common.SourceTopic
		g.InputText = text
		if g.Name == "" {
			g.Name = topic
		}
		meta.Topic = topic
	} else {
		if util.CharCount(inputText) > MaxInputChars {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "Input text too large (max 50,000 characters)"})
		}

		g.SourceType = common.SourceUpload
		g.InputText = inputText
		if g.Name == "" {
			g.Name = util.DefaultGraphName(time.Now())
		}
		meta.Length = util.CharCount(inputText)
	}
	g.InputText = util.SanitizePostgresText(g.InputText)

	g.InputMeta, err = json.Marshal(meta)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
	g.ID, err = store.NewGraphID()
	if err != nil {
		logger.Error("[Graph] Failed to generate graph id", "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}

	if err := app.Store.CreateGraph(ctx, g); err != nil {
		logger.Error("[Graph] Failed to create graph", "user_id", user.UserID, "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to create graph"})
	}

	if data.Prebuild && app.Queue != nil {
		if err := queue.EnqueueGraphBuild(app.Queue, g.ID, g.UserID); err != nil {
			logger.Warn("[Graph] Failed to enqueue graph build", "graph_id", g.ID, "err", err)
		}
	}

	logger.Info("[Graph] Graph created", "graph_id", g.ID, "source_type", g.SourceType, "chars", util.CharCount(g.InputText))
	return c.JSON(http.StatusOK, createGraphResponse{GraphID: g.ID})
}
