// Package app assembles the graph building stack from environment variables.
// The server, the worker and the CLI share it so a graph built by any of them
// is built the same way.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cognify-labs/cognify/backend/internal/util"
	"github.com/cognify-labs/cognify/backend/pkg/ai"
	oai "github.com/cognify-labs/cognify/backend/pkg/ai/ollama"
	gai "github.com/cognify-labs/cognify/backend/pkg/ai/openai"
	"github.com/cognify-labs/cognify/backend/pkg/graph"
	"github.com/cognify-labs/cognify/backend/pkg/leaselock"
	"github.com/cognify-labs/cognify/backend/pkg/store"
	"github.com/cognify-labs/cognify/backend/pkg/stream"
)

// NewAIClient returns the model adapter selected by AI_ADAPTER.
func NewAIClient() (ai.GraphAIClient, error) {
	switch adapter := util.GetEnvString("AI_ADAPTER", "openai"); adapter {
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			DescriptionModel:      util.GetEnv("AI_CHAT_DESCRIBE_MODEL"),
			ExtractionModel:       util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
			BaseURL:               util.GetEnv("AI_CHAT_URL"),
			ApiKey:                util.GetEnv("AI_CHAT_KEY"),
			MaxConcurrentRequests: int64(util.GetEnvInt("AI_PARALLEL_REQ", 1)),
		})
		if err != nil {
			return nil, fmt.Errorf("could not create ollama client: %w", err)
		}
		return client, nil
	case "openai":
		if util.GetEnv("AI_CHAT_KEY") == "" {
			return nil, errors.New("AI_CHAT_KEY is required for the openai adapter")
		}
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			DescriptionModel: util.GetEnv("AI_CHAT_DESCRIBE_MODEL"),
			ExtractionModel:  util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
			ChatURL:          util.GetEnv("AI_CHAT_URL"),
			ChatKey:          util.GetEnv("AI_CHAT_KEY"),
		}), nil
	default:
		return nil, fmt.Errorf("unknown AI_ADAPTER %q", adapter)
	}
}

// WarmUp preloads the model behind client so the first graph does not pay
// for it. It gives up after AI_WARMUP_TIMEOUT.
func WarmUp(ctx context.Context, client ai.GraphAIClient) error {
	ctx, cancel := context.WithTimeout(ctx, util.GetEnvDuration("AI_WARMUP_TIMEOUT", 2*time.Minute))
	defer cancel()
	if err := client.LoadModel(ctx); err != nil {
		return fmt.Errorf("could not preload model: %w", err)
	}
	return nil
}

// NewGraphClient reads the chunking and extraction settings.
func NewGraphClient() (*graph.GraphClient, error) {
	return graph.NewGraphClient(graph.NewGraphClientParams{
		ChunkSize:         util.GetEnvInt("GRAPH_CHUNK_SIZE", 100),
		ChunkOverlap:      util.GetEnvInt("GRAPH_CHUNK_OVERLAP", 20),
		ParallelChunks:    util.GetEnvInt("GRAPH_PARALLEL_CHUNKS", 1),
		MaxRetries:        util.GetEnvInt("GRAPH_MAX_RETRIES", graph.DefaultMaxRetries),
		ChunkTimeout:      util.GetEnvDuration("GRAPH_CHUNK_TIMEOUT", graph.DefaultChunkTimeout),
		RetryBackoff:      util.GetEnvDuration("GRAPH_RETRY_BACKOFF", graph.DefaultRetryBackoff),
		RequestsPerSecond: util.GetEnvNumeric("AI_RATE_LIMIT", 0),
		StructuredOutput:  util.GetEnvBool("GRAPH_STRUCTURED_OUTPUT", false),
		ExtractionModel:   util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
	})
}

// Deps are the pieces of an orchestrator that differ between processes.
type Deps struct {
	Store    store.GraphStore
	Locker   leaselock.Locker
	AIClient ai.GraphAIClient
	Archiver stream.Archiver
	Notifier stream.Notifier
	Owner    string
}

// NewOrchestrator builds an orchestrator around deps using the graph settings
// from the environment.
func NewOrchestrator(deps Deps) (*stream.Orchestrator, error) {
	graphClient, err := NewGraphClient()
	if err != nil {
		return nil, err
	}

	owner := deps.Owner
	if host, err := os.Hostname(); err == nil && owner != "" {
		owner = owner + "-" + host
	}

	return stream.NewOrchestrator(stream.NewOrchestratorParams{
		Store:       deps.Store,
		Locker:      deps.Locker,
		GraphClient: graphClient,
		AIClient:    deps.AIClient,
		Archiver:    deps.Archiver,
		Notifier:    deps.Notifier,
		RunTimeout:  util.GetEnvDuration("GRAPH_RUN_TIMEOUT", stream.DefaultRunTimeout),
		LeaseOwner:  owner,
	})
}
