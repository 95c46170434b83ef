package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cognify-labs/cognify/backend/pkg/ai/aitest"
	"github.com/cognify-labs/cognify/backend/pkg/graph"
	"github.com/cognify-labs/cognify/backend/pkg/leaselock"
	"github.com/cognify-labs/cognify/backend/pkg/store/sqlite"
)

func TestNewAIClient(t *testing.T) {
	t.Run("unknown adapter", func(t *testing.T) {
		t.Setenv("AI_ADAPTER", "bard")
		_, err := NewAIClient()
		require.ErrorContains(t, err, "unknown AI_ADAPTER")
	})

	t.Run("openai needs a key", func(t *testing.T) {
		t.Setenv("AI_ADAPTER", "openai")
		t.Setenv("AI_CHAT_KEY", "")
		_, err := NewAIClient()
		require.Error(t, err)
	})

	t.Run("openai", func(t *testing.T) {
		t.Setenv("AI_ADAPTER", "openai")
		t.Setenv("AI_CHAT_KEY", "sk-test")
		client, err := NewAIClient()
		require.NoError(t, err)
		require.NotNil(t, client)
	})

	t.Run("ollama", func(t *testing.T) {
		t.Setenv("AI_ADAPTER", "ollama")
		t.Setenv("AI_CHAT_URL", "http://localhost:11434")
		client, err := NewAIClient()
		require.NoError(t, err)
		require.NotNil(t, client)
	})
}

func TestNewGraphClientRejectsNegativeChunkSize(t *testing.T) {
	t.Setenv("GRAPH_CHUNK_SIZE", "-5")
	_, err := NewGraphClient()
	require.Error(t, err)
}

func TestNewGraphClientRetryBackoff(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "unset", value: "", want: graph.DefaultRetryBackoff},
		{name: "duration", value: "3s", want: 3 * time.Second},
		{name: "seconds", value: "4", want: 4 * time.Second},
		{name: "invalid", value: "soon", want: graph.DefaultRetryBackoff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GRAPH_RETRY_BACKOFF", tt.value)
			client, err := NewGraphClient()
			require.NoError(t, err)
			require.Equal(t, tt.want, client.RetryBackoff())
		})
	}
}

func TestWarmUp(t *testing.T) {
	require.NoError(t, WarmUp(context.Background(), &aitest.Client{}))

	loadErr := errors.New("model not found")
	err := WarmUp(context.Background(), &aitest.Client{LoadErr: loadErr})
	require.ErrorIs(t, err, loadErr)
}

func TestNewOrchestrator(t *testing.T) {
	s, err := sqlite.Open(t.Context(), t.TempDir()+"/graphs.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	orch, err := NewOrchestrator(Deps{
		Store:    s,
		Locker:   leaselock.NewLocal(),
		AIClient: &aitest.Client{},
		Owner:    "test",
	})
	require.NoError(t, err)
	require.NotNil(t, orch)

	_, err = NewOrchestrator(Deps{Store: s})
	require.Error(t, err)
}
