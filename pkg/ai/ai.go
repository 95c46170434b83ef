package ai

import (
	"context"
	"math"
	"sync"
)

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents a single message in a chat conversation.
//
// Role must be one of:
//   - "user"      → a user-provided message
//   - "assistant" → a message from the AI assistant
type ChatMessage struct {
	Message string `json:"message"`
	Role    string `json:"role"`
}

// GenerateOptions holds configuration for AI generation requests.
type GenerateOptions struct {
	Model         string   // Model identifier to use for generation
	SystemPrompts []string // System prompts prepended to the request
	Temperature   float64  // Sampling temperature (0.0-2.0)
	MaxTokens     int      // Upper bound for generated tokens, 0 leaves it to the provider
}

// ModelMetrics contains performance metrics from AI model operations.
type ModelMetrics struct {
	Requests       int     `json:"requests"`
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	TotalTokens    int     `json:"total_tokens"`
	DurationMs     int64   `json:"duration_ms"`
	TokenPerSecond float32 `json:"tokens_per_second"`
}

// Add folds another measurement into m and recomputes the throughput.
func (m *ModelMetrics) Add(other ModelMetrics) {
	m.Requests += max(other.Requests, 1)
	m.InputTokens += other.InputTokens
	m.OutputTokens += other.OutputTokens
	m.TotalTokens += other.TotalTokens
	m.DurationMs += other.DurationMs

	if m.DurationMs > 0 {
		tokensPerSecond := (float64(m.TotalTokens) * 1000.0) / float64(m.DurationMs)
		m.TokenPerSecond = float32(math.Round(tokensPerSecond*100) / 100)
	}
}

// Meter accumulates ModelMetrics across concurrent requests. Adapters embed
// it to provide ResetMetrics and GetMetrics.
type Meter struct {
	mu      sync.Mutex
	metrics ModelMetrics
}

// Record adds one request's measurement.
func (m *Meter) Record(metrics ModelMetrics) {
	m.mu.Lock()
	m.metrics.Add(metrics)
	m.mu.Unlock()
}

// ResetMetrics clears all accumulated token and timing metrics to zero.
func (m *Meter) ResetMetrics() {
	m.mu.Lock()
	m.metrics = ModelMetrics{}
	m.mu.Unlock()
}

// GetMetrics returns the accumulated token usage and timing metrics since the last reset.
func (m *Meter) GetMetrics() ModelMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics
}

// Stream event types.
const (
	StreamStep    = "step"
	StreamContent = "content"
	StreamError   = "error"
)

// StreamEvent represents an event in a streaming response. A stream that
// fails after it started ends with a single StreamError event.
type StreamEvent struct {
	Type      string // "step" | "content" | "error"
	Step      string // step name (when Type="step")
	Content   string // text content (when Type="content")
	Reasoning string // reasoning content (when Step="thinking")
	Err       error  // cause (when Type="error")
}

// GenerateOption is a functional option for configuring AI generation requests.
type GenerateOption func(*GenerateOptions)

// WithModel returns a GenerateOption that sets the model to use for generation.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithSystemPrompts returns a GenerateOption that sets the system prompts
// to prepend to the generation request.
func WithSystemPrompts(prompts ...string) GenerateOption {
	return func(o *GenerateOptions) {
		o.SystemPrompts = prompts
	}
}

// WithTemperature returns a GenerateOption that sets the sampling temperature.
// Higher values (e.g., 1.0) produce more random outputs, while lower values
// (e.g., 0.2) make outputs more focused and deterministic.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

// WithMaxTokens caps the number of generated tokens.
func WithMaxTokens(n int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = n
	}
}

// ApplyOptions resolves opts on top of defaults.
func ApplyOptions(defaults GenerateOptions, opts ...GenerateOption) GenerateOptions {
	for _, o := range opts {
		o(&defaults)
	}
	return defaults
}

// GraphAIClient defines the model operations used to build and explain graphs.
// Implementations exist for OpenAI compatible endpoints and for Ollama.
type GraphAIClient interface {
	GenerateCompletion(
		ctx context.Context,
		prompt string,
		opts ...GenerateOption,
	) (string, error)
	GenerateCompletionWithFormat(
		ctx context.Context,
		name string,
		description string,
		prompt string,
		out any,
		opts ...GenerateOption,
	) error
	GenerateChat(
		ctx context.Context,
		messages []ChatMessage,
		opts ...GenerateOption,
	) (string, error)
	GenerateChatStream(
		ctx context.Context,
		messages []ChatMessage,
		opts ...GenerateOption,
	) (<-chan StreamEvent, error)
	LoadModel(ctx context.Context, opts ...GenerateOption) error
	ResetMetrics()
	GetMetrics() ModelMetrics
}
