// Package aitest provides a scripted ai.GraphAIClient for tests.
package aitest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/cognify-labs/cognify/backend/pkg/ai"
)

// Client is an in-memory ai.GraphAIClient. Every hook is optional; unset
// hooks return empty results.
type Client struct {
	ai.Meter

	// Complete answers GenerateCompletion and GenerateChat.
	Complete func(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error)
	// Format answers GenerateCompletionWithFormat by filling out.
	Format func(ctx context.Context, prompt string, out any) error
	// Stream is sent piece by piece by GenerateChatStream.
	Stream []string
	// StreamErr, if set, ends GenerateChatStream with an error event after Stream.
	StreamErr error
	// LoadErr is returned by LoadModel.
	LoadErr error

	mu      sync.Mutex
	prompts []string
}

var _ ai.GraphAIClient = (*Client)(nil)

// ErrScripted is a generic failure for hooks to return.
var ErrScripted = errors.New("scripted failure")

// Respond returns a Complete hook that answers with the first response whose
// key is contained in the prompt.
func Respond(responses map[string]string) func(context.Context, string, ai.GenerateOptions) (string, error) {
	return func(_ context.Context, prompt string, _ ai.GenerateOptions) (string, error) {
		for key, resp := range responses {
			if strings.Contains(prompt, key) {
				return resp, nil
			}
		}
		return "[]", nil
	}
}

func (c *Client) record(prompt string) {
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.mu.Unlock()
	c.Record(ai.ModelMetrics{})
}

// Calls returns how many model calls were made.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}

// Prompts returns the prompts in call order.
func (c *Client) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}

func (c *Client) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	c.record(prompt)
	if c.Complete == nil {
		return "", nil
	}
	return c.Complete(ctx, prompt, ai.ApplyOptions(ai.GenerateOptions{}, opts...))
}

func (c *Client) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	c.record(prompt)
	if c.Format == nil {
		return nil
	}
	return c.Format(ctx, prompt, out)
}

func (c *Client) GenerateChat(ctx context.Context, messages []ai.ChatMessage, opts ...ai.GenerateOption) (string, error) {
	prompt := lastMessage(messages)
	c.record(prompt)
	if c.Complete == nil {
		return "", nil
	}
	return c.Complete(ctx, prompt, ai.ApplyOptions(ai.GenerateOptions{}, opts...))
}

func (c *Client) GenerateChatStream(ctx context.Context, messages []ai.ChatMessage, opts ...ai.GenerateOption) (<-chan ai.StreamEvent, error) {
	c.record(lastMessage(messages))
	out := make(chan ai.StreamEvent)
	go func() {
		defer close(out)
		for _, s := range c.Stream {
			select {
			case out <- ai.StreamEvent{Type: ai.StreamContent, Content: s}:
			case <-ctx.Done():
				return
			}
		}
		if c.StreamErr != nil {
			select {
			case out <- ai.StreamEvent{Type: ai.StreamError, Err: c.StreamErr}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

func (c *Client) LoadModel(ctx context.Context, opts ...ai.GenerateOption) error {
	return c.LoadErr
}

func lastMessage(messages []ai.ChatMessage) string {
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1].Message
}
