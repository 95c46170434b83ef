package ollama

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/cognify-labs/cognify/backend/pkg/ai"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
)

const (
	baseContextTokens    = 200
	defaultContextTokens = 4096
)

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
	encoderErr  error
)

// contextSize estimates the num_ctx needed for the given messages. It
// returns 0 when the server default is large enough.
func contextSize(msgs []api.Message) (int, error) {
	encoderOnce.Do(func() {
		encoder, encoderErr = tiktoken.GetEncoding("o200k_base")
	})
	if encoderErr != nil {
		return 0, encoderErr
	}

	var text strings.Builder
	for _, m := range msgs {
		text.WriteString(m.Content)
		text.WriteByte('\n')
	}
	tokens := baseContextTokens + len(encoder.Encode(text.String(), nil, nil))
	if tokens <= defaultContextTokens {
		return 0, nil
	}
	return tokens, nil
}

func toMessages(options ai.GenerateOptions, messages []ai.ChatMessage) []api.Message {
	msgs := make([]api.Message, 0, len(options.SystemPrompts)+len(messages))
	for _, sys := range options.SystemPrompts {
		msgs = append(msgs, api.Message{Role: "system", Content: sys})
	}
	for _, m := range messages {
		role := m.Role
		if role == "" {
			role = ai.RoleUser
		}
		msgs = append(msgs, api.Message{Role: role, Content: m.Message})
	}
	return msgs
}

func (c *GraphOllamaClient) request(
	options ai.GenerateOptions,
	messages []ai.ChatMessage,
	stream bool,
) (*api.ChatRequest, error) {
	msgs := toMessages(options, messages)
	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: msgs,
		Stream:   &stream,
		Options:  map[string]any{"temperature": options.Temperature},
	}
	if options.MaxTokens > 0 {
		req.Options["num_predict"] = options.MaxTokens
	}

	numCtx, err := contextSize(msgs)
	if err != nil {
		return nil, err
	}
	if numCtx > 0 {
		req.Options["num_ctx"] = numCtx
	}
	return req, nil
}

func (c *GraphOllamaClient) record(m api.Metrics) {
	c.Record(ai.ModelMetrics{
		InputTokens:  m.PromptEvalCount,
		OutputTokens: m.EvalCount,
		TotalTokens:  m.PromptEvalCount + m.EvalCount,
		DurationMs:   m.TotalDuration.Milliseconds(),
	})
}

func (c *GraphOllamaClient) chat(ctx context.Context, req *api.ChatRequest) (string, error) {
	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.reqLock.Release(1)

	var content strings.Builder
	err := c.Client.Chat(ctx, req, func(cr api.ChatResponse) error {
		content.WriteString(cr.Message.Content)
		if cr.Done {
			c.record(cr.Metrics)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return content.String(), nil
}

// GenerateCompletion sends a single-turn prompt and returns assistant text.
func (c *GraphOllamaClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.descriptionModel,
		Temperature: 0.3,
	}, opts...)

	req, err := c.request(options, []ai.ChatMessage{{Role: ai.RoleUser, Message: prompt}}, false)
	if err != nil {
		return "", err
	}
	return c.chat(ctx, req)
}

// GenerateCompletionWithFormat enforces a JSON schema and unmarshals into out.
func (c *GraphOllamaClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	rv := reflect.ValueOf(out)
	if out == nil || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("out must be a non-nil pointer")
	}

	format, err := ai.SchemaJSON(out)
	if err != nil {
		return err
	}

	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.extractionModel,
		Temperature: 0.1,
	}, opts...)

	req, err := c.request(options, []ai.ChatMessage{{Role: ai.RoleUser, Message: prompt}}, false)
	if err != nil {
		return err
	}
	req.Format = format

	content, err := c.chat(ctx, req)
	if err != nil {
		return err
	}
	return ai.UnmarshalFlexible(content, out)
}

// GenerateChat sends a multi-turn conversation and returns assistant text.
func (c *GraphOllamaClient) GenerateChat(
	ctx context.Context,
	messages []ai.ChatMessage,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.descriptionModel,
		Temperature: 0.2,
	}, opts...)

	req, err := c.request(options, messages, false)
	if err != nil {
		return "", err
	}
	return c.chat(ctx, req)
}

// GenerateChatStream streams the assistant reply incrementally. A failure
// after the request started ends the stream with an "error" event.
func (c *GraphOllamaClient) GenerateChatStream(
	ctx context.Context,
	messages []ai.ChatMessage,
	opts ...ai.GenerateOption,
) (<-chan ai.StreamEvent, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.descriptionModel,
		Temperature: 0.2,
	}, opts...)

	req, err := c.request(options, messages, true)
	if err != nil {
		return nil, err
	}

	out := make(chan ai.StreamEvent, 16)

	go func() {
		defer close(out)

		send := func(ev ai.StreamEvent) error {
			select {
			case out <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.reqLock.Acquire(ctx, 1); err != nil {
			return
		}
		defer c.reqLock.Release(1)

		err := c.Client.Chat(ctx, req, func(cr api.ChatResponse) error {
			if s := cr.Message.Thinking; s != "" {
				if err := send(ai.StreamEvent{Type: ai.StreamStep, Step: "thinking", Reasoning: s}); err != nil {
					return err
				}
			}
			if s := cr.Message.Content; s != "" {
				if err := send(ai.StreamEvent{Type: ai.StreamContent, Content: s}); err != nil {
					return err
				}
			}
			if cr.Done {
				c.record(cr.Metrics)
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			_ = send(ai.StreamEvent{Type: ai.StreamError, Err: err})
		}
	}()

	return out, nil
}

// LoadModel preloads a model into memory to reduce latency on subsequent requests.
func (c *GraphOllamaClient) LoadModel(ctx context.Context, opts ...ai.GenerateOption) error {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model: c.extractionModel,
	}, opts...)

	req := &api.ChatRequest{
		Model: options.Model,
	}

	return c.Client.Chat(ctx, req, func(cr api.ChatResponse) error {
		return nil
	})
}
