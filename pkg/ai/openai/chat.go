package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cognify-labs/cognify/backend/pkg/ai"

	"github.com/openai/openai-go/v3"
)

var errNoClient = errors.New("openai client not configured (missing AI_CHAT_KEY)")

func (c *GraphOpenAIClient) params(
	options ai.GenerateOptions,
	messages []ai.ChatMessage,
) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(options.SystemPrompts)+len(messages))
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, openai.SystemMessage(sp))
	}
	for _, message := range messages {
		switch message.Role {
		case ai.RoleUser:
			msgs = append(msgs, openai.UserMessage(message.Message))
		case ai.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(message.Message))
		}
	}

	body := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(options.Model),
		Messages:    msgs,
		Temperature: openai.Float(options.Temperature),
	}
	if options.MaxTokens > 0 {
		body.MaxCompletionTokens = openai.Int(int64(options.MaxTokens))
	}

	return body
}

func (c *GraphOpenAIClient) complete(
	ctx context.Context,
	body openai.ChatCompletionNewParams,
) (string, error) {
	if c.ChatClient == nil {
		return "", errNoClient
	}

	start := time.Now()
	response, err := c.ChatClient.Chat.Completions.New(ctx, body)
	if err != nil {
		return "", err
	}

	c.Record(ai.ModelMetrics{
		InputTokens:  int(response.Usage.PromptTokens),
		OutputTokens: int(response.Usage.CompletionTokens),
		TotalTokens:  int(response.Usage.TotalTokens),
		DurationMs:   time.Since(start).Milliseconds(),
	})

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in response from model")
	}
	return response.Choices[0].Message.Content, nil
}

// GenerateCompletion sends a single-turn prompt to the chat model and
// returns the generated completion as plain text.
//
// Example:
//
//	resp, err := client.GenerateCompletion(ctx, prompt,
//		ai.WithSystemPrompts(ai.TripleExtractionSystemPrompt),
//		ai.WithTemperature(0),
//	)
func (c *GraphOpenAIClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.descriptionModel,
		Temperature: 0.3,
	}, opts...)

	return c.complete(ctx, c.params(options, []ai.ChatMessage{{Role: ai.RoleUser, Message: prompt}}))
}

// GenerateCompletionWithFormat sends a prompt with a strict JSON schema
// derived from out and decodes the response into out.
//
// Example:
//
//	var out struct {
//		Triples []common.Triple `json:"triples"`
//	}
//	err := client.GenerateCompletionWithFormat(ctx, "triples", "Extracted triples", prompt, &out)
func (c *GraphOpenAIClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.extractionModel,
		Temperature: 0.1,
	}, opts...)

	body := c.params(options, []ai.ChatMessage{{Role: ai.RoleUser, Message: prompt}})
	body.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
			JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:        name,
				Description: openai.String(description),
				Schema:      ai.GenerateSchema(out),
				Strict:      openai.Bool(true),
			},
		},
	}

	message, err := c.complete(ctx, body)
	if err != nil {
		return err
	}
	if message == "" {
		return fmt.Errorf("empty response from model")
	}
	return ai.UnmarshalFlexible(message, out)
}

// GenerateChat sends a multi-turn conversation and returns the assistant reply.
func (c *GraphOpenAIClient) GenerateChat(
	ctx context.Context,
	messages []ai.ChatMessage,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.descriptionModel,
		Temperature: 0.2,
	}, opts...)

	return c.complete(ctx, c.params(options, messages))
}

// GenerateChatStream sends a multi-turn conversation and streams the reply.
//
// The returned channel is closed when the stream ends or ctx is canceled.
// A provider failure mid-stream is delivered as a final "error" event.
// Reasoning deltas, if the provider sends any, arrive as "step" events
// before the first content event.
//
// Example:
//
//	stream, err := client.GenerateChatStream(ctx, msgs, ai.WithMaxTokens(320))
//	if err != nil {
//		return err
//	}
//	for ev := range stream {
//		fmt.Print(ev.Content)
//	}
func (c *GraphOpenAIClient) GenerateChatStream(
	ctx context.Context,
	messages []ai.ChatMessage,
	opts ...ai.GenerateOption,
) (<-chan ai.StreamEvent, error) {
	if c.ChatClient == nil {
		return nil, errNoClient
	}

	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.descriptionModel,
		Temperature: 0.2,
	}, opts...)

	body := c.params(options, messages)
	body.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	start := time.Now()
	stream := c.ChatClient.Chat.Completions.NewStreaming(ctx, body)
	contentChan := make(chan ai.StreamEvent, 10)

	go func() {
		defer close(contentChan)
		defer stream.Close()

		acc := openai.ChatCompletionAccumulator{}
		contentStarted := false

		send := func(ev ai.StreamEvent) bool {
			select {
			case contentChan <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)

			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta

			if !contentStarted {
				if field, ok := delta.JSON.ExtraFields["reasoning"]; ok && field.Raw() != "" {
					var reasoning string
					if err := json.Unmarshal([]byte(field.Raw()), &reasoning); err == nil && reasoning != "" {
						if !send(ai.StreamEvent{Type: ai.StreamStep, Step: "thinking", Reasoning: reasoning}) {
							return
						}
					}
				}
			}

			if delta.Content != "" {
				contentStarted = true
				if !send(ai.StreamEvent{Type: ai.StreamContent, Content: delta.Content}) {
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			if ctx.Err() == nil {
				send(ai.StreamEvent{Type: ai.StreamError, Err: err})
			}
			return
		}

		c.Record(ai.ModelMetrics{
			InputTokens:  int(acc.Usage.PromptTokens),
			OutputTokens: int(acc.Usage.CompletionTokens),
			TotalTokens:  int(acc.Usage.TotalTokens),
			DurationMs:   time.Since(start).Milliseconds(),
		})
	}()

	return contentChan, nil
}

// LoadModel is a no-op for OpenAI as models are loaded on-demand.
func (c *GraphOpenAIClient) LoadModel(ctx context.Context, opts ...ai.GenerateOption) error {
	return nil
}
