package ai

import (
	"context"
	"errors"
	"strings"
)

const TopicSystemPrompt = `You are an educational writer. You write accurate, self-contained texts that name their key concepts consistently so they can be turned into a knowledge graph.`

// ErrEmptyCompletion is returned when the model answered with no text.
var ErrEmptyCompletion = errors.New("model returned an empty completion")

// GenerateTopicText expands topic into the source text of a graph.
//
// Example:
//
//	text, err := ai.GenerateTopicText(ctx, client, "photosynthesis")
func GenerateTopicText(ctx context.Context, client GraphAIClient, topic string) (string, error) {
	text, err := client.GenerateChat(ctx,
		[]ChatMessage{{Role: RoleUser, Message: FormatTopicPrompt(topic)}},
		WithSystemPrompts(TopicSystemPrompt),
		WithTemperature(0.7),
		WithMaxTokens(2000),
	)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
