package ai

import (
	"fmt"
	"strings"
)

const TopicGenerationPrompt = `
# Task Context
You write educational source material that will be turned into a knowledge graph.

# Immediate Task Description or Request
Generate a comprehensive 800-word educational text about %s.

# Detailed Task Description & Rules
- Include the key concepts of the topic, how they relate to each other and the context they live in.
- Write clear, factual prose. No lists, no headings, no markdown.
- Focus on the main ideas and the important entities, and name them consistently.
`

const TripleExtractionSystemPrompt = `You are an advanced AI system specialized in knowledge extraction and knowledge graph generation.
Your expertise includes identifying consistent entity references and meaningful relationships in text.
CRITICAL INSTRUCTIONS:
1. All relationships (predicates) MUST be no more than 3 words maximum. Ideally 1-2 words. This is a hard limit.
2. The graph MUST be fully connected - every node must be reachable from a central root concept. No isolated nodes or disconnected subgraphs.`

const TripleExtractionPrompt = `
# Task Context
Read the text below (delimited by triple backticks) and identify all Subject-Predicate-Object (S-P-O) relationships in each sentence. Produce a single JSON array of objects, one object per triple.

# Detailed Task Description & Rules
- ROOT NODE REQUIREMENT: identify the central concept of the text as the root node. Every other entity connects back to it, directly or through other nodes. No isolated nodes, no disconnected subgraphs.
- Entity consistency: use one name per entity across the whole text. If "John Smith" also appears as "John" or "Mr. Smith", always use the most complete form.
- Atomic terms: identify distinct key terms (objects, locations, organizations, acronyms, people, conditions, concepts, feelings). Never merge several ideas into one term.
- Unified references: replace pronouns ("he", "she", "it", "they") with the entity they refer to when it is identifiable.
- Pairwise relationships: when several terms co-occur in a sentence or a short paragraph, create one triple for every pair with a meaningful relationship.
- Predicates MUST be 1-3 words. Never more than 3 words.
- Standardize terminology: when a concept appears in variations ("artificial intelligence", "AI"), use the canonical form everywhere.
- Write subject, predicate and object in lower case, including names of people and places.
- For a named person, relate them to their location, profession and what they are known for, when known and relevant.
- CONNECTIVITY: before answering, verify that every entity takes part in at least one relationship connecting it to the root. Add bridging relationships where needed.

# Output Formatting
- Only output the JSON array. No text or commentary outside of it.
- Every object has exactly the keys "subject", "predicate" and "object".
- The JSON must be valid.

Example:
[
  {"subject": "term a", "predicate": "relates to", "object": "term b"},
  {"subject": "term c", "predicate": "uses", "object": "term d"}
]

# Background Data
Text to analyze:
` + "```%s```"

const NodeDetailSystemPrompt = `You are a patient tutor. You explain a single concept of a knowledge graph to a learner in plain language, using the concept's connections in the graph as context. Keep explanations short, concrete and free of markdown headings.`

const NodeDetailPrompt = `
# Task Context
The learner is exploring the knowledge graph "%s" and selected the concept "%s".

# Background Data
Concepts in the graph: %s

Relationships pointing at "%s":
%s

Relationships leaving "%s":
%s

# Immediate Task Description or Request
Explain "%s" in at most two short paragraphs. Say what it is, then how it connects to the related concepts listed above. Do not invent relationships that contradict the graph.
`

// FormatTopicPrompt builds the prompt that expands a topic into source text.
func FormatTopicPrompt(topic string) string {
	return fmt.Sprintf(TopicGenerationPrompt, strings.TrimSpace(topic))
}

// FormatTripleExtractionPrompt builds the user prompt for one chunk.
func FormatTripleExtractionPrompt(text string) string {
	return fmt.Sprintf(TripleExtractionPrompt, text)
}

// FormatNodeDetailPrompt builds the user prompt explaining one node.
// incoming and outgoing hold one already formatted line per relationship.
func FormatNodeDetailPrompt(graphName, label string, labels, incoming, outgoing []string) string {
	return fmt.Sprintf(
		NodeDetailPrompt,
		graphName, label,
		strings.Join(labels, ", "),
		label, bulletList(incoming),
		label, bulletList(outgoing),
		label,
	)
}

func bulletList(lines []string) string {
	if len(lines) == 0 {
		return "- none"
	}
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(l)
	}
	return b.String()
}
