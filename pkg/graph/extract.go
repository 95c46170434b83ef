package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cognify-labs/cognify/backend/internal/util"
	"github.com/cognify-labs/cognify/backend/pkg/ai"
	"github.com/cognify-labs/cognify/backend/pkg/common"

	"golang.org/x/time/rate"
)

const (
	DefaultChunkTimeout = 60 * time.Second
	DefaultMaxRetries   = 2
	DefaultRetryBackoff = 500 * time.Millisecond
)

// tripleResponse is the structured output shape requested from the model.
type tripleResponse struct {
	Triples []tripleItem `json:"triples" jsonschema:"description=Subject-predicate-object statements found in the text"`
}

type tripleItem struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate" jsonschema:"description=Relation of one to three words"`
	Object    string `json:"object"`
}

// TripleExtractor turns one chunk into raw triples with a single model call
// per attempt.
type TripleExtractor struct {
	client     ai.GraphAIClient
	model      string
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	limiter    *rate.Limiter
	structured bool
}

// NewTripleExtractorParams configures a TripleExtractor.
//
// ChunkTimeout bounds every single attempt. MaxRetries is the number of
// additional attempts after the first one fails. RequestsPerSecond of zero
// disables rate limiting. With StructuredOutput the model is asked for a
// JSON schema constrained response instead of free text.
type NewTripleExtractorParams struct {
	Client            ai.GraphAIClient
	Model             string
	ChunkTimeout      time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	RequestsPerSecond float64
	StructuredOutput  bool
}

func NewTripleExtractor(params NewTripleExtractorParams) *TripleExtractor {
	timeout := params.ChunkTimeout
	if timeout <= 0 {
		timeout = DefaultChunkTimeout
	}
	retries := params.MaxRetries
	if retries < 0 {
		retries = 0
	}

	var limiter *rate.Limiter
	if params.RequestsPerSecond > 0 {
		burst := max(1, int(params.RequestsPerSecond))
		limiter = rate.NewLimiter(rate.Limit(params.RequestsPerSecond), burst)
	}

	return &TripleExtractor{
		client:     params.Client,
		model:      params.Model,
		timeout:    timeout,
		maxRetries: retries,
		backoff:    params.RetryBackoff,
		limiter:    limiter,
		structured: params.StructuredOutput,
	}
}

// ExtractTriples asks the model for the triples of chunk. Failed attempts are
// retried; only when every attempt failed is a *ChunkExtractionError returned.
func (e *TripleExtractor) ExtractTriples(ctx context.Context, chunk Chunk) ([]common.Triple, error) {
	attempts := 0
	triples, err := util.RetryWithBackoff(ctx, e.maxRetries+1, e.backoff, func(ctx context.Context) ([]common.Triple, error) {
		attempts++
		return e.attempt(ctx, chunk)
	})
	if err != nil {
		return nil, &ChunkExtractionError{Index: chunk.Index, Attempts: attempts, Err: err}
	}
	return triples, nil
}

func (e *TripleExtractor) attempt(ctx context.Context, chunk Chunk) ([]common.Triple, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	opts := []ai.GenerateOption{
		ai.WithSystemPrompts(ai.TripleExtractionSystemPrompt),
		ai.WithTemperature(0),
	}
	if e.model != "" {
		opts = append(opts, ai.WithModel(e.model))
	}
	prompt := ai.FormatTripleExtractionPrompt(chunk.Text)

	if e.structured {
		var out tripleResponse
		err := e.client.GenerateCompletionWithFormat(
			attemptCtx,
			"triples",
			"Subject-predicate-object triples extracted from a text chunk",
			prompt,
			&out,
			opts...,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
		}
		triples := make([]common.Triple, 0, len(out.Triples))
		for _, it := range out.Triples {
			if t, ok := newTriple(it.Subject, it.Predicate, it.Object); ok {
				triples = append(triples, t)
			}
		}
		return triples, nil
	}

	raw, err := e.client.GenerateCompletion(attemptCtx, prompt, opts...)
	if err != nil {
		return nil, err
	}
	res := ExtractJSON(raw)
	if !res.OK() {
		return nil, fmt.Errorf("%w: %w", ErrMalformedOutput, res.Err())
	}
	return TriplesFromJSON(res.Value), nil
}

// TriplesFromJSON reads triples from a decoded JSON value. It accepts an
// array of triple objects, an object holding such an array under "triples",
// or a single triple object. Items without a non-empty subject, predicate and
// object are skipped.
func TriplesFromJSON(v any) []common.Triple {
	var items []any
	switch val := v.(type) {
	case []any:
		items = val
	case map[string]any:
		if nested, ok := val["triples"].([]any); ok {
			items = nested
		} else {
			items = []any{val}
		}
	default:
		return nil
	}

	triples := make([]common.Triple, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		s, _ := obj["subject"].(string)
		p, _ := obj["predicate"].(string)
		o, _ := obj["object"].(string)
		t, ok := newTriple(s, p, o)
		if !ok {
			continue
		}
		if c, ok := obj["confidence"].(float64); ok && c >= 0 && c <= 1 {
			t.Confidence = &c
		}
		triples = append(triples, t)
	}
	return triples
}

func newTriple(subject, predicate, object string) (common.Triple, bool) {
	subject = strings.TrimSpace(subject)
	predicate = strings.TrimSpace(predicate)
	object = strings.TrimSpace(object)
	if subject == "" || predicate == "" || object == "" {
		return common.Triple{}, false
	}
	return common.Triple{Subject: subject, Predicate: predicate, Object: object}, true
}
