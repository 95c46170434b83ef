package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrNoInput is returned when a run has no text to extract from.
	ErrNoInput = errors.New("no input text found for graph")
	// ErrMalformedOutput means no JSON value could be recovered from a model response.
	ErrMalformedOutput = errors.New("malformed model output")
	// ErrExtractionFailed is returned when every chunk of a run failed.
	ErrExtractionFailed = errors.New("triple extraction failed for every chunk")
)

// ChunkExtractionError reports that a chunk could not be turned into triples
// after all retries. The run continues without the chunk.
type ChunkExtractionError struct {
	Index    int
	Attempts int
	Err      error
}

func (e *ChunkExtractionError) Error() string {
	return fmt.Sprintf("chunk %d failed after %d attempt(s): %v", e.Index, e.Attempts, e.Err)
}

func (e *ChunkExtractionError) Unwrap() error {
	return e.Err
}
