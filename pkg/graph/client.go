package graph

import (
	"fmt"
	"time"
)

// MaxInputChars bounds the source text of one graph, counted in characters.
const MaxInputChars = 50000

// GraphClient builds knowledge graphs from text. It holds the chunking and
// extraction settings shared by all runs; every run gets its own accumulator.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	chunker           Chunker
	parallelChunks    int
	maxRetries        int
	chunkTimeout      time.Duration
	retryBackoff      time.Duration
	requestsPerSecond float64
	structuredOutput  bool
	extractionModel   string
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// ChunkSize and ChunkOverlap are counted in words. ParallelChunks controls
// how many model calls may run at once; 1 processes chunks strictly one
// after the other. MaxRetries is the number of extra attempts per chunk.
type NewGraphClientParams struct {
	ChunkSize         int
	ChunkOverlap      int
	ParallelChunks    int
	MaxRetries        int
	ChunkTimeout      time.Duration
	RetryBackoff      time.Duration
	RequestsPerSecond float64
	StructuredOutput  bool
	ExtractionModel   string
}

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters.
//
// Example:
//
//	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
//		ChunkSize:      100,
//		ChunkOverlap:   20,
//		ParallelChunks: 4,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
func NewGraphClient(params NewGraphClientParams) (*GraphClient, error) {
	if params.ChunkSize < 0 {
		return nil, fmt.Errorf("chunk size must not be negative, got %d", params.ChunkSize)
	}
	if params.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests per second must not be negative, got %v", params.RequestsPerSecond)
	}

	maxRetries := params.MaxRetries
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}

	return &GraphClient{
		chunker:           NewChunker(params.ChunkSize, params.ChunkOverlap),
		parallelChunks:    max(1, params.ParallelChunks),
		maxRetries:        maxRetries,
		chunkTimeout:      params.ChunkTimeout,
		retryBackoff:      params.RetryBackoff,
		requestsPerSecond: params.RequestsPerSecond,
		structuredOutput:  params.StructuredOutput,
		extractionModel:   params.ExtractionModel,
	}, nil
}

// Chunker returns the chunker used for every run.
func (g *GraphClient) Chunker() Chunker {
	return g.chunker
}

// RetryBackoff is the wait before the second attempt on a chunk. It doubles
// for every further attempt.
func (g *GraphClient) RetryBackoff() time.Duration {
	return g.retryBackoff
}
