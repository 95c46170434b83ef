package graph

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/cognify-labs/cognify/backend/pkg/ai"
	"github.com/cognify-labs/cognify/backend/pkg/common"
	"github.com/cognify-labs/cognify/backend/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// EmitFunc receives the events of a run in order.
type EmitFunc func(common.Event)

type buildOptions struct {
	rootLabel string
}

// BuildOption customizes a single BuildGraph run.
type BuildOption func(*buildOptions)

// WithRootLabel anchors the graph at a synthetic root node with the given
// label, typically the topic the text was generated from. Without it the
// best connected extracted node becomes the root.
func WithRootLabel(label string) BuildOption {
	return func(o *buildOptions) {
		o.rootLabel = strings.TrimSpace(label)
	}
}

type chunkResult struct {
	triples []common.Triple
	err     error
	done    chan struct{}
}

// BuildGraph runs the extraction pipeline over text and emits the graph as it grows.
//
// For every chunk a status event "Processing chunk N of M" is emitted,
// followed by the nodes and edges its triples added, in triple order. With
// WithRootLabel the root node follows the first status event. When all chunks
// are merged the connectivity pass runs and its bridging edges are emitted.
//
// Chunks are merged strictly in order even when model calls run in parallel,
// so the event sequence does not depend on ParallelChunks. A chunk whose
// extraction fails after all retries is logged and skipped. If every chunk
// fails, ErrExtractionFailed is returned.
//
// Example:
//
//	snap, err := client.BuildGraph(ctx, text, aiClient, func(ev common.Event) {
//		fmt.Println(ev.Type)
//	})
func (g *GraphClient) BuildGraph(
	ctx context.Context,
	text string,
	aiClient ai.GraphAIClient,
	emit EmitFunc,
	opts ...BuildOption,
) (*common.GraphSnapshot, error) {
	var options buildOptions
	for _, o := range opts {
		o(&options)
	}
	if emit == nil {
		emit = func(common.Event) {}
	}

	chunks := slices.Collect(g.chunker.Chunks(text))
	if len(chunks) == 0 {
		return nil, ErrNoInput
	}

	extractor := NewTripleExtractor(NewTripleExtractorParams{
		Client:            aiClient,
		Model:             g.extractionModel,
		ChunkTimeout:      g.chunkTimeout,
		MaxRetries:        g.maxRetries,
		RetryBackoff:      g.retryBackoff,
		RequestsPerSecond: g.requestsPerSecond,
		StructuredOutput:  g.structuredOutput,
	})

	acc := NewAccumulator()
	failed := 0
	var lastErr error

	begin := func(chunk Chunk) {
		emit(common.StatusEvent(fmt.Sprintf("Processing chunk %d of %d", chunk.Index+1, len(chunks))))
		if chunk.Index == 0 && options.rootLabel != "" {
			if root, created := acc.AddNode(options.rootLabel, common.GroupRoot); created {
				emit(common.NodeEvent(root))
			}
		}
	}

	merge := func(chunk Chunk, triples []common.Triple, err error) {
		if err != nil {
			failed++
			lastErr = err
			logger.Warn("[Graph] Skipping chunk", "chunk", chunk.Index+1, "of", len(chunks), "err", err)
			return
		}

		for _, t := range triples {
			res := acc.AddTriple(t)
			for _, n := range res.Nodes {
				emit(common.NodeEvent(n))
			}
			if res.Edge != nil {
				emit(common.EdgeEvent(*res.Edge))
			}
		}
		logger.Debug("[Graph] Merged chunk", "chunk", chunk.Index+1, "triples", len(triples))
	}

	if g.parallelChunks <= 1 {
		for _, chunk := range chunks {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			begin(chunk)
			triples, err := extractor.ExtractTriples(ctx, chunk)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			merge(chunk, triples, err)
		}
	} else {
		results := make([]*chunkResult, len(chunks))
		for i := range results {
			results[i] = &chunkResult{done: make(chan struct{})}
		}

		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(g.parallelChunks)

		// eg.Go blocks at the limit, so tasks are started off the merging
		// goroutine. launched is closed once no further eg.Go call happens.
		launched := make(chan struct{})
		go func() {
			defer close(launched)
			for i, chunk := range chunks {
				res := results[i]
				if egCtx.Err() != nil {
					res.err = egCtx.Err()
					close(res.done)
					continue
				}
				eg.Go(func() error {
					defer close(res.done)
					res.triples, res.err = extractor.ExtractTriples(egCtx, chunk)
					return nil
				})
			}
		}()
		wait := func() {
			<-launched
			_ = eg.Wait()
		}

		for i, chunk := range chunks {
			<-results[i].done
			if ctx.Err() != nil {
				wait()
				return nil, ctx.Err()
			}
			begin(chunk)
			merge(chunk, results[i].triples, results[i].err)
		}
		wait()
	}

	if failed == len(chunks) {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, lastErr)
	}

	rootID := SelectRoot(acc.Nodes(), acc.Edges())
	if options.rootLabel != "" {
		rootID = NodeID(options.rootLabel)
	}
	for _, bridge := range EnforceConnectivity(acc.Nodes(), acc.Edges(), rootID) {
		if acc.AddEdge(bridge) {
			emit(common.EdgeEvent(bridge))
		}
	}

	nodes, edges := acc.Len()
	logger.Info("[Graph] Built graph", "chunks", len(chunks), "failed", failed, "nodes", nodes, "edges", edges)

	snap := acc.Snapshot(rootID)
	return &snap, nil
}
