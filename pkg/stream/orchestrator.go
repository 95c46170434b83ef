// Package stream drives graph runs and turns them into event streams.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cognify-labs/cognify/backend/pkg/ai"
	"github.com/cognify-labs/cognify/backend/pkg/common"
	"github.com/cognify-labs/cognify/backend/pkg/graph"
	"github.com/cognify-labs/cognify/backend/pkg/leaselock"
	"github.com/cognify-labs/cognify/backend/pkg/logger"
	"github.com/cognify-labs/cognify/backend/pkg/store"

	"github.com/patrickmn/go-cache"
)

const (
	DefaultRunTimeout = 15 * time.Minute
	DefaultCacheTTL   = 30 * time.Minute

	loadingCachedMessage = "Loading cached graph..."
)

// Archiver stores a copy of a finished snapshot outside the database.
type Archiver interface {
	ArchiveSnapshot(ctx context.Context, graphID string, snap *common.GraphSnapshot) error
}

// Notifier announces finished graphs to other services.
type Notifier interface {
	PublishGraphComplete(ctx context.Context, g *common.Graph, summary common.Summary) error
}

// InputMeta is what a graph records about its input besides the text itself.
type InputMeta struct {
	Topic    string `json:"topic,omitempty"`
	Length   int    `json:"length,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// ParseInputMeta decodes g.InputMeta. Missing or malformed metadata yields
// the zero value.
func ParseInputMeta(g *common.Graph) InputMeta {
	var meta InputMeta
	if len(g.InputMeta) > 0 {
		_ = json.Unmarshal(g.InputMeta, &meta)
	}
	return meta
}

// Orchestrator runs graph builds and streams them to sinks. It admits at
// most one run per graph, persists the result once and replays finished
// graphs without calling the model.
type Orchestrator struct {
	store       store.GraphStore
	locker      leaselock.Locker
	graphClient *graph.GraphClient
	aiClient    ai.GraphAIClient
	archiver    Archiver
	notifier    Notifier
	snapshots   *cache.Cache
	runTimeout  time.Duration
	lease       leaselock.Options
}

// NewOrchestratorParams configures an Orchestrator. Archiver and Notifier
// are optional.
type NewOrchestratorParams struct {
	Store       store.GraphStore
	Locker      leaselock.Locker
	GraphClient *graph.GraphClient
	AIClient    ai.GraphAIClient
	Archiver    Archiver
	Notifier    Notifier
	RunTimeout  time.Duration
	CacheTTL    time.Duration
	LeaseOwner  string
}

func NewOrchestrator(params NewOrchestratorParams) (*Orchestrator, error) {
	if params.Store == nil || params.Locker == nil || params.GraphClient == nil || params.AIClient == nil {
		return nil, errors.New("store, locker, graph client and ai client are required")
	}

	runTimeout := params.RunTimeout
	if runTimeout <= 0 {
		runTimeout = DefaultRunTimeout
	}
	cacheTTL := params.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}

	prefix := params.LeaseOwner
	if prefix != "" && !strings.HasSuffix(prefix, "-") {
		prefix += "-"
	}

	return &Orchestrator{
		store:       params.Store,
		locker:      params.Locker,
		graphClient: params.GraphClient,
		aiClient:    params.AIClient,
		archiver:    params.Archiver,
		notifier:    params.Notifier,
		snapshots:   cache.New(cacheTTL, 2*cacheTTL),
		runTimeout:  runTimeout,
		lease: leaselock.Options{
			TTL:         time.Minute,
			RenewEvery:  20 * time.Second,
			TokenPrefix: prefix,
		},
	}, nil
}

func leaseKey(graphID string) string {
	return "graph:" + graphID
}

// Stream builds the graph graphID, or replays it if it is already complete,
// and sends the events to sink.
//
// Errors returned before the first event: store.ErrNotFound,
// ErrBuildInProgress. A run that fails after it started reports the failure
// to the sink as an error event, marks the graph as error and returns the
// cause. If the sink fails mid-run the build still runs to the end and is
// persisted.
func (o *Orchestrator) Stream(ctx context.Context, graphID string, sink Sink) error {
	g, err := o.store.GetGraph(ctx, graphID)
	if err != nil {
		return err
	}
	if done, err := o.finished(g, sink); done {
		return err
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.runTimeout)
	defer cancel()

	lease, err := o.locker.Acquire(runCtx, leaseKey(graphID), o.lease)
	if errors.Is(err, leaselock.ErrBusy) {
		return ErrBuildInProgress
	}
	if err != nil {
		return fmt.Errorf("failed to acquire run lease: %w", err)
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("[Stream] Failed to release run lease", "graph_id", graphID, "err", err)
		}
	}()

	// another run may have finished between the first read and the lease
	g, err = o.store.GetGraph(runCtx, graphID)
	if err != nil {
		return err
	}
	if done, err := o.finished(g, sink); done {
		return err
	}

	return o.run(lease.Context, g, &detachingSink{sink: sink, graphID: graphID})
}

// finished handles graphs in a final state. It reports whether the graph
// was one.
func (o *Orchestrator) finished(g *common.Graph, sink Sink) (bool, error) {
	switch g.Status {
	case common.StatusComplete:
		return true, o.replay(g, sink)
	case common.StatusError:
		_ = sink.Send(common.ErrorEvent("Graph build failed, please create a new graph"))
		return true, ErrRunFailed
	}
	return false, nil
}

func (o *Orchestrator) replay(g *common.Graph, sink Sink) error {
	snap := o.cachedSnapshot(g)
	logger.Debug("[Stream] Replaying graph", "graph_id", g.ID, "nodes", len(snap.Nodes))
	return SendSnapshot(sink, snap)
}

// SendSnapshot streams a finished snapshot the way a completed graph is
// replayed: a loading status, every node, every edge, then complete.
func SendSnapshot(sink Sink, snap *common.GraphSnapshot) error {
	if snap == nil {
		snap = &common.GraphSnapshot{}
	}
	if err := sink.Send(common.StatusEvent(loadingCachedMessage)); err != nil {
		return err
	}
	for _, n := range snap.Nodes {
		if err := sink.Send(common.NodeEvent(n)); err != nil {
			return err
		}
	}
	for _, e := range snap.Edges {
		if err := sink.Send(common.EdgeEvent(e)); err != nil {
			return err
		}
	}
	return sink.Send(common.CompleteEvent(len(snap.Nodes), len(snap.Edges)))
}

func (o *Orchestrator) cachedSnapshot(g *common.Graph) *common.GraphSnapshot {
	if v, ok := o.snapshots.Get(g.ID); ok {
		return v.(*common.GraphSnapshot)
	}
	snap := g.Snapshot
	if snap == nil {
		snap = &common.GraphSnapshot{}
	}
	o.snapshots.SetDefault(g.ID, snap)
	return snap
}

// Snapshot returns the finished snapshot of graphID.
func (o *Orchestrator) Snapshot(ctx context.Context, graphID string) (*common.Graph, *common.GraphSnapshot, error) {
	g, err := o.store.GetGraph(ctx, graphID)
	if err != nil {
		return nil, nil, err
	}
	if g.Status != common.StatusComplete {
		return g, nil, ErrNotComplete
	}
	return g, o.cachedSnapshot(g), nil
}

func (o *Orchestrator) run(ctx context.Context, g *common.Graph, out *detachingSink) (err error) {
	r := NewRun(o.store, g)
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("[Stream] Run panicked", "graph_id", g.ID, "panic", rec)
			err = fmt.Errorf("run panicked: %v", rec)
			o.fail(r, out, "Internal error while building the graph")
		}
	}()

	if err := r.Transition(ctx, common.StatusBuilding); err != nil {
		o.fail(r, out, "Failed to start graph build")
		return err
	}
	logger.Info("[Stream] Building graph", "graph_id", g.ID, "chars", len(g.InputText))

	if strings.TrimSpace(g.InputText) == "" {
		o.fail(r, out, "No input text found for graph")
		return graph.ErrNoInput
	}

	var opts []graph.BuildOption
	if g.SourceType == common.SourceTopic {
		if topic := ParseInputMeta(g).Topic; topic != "" {
			opts = append(opts, graph.WithRootLabel(topic))
		}
	}

	snap, err := o.graphClient.BuildGraph(ctx, g.InputText, o.aiClient, out.emit, opts...)
	if err != nil {
		o.fail(r, out, buildFailureMessage(err))
		return err
	}

	if err := r.Complete(ctx, snap); err != nil {
		o.fail(r, out, "Failed to save the graph")
		return err
	}
	o.snapshots.SetDefault(g.ID, snap)

	summary := common.Summary{Nodes: len(snap.Nodes), Edges: len(snap.Edges)}
	o.afterComplete(ctx, g, snap, summary)

	logger.Info("[Stream] Graph complete", "graph_id", g.ID, "nodes", summary.Nodes, "edges", summary.Edges, "took", time.Since(start))
	out.emit(common.CompleteEvent(summary.Nodes, summary.Edges))
	return nil
}

func (o *Orchestrator) afterComplete(ctx context.Context, g *common.Graph, snap *common.GraphSnapshot, summary common.Summary) {
	if o.archiver != nil {
		if err := o.archiver.ArchiveSnapshot(ctx, g.ID, snap); err != nil {
			logger.Warn("[Stream] Failed to archive snapshot", "graph_id", g.ID, "err", err)
		}
	}
	if o.notifier != nil {
		if err := o.notifier.PublishGraphComplete(ctx, g, summary); err != nil {
			logger.Warn("[Stream] Failed to publish completion", "graph_id", g.ID, "err", err)
		}
	}
}

// fail marks the run as error and reports message to the sink. The status
// write uses a fresh context so a canceled run still leaves building.
func (o *Orchestrator) fail(r *Run, out *detachingSink, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if r.Status != common.StatusError {
		if err := r.Transition(ctx, common.StatusError); err != nil {
			logger.Error("[Stream] Failed to mark graph as failed", "graph_id", r.GraphID, "err", err)
		}
	}
	out.emit(common.ErrorEvent(message))
}

func buildFailureMessage(err error) string {
	switch {
	case errors.Is(err, graph.ErrNoInput):
		return "No input text found for graph"
	case errors.Is(err, graph.ErrExtractionFailed):
		return "Could not extract any knowledge from the input"
	case errors.Is(err, context.DeadlineExceeded):
		return "Graph build timed out"
	default:
		return "Graph build failed: " + err.Error()
	}
}
