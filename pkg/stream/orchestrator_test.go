package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cognify-labs/cognify/backend/pkg/ai"
	"github.com/cognify-labs/cognify/backend/pkg/ai/aitest"
	"github.com/cognify-labs/cognify/backend/pkg/common"
	"github.com/cognify-labs/cognify/backend/pkg/graph"
	"github.com/cognify-labs/cognify/backend/pkg/leaselock"
	"github.com/cognify-labs/cognify/backend/pkg/store"

	"github.com/stretchr/testify/require"
)

// memStore is an in-memory store.GraphStore with injectable failures.
type memStore struct {
	mu      sync.Mutex
	graphs  map[string]*common.Graph
	details map[string]*common.NodeDetail
	saveErr error
	saves   int
}

func newMemStore(graphs ...*common.Graph) *memStore {
	s := &memStore{graphs: map[string]*common.Graph{}, details: map[string]*common.NodeDetail{}}
	for _, g := range graphs {
		s.graphs[g.ID] = g
	}
	return s
}

func (s *memStore) CreateGraph(ctx context.Context, g *common.Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *g
	s.graphs[g.ID] = &cp
	return nil
}

func (s *memStore) GetGraph(ctx context.Context, id string) (*common.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.graphs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (s *memStore) UpdateGraphStatus(ctx context.Context, id string, status common.GraphStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.graphs[id]
	if !ok {
		return store.ErrNotFound
	}
	g.Status = status
	return nil
}

func (s *memStore) SaveGraphSnapshot(ctx context.Context, id string, snap *common.GraphSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	g, ok := s.graphs[id]
	if !ok {
		return store.ErrNotFound
	}
	if g.Status != common.StatusBuilding {
		return store.ErrNotBuilding
	}
	s.saves++
	g.Status = common.StatusComplete
	g.Snapshot = snap
	return nil
}

func (s *memStore) HasBuildingGraph(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.graphs {
		if g.UserID == userID && g.Status == common.StatusBuilding {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) GetNodeDetail(ctx context.Context, graphID, nodeID string) (*common.NodeDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.details[graphID+"/"+nodeID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *memStore) SaveNodeDetail(ctx context.Context, d *common.NodeDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := d.GraphID + "/" + d.NodeID
	if _, ok := s.details[key]; !ok {
		cp := *d
		s.details[key] = &cp
	}
	return nil
}

func (s *memStore) status(id string) common.GraphStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graphs[id].Status
}

type collector struct {
	events []common.Event
	failAt int
}

func (c *collector) Send(ev common.Event) error {
	if c.failAt > 0 && len(c.events)+1 >= c.failAt {
		return errors.New("client gone")
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *collector) describe() []string {
	out := make([]string, 0, len(c.events))
	for _, ev := range c.events {
		switch ev.Type {
		case common.EventNode:
			out = append(out, "node:"+ev.Node.Label)
		case common.EventEdge:
			out = append(out, fmt.Sprintf("edge:%s:%s", ev.Edge.Relation, ev.Edge.Type))
		case common.EventComplete:
			out = append(out, fmt.Sprintf("complete:%d/%d", ev.Summary.Nodes, ev.Summary.Edges))
		default:
			out = append(out, string(ev.Type)+":"+ev.Message)
		}
	}
	return out
}

type recordingArchiver struct {
	ids []string
}

func (a *recordingArchiver) ArchiveSnapshot(ctx context.Context, graphID string, snap *common.GraphSnapshot) error {
	a.ids = append(a.ids, graphID)
	return nil
}

type failingNotifier struct {
	calls int
}

func (n *failingNotifier) PublishGraphComplete(ctx context.Context, g *common.Graph, summary common.Summary) error {
	n.calls++
	return errors.New("broker down")
}

const sampleText = "alpha bravo charlie"

func sampleModel() *aitest.Client {
	return &aitest.Client{Complete: aitest.Respond(map[string]string{
		sampleText: `[{"subject":"A","predicate":"has","object":"B"}]`,
	})}
}

func newTestOrchestrator(t *testing.T, s store.GraphStore, model *aitest.Client, locker leaselock.Locker, extra ...func(*NewOrchestratorParams)) *Orchestrator {
	t.Helper()
	gc, err := graph.NewGraphClient(graph.NewGraphClientParams{ChunkTimeout: time.Second})
	require.NoError(t, err)
	if locker == nil {
		locker = leaselock.NewLocal()
	}
	params := NewOrchestratorParams{
		Store:       s,
		Locker:      locker,
		GraphClient: gc,
		AIClient:    model,
		RunTimeout:  10 * time.Second,
	}
	for _, fn := range extra {
		fn(&params)
	}
	o, err := NewOrchestrator(params)
	require.NoError(t, err)
	return o
}

func pendingGraph(id, text string) *common.Graph {
	return &common.Graph{
		ID:         id,
		UserID:     "u1",
		Name:       "Test",
		SourceType: common.SourceUpload,
		InputText:  text,
		Status:     common.StatusPending,
	}
}

func TestStream_BuildsPersistsAndReplays(t *testing.T) {
	s := newMemStore(pendingGraph("g1", sampleText))
	model := sampleModel()
	archiver := &recordingArchiver{}
	notifier := &failingNotifier{}
	o := newTestOrchestrator(t, s, model, nil, func(p *NewOrchestratorParams) {
		p.Archiver = archiver
		p.Notifier = notifier
	})

	sink := &collector{}
	require.NoError(t, o.Stream(context.Background(), "g1", sink))
	require.Equal(t, []string{
		"status:Processing chunk 1 of 1",
		"node:A",
		"node:B",
		"edge:has:extracted",
		"complete:2/1",
	}, sink.describe())

	require.Equal(t, common.StatusComplete, s.status("g1"))
	require.Equal(t, 1, s.saves)
	require.Equal(t, []string{"g1"}, archiver.ids)
	require.Equal(t, 1, notifier.calls)
	calls := model.Calls()

	replay := &collector{}
	require.NoError(t, o.Stream(context.Background(), "g1", replay))
	require.Equal(t, []string{
		"status:" + loadingCachedMessage,
		"node:A",
		"node:B",
		"edge:has:extracted",
		"complete:2/1",
	}, replay.describe())
	require.Equal(t, calls, model.Calls(), "replay must not call the model")
	require.Equal(t, 1, s.saves)
}

func TestStream_ReplayFromStoreWithoutModel(t *testing.T) {
	g := pendingGraph("g1", sampleText)
	g.Status = common.StatusComplete
	g.Snapshot = &common.GraphSnapshot{
		Nodes: []common.GraphNode{{ID: "a", Label: "A", Group: common.GroupExtracted, Weight: 1}},
		Edges: []common.GraphEdge{},
	}
	model := sampleModel()
	o := newTestOrchestrator(t, newMemStore(g), model, nil)

	sink := &collector{}
	require.NoError(t, o.Stream(context.Background(), "g1", sink))
	require.Equal(t, []string{"status:" + loadingCachedMessage, "node:A", "complete:1/0"}, sink.describe())
	require.Zero(t, model.Calls())
}

func TestStream_TopicGraphHasSyntheticRoot(t *testing.T) {
	g := pendingGraph("g1", sampleText)
	g.SourceType = common.SourceTopic
	g.InputMeta = []byte(`{"topic":"Biology"}`)
	s := newMemStore(g)
	o := newTestOrchestrator(t, s, sampleModel(), nil)

	sink := &collector{}
	require.NoError(t, o.Stream(context.Background(), "g1", sink))
	require.Equal(t, []string{
		"status:Processing chunk 1 of 1",
		"node:Biology",
		"node:A",
		"node:B",
		"edge:has:extracted",
		"edge:includes:root",
		"complete:3/2",
	}, sink.describe())

	stored, err := s.GetGraph(context.Background(), "g1")
	require.NoError(t, err)
	require.Equal(t, graph.NodeID("Biology"), stored.Snapshot.Root)
}

func TestStream_ReconstructedUploadGraphKeepsStoredRoot(t *testing.T) {
	s := newMemStore(pendingGraph("g1", sampleText))
	model := &aitest.Client{Complete: aitest.Respond(map[string]string{
		sampleText: `[{"subject":"A","predicate":"has","object":"B"},{"subject":"C","predicate":"uses","object":"B"}]`,
	})}
	o := newTestOrchestrator(t, s, model, nil)

	live := &collector{}
	require.NoError(t, o.Stream(context.Background(), "g1", live))
	stored, err := s.GetGraph(context.Background(), "g1")
	require.NoError(t, err)
	require.Equal(t, graph.NodeID("B"), stored.Snapshot.Root)

	got := Reconstruct(live.events)
	require.True(t, got.Complete)
	require.Equal(t, stored.Snapshot.Root, got.Snapshot.Root)
	require.ElementsMatch(t, stored.Snapshot.Edges, got.Snapshot.Edges)

	replay := &collector{}
	require.NoError(t, o.Stream(context.Background(), "g1", replay))
	require.Equal(t, stored.Snapshot.Root, Reconstruct(replay.events).Snapshot.Root)
}

func TestStream_EmptyInput(t *testing.T) {
	s := newMemStore(pendingGraph("g1", "   "))
	model := sampleModel()
	o := newTestOrchestrator(t, s, model, nil)

	sink := &collector{}
	err := o.Stream(context.Background(), "g1", sink)
	require.ErrorIs(t, err, graph.ErrNoInput)
	require.Equal(t, []string{"error:No input text found for graph"}, sink.describe())
	require.Equal(t, common.StatusError, s.status("g1"))
	require.Zero(t, model.Calls())
}

func TestStream_ErroredGraphStaysFailed(t *testing.T) {
	g := pendingGraph("g1", sampleText)
	g.Status = common.StatusError
	model := sampleModel()
	o := newTestOrchestrator(t, newMemStore(g), model, nil)

	sink := &collector{}
	require.ErrorIs(t, o.Stream(context.Background(), "g1", sink), ErrRunFailed)
	require.Len(t, sink.events, 1)
	require.Equal(t, common.EventError, sink.events[0].Type)
	require.Zero(t, model.Calls())
}

func TestStream_NotFound(t *testing.T) {
	o := newTestOrchestrator(t, newMemStore(), sampleModel(), nil)
	sink := &collector{}
	require.ErrorIs(t, o.Stream(context.Background(), "missing", sink), store.ErrNotFound)
	require.Empty(t, sink.events)
}

func TestStream_BusyLease(t *testing.T) {
	locker := leaselock.NewLocal()
	lease, err := locker.Acquire(context.Background(), leaseKey("g1"), leaselock.Options{})
	require.NoError(t, err)
	defer lease.Release(context.Background())

	s := newMemStore(pendingGraph("g1", sampleText))
	o := newTestOrchestrator(t, s, sampleModel(), locker)

	sink := &collector{}
	require.ErrorIs(t, o.Stream(context.Background(), "g1", sink), ErrBuildInProgress)
	require.Empty(t, sink.events)
	require.Equal(t, common.StatusPending, s.status("g1"))
}

func TestStream_PersistenceFailure(t *testing.T) {
	s := newMemStore(pendingGraph("g1", sampleText))
	s.saveErr = errors.New("disk full")
	o := newTestOrchestrator(t, s, sampleModel(), nil)

	sink := &collector{}
	err := o.Stream(context.Background(), "g1", sink)

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "g1", perr.GraphID)
	require.Equal(t, common.StatusError, s.status("g1"))

	last := sink.events[len(sink.events)-1]
	require.Equal(t, common.EventError, last.Type)
	for _, ev := range sink.events {
		require.NotEqual(t, common.EventComplete, ev.Type)
	}
}

func TestStream_ClientGoneRunStillCompletes(t *testing.T) {
	s := newMemStore(pendingGraph("g1", sampleText))
	o := newTestOrchestrator(t, s, sampleModel(), nil)

	sink := &collector{failAt: 2}
	require.NoError(t, o.Stream(context.Background(), "g1", sink))
	require.Len(t, sink.events, 1)
	require.Equal(t, common.StatusComplete, s.status("g1"))
	require.Equal(t, 1, s.saves)
}

func TestStream_CanceledRequestDoesNotAbortRun(t *testing.T) {
	s := newMemStore(pendingGraph("g1", sampleText))
	o := newTestOrchestrator(t, s, sampleModel(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	sink := SinkFunc(func(ev common.Event) error {
		cancel()
		return nil
	})
	require.NoError(t, o.Stream(ctx, "g1", sink))
	require.Equal(t, common.StatusComplete, s.status("g1"))
}

func TestStream_AllChunksFail(t *testing.T) {
	s := newMemStore(pendingGraph("g1", sampleText))
	model := &aitest.Client{Complete: func(context.Context, string, ai.GenerateOptions) (string, error) {
		return "", aitest.ErrScripted
	}}
	o := newTestOrchestrator(t, s, model, nil)

	sink := &collector{}
	err := o.Stream(context.Background(), "g1", sink)
	require.ErrorIs(t, err, graph.ErrExtractionFailed)
	require.Equal(t, common.StatusError, s.status("g1"))
	require.Equal(t, []string{
		"status:Processing chunk 1 of 1",
		"error:Could not extract any knowledge from the input",
	}, sink.describe())
}

func TestOrchestrator_Snapshot(t *testing.T) {
	s := newMemStore(pendingGraph("g1", sampleText))
	o := newTestOrchestrator(t, s, sampleModel(), nil)

	_, _, err := o.Snapshot(context.Background(), "g1")
	require.ErrorIs(t, err, ErrNotComplete)

	require.NoError(t, o.Stream(context.Background(), "g1", &collector{}))
	g, snap, err := o.Snapshot(context.Background(), "g1")
	require.NoError(t, err)
	require.Equal(t, "g1", g.ID)
	require.Len(t, snap.Nodes, 2)
}
