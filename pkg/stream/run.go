package stream

import (
	"context"
	"fmt"

	"github.com/cognify-labs/cognify/backend/pkg/common"
	"github.com/cognify-labs/cognify/backend/pkg/store"
)

// CanTransition reports whether a graph may move from one status to another.
//
// building -> building is allowed so a run left behind by a crashed process
// can be taken over once its lease expired. complete and error are final.
func CanTransition(from, to common.GraphStatus) bool {
	switch from {
	case common.StatusPending:
		return to == common.StatusBuilding || to == common.StatusError
	case common.StatusBuilding:
		return to == common.StatusBuilding || to == common.StatusComplete || to == common.StatusError
	default:
		return false
	}
}

// Run tracks the status of one graph run and persists every transition.
type Run struct {
	GraphID string
	Status  common.GraphStatus

	store store.GraphStore
}

func NewRun(s store.GraphStore, g *common.Graph) *Run {
	return &Run{GraphID: g.ID, Status: g.Status, store: s}
}

// Transition moves the run to status. Completion goes through Complete.
func (r *Run) Transition(ctx context.Context, status common.GraphStatus) error {
	if status == common.StatusComplete {
		return fmt.Errorf("%w: complete requires a snapshot", ErrInvalidTransition)
	}
	if !CanTransition(r.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, status)
	}
	if err := r.store.UpdateGraphStatus(ctx, r.GraphID, status); err != nil {
		return err
	}
	r.Status = status
	return nil
}

// Complete stores snap and marks the run complete in one write.
func (r *Run) Complete(ctx context.Context, snap *common.GraphSnapshot) error {
	if !CanTransition(r.Status, common.StatusComplete) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, common.StatusComplete)
	}
	if err := r.store.SaveGraphSnapshot(ctx, r.GraphID, snap); err != nil {
		return &PersistenceError{GraphID: r.GraphID, Err: err}
	}
	r.Status = common.StatusComplete
	return nil
}
