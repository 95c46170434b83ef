package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/cognify-labs/cognify/backend/pkg/common"
	"github.com/cognify-labs/cognify/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// GraphDBStorage implements store.GraphStore on PostgreSQL.
type GraphDBStorage struct {
	conn pgxIConn
}

var _ store.GraphStore = (*GraphDBStorage)(nil)

// NewGraphDBStorageWithConnection creates a new GraphDBStorage using an
// existing pool, connection or transaction. The schema is expected to be
// migrated already.
func NewGraphDBStorageWithConnection(conn pgxIConn) *GraphDBStorage {
	return &GraphDBStorage{conn: conn}
}

const insertGraphSQL = `
INSERT INTO graphs (id, user_id, name, source_type, input_meta, input_text, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at, updated_at;
`

func (s *GraphDBStorage) CreateGraph(ctx context.Context, g *common.Graph) error {
	if g.Status == "" {
		g.Status = common.StatusPending
	}
	var meta []byte
	if len(g.InputMeta) > 0 {
		meta = g.InputMeta
	}
	err := s.conn.QueryRow(ctx, insertGraphSQL,
		g.ID, g.UserID, g.Name, g.SourceType, meta, g.InputText, string(g.Status),
	).Scan(&g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert graph: %w", err)
	}
	return nil
}

const selectGraphSQL = `
SELECT id, user_id, name, source_type, input_meta, input_text, status, snapshot, created_at, updated_at
FROM graphs
WHERE id = $1;
`

func (s *GraphDBStorage) GetGraph(ctx context.Context, id string) (*common.Graph, error) {
	var (
		g        common.Graph
		status   string
		meta     []byte
		snapshot []byte
	)
	err := s.conn.QueryRow(ctx, selectGraphSQL, id).Scan(
		&g.ID, &g.UserID, &g.Name, &g.SourceType, &meta, &g.InputText,
		&status, &snapshot, &g.CreatedAt, &g.UpdatedAt,
	)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load graph %s: %w", id, err)
	}

	g.Status = common.GraphStatus(status)
	if len(meta) > 0 {
		g.InputMeta = meta
	}
	g.Snapshot, err = store.UnmarshalSnapshot(snapshot)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

const updateGraphStatusSQL = `
UPDATE graphs SET status = $2, updated_at = now() WHERE id = $1;
`

func (s *GraphDBStorage) UpdateGraphStatus(ctx context.Context, id string, status common.GraphStatus) error {
	tag, err := s.conn.Exec(ctx, updateGraphStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update status of graph %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const lockGraphStatusSQL = `
SELECT status FROM graphs WHERE id = $1 FOR UPDATE;
`

const saveSnapshotSQL = `
UPDATE graphs
SET snapshot = $2, status = 'complete', updated_at = now()
WHERE id = $1;
`

// SaveGraphSnapshot stores the snapshot and marks the graph complete in a
// single transaction. Only a building graph accepts a snapshot.
func (s *GraphDBStorage) SaveGraphSnapshot(ctx context.Context, id string, snap *common.GraphSnapshot) error {
	data, err := store.MarshalSnapshot(snap)
	if err != nil {
		return err
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, lockGraphStatusSQL, id).Scan(&status)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock graph %s: %w", id, err)
	}
	if common.GraphStatus(status) != common.StatusBuilding {
		return fmt.Errorf("%w: %s is %s", store.ErrNotBuilding, id, status)
	}

	if _, err := tx.Exec(ctx, saveSnapshotSQL, id, data); err != nil {
		return fmt.Errorf("failed to save snapshot of graph %s: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot of graph %s: %w", id, err)
	}
	return nil
}

const hasBuildingGraphSQL = `
SELECT EXISTS (SELECT 1 FROM graphs WHERE user_id = $1 AND status = 'building');
`

func (s *GraphDBStorage) HasBuildingGraph(ctx context.Context, userID string) (bool, error) {
	var exists bool
	if err := s.conn.QueryRow(ctx, hasBuildingGraphSQL, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check building graphs: %w", err)
	}
	return exists, nil
}
