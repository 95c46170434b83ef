// Package sqlite implements store.GraphStore on a local SQLite file. It
// backs the command line tool, which builds graphs without a server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cognify-labs/cognify/backend/pkg/common"
	"github.com/cognify-labs/cognify/backend/pkg/store"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS graphs (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	name        TEXT NOT NULL,
	source_type TEXT NOT NULL,
	input_meta  TEXT,
	input_text  TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'pending',
	snapshot    TEXT,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS graphs_user_status_idx ON graphs (user_id, status);

CREATE TABLE IF NOT EXISTS node_details (
	graph_id      TEXT NOT NULL REFERENCES graphs (id) ON DELETE CASCADE,
	node_id       TEXT NOT NULL,
	node_label    TEXT NOT NULL,
	content       TEXT NOT NULL,
	relationships TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	PRIMARY KEY (graph_id, node_id)
);
`

// Store is a GraphStore on database/sql with the sqlite3 driver.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.GraphStore = (*Store)(nil)

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one writer keeps SQLite from returning SQLITE_BUSY under parallel runs
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) timestamp() (time.Time, string) {
	t := s.now().UTC()
	return t, t.Format(time.RFC3339Nano)
}

func parseTime(v string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, v)
}

func nullableText(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func (s *Store) CreateGraph(ctx context.Context, g *common.Graph) error {
	if g.Status == "" {
		g.Status = common.StatusPending
	}
	now, ts := s.timestamp()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO graphs (id, user_id, name, source_type, input_meta, input_text, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.Name, g.SourceType, nullableText(g.InputMeta), g.InputText, string(g.Status), ts, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to insert graph: %w", err)
	}
	g.CreatedAt, g.UpdatedAt = now, now
	return nil
}

func (s *Store) GetGraph(ctx context.Context, id string) (*common.Graph, error) {
	var (
		g                    common.Graph
		status               string
		meta, snapshot       sql.NullString
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, source_type, input_meta, input_text, status, snapshot, created_at, updated_at
		FROM graphs WHERE id = ?`, id,
	).Scan(&g.ID, &g.UserID, &g.Name, &g.SourceType, &meta, &g.InputText, &status, &snapshot, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load graph %s: %w", id, err)
	}

	g.Status = common.GraphStatus(status)
	if meta.Valid {
		g.InputMeta = []byte(meta.String)
	}
	if g.Snapshot, err = store.UnmarshalSnapshot([]byte(snapshot.String)); err != nil {
		return nil, err
	}
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at of graph %s: %w", id, err)
	}
	if g.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at of graph %s: %w", id, err)
	}
	return &g, nil
}

func (s *Store) UpdateGraphStatus(ctx context.Context, id string, status common.GraphStatus) error {
	_, ts := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`UPDATE graphs SET status = ?, updated_at = ? WHERE id = ?`, string(status), ts, id)
	if err != nil {
		return fmt.Errorf("failed to update status of graph %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SaveGraphSnapshot(ctx context.Context, id string, snap *common.GraphSnapshot) error {
	data, err := store.MarshalSnapshot(snap)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM graphs WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load graph %s: %w", id, err)
	}
	if common.GraphStatus(status) != common.StatusBuilding {
		return fmt.Errorf("%w: %s is %s", store.ErrNotBuilding, id, status)
	}

	_, ts := s.timestamp()
	if _, err := tx.ExecContext(ctx,
		`UPDATE graphs SET snapshot = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(data), string(common.StatusComplete), ts, id,
	); err != nil {
		return fmt.Errorf("failed to save snapshot of graph %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot of graph %s: %w", id, err)
	}
	return nil
}

func (s *Store) HasBuildingGraph(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM graphs WHERE user_id = ? AND status = ?)`,
		userID, string(common.StatusBuilding),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check building graphs: %w", err)
	}
	return exists, nil
}

func (s *Store) GetNodeDetail(ctx context.Context, graphID, nodeID string) (*common.NodeDetail, error) {
	var (
		d         common.NodeDetail
		rel       string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT graph_id, node_id, node_label, content, relationships, created_at
		FROM node_details WHERE graph_id = ? AND node_id = ?`, graphID, nodeID,
	).Scan(&d.GraphID, &d.NodeID, &d.NodeLabel, &d.Content, &rel, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load details of node %s: %w", nodeID, err)
	}

	if d.Relationships, err = store.UnmarshalRelationships([]byte(rel)); err != nil {
		return nil, err
	}
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at of node detail %s: %w", nodeID, err)
	}
	return &d, nil
}

func (s *Store) SaveNodeDetail(ctx context.Context, d *common.NodeDetail) error {
	rel, err := store.MarshalRelationships(d.Relationships)
	if err != nil {
		return err
	}
	now, ts := s.timestamp()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO node_details (graph_id, node_id, node_label, content, relationships, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (graph_id, node_id) DO NOTHING`,
		d.GraphID, d.NodeID, d.NodeLabel, d.Content, string(rel), ts,
	)
	if err != nil {
		return fmt.Errorf("failed to save details of node %s: %w", d.NodeID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		d.CreatedAt = now
	}
	return nil
}
