package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/cognify-labs/cognify/backend/pkg/common"
	"github.com/cognify-labs/cognify/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const selectNodeDetailSQL = `
SELECT graph_id, node_id, node_label, content, relationships, created_at
FROM node_details
WHERE graph_id = $1 AND node_id = $2;
`

func (s *GraphDBStorage) GetNodeDetail(ctx context.Context, graphID, nodeID string) (*common.NodeDetail, error) {
	var (
		d   common.NodeDetail
		rel []byte
	)
	err := s.conn.QueryRow(ctx, selectNodeDetailSQL, graphID, nodeID).Scan(
		&d.GraphID, &d.NodeID, &d.NodeLabel, &d.Content, &rel, &d.CreatedAt,
	)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load details of node %s: %w", nodeID, err)
	}

	d.Relationships, err = store.UnmarshalRelationships(rel)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Concurrent generations for the same node keep the first stored text.
const upsertNodeDetailSQL = `
INSERT INTO node_details (graph_id, node_id, node_label, content, relationships)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (graph_id, node_id) DO NOTHING
RETURNING created_at;
`

func (s *GraphDBStorage) SaveNodeDetail(ctx context.Context, d *common.NodeDetail) error {
	rel, err := store.MarshalRelationships(d.Relationships)
	if err != nil {
		return err
	}
	err = s.conn.QueryRow(ctx, upsertNodeDetailSQL,
		d.GraphID, d.NodeID, d.NodeLabel, d.Content, rel,
	).Scan(&d.CreatedAt)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to save details of node %s: %w", d.NodeID, err)
	}
	return nil
}
