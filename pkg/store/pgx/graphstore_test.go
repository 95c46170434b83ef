package pgx

import (
	"context"
	"errors"
	"testing"

	"github.com/cognify-labs/cognify/backend/pkg/common"
	"github.com/cognify-labs/cognify/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	err error
}

func (r fakeRow) Scan(dest ...any) error { return r.err }

type fakeConn struct {
	rowErr error
	tag    pgconn.CommandTag
	execs  []string
}

func (c *fakeConn) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	c.execs = append(c.execs, sql)
	return c.tag, nil
}

func (c *fakeConn) Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeConn) QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row {
	return fakeRow{err: c.rowErr}
}

func (c *fakeConn) Begin(ctx context.Context) (pgxv5.Tx, error) {
	return nil, errors.New("not implemented")
}

func TestGraphDBStorage_NotFound(t *testing.T) {
	s := NewGraphDBStorageWithConnection(&fakeConn{
		rowErr: pgxv5.ErrNoRows,
		tag:    pgconn.NewCommandTag("UPDATE 0"),
	})
	ctx := context.Background()

	if _, err := s.GetGraph(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetGraph() error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetNodeDetail(ctx, "g", "n"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetNodeDetail() error = %v, want ErrNotFound", err)
	}
	if err := s.UpdateGraphStatus(ctx, "missing", common.StatusError); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UpdateGraphStatus() error = %v, want ErrNotFound", err)
	}
}

func TestGraphDBStorage_SaveNodeDetailConflictIsNoop(t *testing.T) {
	s := NewGraphDBStorageWithConnection(&fakeConn{rowErr: pgxv5.ErrNoRows})
	err := s.SaveNodeDetail(context.Background(), &common.NodeDetail{GraphID: "g", NodeID: "n"})
	if err != nil {
		t.Fatalf("SaveNodeDetail() error = %v, want nil on conflict", err)
	}
}

func TestGraphDBStorage_SaveGraphSnapshotRejectsNil(t *testing.T) {
	s := NewGraphDBStorageWithConnection(&fakeConn{})
	if err := s.SaveGraphSnapshot(context.Background(), "g", nil); err == nil {
		t.Fatal("expected error for nil snapshot")
	}
}
