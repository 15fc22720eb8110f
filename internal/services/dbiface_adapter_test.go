package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Embedded pgx interfaces leave unused methods nil; calling one panics.

type stubPgxRows struct {
	pgx.Rows
	values [][]any
	idx    int
}

func (s *stubPgxRows) Next() bool {
	if s.idx >= len(s.values) {
		return false
	}
	s.idx++
	return true
}

func (s *stubPgxRows) Scan(dest ...any) error { return assignRow(dest, s.values[s.idx-1]) }
func (s *stubPgxRows) Err() error             { return nil }
func (s *stubPgxRows) Close()                 {}

type stubPgxTx struct {
	pgx.Tx
	execSQL    []string
	committed  bool
	rolledBack bool
	commitErr  error
}

func (s *stubPgxTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.execSQL = append(s.execSQL, sql)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (s *stubPgxTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return rowFromValues(args[0].(uuid.UUID).String())
}

func (s *stubPgxTx) Commit(ctx context.Context) error {
	s.committed = s.commitErr == nil
	return s.commitErr
}

func (s *stubPgxTx) Rollback(ctx context.Context) error {
	if s.committed {
		return pgx.ErrTxClosed
	}
	s.rolledBack = true
	return nil
}

type stubPgxPool struct {
	tx       *stubPgxTx
	beginErr error
	rows     *stubPgxRows
	queryErr error
}

func (s *stubPgxPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if strings.HasPrefix(strings.TrimSpace(sql), "DELETE") {
		return pgconn.NewCommandTag("DELETE 3"), nil
	}
	return pgconn.CommandTag{}, errors.New("unexpected exec")
}

func (s *stubPgxPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.rows, nil
}

func (s *stubPgxPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return rowFromValues("Monstera")
}

func (s *stubPgxPool) Begin(ctx context.Context) (pgx.Tx, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return s.tx, nil
}

func TestPoolAdapter_PassesThroughPgxResults(t *testing.T) {
	ctx := context.Background()
	pool := &stubPgxPool{rows: &stubPgxRows{values: [][]any{{"water"}, {"mist"}}}}
	db := newPoolAdapter(pool)

	tag, err := db.Exec(ctx, "DELETE FROM reminders WHERE plant_id = $1", uuid.New())
	if err != nil || tag.RowsAffected() != 3 {
		t.Fatalf("expected 3 rows affected, got %v (err %v)", tag, err)
	}
	if _, err := db.Exec(ctx, "UPDATE reminders SET enabled = false"); err == nil {
		t.Fatal("expected exec error")
	}

	rows, err := db.Query(ctx, "SELECT type FROM reminders")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	var types []string
	for rows.Next() {
		var reminderType string
		if err := rows.Scan(&reminderType); err != nil {
			t.Fatalf("scan: %v", err)
		}
		types = append(types, reminderType)
	}
	rows.Close()
	if strings.Join(types, ",") != "water,mist" {
		t.Fatalf("unexpected rows %v", types)
	}

	var name string
	if err := db.QueryRow(ctx, "SELECT name FROM plants WHERE id = $1", uuid.New()).Scan(&name); err != nil || name != "Monstera" {
		t.Fatalf("unexpected row %q (err %v)", name, err)
	}
}

func TestPoolAdapter_QueryError(t *testing.T) {
	db := newPoolAdapter(&stubPgxPool{queryErr: errors.New("conn closed")})
	rows, err := db.Query(context.Background(), "SELECT 1")
	if err == nil || rows != nil {
		t.Fatalf("expected nil rows and error, got %v / %v", rows, err)
	}
}

func TestPoolAdapter_TxClaimAndCommit(t *testing.T) {
	ctx := context.Background()
	pgxTx := &stubPgxTx{}
	db := newPoolAdapter(&stubPgxPool{tx: pgxTx})
	reminderID := uuid.New()

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	var claimed string
	if err := tx.QueryRow(ctx, "SELECT id::text FROM reminders WHERE id = $1 FOR UPDATE SKIP LOCKED", reminderID).Scan(&claimed); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed != reminderID.String() {
		t.Fatalf("unexpected claim %q", claimed)
	}
	tag, err := tx.Exec(ctx, "UPDATE reminders SET notification_sent = true WHERE id = $1", reminderID)
	if err != nil || tag.RowsAffected() != 1 {
		t.Fatalf("expected 1 row affected, got %v (err %v)", tag, err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := tx.Rollback(ctx); !errors.Is(err, pgx.ErrTxClosed) {
		t.Fatalf("expected ErrTxClosed after commit, got %v", err)
	}
	if !pgxTx.committed || pgxTx.rolledBack || len(pgxTx.execSQL) != 1 {
		t.Fatalf("unexpected tx state %+v", pgxTx)
	}
}

func TestPoolAdapter_BeginAndCommitErrors(t *testing.T) {
	ctx := context.Background()
	beginErr := errors.New("too many clients")
	if _, err := newPoolAdapter(&stubPgxPool{beginErr: beginErr}).Begin(ctx); !errors.Is(err, beginErr) {
		t.Fatalf("expected begin error, got %v", err)
	}

	commitErr := errors.New("serialization failure")
	pgxTx := &stubPgxTx{commitErr: commitErr}
	tx, err := newPoolAdapter(&stubPgxPool{tx: pgxTx}).Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.Commit(ctx); !errors.Is(err, commitErr) {
		t.Fatalf("expected commit error, got %v", err)
	}
	if err := tx.Rollback(ctx); err != nil || !pgxTx.rolledBack {
		t.Fatalf("expected rollback after failed commit, got %v", err)
	}
}

func TestNewPoolAdapter_NilPool(t *testing.T) {
	if _, err := NewPoolAdapter(nil).Begin(context.Background()); err == nil {
		t.Fatal("expected error beginning on an unconfigured pool")
	}
}
