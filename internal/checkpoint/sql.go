package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLStore stores checkpoints in a single table. The same queries run on
// SQLite and Postgres; placeholders are rebound per driver.
type SQLStore struct {
	db *sqlx.DB
}

type checkpointRow struct {
	ThreadID  string `db:"thread_id"`
	Step      int    `db:"step"`
	State     string `db:"state"`
	UpdatedAt int64  `db:"updated_at"`
}

func (r checkpointRow) toCheckpoint() Checkpoint {
	return Checkpoint{
		ThreadID:  r.ThreadID,
		Step:      r.Step,
		State:     []byte(r.State),
		UpdatedAt: time.UnixMilli(r.UpdatedAt).UTC(),
	}
}

// OpenSQLite opens (or creates) a SQLite database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	return newSQLStore(ctx, db, "sqlite")
}

// OpenPostgres connects to Postgres through the pgx stdlib driver.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	return newSQLStore(ctx, db, "postgres")
}

func newSQLStore(ctx context.Context, db *sqlx.DB, name string) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", name, err)
	}
	if _, err := migrateUp(db, name); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", name, err)
	}
	slog.Debug("checkpoint store opened", "driver", name)
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Get(ctx context.Context, threadID string) (*Checkpoint, error) {
	var row checkpointRow
	q := s.db.Rebind(`SELECT thread_id, step, state, updated_at FROM checkpoints WHERE thread_id = ?`)
	if err := s.db.GetContext(ctx, &row, q, threadID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get checkpoint %q: %w", threadID, err)
	}
	cp := row.toCheckpoint()
	return &cp, nil
}

func (s *SQLStore) Put(ctx context.Context, cp *Checkpoint) error {
	stamp(cp)
	q := s.db.Rebind(`INSERT INTO checkpoints (thread_id, step, state, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (thread_id) DO UPDATE SET
			step = excluded.step,
			state = excluded.state,
			updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, q, cp.ThreadID, cp.Step, string(cp.State), cp.UpdatedAt.UnixMilli()); err != nil {
		return fmt.Errorf("put checkpoint %q: %w", cp.ThreadID, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, threadID string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM checkpoints WHERE thread_id = ?`), threadID)
	if err != nil {
		return fmt.Errorf("delete checkpoint %q: %w", threadID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context) ([]Checkpoint, error) {
	var rows []checkpointRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT thread_id, step, state, updated_at FROM checkpoints ORDER BY updated_at DESC, thread_id`); err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	out := make([]Checkpoint, len(rows))
	for i, r := range rows {
		out[i] = r.toCheckpoint()
	}
	return out, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }
