package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "runrelay/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Get(ctx context.Context, runID string) (Association, bool, error) {
	if s == nil || s.db == nil {
		return Association{}, false, ErrClosed
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return Association{}, false, nil
	}
	var (
		a  = Association{RunID: runID}
		ms int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT message_id, created_at FROM run_associations WHERE run_id = ?`, runID,
	).Scan(&a.MessageID, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return Association{}, false, nil
	}
	if err != nil {
		return Association{}, false, err
	}
	a.CreatedAt = time.UnixMilli(ms).UTC()
	return a, true, nil
}

func (s *sqliteStore) Put(ctx context.Context, a Association) (Association, error) {
	if s == nil || s.db == nil {
		return Association{}, ErrClosed
	}
	a, err := normalize(a)
	if err != nil {
		return Association{}, err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO run_associations(run_id, message_id, created_at) VALUES(?,?,?)
		 ON CONFLICT(run_id) DO NOTHING`,
		a.RunID, a.MessageID, a.CreatedAt.UnixMilli(),
	); err != nil {
		return Association{}, err
	}
	cur, ok, err := s.Get(ctx, a.RunID)
	if err != nil {
		return Association{}, err
	}
	if !ok {
		// Deleted between insert and read back; report what was written.
		return a, nil
	}
	return cur, nil
}

func (s *sqliteStore) Delete(ctx context.Context, runID string) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM run_associations WHERE run_id = ?`, strings.TrimSpace(runID))
	return err
}

func (s *sqliteStore) Expire(ctx context.Context, before time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM run_associations WHERE created_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
