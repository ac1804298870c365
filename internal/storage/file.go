package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "runrelay/pkg/logx"
)

const compactEvery = 1000

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.runs.snapshot.json (periodic snapshot)
//   - <prefix>.runs.journal.jsonl (append-only journal)
//
// The journal is periodically compacted into the snapshot.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journal      *os.File
	rows         map[string]Association

	writes int
}

type journalRecord struct {
	Op        string `json:"op"` // put | del
	RunID     string `json:"run_id"`
	MessageID string `json:"message_id,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"` // unix milli
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".runs.snapshot.json"
	journalPath := prefix + ".runs.journal.jsonl"

	rows := map[string]Association{}
	if err := loadSnapshot(snapPath, rows); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("snapshot unreadable, starting from journal", logx.Err(err))
	}
	if err := replayJournal(journalPath, rows); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("journal replay stopped early", logx.Err(err))
	}

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	log.Debug("file store opened", logx.String("prefix", prefix), logx.Int("rows", len(rows)))
	return &fileStore{
		log:          log,
		snapshotPath: snapPath,
		journal:      jf,
		rows:         rows,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	err := s.compactLocked()
	if cerr := s.journal.Close(); err == nil {
		err = cerr
	}
	s.journal = nil
	return err
}

func (s *fileStore) Get(_ context.Context, runID string) (Association, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return Association{}, false, ErrClosed
	}
	a, ok := s.rows[strings.TrimSpace(runID)]
	return a, ok, nil
}

func (s *fileStore) Put(_ context.Context, a Association) (Association, error) {
	a, err := normalize(a)
	if err != nil {
		return Association{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return Association{}, ErrClosed
	}
	if cur, ok := s.rows[a.RunID]; ok {
		return cur, nil
	}
	rec := journalRecord{Op: "put", RunID: a.RunID, MessageID: a.MessageID, CreatedAt: a.CreatedAt.UnixMilli()}
	if err := s.appendLocked(rec); err != nil {
		return Association{}, err
	}
	s.rows[a.RunID] = a
	return a, nil
}

func (s *fileStore) Delete(_ context.Context, runID string) error {
	runID = strings.TrimSpace(runID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return ErrClosed
	}
	if _, ok := s.rows[runID]; !ok {
		return nil
	}
	if err := s.appendLocked(journalRecord{Op: "del", RunID: runID}); err != nil {
		return err
	}
	delete(s.rows, runID)
	return nil
}

func (s *fileStore) Expire(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return 0, ErrClosed
	}
	// Each removal is journaled before the row leaves memory, so a failed
	// write never leaves memory ahead of disk.
	n := 0
	for k, a := range s.rows {
		if !a.CreatedAt.Before(before) {
			continue
		}
		if err := s.appendLocked(journalRecord{Op: "del", RunID: k}); err != nil {
			return n, err
		}
		delete(s.rows, k)
		n++
	}
	if n == 0 {
		return 0, nil
	}
	if err := s.compactLocked(); err != nil {
		s.log.Debug("journal compact failed", logx.Err(err))
	}
	return n, nil
}

func (s *fileStore) appendLocked(rec journalRecord) error {
	if err := json.NewEncoder(s.journal).Encode(rec); err != nil {
		return err
	}
	s.writes++
	if s.writes%compactEvery == 0 {
		// Best-effort compact.
		if err := s.compactLocked(); err != nil {
			s.log.Debug("journal compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) compactLocked() error {
	snap := make(map[string]journalRecord, len(s.rows))
	for k, a := range s.rows {
		snap[k] = journalRecord{Op: "put", RunID: a.RunID, MessageID: a.MessageID, CreatedAt: a.CreatedAt.UnixMilli()}
	}

	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(snap); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	// Truncate journal.
	if err := s.journal.Truncate(0); err != nil {
		return err
	}
	_, err = s.journal.Seek(0, 2)
	return err
}

func loadSnapshot(path string, out map[string]Association) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]journalRecord
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for _, r := range m {
		apply(out, r)
	}
	return nil
}

func replayJournal(path string, out map[string]Association) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r journalRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		apply(out, r)
	}
	return sc.Err()
}

func apply(rows map[string]Association, r journalRecord) {
	if r.RunID == "" {
		return
	}
	switch r.Op {
	case "put":
		if r.MessageID == "" {
			return
		}
		rows[r.RunID] = Association{RunID: r.RunID, MessageID: r.MessageID, CreatedAt: time.UnixMilli(r.CreatedAt).UTC()}
	case "del":
		delete(rows, r.RunID)
	}
}
