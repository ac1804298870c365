package storage

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrClosed             = errors.New("storage closed")
	ErrInvalidAssociation = errors.New("association requires run id and message id")
)

// Config configures storage.
//
// Driver values: "memory" (or empty), "file", "sqlite", "redis".
type Config struct {
	Driver string

	// Path is the file prefix (file) or database file (sqlite).
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	// redis only
	URL       string
	KeyPrefix string
	TTL       time.Duration // 0 keeps keys until deleted
}

// Association links a workflow run to the chat message that tracks it.
type Association struct {
	RunID     string    `json:"run_id"`
	MessageID string    `json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists associations. Implementations are safe for concurrent use.
type Store interface {
	Get(ctx context.Context, runID string) (Association, bool, error)
	// Put inserts a only when no association exists for a.RunID and returns
	// the association that is stored afterwards. A caller that lost the race
	// sees a MessageID different from the one it passed in.
	Put(ctx context.Context, a Association) (Association, error)
	// Delete removes the association; a missing one is not an error.
	Delete(ctx context.Context, runID string) error
	// Expire removes associations created before the cutoff and reports how
	// many were removed.
	Expire(ctx context.Context, before time.Time) (int, error)
	Close() error
}

func normalize(a Association) (Association, error) {
	a.RunID = strings.TrimSpace(a.RunID)
	a.MessageID = strings.TrimSpace(a.MessageID)
	if a.RunID == "" || a.MessageID == "" {
		return Association{}, ErrInvalidAssociation
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.CreatedAt = a.CreatedAt.UTC().Truncate(time.Millisecond)
	return a, nil
}
