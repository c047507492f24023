// Package journal keeps a sqlite history of drive faults.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danmuck/drivectl/internal/drive"
	logs "github.com/danmuck/drivectl/internal/logging"
)

const DefaultRecentLimit = 50

var (
	ErrOpen   = errors.New("journal: open failed")
	ErrClosed = errors.New("journal: closed")
)

const schema = `
CREATE TABLE IF NOT EXISTS faults (
	id          TEXT PRIMARY KEY,
	code        TEXT NOT NULL,
	message     TEXT NOT NULL,
	target      TEXT NOT NULL DEFAULT '',
	at_unix_ns  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS faults_at ON faults(at_unix_ns);
`

// Entry is one stored fault.
type Entry struct {
	ID      string    `json:"id"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Target  string    `json:"target,omitempty"`
	At      time.Time `json:"at"`
}

type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal at path. ":memory:" keeps it in process.
func Open(path string) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrOpen)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	// one writer; also keeps ":memory:" on a single database
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: schema: %v", ErrOpen, err)
	}
	logs.Infof("journal.Open path=%q", path)
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

// Record stores f and returns the new row id.
func (j *Journal) Record(ctx context.Context, target string, f drive.Fault) (string, error) {
	if j.db == nil {
		return "", ErrClosed
	}
	at := f.At
	if at.IsZero() {
		at = time.Now()
	}
	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO faults (id, code, message, target, at_unix_ns) VALUES (?, ?, ?, ?, ?)`,
		id, f.Code, f.Message, target, at.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("journal: insert fault: %w", err)
	}
	return id, nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if j.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, code, message, target, at_unix_ns FROM faults ORDER BY at_unix_ns DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("journal: query faults: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var ns int64
		if err := rows.Scan(&e.ID, &e.Code, &e.Message, &e.Target, &ns); err != nil {
			return nil, fmt.Errorf("journal: scan fault: %w", err)
		}
		e.At = time.Unix(0, ns).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *Journal) Count(ctx context.Context) (int, error) {
	if j.db == nil {
		return 0, ErrClosed
	}
	var n int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM faults`).Scan(&n); err != nil {
		return 0, fmt.Errorf("journal: count faults: %w", err)
	}
	return n, nil
}

// FaultSource is the part of drive.Client the journal subscribes to.
type FaultSource interface {
	OnFault(fn func(drive.Fault))
	Target() string
}

// Attach records every fault src reports.
func (j *Journal) Attach(src FaultSource) {
	target := src.Target()
	src.OnFault(func(f drive.Fault) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := j.Record(ctx, target, f); err != nil {
			logs.Warnf("journal.Attach record code=%s err=%v", f.Code, err)
		}
	})
}
