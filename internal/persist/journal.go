package persist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/l1jgo/gamesys/internal/core/event"
)

// Journal entry kinds.
const (
	KindCreated      = "created"
	KindDestroyed    = "destroyed"
	KindUpdateFailed = "update_failed"
	KindSortFailed   = "sort_failed"
)

// JournalEntry is one row of the schedule journal.
type JournalEntry struct {
	Kind       string
	Group      string
	System     string
	SystemID   uuid.UUID // uuid.Nil for group-level entries
	Frame      uint64
	Message    string
	RecordedAt time.Time
}

// EntryFromEvent converts a scheduler diagnostic event into a journal entry.
// It reports false for events the journal does not keep.
func EntryFromEvent(ev any, at time.Time) (JournalEntry, bool) {
	switch e := ev.(type) {
	case event.SystemCreated:
		return JournalEntry{Kind: KindCreated, System: e.Type, SystemID: e.ID, RecordedAt: at}, true
	case event.SystemDestroyed:
		return JournalEntry{Kind: KindDestroyed, System: e.Type, SystemID: e.ID, RecordedAt: at}, true
	case event.UpdateFailed:
		return JournalEntry{
			Kind: KindUpdateFailed, Group: e.Group, System: e.System, SystemID: e.SystemID,
			Frame: e.Frame, Message: errText(e.Err), RecordedAt: at,
		}, true
	case event.SortFailed:
		return JournalEntry{Kind: KindSortFailed, Group: e.Group, Frame: e.Frame, Message: errText(e.Err), RecordedAt: at}, true
	}
	return JournalEntry{}, false
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// JournalRepo writes journal entries to PostgreSQL.
type JournalRepo struct {
	db *DB
}

func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db}
}

// WriteBatch inserts entries in a single transaction.
func (r *JournalRepo) WriteBatch(ctx context.Context, entries []JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, e := range entries {
		var id *uuid.UUID
		if e.SystemID != uuid.Nil {
			sid := e.SystemID
			id = &sid
		}
		batch.Queue(
			`INSERT INTO schedule_journal (kind, group_name, system_name, system_id, frame, message, recorded_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.Kind, e.Group, e.System, id, int64(e.Frame), e.Message, e.RecordedAt,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("journal insert: %w", err)
	}
	return tx.Commit(ctx)
}

// Recent returns the newest entries of a kind, newest first.
func (r *JournalRepo) Recent(ctx context.Context, kind string, limit int) ([]JournalEntry, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT kind, group_name, system_name, system_id, frame, message, recorded_at
		 FROM schedule_journal WHERE kind = $1
		 ORDER BY recorded_at DESC, id DESC LIMIT $2`, kind, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var (
			e     JournalEntry
			id    *uuid.UUID
			frame int64
		)
		if err := rows.Scan(&e.Kind, &e.Group, &e.System, &id, &frame, &e.Message, &e.RecordedAt); err != nil {
			return nil, err
		}
		if id != nil {
			e.SystemID = *id
		}
		e.Frame = uint64(frame)
		out = append(out, e)
	}
	return out, rows.Err()
}

// BatchWriter is the sink a Journal flushes into.
type BatchWriter interface {
	WriteBatch(ctx context.Context, entries []JournalEntry) error
}

// Journal buffers entries in memory until Flush. Append is called from the
// scheduler goroutine; Flush may run on a worker.
type Journal struct {
	w BatchWriter

	mu      sync.Mutex
	pending []JournalEntry
}

func NewJournal(w BatchWriter) *Journal {
	return &Journal{w: w}
}

func (j *Journal) Append(e JournalEntry) {
	j.mu.Lock()
	j.pending = append(j.pending, e)
	j.mu.Unlock()
}

// Pending returns the number of buffered entries.
func (j *Journal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.pending)
}

// Flush writes all buffered entries. On failure the entries are put back in
// front of anything appended meanwhile.
func (j *Journal) Flush(ctx context.Context) error {
	j.mu.Lock()
	batch := j.pending
	j.pending = nil
	j.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := j.w.WriteBatch(ctx, batch); err != nil {
		j.mu.Lock()
		j.pending = append(batch, j.pending...)
		j.mu.Unlock()
		return err
	}
	return nil
}
