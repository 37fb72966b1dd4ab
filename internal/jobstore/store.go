package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"shortbox/internal/config"
	"shortbox/internal/services"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const jobColumns = "id, step, file_count, group_count, created_at, updated_at, archived_at"

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open initializes or connects to the job database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, locks: make(map[string]*sync.Mutex)}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// lock serializes writers of one job inside this process. SQLite's own
// locking covers writers in other processes.
func (s *Store) lock(id string) func() {
	s.mu.Lock()
	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// Create inserts a new job, assigning an id and timestamps when unset.
func (s *Store) Create(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	ctx = ensureContext(ctx)
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Step == "" {
		job.Step = StepOptions
	}
	doc, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO jobs (id, step, file_count, group_count, document, created_at, updated_at, archived_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			job.ID,
			job.Step,
			len(job.Files),
			len(job.Groups),
			string(doc),
			formatTime(job.CreatedAt),
			formatTime(job.UpdatedAt),
			nullableTime(job.ArchivedAt),
		)
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		return nil
	})
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadJob(ctx context.Context, q queryer, id string) (*Job, error) {
	var doc string
	err := q.QueryRowContext(ctx, `SELECT document FROM jobs WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "jobstore", "get", "no job "+id, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	var job Job
	if err := json.Unmarshal([]byte(doc), &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// Get reads a job. It never modifies the stored record.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	return loadJob(ensureContext(ctx), s.db, id)
}

// Mutate applies fn to the stored job and saves the result as one
// read-modify-write. Writers of the same job are serialized. When fn returns
// an error nothing is written and the error is returned unchanged.
func (s *Store) Mutate(ctx context.Context, id string, fn func(*Job) error) (*Job, error) {
	ctx = ensureContext(ctx)
	unlock := s.lock(id)
	defer unlock()

	var saved *Job
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin job tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		job, err := loadJob(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(job); err != nil {
			return err
		}
		job.ID = id
		now := time.Now().UTC()
		if !now.After(job.UpdatedAt) {
			now = job.UpdatedAt.Add(time.Microsecond)
		}
		job.UpdatedAt = now
		doc, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE jobs
             SET step = ?, file_count = ?, group_count = ?, document = ?, updated_at = ?, archived_at = ?
             WHERE id = ?`,
			job.Step,
			len(job.Files),
			len(job.Groups),
			string(doc),
			formatTime(job.UpdatedAt),
			nullableTime(job.ArchivedAt),
			id,
		); err != nil {
			return fmt.Errorf("update job: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit job: %w", err)
		}
		saved = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// List returns job summaries ordered by creation time. Archived jobs are
// included only when asked for.
func (s *Store) List(ctx context.Context, includeArchived bool) ([]Summary, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + jobColumns + ` FROM jobs`
	if !includeArchived {
		query += ` WHERE archived_at IS NULL`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

// Archive hides a job from the default listing while keeping it readable.
func (s *Store) Archive(ctx context.Context, id string) (*Job, error) {
	return s.Mutate(ctx, id, func(job *Job) error {
		if job.ArchivedAt == nil {
			now := time.Now().UTC()
			job.ArchivedAt = &now
		}
		return nil
	})
}

// Delete removes a job permanently.
func (s *Store) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	unlock := s.lock(id)
	defer unlock()

	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete job: %w", err)
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "jobstore", "delete", "no job "+id, nil)
	}
	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
	return nil
}

// SaveSelection records the series a folder's group was applied with,
// replacing any earlier record for the same folder and query.
func (s *Store) SaveSelection(ctx context.Context, sel Selection) error {
	ctx = ensureContext(ctx)
	if sel.UpdatedAt.IsZero() {
		sel.UpdatedAt = time.Now().UTC()
	}
	doc, err := json.Marshal(sel)
	if err != nil {
		return fmt.Errorf("marshal selection: %w", err)
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO series_selections (folder, query_key, source, source_id, document, job_id, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)
             ON CONFLICT(folder, query_key) DO UPDATE SET
                 source = excluded.source,
                 source_id = excluded.source_id,
                 document = excluded.document,
                 job_id = excluded.job_id,
                 updated_at = excluded.updated_at`,
			sel.Folder,
			sel.QueryKey,
			sel.Series.Source,
			sel.Series.SourceID,
			string(doc),
			nullableString(sel.JobID),
			formatTime(sel.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("save selection: %w", err)
		}
		return nil
	})
}

// FindSelection returns the remembered selection for a folder and query, or
// nil when none exists.
func (s *Store) FindSelection(ctx context.Context, folder, queryKey string) (*Selection, error) {
	ctx = ensureContext(ctx)
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM series_selections WHERE folder = ? AND query_key = ?`,
		folder, queryKey,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find selection: %w", err)
	}
	var sel Selection
	if err := json.Unmarshal([]byte(doc), &sel); err != nil {
		return nil, fmt.Errorf("decode selection: %w", err)
	}
	return &sel, nil
}
