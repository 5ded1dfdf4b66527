package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jamiewannenburg/uacalcsrc-sub002/internal/closure"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one row of closure run history. Termination fields are
// zero-valued while the run is still in progress.
type RunRecord struct {
	ID           string
	Algebra      string
	StartedAt    time.Time
	FinishedAt   time.Time // zero while running
	Reason       closure.Reason
	Elements     int64
	Applications uint64
	Elapsed      time.Duration
}

// Finished reports whether the run has been finalized.
func (r RunRecord) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// PassRecord is one completed pass of a run.
type PassRecord struct {
	RunID        string
	Pass         int
	Found        int64
	Size         int64
	Applications uint64
	Elapsed      time.Duration
}

// BeginRun inserts a new in-progress run row.
func (s *Store) BeginRun(ctx context.Context, id, algebra string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, algebra, started_at) VALUES (?, ?, ?)`,
		id, algebra, startedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", id, err)
	}
	return nil
}

// FinishRun finalizes a run with its termination outcome.
func (s *Store) FinishRun(ctx context.Context, id string, finishedAt time.Time, res *closure.Result) error {
	out, err := s.db.ExecContext(ctx,
		`UPDATE runs
		 SET finished_at = ?, reason = ?, elements = ?, applications = ?, elapsed_ms = ?
		 WHERE id = ?`,
		finishedAt.UTC().Format(time.RFC3339Nano),
		string(res.Reason),
		int64(len(res.Elements)),
		res.Applications,
		res.Elapsed.Milliseconds(),
		id)
	if err != nil {
		return fmt.Errorf("failed to finalize run %s: %w", id, err)
	}
	n, err := out.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finalize run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("failed to finalize run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// WritePass records one completed pass of a run.
func (s *Store) WritePass(ctx context.Context, runID string, rep closure.Report) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO passes (run_id, pass, found, size, applications, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, rep.Pass, rep.Found, rep.Size, rep.Applications, rep.Elapsed.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to insert pass %d of run %s: %w", rep.Pass, runID, err)
	}
	return nil
}

// ReadRun returns a single run by ID. Returns ErrRunNotFound if it
// does not exist.
func (s *Store) ReadRun(ctx context.Context, id string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, algebra, started_at, finished_at, reason, elements, applications, elapsed_ms
		 FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to read run %s: %w", id, err)
	}
	return rec, nil
}

// ListRuns returns run history, most recent first, up to limit rows.
// A limit of zero or less means no limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT id, algebra, started_at, finished_at, reason, elements, applications, elapsed_ms
	          FROM runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return recs, nil
}

// ReadPasses returns the pass history of a run in pass order.
func (s *Store) ReadPasses(ctx context.Context, runID string) ([]PassRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, pass, found, size, applications, elapsed_ms
		 FROM passes WHERE run_id = ? ORDER BY pass`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read passes of run %s: %w", runID, err)
	}
	defer rows.Close()

	var recs []PassRecord
	for rows.Next() {
		var rec PassRecord
		var elapsedMS int64
		if err := rows.Scan(&rec.RunID, &rec.Pass, &rec.Found, &rec.Size, &rec.Applications, &elapsedMS); err != nil {
			return nil, fmt.Errorf("failed to scan pass: %w", err)
		}
		rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read passes of run %s: %w", runID, err)
	}
	return recs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var rec RunRecord
	var startedAt string
	var finishedAt, reason sql.NullString
	var elements, applications, elapsedMS sql.NullInt64

	if err := row.Scan(&rec.ID, &rec.Algebra, &startedAt, &finishedAt, &reason, &elements, &applications, &elapsedMS); err != nil {
		return RunRecord{}, err
	}

	t, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return RunRecord{}, fmt.Errorf("bad started_at %q: %w", startedAt, err)
	}
	rec.StartedAt = t

	if finishedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, finishedAt.String)
		if err != nil {
			return RunRecord{}, fmt.Errorf("bad finished_at %q: %w", finishedAt.String, err)
		}
		rec.FinishedAt = t
	}
	if reason.Valid {
		rec.Reason = closure.Reason(reason.String)
	}
	if elements.Valid {
		rec.Elements = elements.Int64
	}
	if applications.Valid {
		rec.Applications = uint64(applications.Int64)
	}
	if elapsedMS.Valid {
		rec.Elapsed = time.Duration(elapsedMS.Int64) * time.Millisecond
	}
	return rec, nil
}

// RunRecorder streams pass reports into the store as a closure run
// progresses. Write failures are logged and swallowed so telemetry
// never aborts a run.
type RunRecorder struct {
	store  *Store
	runID  string
	logger *slog.Logger
}

// NewRunRecorder creates a recorder for the given run ID. The run row
// must already exist (see BeginRun).
func NewRunRecorder(s *Store, runID string, logger *slog.Logger) *RunRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunRecorder{store: s, runID: runID, logger: logger}
}

// PassComplete implements closure.Sink.
func (r *RunRecorder) PassComplete(rep closure.Report) {
	if err := r.store.WritePass(context.Background(), r.runID, rep); err != nil {
		r.logger.Warn("failed to record pass",
			"run_id", r.runID,
			"pass", rep.Pass,
			"error", err)
	}
}
