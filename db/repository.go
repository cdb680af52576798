package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/tryon"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02 15:04:05.000000"

// ErrJobNotFound is returned by Get for an unknown job id.
var ErrJobNotFound = errors.New("db: job not found")

// JobRecord is one row of the jobs table.
type JobRecord struct {
	JobID         string
	CorrelationID string
	EndpointID    string
	Mode          string
	Category      string
	Steps         int
	Guidance      float64
	Seed          int64
	Sync          bool
	State         string // last wire status, or SUBMITTED
	Detail        string
	Polls         int // status polls across every wait on this job
	SubmittedAt   time.Time
	UpdatedAt     time.Time
}

// Resumable reports whether the job was last seen in a non-terminal state.
func (r JobRecord) Resumable() bool {
	switch r.State {
	case "COMPLETED", "FAILED", "CANCELLED", "TIMED_OUT", "REJECTED":
		return false
	default:
		return true
	}
}

// JobEvent is one recorded status observation.
type JobEvent struct {
	EventID   string
	JobID     string
	State     string
	Detail    string
	Polls     int
	CreatedAt time.Time
}

// JobRepository records job progress. It implements tryon.Recorder.
type JobRepository struct {
	db         *Database
	endpointID string
}

var _ tryon.Recorder = (*JobRepository)(nil)

// NewJobRepository creates a repository tagging new rows with endpointID.
func NewJobRepository(db *Database, endpointID string) *JobRepository {
	return &JobRepository{db: db, endpointID: endpointID}
}

// RecordSubmitted inserts the job row and a SUBMITTED event.
func (r *JobRepository) RecordSubmitted(ctx context.Context, sub tryon.Submission) error {
	if sub.Handle.ID == "" {
		return fmt.Errorf("db: submission has no job id")
	}
	at := sub.Handle.SubmittedAt
	if at.IsZero() {
		at = time.Now()
	}

	var mode, category string
	var steps int
	var guidance float64
	var seed int64
	if req := sub.Request; req != nil {
		mode, category = string(req.Mode()), string(req.Category())
		steps, guidance, seed = req.Steps(), req.Guidance(), req.Seed()
	}

	return r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO jobs (
				job_id, correlation_id, endpoint_id, mode, category,
				steps, guidance, seed, sync, state, submitted_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 'SUBMITTED', ?, ?)
			ON CONFLICT (job_id) DO UPDATE SET
				correlation_id = excluded.correlation_id,
				updated_at = excluded.updated_at`,
			sub.Handle.ID, sub.CorrelationID, r.endpointID, mode, category,
			steps, guidance, seed, sub.Sync, formatTime(at), formatTime(at))
		if err != nil {
			return fmt.Errorf("failed to insert job: %w", err)
		}
		return insertEvent(ctx, tx, sub.Handle.ID, "SUBMITTED", "", 0, at)
	})
}

// RecordStatus updates the job's last state and appends an event. A job that
// was never submitted through this store (e.g. looked up by id) gets a row.
func (r *JobRepository) RecordStatus(ctx context.Context, jobID string, status tryon.JobStatus, polls int, at time.Time) error {
	if jobID == "" {
		return fmt.Errorf("db: status has no job id")
	}
	if at.IsZero() {
		at = time.Now()
	}
	state := status.Label()

	return r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO jobs (job_id, endpoint_id, state, detail, polls, submitted_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (job_id) DO UPDATE SET
				state = excluded.state,
				detail = excluded.detail,
				polls = jobs.polls + excluded.polls,
				updated_at = excluded.updated_at`,
			jobID, r.endpointID, state, status.Detail, polls, formatTime(at), formatTime(at))
		if err != nil {
			return fmt.Errorf("failed to update job: %w", err)
		}
		return insertEvent(ctx, tx, jobID, state, status.Detail, polls, at)
	})
}

// Get returns one job, or ErrJobNotFound.
func (r *JobRepository) Get(ctx context.Context, jobID string) (*JobRecord, error) {
	conn, err := r.db.conn()
	if err != nil {
		return nil, err
	}
	row := conn.QueryRowContext(ctx, selectJobs+` WHERE job_id = ?`, jobID)
	rec, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query job %s: %w", jobID, err)
	}
	return rec, nil
}

// ListRecent returns up to limit jobs, newest submission first.
func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]JobRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	conn, err := r.db.conn()
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, selectJobs+` ORDER BY submitted_at DESC, job_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var records []JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}
	return records, nil
}

// Events returns the recorded observations of a job, oldest first.
func (r *JobRepository) Events(ctx context.Context, jobID string) ([]JobEvent, error) {
	conn, err := r.db.conn()
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT event_id, job_id, state, detail, polls, created_at
		FROM job_events
		WHERE job_id = ?
		ORDER BY id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []JobEvent
	for rows.Next() {
		var ev JobEvent
		var createdAt string
		if err := rows.Scan(&ev.EventID, &ev.JobID, &ev.State, &ev.Detail, &ev.Polls, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.CreatedAt = parseTime(createdAt)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

const selectJobs = `
	SELECT job_id, correlation_id, endpoint_id, mode, category, steps, guidance,
		seed, sync, state, detail, polls, submitted_at, updated_at
	FROM jobs`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(s scanner) (*JobRecord, error) {
	var rec JobRecord
	var submittedAt, updatedAt string
	err := s.Scan(
		&rec.JobID, &rec.CorrelationID, &rec.EndpointID, &rec.Mode, &rec.Category,
		&rec.Steps, &rec.Guidance, &rec.Seed, &rec.Sync, &rec.State, &rec.Detail,
		&rec.Polls, &submittedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.SubmittedAt = parseTime(submittedAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return &rec, nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, jobID, state, detail string, polls int, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO job_events (event_id, job_id, state, detail, polls, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), jobID, state, detail, polls, formatTime(at))
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (r *JobRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	conn, err := r.db.conn()
	if err != nil {
		return err
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}
