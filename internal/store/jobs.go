package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Job statuses. Terminal states are "done" and "failed".
const (
	StatusQueued     = "queued"
	StatusAnalyzing  = "analyzing"
	StatusGenerating = "generating"
	StatusMixing     = "mixing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// JobRow is one compose job's persisted state.
type JobRow struct {
	ID          uuid.UUID       `json:"id"`
	Status      string          `json:"status"`
	Source      string          `json:"source"` // "upload" or "watch"
	InputName   string          `json:"input_name"`
	Transcript  string          `json:"transcript,omitempty"`
	Controls    json.RawMessage `json:"controls,omitempty"`
	Prompt      string          `json:"prompt,omitempty"`
	PeakDB      *float64        `json:"peak_db,omitempty"`
	ArtifactKey string          `json:"artifact_key,omitempty"`
	Error       string          `json:"error,omitempty"`
	Timings     json.RawMessage `json:"timings,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// InsertJob creates a new job row in the queued state.
func (db *DB) InsertJob(ctx context.Context, id uuid.UUID, source, inputName string) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO compose_jobs (id, status, source, input_name) VALUES ($1, $2, $3, $4)`,
		id, StatusQueued, source, inputName)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateJobStatus advances a job's status.
func (db *DB) UpdateJobStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE compose_jobs SET status = $2, updated_at = now() WHERE id = $1`,
		id, status)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// CompleteJob records a successful run's outputs.
func (db *DB) CompleteJob(ctx context.Context, id uuid.UUID, transcript string, controls json.RawMessage, prompt string, peakDB float64, artifactKey string, timings json.RawMessage) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE compose_jobs
		 SET status = $2, transcript = $3, controls = $4, prompt = $5,
		     peak_db = $6, artifact_key = $7, timings = $8, updated_at = now()
		 WHERE id = $1`,
		id, StatusDone, transcript, controls, prompt, peakDB, artifactKey, timings)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// FailJob records a failure with its message.
func (db *DB) FailJob(ctx context.Context, id uuid.UUID, msg string) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE compose_jobs SET status = $2, error = $3, updated_at = now() WHERE id = $1`,
		id, StatusFailed, msg)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// GetJob fetches one job by id. Returns (nil, nil) when absent.
func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*JobRow, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT id, status, source, input_name, transcript, controls, prompt,
		        peak_db, artifact_key, error, timings, created_at, updated_at
		 FROM compose_jobs WHERE id = $1`, id)

	var j JobRow
	err := row.Scan(&j.ID, &j.Status, &j.Source, &j.InputName, &j.Transcript,
		&j.Controls, &j.Prompt, &j.PeakDB, &j.ArtifactKey, &j.Error,
		&j.Timings, &j.CreatedAt, &j.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

// ListJobs returns recent jobs, newest first.
func (db *DB) ListJobs(ctx context.Context, limit, offset int) ([]JobRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, status, source, input_name, transcript, controls, prompt,
		        peak_db, artifact_key, error, timings, created_at, updated_at
		 FROM compose_jobs ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []JobRow
	for rows.Next() {
		var j JobRow
		if err := rows.Scan(&j.ID, &j.Status, &j.Source, &j.InputName, &j.Transcript,
			&j.Controls, &j.Prompt, &j.PeakDB, &j.ArtifactKey, &j.Error,
			&j.Timings, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
