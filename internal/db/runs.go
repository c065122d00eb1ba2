package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Multitrix/cv-to-job-description/internal/types"
)

// TailorRun records one completed tailoring run for later inspection
type TailorRun struct {
	ID         uuid.UUID              `json:"id"`
	UserID     string                 `json:"user_id"`
	JobTitle   string                 `json:"job_title,omitempty"`
	JobCompany string                 `json:"job_company,omitempty"`
	Tailored   *types.TailoredProfile `json:"tailored,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// SaveRun stores a completed tailoring run and returns its ID
func (db *DB) SaveRun(ctx context.Context, userID string, jd types.JobDescription, tailored *types.TailoredProfile) (uuid.UUID, error) {
	jsonBytes, err := json.Marshal(tailored)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal tailored profile: %w", err)
	}

	var id uuid.UUID
	err = db.pool.QueryRow(ctx,
		`INSERT INTO tailor_runs (user_id, job_title, job_company, tailored)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		userID, jd.Title, jd.Company, jsonBytes,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to save run: %w", err)
	}
	return id, nil
}

// GetRun retrieves a tailoring run by ID. Returns nil, nil when no run exists.
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*TailorRun, error) {
	var run TailorRun
	var jsonBytes []byte

	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, COALESCE(job_title, ''), COALESCE(job_company, ''), tailored, created_at
		 FROM tailor_runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.UserID, &run.JobTitle, &run.JobCompany, &jsonBytes, &run.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var tailored types.TailoredProfile
	if err := json.Unmarshal(jsonBytes, &tailored); err != nil {
		return nil, fmt.Errorf("failed to decode stored run %s: %w", runID, err)
	}
	run.Tailored = &tailored
	return &run, nil
}

// ListRuns retrieves a user's recent tailoring runs, newest first, without
// the tailored profile payloads.
func (db *DB) ListRuns(ctx context.Context, userID string, limit int) ([]TailorRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, user_id, COALESCE(job_title, ''), COALESCE(job_company, ''), created_at
		 FROM tailor_runs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []TailorRun
	for rows.Next() {
		var run TailorRun
		if err := rows.Scan(&run.ID, &run.UserID, &run.JobTitle, &run.JobCompany, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}
