package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Multitrix/cv-to-job-description/internal/types"
)

// StoredProfile is a profile record together with its persistence metadata
type StoredProfile struct {
	UserID    string         `json:"user_id"`
	Profile   *types.Profile `json:"profile"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SaveProfile stores or replaces the profile for a user. The write is a full
// replacement, not a merge.
func (db *DB) SaveProfile(ctx context.Context, userID string, profile *types.Profile) error {
	jsonBytes, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO profiles (user_id, profile)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET profile = $2, updated_at = NOW()`,
		userID, jsonBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to save profile for %s: %w", userID, err)
	}
	return nil
}

// GetProfile retrieves the stored profile for a user. Returns nil, nil when
// no profile exists.
func (db *DB) GetProfile(ctx context.Context, userID string) (*StoredProfile, error) {
	var jsonBytes []byte
	stored := StoredProfile{UserID: userID}

	err := db.pool.QueryRow(ctx,
		`SELECT profile, created_at, updated_at FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&jsonBytes, &stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile for %s: %w", userID, err)
	}

	var profile types.Profile
	if err := json.Unmarshal(jsonBytes, &profile); err != nil {
		return nil, fmt.Errorf("failed to decode stored profile for %s: %w", userID, err)
	}
	stored.Profile = &profile
	return &stored, nil
}

// DeleteProfile removes the stored profile for a user
func (db *DB) DeleteProfile(ctx context.Context, userID string) error {
	result, err := db.pool.Exec(ctx, `DELETE FROM profiles WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete profile for %s: %w", userID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("profile not found: %s", userID)
	}
	return nil
}
