package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Vovarama1992/scene-concierge/internal/domain"
)

type repo struct {
	db *sql.DB
}

// NewRepo stores profiles as JSONB documents keyed by resolved id.
func NewRepo(db *sql.DB) ProfileStore {
	return &repo{db: db}
}

func (r *repo) GetProfileByID(ctx context.Context, resolvedID string) (*domain.CustomerProfile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT profile
		FROM customer_profiles
		WHERE resolved_id = $1
	`, resolvedID)
	return scanProfile(row, resolvedID)
}

func (r *repo) GetProfileByEmail(ctx context.Context, email string) (*domain.CustomerProfile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT profile
		FROM customer_profiles
		WHERE lower(email) = lower($1)
		LIMIT 1
	`, email)
	return scanProfile(row, email)
}

func (r *repo) WriteChatSummary(ctx context.Context, customerID, sessionID, summary string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_summaries (customer_id, session_id, summary)
		VALUES ($1, $2, $3)
	`,
		customerID,
		sessionID,
		summary,
	)
	return err
}

func scanProfile(row *sql.Row, key string) (*domain.CustomerProfile, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, err
	}
	var p domain.CustomerProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", key, err)
	}
	return &p, nil
}
