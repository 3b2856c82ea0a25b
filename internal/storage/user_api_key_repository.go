package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ai_chat/internal/models"
)

// UserAPIKeyRepository handles per-user provider key rows. Values are stored
// exactly as given; callers encrypt before saving.
type UserAPIKeyRepository struct {
	db *DB
}

// NewUserAPIKeyRepository creates a new user API key repository
func NewUserAPIKeyRepository(db *DB) *UserAPIKeyRepository {
	return &UserAPIKeyRepository{db: db}
}

// ListActive returns the user's active keys, newest first
func (r *UserAPIKeyRepository) ListActive(ctx context.Context, userID uuid.UUID) ([]*models.UserAPIKey, error) {
	query := `
		SELECT id, user_id, provider, api_key, is_active, created_at, updated_at
		FROM user_api_keys
		WHERE user_id = $1 AND is_active = TRUE
		ORDER BY created_at DESC
	`

	var keys []*models.UserAPIKey
	if err := r.db.conn.SelectContext(ctx, &keys, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}

	return keys, nil
}

// GetActive retrieves the user's active key for provider
func (r *UserAPIKeyRepository) GetActive(ctx context.Context, userID uuid.UUID, provider string) (*models.UserAPIKey, error) {
	var key models.UserAPIKey
	query := `
		SELECT id, user_id, provider, api_key, is_active, created_at, updated_at
		FROM user_api_keys
		WHERE user_id = $1 AND provider = $2 AND is_active = TRUE
	`

	err := r.db.conn.GetContext(ctx, &key, query, userID, provider)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}

	return &key, nil
}

// Upsert inserts or replaces the key for (user, provider) and marks it active
func (r *UserAPIKeyRepository) Upsert(ctx context.Context, key *models.UserAPIKey) error {
	query := `
		INSERT INTO user_api_keys (id, user_id, provider, api_key, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (user_id, provider)
		DO UPDATE SET
			api_key = EXCLUDED.api_key,
			is_active = TRUE,
			updated_at = NOW()
		RETURNING id, is_active, created_at, updated_at
	`

	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}

	err := r.db.conn.QueryRowxContext(
		ctx, query,
		key.ID, key.UserID, key.Provider, key.APIKey,
	).Scan(&key.ID, &key.IsActive, &key.CreatedAt, &key.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save api key: %w", err)
	}

	return nil
}

// Delete removes the user's key for provider
func (r *UserAPIKeyRepository) Delete(ctx context.Context, userID uuid.UUID, provider string) error {
	query := `DELETE FROM user_api_keys WHERE user_id = $1 AND provider = $2`

	result, err := r.db.conn.ExecContext(ctx, query, userID, provider)
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}

	return expectOneRow(result)
}

// Deactivate keeps the row but excludes it from lookups
func (r *UserAPIKeyRepository) Deactivate(ctx context.Context, userID uuid.UUID, provider string) error {
	query := `
		UPDATE user_api_keys
		SET is_active = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND provider = $2
	`

	result, err := r.db.conn.ExecContext(ctx, query, userID, provider)
	if err != nil {
		return fmt.Errorf("failed to deactivate api key: %w", err)
	}

	return expectOneRow(result)
}

func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}
