package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ai_chat/internal/models"
)

// DispatchRecordRepository persists dispatch audit rows
type DispatchRecordRepository struct {
	db *DB
}

// NewDispatchRecordRepository creates a new dispatch record repository
func NewDispatchRecordRepository(db *DB) *DispatchRecordRepository {
	return &DispatchRecordRepository{db: db}
}

const insertDispatchRecord = `
	INSERT INTO dispatch_records (
		id, user_id, provider, attempts, failures, message_chars, latency_ms, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO NOTHING
`

func prepareRecord(record *models.DispatchRecord) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
}

func insertRecord(ctx context.Context, exec sqlx.ExecerContext, record *models.DispatchRecord) error {
	prepareRecord(record)
	_, err := exec.ExecContext(
		ctx, insertDispatchRecord,
		record.ID, record.UserID, record.Provider, record.Attempts, record.Failures,
		record.MessageChars, record.LatencyMS, record.CreatedAt,
	)
	return err
}

// Create inserts a single record. Re-inserting the same id is a no-op.
func (r *DispatchRecordRepository) Create(ctx context.Context, record *models.DispatchRecord) error {
	if err := insertRecord(ctx, r.db.conn, record); err != nil {
		return fmt.Errorf("failed to create dispatch record: %w", err)
	}
	return nil
}

// CreateBatch inserts records in a single transaction
func (r *DispatchRecordRepository) CreateBatch(ctx context.Context, records []*models.DispatchRecord) error {
	tx, err := r.db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, record := range records {
		if err := insertRecord(ctx, tx, record); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListByUser returns the user's most recent records
func (r *DispatchRecordRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.DispatchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, provider, attempts, failures, message_chars, latency_ms, created_at
		FROM dispatch_records
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var records []*models.DispatchRecord
	if err := r.db.conn.SelectContext(ctx, &records, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list dispatch records: %w", err)
	}

	return records, nil
}
