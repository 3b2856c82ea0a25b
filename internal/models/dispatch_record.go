package models

import (
	"time"

	"github.com/google/uuid"
)

// FallbackProvider is recorded as the answering provider when the local
// generator produced the reply.
const FallbackProvider = "fallback"

// DispatchRecord is the audit row written once per dispatch.
type DispatchRecord struct {
	ID           uuid.UUID     `db:"id" json:"id"`
	UserID       uuid.NullUUID `db:"user_id" json:"user_id"`
	Provider     string        `db:"provider" json:"provider"`
	Attempts     int           `db:"attempts" json:"attempts"`
	Failures     JSONB         `db:"failures" json:"failures,omitempty"` // provider id -> error message
	MessageChars int           `db:"message_chars" json:"message_chars"`
	LatencyMS    int64         `db:"latency_ms" json:"latency_ms"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// UsedFallback reports whether no remote provider answered.
func (r *DispatchRecord) UsedFallback() bool {
	return r.Provider == FallbackProvider
}
