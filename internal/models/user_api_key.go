package models

import (
	"time"

	"github.com/google/uuid"
)

// UserAPIKey is a provider credential saved by a user. APIKey holds the
// ciphertext; plaintext never reaches the database.
type UserAPIKey struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	Provider  string    `db:"provider"`
	APIKey    string    `db:"api_key"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ProviderID returns the typed provider identifier, if known.
func (k *UserAPIKey) ProviderID() (ProviderID, bool) {
	return ParseProviderID(k.Provider)
}
