// Package credentials supplies provider API keys to the dispatcher and manages
// the keys users save for themselves.
package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ai_chat/internal/auth"
	"ai_chat/internal/logging"
	"ai_chat/internal/models"
	"ai_chat/internal/storage"
)

// Source returns the current key for a provider. An empty string with a nil
// error means the provider has no key.
type Source interface {
	Credential(ctx context.Context, id models.ProviderID) (string, error)
}

// KeyRepository is the subset of storage.UserAPIKeyRepository used here
type KeyRepository interface {
	ListActive(ctx context.Context, userID uuid.UUID) ([]*models.UserAPIKey, error)
	GetActive(ctx context.Context, userID uuid.UUID, provider string) (*models.UserAPIKey, error)
	Upsert(ctx context.Context, key *models.UserAPIKey) error
	Delete(ctx context.Context, userID uuid.UUID, provider string) error
	Deactivate(ctx context.Context, userID uuid.UUID, provider string) error
}

// EnvSource serves keys fixed at deploy time
type EnvSource struct {
	keys map[models.ProviderID]string
}

// NewEnvSource copies keys so later changes to the map are not observed
func NewEnvSource(keys map[models.ProviderID]string) *EnvSource {
	copied := make(map[models.ProviderID]string, len(keys))
	for id, key := range keys {
		copied[id] = key
	}
	return &EnvSource{keys: copied}
}

func (s *EnvSource) Credential(_ context.Context, id models.ProviderID) (string, error) {
	return s.keys[id], nil
}

// StoreSource reads the requesting user's encrypted keys. Every call goes to
// the repository, so edits made between two dispatches are always seen.
type StoreSource struct {
	repo KeyRepository
	enc  *storage.Encryption
}

func NewStoreSource(repo KeyRepository, enc *storage.Encryption) *StoreSource {
	return &StoreSource{repo: repo, enc: enc}
}

// Credential looks up the key of the user carried by ctx. Requests without a
// user have no stored keys.
func (s *StoreSource) Credential(ctx context.Context, id models.ProviderID) (string, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return "", nil
	}

	row, err := s.repo.GetActive(ctx, userID, string(id))
	if errors.Is(err, storage.ErrAPIKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load %s key: %w", id, err)
	}

	key, err := decryptFor(s.enc, userID, row.APIKey)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt %s key: %w", id, err)
	}
	return key, nil
}

// Chain asks each source in turn and returns the first non-empty key. A
// failing source is logged and skipped.
type Chain struct {
	sources []Source
	log     *logging.Logger
}

func NewChain(sources ...Source) *Chain {
	return &Chain{sources: sources, log: logging.NewLogger("credentials")}
}

func (c *Chain) Credential(ctx context.Context, id models.ProviderID) (string, error) {
	for _, src := range c.sources {
		key, err := src.Credential(ctx, id)
		if err != nil {
			c.log.Warn("credential source unavailable", "provider", id, "error", err)
			continue
		}
		if key != "" {
			return key, nil
		}
	}
	return "", nil
}

func decryptFor(enc *storage.Encryption, userID uuid.UUID, ciphertext string) (string, error) {
	userEnc, err := enc.ForUser(userID)
	if err != nil {
		return "", err
	}
	return userEnc.DecryptString(ciphertext)
}

func encryptFor(enc *storage.Encryption, userID uuid.UUID, plaintext string) (string, error) {
	userEnc, err := enc.ForUser(userID)
	if err != nil {
		return "", err
	}
	return userEnc.EncryptString(plaintext)
}
