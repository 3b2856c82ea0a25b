package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ai_chat/internal/logging"
	"ai_chat/internal/models"
	"ai_chat/internal/providers"
	"ai_chat/internal/storage"
)

const unsupportedProviderMessage = "unsupported provider"

var (
	ErrUnknownProvider = errors.New(unsupportedProviderMessage)
	ErrEmptyKey        = errors.New("API key is required")
)

// AdapterLookup resolves the adapter used to test a key
type AdapterLookup interface {
	Adapter(id models.ProviderID) (providers.Adapter, bool)
}

// Key is a decrypted user key as shown to its owner
type Key struct {
	Provider  models.ProviderID `json:"provider"`
	APIKey    string            `json:"api_key"`
	IsActive  bool              `json:"is_active"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Service manages the keys a user saves for each provider
type Service struct {
	repo   KeyRepository
	enc    *storage.Encryption
	tester *Tester
	log    *logging.Logger
}

func NewService(repo KeyRepository, enc *storage.Encryption, adapters AdapterLookup) *Service {
	return &Service{
		repo:   repo,
		enc:    enc,
		tester: NewTester(adapters),
		log:    logging.NewLogger("credentials"),
	}
}

// GetAll returns the user's active keys, newest first. Rows that no longer
// decrypt or name an unknown provider are skipped.
func (s *Service) GetAll(ctx context.Context, userID uuid.UUID) ([]Key, error) {
	rows, err := s.repo.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	keys := make([]Key, 0, len(rows))
	for _, row := range rows {
		id, ok := row.ProviderID()
		if !ok {
			s.log.Warn("skipping key for unknown provider", "provider", row.Provider, "key_id", row.ID)
			continue
		}

		plaintext, err := decryptFor(s.enc, userID, row.APIKey)
		if err != nil {
			s.log.Warn("skipping undecryptable key", "provider", id, "key_id", row.ID, "error", err)
			continue
		}

		keys = append(keys, Key{
			Provider:  id,
			APIKey:    plaintext,
			IsActive:  row.IsActive,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		})
	}

	return keys, nil
}

// Save encrypts and stores apiKey, replacing and re-activating any existing
// key for the same provider.
func (s *Service) Save(ctx context.Context, userID uuid.UUID, provider, apiKey string) (*Key, error) {
	id, ok := models.ParseProviderID(provider)
	if !ok {
		return nil, ErrUnknownProvider
	}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrEmptyKey
	}

	ciphertext, err := encryptFor(s.enc, userID, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt api key: %w", err)
	}

	row := &models.UserAPIKey{
		UserID:   userID,
		Provider: string(id),
		APIKey:   ciphertext,
	}
	if err := s.repo.Upsert(ctx, row); err != nil {
		return nil, err
	}

	s.log.Info("api key saved", "user_id", userID, "provider", id)

	return &Key{
		Provider:  id,
		APIKey:    apiKey,
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// Delete removes the user's key for provider
func (s *Service) Delete(ctx context.Context, userID uuid.UUID, provider string) error {
	id, ok := models.ParseProviderID(provider)
	if !ok {
		return ErrUnknownProvider
	}
	if err := s.repo.Delete(ctx, userID, string(id)); err != nil {
		return err
	}
	s.log.Info("api key deleted", "user_id", userID, "provider", id)
	return nil
}

// Deactivate keeps the user's key but stops it being used
func (s *Service) Deactivate(ctx context.Context, userID uuid.UUID, provider string) error {
	id, ok := models.ParseProviderID(provider)
	if !ok {
		return ErrUnknownProvider
	}
	if err := s.repo.Deactivate(ctx, userID, string(id)); err != nil {
		return err
	}
	s.log.Info("api key deactivated", "user_id", userID, "provider", id)
	return nil
}

// Test checks apiKey against the provider without storing it
func (s *Service) Test(ctx context.Context, provider, apiKey string) providers.ValidationResult {
	return s.tester.Test(ctx, provider, apiKey)
}

// Tester validates keys against the providers; it needs no key store
type Tester struct {
	adapters AdapterLookup
}

func NewTester(adapters AdapterLookup) *Tester {
	return &Tester{adapters: adapters}
}

// Test reports whether the provider accepts apiKey. Unknown providers are
// reported as unsupported rather than failing.
func (t *Tester) Test(ctx context.Context, provider, apiKey string) providers.ValidationResult {
	id, ok := models.ParseProviderID(provider)
	if !ok {
		return providers.ValidationResult{Error: unsupportedProviderMessage}
	}
	adapter, ok := t.adapters.Adapter(id)
	if !ok {
		return providers.ValidationResult{Error: unsupportedProviderMessage}
	}
	return adapter.Validate(ctx, strings.TrimSpace(apiKey))
}
