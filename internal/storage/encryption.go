package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// Encryption provides AES-GCM encryption/decryption for sensitive data
type Encryption struct {
	key []byte
}

// NewEncryption creates a new encryption service with the given key
// The key should be 16, 24, or 32 bytes for AES-128, AES-192, or AES-256
func NewEncryption(key []byte) (*Encryption, error) {
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return nil, fmt.Errorf("invalid key size: must be 16, 24, or 32 bytes, got %d", len(key))
	}

	return &Encryption{
		key: key,
	}, nil
}

// NewEncryptionFromBase64 creates a new encryption service from a base64-encoded key
func NewEncryptionFromBase64(encodedKey string) (*Encryption, error) {
	if encodedKey == "" {
		return nil, fmt.Errorf("encryption key cannot be empty")
	}

	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 key: %w", err)
	}

	return NewEncryption(key)
}

// GenerateKey generates a new random encryption key of the specified size
// Returns the key as a base64-encoded string for easy storage in environment variables
func GenerateKey(keySize int) (string, error) {
	if keySize != 16 && keySize != 24 && keySize != 32 {
		return "", fmt.Errorf("invalid key size: must be 16, 24, or 32 bytes")
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate random key: %w", err)
	}

	return base64.StdEncoding.EncodeToString(key), nil
}

// Encrypt encrypts plaintext using AES-GCM and returns the ciphertext as base64
func (e *Encryption) Encrypt(plaintext []byte) (string, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	// Create nonce
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Encrypt and prepend nonce
	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)

	// Return as base64
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts base64-encoded ciphertext using AES-GCM
func (e *Encryption) Decrypt(ciphertextBase64 string) ([]byte, error) {
	// Decode from base64
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	// Extract nonce and ciphertext
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]

	// Decrypt
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	return plaintext, nil
}

// EncryptString encrypts a string value such as an API key
func (e *Encryption) EncryptString(plaintext string) (string, error) {
	return e.Encrypt([]byte(plaintext))
}

// DecryptString decrypts a value produced by EncryptString
func (e *Encryption) DecryptString(ciphertextBase64 string) (string, error) {
	plaintext, err := e.Decrypt(ciphertextBase64)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// ForUser derives a per-user subkey with HKDF-SHA256 so a ciphertext copied
// between users' rows does not decrypt.
func (e *Encryption) ForUser(userID uuid.UUID) (*Encryption, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}

	kdf := hkdf.New(sha256.New, e.key, nil, []byte("user-api-key:"+userID.String()))
	subkey := make([]byte, len(e.key))
	if _, err := io.ReadFull(kdf, subkey); err != nil {
		return nil, fmt.Errorf("failed to derive user key: %w", err)
	}

	return NewEncryption(subkey)
}
