package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// KeyPrefix identifies Crewhall live API keys
	KeyPrefix = "cw_live_"
	// KeyRandomBytes is the number of random bytes in a key (hex-encoded)
	KeyRandomBytes = 32
)

// GeneratedKey is the result of generating a new API key. Key is the
// plaintext, returned to the caller exactly once; only KeyHash is
// persisted.
type GeneratedKey struct {
	Key       string
	KeyHash   string
	KeyPrefix string
}

// GenerateKey creates a new API key.
// Format: cw_live_<64 lowercase hex chars>
func GenerateKey() (*GeneratedKey, error) {
	randomBytes := make([]byte, KeyRandomBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	key := KeyPrefix + hex.EncodeToString(randomBytes)

	return &GeneratedKey{
		Key:       key,
		KeyHash:   HashKey(key),
		KeyPrefix: DisplayPrefix(key),
	}, nil
}

// HashKey computes the SHA-256 hash of a key for storage and lookup.
// Deterministic and one-way.
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// DisplayPrefix extracts the short display prefix of a key
// (the fixed prefix plus the first 8 hex chars).
func DisplayPrefix(key string) string {
	if !strings.HasPrefix(key, KeyPrefix) {
		return ""
	}
	rest := strings.TrimPrefix(key, KeyPrefix)
	if len(rest) >= 8 {
		return KeyPrefix + rest[:8]
	}
	return key
}

// ValidKeyFormat checks that a key is structurally a Crewhall key
// before any store lookup happens.
func ValidKeyFormat(key string) error {
	if !strings.HasPrefix(key, KeyPrefix) {
		return fmt.Errorf("key must start with %q", KeyPrefix)
	}
	rest := strings.TrimPrefix(key, KeyPrefix)
	if len(rest) != KeyRandomBytes*2 {
		return fmt.Errorf("key has wrong length")
	}
	if _, err := hex.DecodeString(rest); err != nil {
		return fmt.Errorf("invalid key encoding: %w", err)
	}
	return nil
}
