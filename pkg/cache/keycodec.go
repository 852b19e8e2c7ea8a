package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Derive builds a deterministic fingerprint for one invocation of a named
// operation. Keyword arguments are a map, and encoding/json writes map keys
// in sorted order, so kwargs insertion order never changes the fingerprint;
// positional args keep call order. The digest is SHA-256 over the canonical
// encoding, hex encoded.
func Derive(op string, args []any, kwargs map[string]any) (string, error) {
	payload := struct {
		Op     string         `json:"op"`
		Args   []any          `json:"args"`
		Kwargs map[string]any `json:"kwargs"`
	}{Op: op, Args: args, Kwargs: kwargs}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode cache key for %s: %w", op, err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
