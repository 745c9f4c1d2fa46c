package cache

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// Fingerprint derives the cache and idempotency key for a request: a SHA-256
// over the caller id, the operation name, and a canonical serialization of
// the payload. The payload is round-tripped through generic JSON so that map
// key order never changes the hash, and the caller id is part of the input so
// two callers submitting identical payloads never share an entry.
func Fingerprint(callerID, operation string, payload any) (string, error) {
	canonical, err := canonicalJSON(payload)
	if err != nil {
		return "", fmt.Errorf("fingerprint payload: %w", err)
	}

	h := sha256.New()
	fmt.Fprintf(h, "%s:%s:", callerID, operation)
	h.Write(canonical)
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// canonicalJSON re-encodes payload through an untyped value. encoding/json
// writes map keys in sorted order, which makes the byte form deterministic
// for any key ordering on the way in.
func canonicalJSON(payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
