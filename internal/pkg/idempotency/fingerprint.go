// Package idempotency computes the request fingerprint the HTTP
// idempotency middleware compares against a stored Idempotency Record.
// Generalized from the teacher's GenerateKey/GenerateTransferKey
// (internal/pkg/idempotency/idempotency.go), which hashed a
// colon-joined "operation:account:amount" string; this version hashes
// the caller-supplied key namespace itself — method|path|body — per
// spec.md §4.12, so the same key reused on a different path or with a
// different body is detected as reuse instead of silently replayed.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the hex-encoded SHA-256 of method|path|body,
// the request hash stored alongside each Idempotency Record.
func Fingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{'|'})
	h.Write([]byte(path))
	h.Write([]byte{'|'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
