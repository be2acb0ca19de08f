package transfer

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// GenerateReference produces a human-readable reference of the form
// TXN-YYYYMMDD-<12 hex>, per spec.md §3.
func GenerateReference(now time.Time) string {
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing is fatal-grade; fall back to a
		// time-derived suffix rather than panic so a degraded entropy
		// source never blocks a transfer from being recorded.
		ns := now.UnixNano()
		return fmt.Sprintf("TXN-%s-%012x", now.UTC().Format("20060102"), uint64(ns)&0xFFFFFFFFFFFF)
	}
	return fmt.Sprintf("TXN-%s-%s", now.UTC().Format("20060102"), hex.EncodeToString(buf[:]))
}
