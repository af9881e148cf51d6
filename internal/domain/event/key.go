package event

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"
)

// FusionKey groups special-category events that describe the same
// session: same competition (normalized) on the same UTC day.
func FusionKey(r Record) string {
	competition := NormalizeName(r.Competition)
	if competition == "" {
		competition = NormalizeName(r.Sport)
	}
	return competition + "|" + r.StartAt.UTC().Format(time.DateOnly)
}

// FusedID derives a stable record id from a fusion key.
func FusedID(key string) string {
	sum := sha1.Sum([]byte(key))
	return "fx_" + hex.EncodeToString(sum[:])[:12]
}

// IsFusedID reports whether the id was produced by FusedID.
func IsFusedID(id string) bool {
	return strings.HasPrefix(id, "fx_")
}
