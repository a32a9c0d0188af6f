package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// generateID produces a deterministic ID from a record's provenance and key
// fields, so reprocessing the same source yields the same IDs and sinks can
// upsert by key.
func generateID(family, source string, row int, date time.Time, keys ...string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s|%s|%d|%s", family, source, row, date.UTC().Format(time.RFC3339))
	for _, k := range keys {
		sb.WriteByte('|')
		sb.WriteString(k)
	}
	hash := sha256.Sum256([]byte(sb.String()))
	short := hex.EncodeToString(hash[:8])
	if family == "" {
		return short
	}
	return family[:3] + "-" + short
}
