package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/SpaceTrucker2196/fieldhand/internal/models"
)

// chainSeed anchors the first entry of every chain. Versioned so a future
// canonical-encoding change cannot silently validate against old chains.
const chainSeed = "fieldhand/audit/v1"

// entryHash computes the sha256 of the entry's canonical encoding, chained
// to PrevHash. The encoding pins field order and formats timestamps as
// RFC3339Nano UTC so the digest is stable across runs and platforms.
func entryHash(e *models.AuditEntry) string {
	var b strings.Builder
	b.WriteString(e.WorkOrderID)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(e.Seq, 10))
	b.WriteByte('|')
	b.WriteString(e.Action)
	b.WriteByte('|')
	b.WriteString(e.CreatedAt.UTC().Format(time.RFC3339Nano))
	b.WriteByte('|')
	b.WriteString(canonicalDetails(e.Details))
	b.WriteByte('|')
	b.WriteString(e.PrevHash)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// canonicalDetails renders the details map as sorted k=v pairs joined by
// commas, so map iteration order never affects the digest.
func canonicalDetails(details map[string]string) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+details[k])
	}
	return strings.Join(pairs, ",")
}
