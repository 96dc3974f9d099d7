package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

const fingerprintDateLayout = "2006-01-02"

// NormalizeTopics case-folds, trims, deduplicates and sorts topic tags.
func NormalizeTopics(topics []string) []string {
	folder := cases.Fold()
	seen := make(map[string]struct{}, len(topics))
	out := make([]string, 0, len(topics))

	for _, topic := range topics {
		normalized := strings.Join(strings.Fields(folder.String(topic)), " ")
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}

	sort.Strings(out)
	return out
}

// FeaturesOf extracts the semantically relevant fields of a query.
func FeaturesOf(q *Query, bucket ComplexityBucket) Features {
	return Features{
		Scope:  strings.ToLower(strings.TrimSpace(q.Scope)),
		Topics: NormalizeTopics(q.Topics),
		From:   q.Window.From.UTC().Truncate(24 * time.Hour),
		To:     q.Window.To.UTC().Truncate(24 * time.Hour),
		Bucket: bucket,
	}
}

// Fingerprint returns the stable hash of the features. Free-form text is
// not part of it.
func (f Features) Fingerprint() string {
	var b strings.Builder
	b.WriteString("scope=")
	b.WriteString(f.Scope)
	b.WriteString("|topics=")
	b.WriteString(strings.Join(f.Topics, ","))
	b.WriteString("|window=")
	b.WriteString(f.From.Format(fingerprintDateLayout))
	b.WriteString("..")
	b.WriteString(f.To.Format(fingerprintDateLayout))
	b.WriteString("|bucket=")
	b.WriteString(string(f.Bucket))

	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}
