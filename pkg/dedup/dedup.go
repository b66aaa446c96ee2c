// Package dedup reconciles near-duplicate property records produced by
// overlapping sources. It offers strict key-based deduplication and fuzzy
// address-similarity deduplication with a structural veto. Both functions
// are pure: no I/O and no mutation of their inputs, so each batch decision
// is independently testable.
package dedup

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/adrg/strutil/metrics"

	"github.com/hearthdata/hearth/pkg/models"
)

// DeduplicateStrict removes records whose named key fields are tuple-equal
// to an earlier record's. First occurrence wins and input order is
// preserved. Records missing one of the key fields are never considered
// duplicates of each other.
func DeduplicateStrict(records []*models.PropertyRecord, keyFields []string) []*models.PropertyRecord {
	if len(keyFields) == 0 {
		return records
	}

	seen := make(map[string]bool, len(records))
	out := make([]*models.PropertyRecord, 0, len(records))

	for _, rec := range records {
		key, ok := strictKey(rec, keyFields)
		if !ok {
			out = append(out, rec)
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, rec)
	}
	return out
}

// DeduplicateFuzzy removes records whose normalized address is judged the
// same real-world entity as an earlier record's. A candidate is a duplicate
// only when its similarity ratio against an accepted address reaches the
// threshold (0-100) AND both leading street-number tokens match exactly.
// The street-number veto keeps "123 Main St" and "124 Main St" apart no
// matter how similar the rest of the text is.
//
// Comparison is pairwise against every previously accepted record, O(n²) in
// batch size; sync batches are small enough that this is fine.
func DeduplicateFuzzy(records []*models.PropertyRecord, threshold int) []*models.PropertyRecord {
	type accepted struct {
		normalized   string
		streetNumber string
	}

	kept := make([]accepted, 0, len(records))
	out := make([]*models.PropertyRecord, 0, len(records))

	for _, rec := range records {
		normalized := NormalizeAddress(rec.Address)
		number := streetNumber(normalized)

		dup := false
		for _, a := range kept {
			if a.streetNumber != number {
				continue
			}
			if SimilarityRatio(normalized, a.normalized) >= threshold {
				dup = true
				break
			}
		}
		if dup {
			continue
		}

		kept = append(kept, accepted{normalized: normalized, streetNumber: number})
		out = append(out, rec)
	}
	return out
}

// NormalizeAddress builds the comparison string for fuzzy matching:
// lower-cased, punctuation stripped, whitespace collapsed, components
// concatenated in street/city/state/zip order.
func NormalizeAddress(a models.Address) string {
	joined := strings.Join([]string{a.Street, a.City, a.State, a.Zip}, " ")
	joined = strings.ToLower(joined)

	var b strings.Builder
	b.Grow(len(joined))
	for _, r := range joined {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// SimilarityRatio returns the 0-100 similarity of two strings: edit
// distance with substitutions counted double, normalized by the combined
// length. Two empty strings are fully similar.
func SimilarityRatio(a, b string) int {
	if a == b {
		return 100
	}
	lev := metrics.NewLevenshtein()
	lev.CaseSensitive = false
	lev.ReplaceCost = 2
	dist := lev.Distance(a, b)
	total := len([]rune(a)) + len([]rune(b))
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(total-dist) / float64(total) * 100))
}

// streetNumber extracts the leading numeric token of a normalized address,
// or "" when the address does not start with a number.
func streetNumber(normalized string) string {
	fields := strings.Fields(normalized)
	if len(fields) == 0 {
		return ""
	}
	for _, r := range fields[0] {
		if !unicode.IsDigit(r) {
			return ""
		}
	}
	return fields[0]
}

// strictKey builds the composite key for the named fields. The second
// return is false when any field is unknown.
func strictKey(rec *models.PropertyRecord, keyFields []string) (string, bool) {
	var b strings.Builder
	for i, f := range keyFields {
		v, ok := rec.Field(f)
		if !ok {
			return "", false
		}
		if i > 0 {
			b.WriteByte('\x1f')
		}
		fmt.Fprintf(&b, "%v", v)
	}
	return b.String(), true
}
