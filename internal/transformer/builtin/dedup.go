// Package builtin contains reusable table transformers.
//
// DeDup is the policy-driven de-duplication transformer. It collapses rows
// sharing a key and chooses a winner according to a configurable policy:
//
//   - "keep-first"   : keep the earliest occurrence in the table (default)
//   - "keep-last"    : keep the latest occurrence in the table
//   - "most-complete": keep the row with the most non-empty fields;
//     ties break by "keep-first"
//
// Tables read from a database have no defined row order, so "earliest" means
// earliest in the result set the backend returned. Callers that need a
// specific survivor should sort first or use "most-complete".
//
// Keys: a row's key is the concatenation of the configured columns in their
// canonical string form (nil -> "\x00"), so rows with null keys collapse into
// one group.
package builtin

import (
	"fmt"
	"sort"
	"strings"

	"staretl/internal/table"
)

// DeDup implements a configurable, in-memory de-duplication policy.
type DeDup struct {
	// Keys are the column names that form the business key, e.g. ["customer_id"].
	Keys []string

	// Policy selects the winner among duplicates: "keep-first", "keep-last",
	// or "most-complete" (default is "keep-first").
	Policy string
}

// Apply returns a new table holding one row per distinct key, in the order
// the winning rows appeared in the input. A key column missing from the input
// is an error.
func (d DeDup) Apply(in *table.Table) (*table.Table, error) {
	if len(d.Keys) == 0 {
		return in, nil
	}

	keyIdx := make([]int, len(d.Keys))
	for i, k := range d.Keys {
		j, err := in.MustIndex(k)
		if err != nil {
			return nil, fmt.Errorf("dedupe: %w", err)
		}
		keyIdx[i] = j
	}

	policy := strings.ToLower(strings.TrimSpace(d.Policy))
	if policy == "" {
		policy = "keep-first"
	}
	switch policy {
	case "keep-first", "keep-last", "most-complete":
	default:
		return nil, fmt.Errorf("dedupe: unknown policy %q", d.Policy)
	}

	type slot struct {
		index int
		score int
	}
	winners := make(map[string]slot, len(in.Rows))

	keyOf := func(r []any) string {
		var b strings.Builder
		for n, j := range keyIdx {
			if n > 0 {
				b.WriteByte('\x1f')
			}
			if s, ok := table.KeyString(r[j]); ok {
				b.WriteString(s)
			} else {
				b.WriteByte('\x00')
			}
		}
		return b.String()
	}

	for i, r := range in.Rows {
		key := keyOf(r)
		switch policy {
		case "keep-first":
			if _, exists := winners[key]; !exists {
				winners[key] = slot{index: i}
			}
		case "keep-last":
			winners[key] = slot{index: i}
		case "most-complete":
			s := slot{index: i, score: completeness(r)}
			if prev, exists := winners[key]; !exists || s.score > prev.score {
				winners[key] = s
			}
		}
	}

	indexes := make([]int, 0, len(winners))
	for _, s := range winners {
		indexes = append(indexes, s.index)
	}
	sort.Ints(indexes)

	out := &table.Table{
		Name:    in.Name,
		Columns: append([]table.Column(nil), in.Columns...),
		Rows:    make([][]any, 0, len(indexes)),
	}
	for _, idx := range indexes {
		out.Rows = append(out.Rows, in.Rows[idx])
	}
	return out, nil
}

// completeness counts non-nil, non-empty values in a row.
func completeness(r []any) int {
	score := 0
	for _, v := range r {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		score++
	}
	return score
}
