package usecase

import (
	"strings"

	"github.com/xavierca1/crm-dwh-sync/internal/entity"
)

// Dedupe keeps one record per key: the last occurrence in records. Survivors
// keep their relative input order, so a key repeated later in the batch moves
// to the position of its last occurrence.
func Dedupe[T any, K comparable](records []T, keyOf func(T) K) []T {
	last := make(map[K]int, len(records))
	for i, r := range records {
		last[keyOf(r)] = i
	}

	out := make([]T, 0, len(last))
	for i, r := range records {
		if last[keyOf(r)] == i {
			out = append(out, r)
		}
	}
	return out
}

func rawLeadKey(r entity.RawLead) string { return strings.TrimSpace(r.ID) }

func rawDealKey(r entity.RawDeal) string { return strings.TrimSpace(r.ID) }
