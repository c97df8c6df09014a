package search

import (
	"sort"

	"chatgraph/pkg/store"
)

const rrfK = 60.0

func rrfComponent(rank int) float64 {
	if rank <= 0 {
		return 0
	}
	return 1.0 / (rrfK + float64(rank))
}

// fuse combines per-channel rankings by reciprocal-rank aggregation.
// Each channel contributes 1/(k+rank) for every item it ranks; items
// appearing near the top of several channels outrank an item that is
// first in only one. Ties break by earliest timestamp, then id.
func fuse(channels ...[]store.Hit) []store.Hit {
	type scored struct {
		hit   store.Hit
		score float64
	}

	byID := make(map[int64]*scored)
	order := make([]int64, 0)

	for _, channel := range channels {
		for i, hit := range channel {
			rank := i + 1
			entry, ok := byID[hit.ID]
			if !ok {
				entry = &scored{hit: hit}
				byID[hit.ID] = entry
				order = append(order, hit.ID)
			}
			entry.score += rrfComponent(rank)
			if entry.hit.Relation == "" && hit.Relation != "" {
				entry.hit.Relation = hit.Relation
			}
		}
	}

	out := make([]scored, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score == out[j].score {
			if out[i].hit.Timestamp == out[j].hit.Timestamp {
				return out[i].hit.ID < out[j].hit.ID
			}
			return out[i].hit.Timestamp < out[j].hit.Timestamp
		}
		return out[i].score > out[j].score
	})

	hits := make([]store.Hit, len(out))
	for i, s := range out {
		hits[i] = s.hit
	}
	return hits
}
