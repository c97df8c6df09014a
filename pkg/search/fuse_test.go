package search

import (
	"testing"

	"chatgraph/pkg/store"
)

func hit(id int64, ts int64) store.Hit {
	return store.Hit{ID: id, Timestamp: ts, Body: "body"}
}

func TestFuse_MultiChannelBeatsSingleTop(t *testing.T) {
	// Item 2 is second in both channels; item 1 is first in one only.
	// 2/(60+2) > 1/(60+1), so item 2 must win.
	semantic := []store.Hit{hit(1, 10), hit(2, 20)}
	lexical := []store.Hit{hit(3, 30), hit(2, 20)}

	fused := fuse(semantic, lexical)
	if fused[0].ID != 2 {
		t.Fatalf("expected item 2 first, got %d", fused[0].ID)
	}
}

func TestFuse_TiesBreakByEarliestTimestamp(t *testing.T) {
	// Both items rank first in exactly one channel: equal scores.
	semantic := []store.Hit{hit(1, 500)}
	lexical := []store.Hit{hit(2, 100)}

	fused := fuse(semantic, lexical)
	if fused[0].ID != 2 {
		t.Fatalf("expected earliest-timestamp item first, got %d", fused[0].ID)
	}
}

func TestFuse_KeepsRelationAnnotation(t *testing.T) {
	semantic := []store.Hit{hit(1, 10)}
	graphChannel := []store.Hit{{ID: 1, Timestamp: 10, Relation: "reply_parent"}}

	fused := fuse(semantic, graphChannel)
	if len(fused) != 1 {
		t.Fatalf("expected deduplicated result, got %d items", len(fused))
	}
	if fused[0].Relation != "reply_parent" {
		t.Fatalf("relation lost in fusion: %+v", fused[0])
	}
}

func TestFuse_EmptyChannels(t *testing.T) {
	if got := fuse(nil, nil, nil); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestFuse_RankOrderWithinSingleChannel(t *testing.T) {
	semantic := []store.Hit{hit(1, 1), hit(2, 2), hit(3, 3)}
	fused := fuse(semantic)
	for i, want := range []int64{1, 2, 3} {
		if fused[i].ID != want {
			t.Fatalf("position %d = %d, want %d", i, fused[i].ID, want)
		}
	}
}
