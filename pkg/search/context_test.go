package search

import (
	"strings"
	"testing"

	"chatgraph/pkg/store"
)

func lineCounter(string) int { return 1 }

func TestBuildContext_TruncatesLowestRankedFirst(t *testing.T) {
	hits := []store.Hit{
		{ID: 1, ConversationTitle: "g", SenderName: "A", Body: "first"},
		{ID: 2, ConversationTitle: "g", SenderName: "B", Body: "second"},
		{ID: 3, ConversationTitle: "g", SenderName: "C", Body: "third"},
	}

	block := buildContext(hits, 2, lineCounter)
	if !strings.Contains(block, "first") || !strings.Contains(block, "second") {
		t.Fatalf("top ranked hits missing: %q", block)
	}
	if strings.Contains(block, "third") {
		t.Fatalf("lowest ranked hit should be truncated: %q", block)
	}
}

func TestBuildContext_TopHitSurvivesTinyBudget(t *testing.T) {
	runeCounter := func(s string) int { return len([]rune(s)) }

	hits := []store.Hit{
		{ID: 1, ConversationTitle: "g", SenderName: "A", Body: "an oversized body that dwarfs the budget"},
		{ID: 2, ConversationTitle: "g", SenderName: "B", Body: "second"},
	}

	block := buildContext(hits, 12, runeCounter)
	if block == "" {
		t.Fatal("top ranked hit must be present even when its line exceeds the budget")
	}
	if got := runeCounter(block); got > 12 {
		t.Fatalf("truncated line costs %d, budget is 12: %q", got, block)
	}
	if !strings.HasPrefix("[g] A: an oversized body that dwarfs the budget", block) {
		t.Fatalf("expected a prefix of the top ranked line, got %q", block)
	}
	if strings.Contains(block, "second") {
		t.Fatalf("lower ranked hit should not appear: %q", block)
	}
}

func TestBuildContext_DeduplicatesBodies(t *testing.T) {
	hits := []store.Hit{
		{ID: 1, ConversationTitle: "g", SenderName: "A", Body: "same"},
		{ID: 2, ConversationTitle: "g", SenderName: "B", Body: "same"},
	}

	block := buildContext(hits, 100, lineCounter)
	if strings.Count(block, "same") != 1 {
		t.Fatalf("duplicate body not removed: %q", block)
	}
}

func TestBuildContext_AnnotatesRelations(t *testing.T) {
	hits := []store.Hit{
		{ID: 1, ConversationTitle: "g", SenderName: "A", Body: "q", Relation: "reply_child"},
	}
	block := buildContext(hits, 100, lineCounter)
	if !strings.Contains(block, "reply to a retrieved message") {
		t.Fatalf("relation annotation missing: %q", block)
	}
}

func TestBuildContext_NoBudgetMeansUnbounded(t *testing.T) {
	hits := []store.Hit{
		{ID: 1, ConversationTitle: "g", SenderName: "A", Body: "x"},
		{ID: 2, ConversationTitle: "g", SenderName: "B", Body: "y"},
	}
	block := buildContext(hits, 0, lineCounter)
	if !strings.Contains(block, "x") || !strings.Contains(block, "y") {
		t.Fatalf("unbounded context should keep all hits: %q", block)
	}
}
