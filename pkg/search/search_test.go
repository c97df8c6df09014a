package search

import (
	"context"
	"errors"
	"testing"

	"chatgraph/pkg/ai"
	"chatgraph/pkg/graph"
	"chatgraph/pkg/store"
)

type fakeStorage struct {
	semantic   []store.Hit
	lexical    []store.Hit
	relatives  []store.Hit
	neighbours []store.Hit

	lexicalErr error

	seedIDs []int64
}

func (f *fakeStorage) ApplyUpsert(ctx context.Context, up graph.Upsert, embedding []float32) error {
	return nil
}

func (f *fakeStorage) SemanticSearch(ctx context.Context, embedding []float32, limit int) ([]store.Hit, error) {
	return f.semantic, nil
}

func (f *fakeStorage) LexicalSearch(ctx context.Context, query string, limit int) ([]store.Hit, error) {
	return f.lexical, f.lexicalErr
}

func (f *fakeStorage) ReplyRelatives(ctx context.Context, ids []int64) ([]store.Hit, error) {
	f.seedIDs = ids
	return f.relatives, nil
}

func (f *fakeStorage) ConversationNeighbours(ctx context.Context, ids []int64, windowSec int64) ([]store.Hit, error) {
	return f.neighbours, nil
}

type fakeAI struct {
	ai.GraphAIClient
}

func (f *fakeAI) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func newTestEngine(s store.GraphStorage) *Engine {
	return &Engine{
		store:           s,
		aiClient:        &fakeAI{},
		topK:            10,
		neighbourWindow: 3600,
		contextTokens:   1000,
		countTokens:     func(string) int { return 1 },
	}
}

func TestSearch_FusesChannelsAndBuildsContext(t *testing.T) {
	s := &fakeStorage{
		semantic: []store.Hit{
			{ID: 1, Body: "semantic one", SenderName: "A", ConversationTitle: "g", Timestamp: 1},
			{ID: 2, Body: "both channels", SenderName: "B", ConversationTitle: "g", Timestamp: 2},
		},
		lexical: []store.Hit{
			{ID: 3, Body: "lexical one", SenderName: "C", ConversationTitle: "g", Timestamp: 3},
			{ID: 2, Body: "both channels", SenderName: "B", ConversationTitle: "g", Timestamp: 2},
		},
		relatives: []store.Hit{
			{ID: 4, Body: "the parent", SenderName: "D", ConversationTitle: "g", Timestamp: 0, Relation: "reply_parent"},
		},
	}

	res, err := newTestEngine(s).Search(context.Background(), "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Hits[0].ID != 2 {
		t.Fatalf("multi-channel hit should rank first, got %d", res.Hits[0].ID)
	}
	if len(s.seedIDs) != 2 {
		t.Fatalf("graph expansion should seed from semantic hits, got %v", s.seedIDs)
	}
	if res.Context == "" {
		t.Fatal("expected non-empty context block")
	}
}

func TestSearch_LexicalFailureDegrades(t *testing.T) {
	s := &fakeStorage{
		semantic:   []store.Hit{{ID: 1, Body: "only semantic", SenderName: "A", ConversationTitle: "g"}},
		lexicalErr: errors.New("tsquery unsupported"),
	}

	res, err := newTestEngine(s).Search(context.Background(), "question")
	if err != nil {
		t.Fatalf("lexical failure must not fail the query: %v", err)
	}
	if len(res.Hits) != 1 || res.Hits[0].ID != 1 {
		t.Fatalf("expected semantic-only result, got %+v", res.Hits)
	}
}

func TestSearch_GraphHitsDeduplicated(t *testing.T) {
	shared := store.Hit{ID: 5, Body: "shared", SenderName: "A", ConversationTitle: "g", Relation: "reply_child"}
	s := &fakeStorage{
		semantic:   []store.Hit{{ID: 1, Body: "seed", SenderName: "A", ConversationTitle: "g"}},
		relatives:  []store.Hit{shared},
		neighbours: []store.Hit{{ID: 5, Body: "shared", SenderName: "A", ConversationTitle: "g", Relation: "neighbour"}},
	}

	res, err := newTestEngine(s).Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	count := 0
	for _, h := range res.Hits {
		if h.ID == 5 {
			count++
			if h.Relation != "reply_child" {
				t.Fatalf("reply relation should win over neighbour, got %q", h.Relation)
			}
		}
	}
	if count != 1 {
		t.Fatalf("graph hit duplicated %d times", count)
	}
}
