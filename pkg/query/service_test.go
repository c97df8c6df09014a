package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"chatgraph/pkg/ai"
	"chatgraph/pkg/graph"
	"chatgraph/pkg/store"
)

type stubStorage struct {
	hits []store.Hit
}

func (s *stubStorage) ApplyUpsert(ctx context.Context, up graph.Upsert, embedding []float32) error {
	return nil
}

func (s *stubStorage) SemanticSearch(ctx context.Context, embedding []float32, limit int) ([]store.Hit, error) {
	return s.hits, nil
}

func (s *stubStorage) LexicalSearch(ctx context.Context, query string, limit int) ([]store.Hit, error) {
	return nil, nil
}

func (s *stubStorage) ReplyRelatives(ctx context.Context, ids []int64) ([]store.Hit, error) {
	return nil, nil
}

func (s *stubStorage) ConversationNeighbours(ctx context.Context, ids []int64, windowSec int64) ([]store.Hit, error) {
	return nil, nil
}

type stubAI struct {
	ai.GraphAIClient
	completion string
	prompt     string
}

func (s *stubAI) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return []float32{0.5}, nil
}

func (s *stubAI) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	s.prompt = prompt
	return s.completion, nil
}

type structuredStubAI struct {
	stubAI
	schemaAnswer string
	formatErr    error
	formatCalls  int
}

func (s *structuredStubAI) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	s.formatCalls++
	if s.formatErr != nil {
		return s.formatErr
	}
	if sa, ok := out.(*structuredAnswer); ok {
		sa.Answer = s.schemaAnswer
	}
	return nil
}

func TestService_QueryBeforeConnectFailsFast(t *testing.T) {
	s := NewService()
	if _, err := s.Answer(context.Background(), "anything"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("error = %v, want ErrNotReady", err)
	}
}

func TestService_AnswerFlow(t *testing.T) {
	storage := &stubStorage{hits: []store.Hit{
		{ID: 1, ConversationTitle: "team", SenderName: "Sara Khan", Body: "deadline is Friday", Timestamp: 1},
	}}
	aiClient := &stubAI{completion: `{"answer":"Friday"}`}

	s := NewService()
	if err := s.Connect(context.Background(), ConnectParams{Storage: storage, AIClient: aiClient}); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer s.Close()

	res, err := s.Answer(context.Background(), "when is the deadline?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Answer != "Friday" {
		t.Fatalf("answer = %q", res.Answer)
	}
	if res.Query != "when is the deadline?" {
		t.Fatalf("query echoed wrong: %q", res.Query)
	}
	if res.Context == "" {
		t.Fatal("expected context block in response")
	}
	if s.State() != StateReady {
		t.Fatalf("state after query = %v, want ready", s.State())
	}
}

func TestService_PromptEmbedsContextAndQuestion(t *testing.T) {
	storage := &stubStorage{hits: []store.Hit{
		{ID: 1, ConversationTitle: "team", SenderName: "A", Body: "the context line", Timestamp: 1},
	}}
	aiClient := &stubAI{completion: "ok"}

	s := NewService()
	if err := s.Connect(context.Background(), ConnectParams{Storage: storage, AIClient: aiClient}); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer s.Close()

	if _, err := s.Answer(context.Background(), "the question"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"the context line", "the question", "only using the context"} {
		if !strings.Contains(aiClient.prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, aiClient.prompt)
		}
	}
}

func TestService_StructuredAnswer(t *testing.T) {
	storage := &stubStorage{hits: []store.Hit{
		{ID: 1, ConversationTitle: "team", SenderName: "A", Body: "ship on Monday", Timestamp: 1},
	}}
	aiClient := &structuredStubAI{schemaAnswer: "Monday"}

	s := NewService()
	params := ConnectParams{Storage: storage, AIClient: aiClient, Structured: true}
	if err := s.Connect(context.Background(), params); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer s.Close()

	res, err := s.Answer(context.Background(), "when do we ship?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Answer != "Monday" {
		t.Fatalf("answer = %q", res.Answer)
	}
	if aiClient.formatCalls != 1 {
		t.Fatalf("format calls = %d, want 1", aiClient.formatCalls)
	}
	if aiClient.prompt != "" {
		t.Fatal("freeform completion should not run when the schema path succeeds")
	}
}

func TestService_StructuredFallsBackToFreeform(t *testing.T) {
	storage := &stubStorage{hits: []store.Hit{
		{ID: 1, ConversationTitle: "team", SenderName: "A", Body: "ship on Monday", Timestamp: 1},
	}}
	aiClient := &structuredStubAI{formatErr: errors.New("schema rejected")}
	aiClient.completion = `{"answer":"Monday"}`

	s := NewService()
	params := ConnectParams{Storage: storage, AIClient: aiClient, Structured: true}
	if err := s.Connect(context.Background(), params); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer s.Close()

	res, err := s.Answer(context.Background(), "when do we ship?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Answer != "Monday" {
		t.Fatalf("fallback answer = %q", res.Answer)
	}
	if aiClient.prompt == "" {
		t.Fatal("expected freeform completion after schema failure")
	}
}

func TestService_QueryAfterCloseFails(t *testing.T) {
	s := NewService()
	if err := s.Connect(context.Background(), ConnectParams{Storage: &stubStorage{}, AIClient: &stubAI{completion: "x"}}); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	s.Close()
	if _, err := s.Answer(context.Background(), "q"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("error = %v, want ErrNotReady", err)
	}
	if s.State() != StateClosed {
		t.Fatalf("state = %v, want closed", s.State())
	}
}
