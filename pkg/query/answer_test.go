package query

import (
	"errors"
	"strings"
	"testing"
)

func TestResolveAnswer_PlainString(t *testing.T) {
	got, err := ResolveAnswer("The meeting is at noon.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "The meeting is at noon." {
		t.Fatalf("answer = %q", got)
	}
}

func TestResolveAnswer_JSONString(t *testing.T) {
	got, err := ResolveAnswer(`"quoted answer"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "quoted answer" {
		t.Fatalf("answer = %q", got)
	}
}

func TestResolveAnswer_KeyPriority(t *testing.T) {
	got, err := ResolveAnswer(`{"message":"low","answer":"high"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "high" {
		t.Fatalf("answer key should win, got %q", got)
	}

	got, err = ResolveAnswer(`{"message":"low","response":"mid"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "mid" {
		t.Fatalf("response should beat message, got %q", got)
	}
}

func TestResolveAnswer_LongestStringFieldFallback(t *testing.T) {
	got, err := ResolveAnswer(`{"a":"short","b":"a much longer candidate","c":42}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "a much longer candidate" {
		t.Fatalf("answer = %q", got)
	}
}

func TestResolveAnswer_StringifyFallback(t *testing.T) {
	got, err := ResolveAnswer(`{"count":3,"ok":true}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, `"count":3`) {
		t.Fatalf("expected stringified object, got %q", got)
	}
}

func TestResolveAnswer_MalformedObjectRepaired(t *testing.T) {
	got, err := ResolveAnswer(`{"answer": "missing brace"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "missing brace" {
		t.Fatalf("answer = %q", got)
	}
}

func TestResolveAnswer_Empty(t *testing.T) {
	for _, raw := range []string{"", "   ", `""`, `{}`} {
		if _, err := ResolveAnswer(raw); !errors.Is(err, ErrEmptyAnswer) {
			t.Fatalf("ResolveAnswer(%q) error = %v, want ErrEmptyAnswer", raw, err)
		}
	}
}
