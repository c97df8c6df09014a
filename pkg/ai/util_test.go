package ai

import (
	"testing"
)

type testShape struct {
	Answer string `json:"answer"`
	Score  int    `json:"score"`
}

func TestUnmarshalFlexible_StandardJSON(t *testing.T) {
	var out testShape
	err := UnmarshalFlexible(`{"answer": "yes", "score": 3}`, &out)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if out.Answer != "yes" || out.Score != 3 {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestUnmarshalFlexible_DoubleEncoded(t *testing.T) {
	var out testShape
	err := UnmarshalFlexible(`"{\"answer\": \"yes\"}"`, &out)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if out.Answer != "yes" {
		t.Fatalf("expected yes, got %q", out.Answer)
	}
}

func TestUnmarshalFlexible_MalformedRepaired(t *testing.T) {
	var out testShape
	err := UnmarshalFlexible(`{answer: "yes", score: 2,}`, &out)
	if err != nil {
		t.Fatalf("expected repair to succeed, got %v", err)
	}
	if out.Answer != "yes" || out.Score != 2 {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestUnmarshalFlexible_DuplicateLeadingBrace(t *testing.T) {
	var out testShape
	err := UnmarshalFlexible(`{{"answer": "ok"}`, &out)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if out.Answer != "ok" {
		t.Fatalf("expected ok, got %q", out.Answer)
	}
}

func TestUnmarshalFlexible_Hopeless(t *testing.T) {
	var out testShape
	err := UnmarshalFlexible(`not even close to json ][`, &out)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
