package graph

import (
	"testing"

	"chatgraph/pkg/event"
)

func baseEvent() event.Event {
	return event.Event{
		Source:         "whatsapp",
		ConversationID: "g1",
		MessageID:      "m2",
		SenderID:       "111",
		SenderName:     "Sara Khan",
		Type:           event.TypeText,
		Body:           "hello",
		Timestamp:      1700000000,
	}
}

func TestResolve_NamespacesKeysBySource(t *testing.T) {
	up, err := Resolve(baseEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if up.MessageKey != "whatsapp:m2" {
		t.Fatalf("message key = %q", up.MessageKey)
	}
	if up.ActorKey != "whatsapp:111" {
		t.Fatalf("actor key = %q", up.ActorKey)
	}
	if up.ConversationKey != "whatsapp:g1" {
		t.Fatalf("conversation key = %q", up.ConversationKey)
	}
}

func TestResolve_ReplyCarriesParentKey(t *testing.T) {
	ev := baseEvent()
	ev.ParentID = "m1"
	up, err := Resolve(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if up.ParentKey != "whatsapp:m1" {
		t.Fatalf("parent key = %q", up.ParentKey)
	}
}

func TestResolve_ReactionNeverCarriesReplyEdge(t *testing.T) {
	ev := baseEvent()
	ev.Type = event.TypeReaction
	ev.Body = "[Reaction] Reacted with 👍 to message m1"
	ev.ReactionTargetID = "m1"
	ev.ParentID = "m1"

	up, err := Resolve(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !up.IsReaction {
		t.Fatal("expected IsReaction")
	}
	if up.ParentKey != "" {
		t.Fatalf("reaction must not produce a reply edge, got %q", up.ParentKey)
	}
	if up.ReactionTargetKey != "whatsapp:m1" {
		t.Fatalf("reaction target key = %q", up.ReactionTargetKey)
	}
}

func TestResolve_SelfReplyRejected(t *testing.T) {
	ev := baseEvent()
	ev.ParentID = ev.MessageID
	if _, err := Resolve(ev); err == nil {
		t.Fatal("expected error for self reply")
	}
}

func TestResolve_TitleChangeSetsConversationTitle(t *testing.T) {
	ev := baseEvent()
	ev.Type = event.TypeSystem
	ev.Body = "[System] Sara Khan changed group title to 'Alpha'"
	ev.NewTitle = "Alpha"

	up, err := Resolve(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if up.ConversationTitle != "Alpha" {
		t.Fatalf("conversation title = %q", up.ConversationTitle)
	}
}

func TestResolve_MissingIdentityRejected(t *testing.T) {
	ev := baseEvent()
	ev.SenderID = ""
	if _, err := Resolve(ev); err == nil {
		t.Fatal("expected error for missing sender id")
	}
}
