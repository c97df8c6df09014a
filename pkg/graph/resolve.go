// Package graph resolves normalized events into canonical node keys
// and the idempotent upsert operations the store applies.
package graph

import (
	"fmt"

	"chatgraph/pkg/event"
)

// Upsert is the full set of node and edge operations for one event.
// The store applies it atomically: actor, conversation and message
// upserts plus the sent and membership edges, and optionally one reply
// edge when ParentKey is set.
type Upsert struct {
	Source string

	ActorKey  string
	ActorName string

	ConversationKey   string
	ConversationTitle string // set only by title-change events

	MessageKey string
	Body       string
	Type       string
	Timestamp  int64
	IsReaction bool

	// ReactionTargetKey is the namespaced id of the message a reaction
	// decorates. Set only for reactions.
	ReactionTargetKey string

	// ParentKey links the message to the one it replies to. Empty when
	// the message is not a reply. The referenced message may not exist
	// yet; the store creates a placeholder in that case.
	ParentKey string
}

// Key namespaces an external id by its source so ids from different
// transports cannot collide.
func Key(source, id string) string {
	return source + ":" + id
}

// Resolve computes the canonical keys and upsert set for one event.
// Display names and titles overwrite on every observation, ordered by
// processing order. Reactions become content-bearing messages but never
// carry a reply edge, they decorate the thread rather than extend it.
func Resolve(ev event.Event) (Upsert, error) {
	if ev.Source == "" {
		return Upsert{}, fmt.Errorf("event %s has no source", ev.MessageID)
	}
	if ev.MessageID == "" || ev.ConversationID == "" || ev.SenderID == "" {
		return Upsert{}, fmt.Errorf("event missing identity fields: %+v", ev)
	}

	up := Upsert{
		Source:            ev.Source,
		ActorKey:          Key(ev.Source, ev.SenderID),
		ActorName:         ev.SenderName,
		ConversationKey:   Key(ev.Source, ev.ConversationID),
		ConversationTitle: ev.NewTitle,
		MessageKey:        Key(ev.Source, ev.MessageID),
		Body:              ev.Body,
		Type:              ev.Type,
		Timestamp:         ev.Timestamp,
		IsReaction:        ev.Type == event.TypeReaction,
	}
	if up.IsReaction && ev.ReactionTargetID != "" {
		up.ReactionTargetKey = Key(ev.Source, ev.ReactionTargetID)
	}

	if ev.ParentID != "" && !up.IsReaction {
		if ev.ParentID == ev.MessageID {
			return Upsert{}, fmt.Errorf("message %s replies to itself", ev.MessageID)
		}
		up.ParentKey = Key(ev.Source, ev.ParentID)
	}

	return up, nil
}
