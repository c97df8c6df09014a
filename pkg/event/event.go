// Package event normalizes raw chat webhook payloads into uniform
// message events suitable for graph ingestion.
package event

// Message type tags carried on normalized events. Unrecognized raw
// types pass through verbatim.
const (
	TypeText     = "text"
	TypeImage    = "image"
	TypeDocument = "document"
	TypeVideo    = "video"
	TypeAudio    = "audio"
	TypeSticker  = "sticker"
	TypeReaction = "reaction"
	TypeSystem   = "system"
)

// UnknownSender is the display name used when no contact profile has
// been observed for a sender id.
const UnknownSender = "Unknown"

// Event is one normalized message observation. Body holds the rendered
// text representation of the message content regardless of its type.
type Event struct {
	Source         string `json:"source"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	SenderID       string `json:"sender_id"`
	SenderName     string `json:"sender_name"`
	Type           string `json:"type"`
	Body           string `json:"body"`
	Timestamp      int64  `json:"timestamp"`

	// ParentID is the id of the message this one replies to, empty when
	// the message is not a reply.
	ParentID string `json:"parent_id,omitempty"`

	// ReactionTargetID is the id of the message a reaction decorates.
	// Only set for reaction events.
	ReactionTargetID string `json:"reaction_target_id,omitempty"`

	// NewTitle carries the conversation title for title-change system
	// events so the resolver can update the Conversation node.
	NewTitle string `json:"new_title,omitempty"`
}
