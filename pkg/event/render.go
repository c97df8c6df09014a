package event

import (
	"fmt"
	"strings"
)

// renderBody produces the canonical text representation for a raw
// message. The formats are stable golden strings that downstream
// embeddings and answers depend on, so they must not drift.
func renderBody(msg *rawMessage, senderName string) string {
	switch msg.Type {
	case TypeText:
		if msg.Text == nil {
			return ""
		}
		return msg.Text.Body
	case TypeImage:
		return strings.TrimSpace(fmt.Sprintf("[Image] %s", caption(msg.Image)))
	case TypeDocument:
		filename := "unknown_file"
		caption := ""
		if msg.Document != nil {
			if msg.Document.Filename != "" {
				filename = msg.Document.Filename
			}
			caption = msg.Document.Caption
		}
		return strings.TrimSpace(fmt.Sprintf("[Document: %s] %s", filename, caption))
	case TypeVideo:
		return strings.TrimSpace(fmt.Sprintf("[Video] %s", caption(msg.Video)))
	case TypeAudio:
		return "[Audio] Voice Message"
	case TypeSticker:
		return "[Sticker]"
	case TypeReaction:
		emoji := ""
		target := ""
		if msg.Reaction != nil {
			emoji = msg.Reaction.Emoji
			target = msg.Reaction.MessageID
		}
		return fmt.Sprintf("[Reaction] Reacted with %s to message %s", emoji, target)
	case TypeSystem:
		return renderSystem(msg, senderName)
	default:
		return fmt.Sprintf("[%s]", msg.Type)
	}
}

func renderSystem(msg *rawMessage, senderName string) string {
	sysType := ""
	if msg.System != nil {
		sysType = msg.System.Type
	}
	switch sysType {
	case "group_title_changed":
		title := UnknownSender
		if msg.System.Title != "" {
			title = msg.System.Title
		}
		return fmt.Sprintf("[System] %s changed group title to '%s'", senderName, title)
	case "user_joined":
		return fmt.Sprintf("[System] %s joined the group", senderName)
	default:
		return fmt.Sprintf("[System] %s", sysType)
	}
}

func caption(p *mediaPayload) string {
	if p == nil {
		return ""
	}
	return p.Caption
}
