package event

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type rawPayload struct {
	Entry []rawEntry `json:"entry"`
}

type rawEntry struct {
	ID      string      `json:"id"`
	Changes []rawChange `json:"changes"`
}

type rawChange struct {
	Value rawValue `json:"value"`
}

type rawValue struct {
	Contacts []rawContact `json:"contacts"`
	Messages []rawMessage `json:"messages"`
}

type rawContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type rawMessage struct {
	ID        string   `json:"id"`
	From      string   `json:"from"`
	Timestamp unixTime `json:"timestamp"`
	Type      string   `json:"type"`

	Text     *textPayload     `json:"text"`
	Image    *mediaPayload    `json:"image"`
	Video    *mediaPayload    `json:"video"`
	Document *documentPayload `json:"document"`
	System   *systemPayload   `json:"system"`
	Reaction *reactionPayload `json:"reaction"`
	Context  *contextPayload  `json:"context"`

	// Some exporters flatten the reply reference instead of nesting it
	// under context.
	ParentMessageID string `json:"parent_message_id"`
}

type textPayload struct {
	Body string `json:"body"`
}

type mediaPayload struct {
	Caption string `json:"caption"`
}

type documentPayload struct {
	Filename string `json:"filename"`
	Caption  string `json:"caption"`
}

type systemPayload struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	User  string `json:"user"`
}

type reactionPayload struct {
	Emoji     string `json:"emoji"`
	MessageID string `json:"message_id"`
}

type contextPayload struct {
	ID string `json:"id"`
}

// unixTime accepts both string and numeric timestamp encodings, which
// the upstream webhook mixes freely.
type unixTime int64

func (t *unixTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*t = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	*t = unixTime(v)
	return nil
}

// Normalizer converts raw webhook payloads into Events. It accumulates
// contact snapshots per conversation in document order, so sender names
// resolve to the most recently observed profile at the time of each
// event.
type Normalizer struct {
	source   string
	contacts map[string]map[string]string
}

// NewNormalizer creates a Normalizer for the given source tag. The
// source namespaces all external ids produced downstream.
func NewNormalizer(source string) *Normalizer {
	return &Normalizer{
		source:   source,
		contacts: make(map[string]map[string]string),
	}
}

// ParsePayload normalizes one webhook payload, either a single object
// or a JSON array of objects. Malformed records are collected as errors
// and skipped; well-formed siblings are still returned.
func (n *Normalizer) ParsePayload(raw []byte) ([]Event, []error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var payloads []rawPayload
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &payloads); err != nil {
			return nil, []error{fmt.Errorf("decoding payload array: %w", err)}
		}
	} else {
		var p rawPayload
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return nil, []error{fmt.Errorf("decoding payload: %w", err)}
		}
		payloads = []rawPayload{p}
	}

	var events []Event
	var errs []error
	for _, p := range payloads {
		ev, e := n.normalize(&p)
		events = append(events, ev...)
		errs = append(errs, e...)
	}
	return events, errs
}

// ParseLines normalizes newline-delimited JSON, one webhook payload per
// line. Blank lines are skipped. Errors are annotated with the line
// number they occurred on.
func (n *Normalizer) ParseLines(r io.Reader) ([]Event, []error) {
	var events []Event
	var errs []error

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		ev, e := n.ParsePayload(raw)
		events = append(events, ev...)
		for _, err := range e {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
		}
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, fmt.Errorf("reading input: %w", err))
	}
	return events, errs
}

func (n *Normalizer) normalize(p *rawPayload) ([]Event, []error) {
	var events []Event
	var errs []error

	for _, entry := range p.Entry {
		if entry.ID == "" {
			errs = append(errs, fmt.Errorf("entry missing conversation id"))
			continue
		}

		snapshot := n.contacts[entry.ID]
		if snapshot == nil {
			snapshot = make(map[string]string)
			n.contacts[entry.ID] = snapshot
		}

		for _, change := range entry.Changes {
			for _, c := range change.Value.Contacts {
				if c.WaID != "" && c.Profile.Name != "" {
					snapshot[c.WaID] = c.Profile.Name
				}
			}

			for i := range change.Value.Messages {
				msg := &change.Value.Messages[i]
				ev, err := n.normalizeMessage(entry.ID, snapshot, msg)
				if err != nil {
					errs = append(errs, fmt.Errorf("conversation %s: %w", entry.ID, err))
					continue
				}
				if ev != nil {
					events = append(events, *ev)
				}
			}
		}
	}
	return events, errs
}

func (n *Normalizer) normalizeMessage(
	conversationID string,
	snapshot map[string]string,
	msg *rawMessage,
) (*Event, error) {
	if msg.ID == "" {
		return nil, fmt.Errorf("message missing id")
	}
	if msg.From == "" {
		return nil, fmt.Errorf("message %s missing sender", msg.ID)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("message %s missing type", msg.ID)
	}
	if msg.Timestamp == 0 {
		return nil, fmt.Errorf("message %s missing timestamp", msg.ID)
	}

	actorID := msg.From
	if msg.Type == TypeSystem && msg.System != nil && msg.System.User != "" {
		actorID = msg.System.User
	}
	senderName := snapshot[actorID]
	if senderName == "" {
		senderName = UnknownSender
	}

	body := renderBody(msg, senderName)
	if body == "" {
		// Empty content offers no retrievable signal.
		return nil, nil
	}

	ev := &Event{
		Source:         n.source,
		ConversationID: conversationID,
		MessageID:      msg.ID,
		SenderID:       actorID,
		SenderName:     senderName,
		Type:           msg.Type,
		Body:           body,
		Timestamp:      int64(msg.Timestamp),
	}
	if msg.Context != nil && msg.Context.ID != "" {
		ev.ParentID = msg.Context.ID
	} else if msg.ParentMessageID != "" {
		ev.ParentID = msg.ParentMessageID
	}
	if msg.Type == TypeReaction && msg.Reaction != nil {
		ev.ReactionTargetID = msg.Reaction.MessageID
	}
	if msg.Type == TypeSystem && msg.System != nil && msg.System.Type == "group_title_changed" {
		title := msg.System.Title
		if title == "" {
			title = UnknownSender
		}
		ev.NewTitle = title
	}
	return ev, nil
}
