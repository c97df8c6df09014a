package search

import (
	"fmt"
	"strings"

	"chatgraph/pkg/store"

	"github.com/pkoukk/tiktoken-go"
)

// tokenCounter reports the token cost of a piece of text.
type tokenCounter func(text string) int

// newTokenCounter returns a counter backed by the given tiktoken
// encoding, falling back to a character heuristic when the encoding is
// unavailable.
func newTokenCounter(encoding string) tokenCounter {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return func(text string) int {
			return len(text)/4 + 1
		}
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}
}

func relationNote(relation string) string {
	switch relation {
	case "reply_parent":
		return " (parent of a retrieved reply)"
	case "reply_child":
		return " (reply to a retrieved message)"
	case "neighbour":
		return " (same conversation, nearby in time)"
	default:
		return ""
	}
}

func contextLine(hit store.Hit) string {
	return fmt.Sprintf("[%s] %s: %s%s",
		hit.ConversationTitle, hit.SenderName, hit.Body, relationNote(hit.Relation))
}

// buildContext renders ranked hits into a flattened context block.
// Bodies are deduplicated and the block is bounded by maxTokens; when
// the budget runs out, lower ranked hits are dropped, never higher
// ranked ones.
func buildContext(hits []store.Hit, maxTokens int, count tokenCounter) string {
	var sb strings.Builder
	seen := make(map[string]struct{}, len(hits))
	used := 0

	for _, hit := range hits {
		if _, ok := seen[hit.Body]; ok {
			continue
		}
		seen[hit.Body] = struct{}{}

		line := contextLine(hit)
		cost := count(line)
		if maxTokens > 0 && used+cost > maxTokens {
			// The top-ranked hit always survives, hard-truncated to
			// the budget when its line alone exceeds it.
			if sb.Len() == 0 {
				sb.WriteString(truncateToBudget(line, maxTokens, count))
				sb.WriteString("\n")
			}
			break
		}
		used += cost

		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// truncateToBudget returns the longest rune prefix of line costing at
// most maxTokens.
func truncateToBudget(line string, maxTokens int, count tokenCounter) string {
	runes := []rune(line)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if count(string(runes[:mid])) <= maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(runes[:lo])
}
