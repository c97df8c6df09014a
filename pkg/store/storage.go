package store

import (
	"context"

	"chatgraph/pkg/graph"
)

// Hit is one retrieved message with enough surrounding attributes to
// rank it and render it into a context block.
type Hit struct {
	ID                int64
	ExternalID        string
	ConversationTitle string
	SenderName        string
	Body              string
	Type              string
	Timestamp         int64
	IsReaction        bool

	// Distance is the cosine distance from the semantic channel, Rank
	// the ts_rank score from the lexical channel. Each is meaningful
	// only for hits produced by its channel.
	Distance float64
	Rank     float64

	// Relation annotates graph-channel hits with how they connect to a
	// seed hit: reply_parent, reply_child or neighbour.
	Relation string
}

// GraphStorage persists the conversation graph and serves the retrieval
// channels of the hybrid search engine.
type GraphStorage interface {
	// ApplyUpsert applies one event's full node/edge set atomically.
	// A nil embedding leaves any previously stored vector untouched.
	ApplyUpsert(ctx context.Context, up graph.Upsert, embedding []float32) error

	// SemanticSearch returns the limit nearest complete messages by
	// cosine distance against the stored embeddings.
	SemanticSearch(ctx context.Context, embedding []float32, limit int) ([]Hit, error)

	// LexicalSearch returns the limit best full-text matches for the
	// query over message bodies.
	LexicalSearch(ctx context.Context, query string, limit int) ([]Hit, error)

	// ReplyRelatives returns the reply parents and children of the
	// given message ids.
	ReplyRelatives(ctx context.Context, ids []int64) ([]Hit, error)

	// ConversationNeighbours returns messages in the same conversation
	// as the given ids within windowSec seconds of them.
	ConversationNeighbours(ctx context.Context, ids []int64, windowSec int64) ([]Hit, error)
}
