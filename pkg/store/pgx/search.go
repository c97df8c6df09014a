package pgx

import (
	"context"
	"fmt"

	"chatgraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

const hitColumns = `
	m.id,
	m.external_id,
	COALESCE(c.title, c.external_id) AS conversation_title,
	COALESCE(a.name, 'Unknown') AS sender_name,
	m.body,
	m.msg_type,
	m.ts,
	m.is_reaction`

const semanticSearchSQL = `
SELECT` + hitColumns + `,
	m.embedding <=> $1 AS distance
FROM messages m
JOIN conversations c ON c.id = m.conversation_id
LEFT JOIN actors a ON a.id = m.sender_id
WHERE m.state = 'complete' AND m.embedding IS NOT NULL
ORDER BY m.embedding <=> $1
LIMIT $2`

const lexicalSearchSQL = `
SELECT` + hitColumns + `,
	ts_rank(m.tsv, websearch_to_tsquery('english', $1)) AS rank
FROM messages m
JOIN conversations c ON c.id = m.conversation_id
LEFT JOIN actors a ON a.id = m.sender_id
WHERE m.state = 'complete' AND m.tsv @@ websearch_to_tsquery('english', $1)
ORDER BY rank DESC, m.ts ASC
LIMIT $2`

const replyRelativesSQL = `
SELECT` + hitColumns + `,
	rel.relation
FROM (
	SELECT r.parent_id AS id, 'reply_parent' AS relation
	FROM message_replies r
	WHERE r.child_id = ANY($1)
	UNION
	SELECT r.child_id AS id, 'reply_child' AS relation
	FROM message_replies r
	WHERE r.parent_id = ANY($1)
) rel
JOIN messages m ON m.id = rel.id
JOIN conversations c ON c.id = m.conversation_id
LEFT JOIN actors a ON a.id = m.sender_id
WHERE m.state = 'complete' AND NOT (m.id = ANY($1))
ORDER BY m.ts ASC`

const conversationNeighboursSQL = `
WITH seeds AS (
	SELECT id, conversation_id, ts
	FROM messages
	WHERE id = ANY($1)
)
SELECT DISTINCT ON (m.id)` + hitColumns + `,
	'neighbour' AS relation
FROM messages m
JOIN seeds s ON s.conversation_id = m.conversation_id
JOIN conversations c ON c.id = m.conversation_id
LEFT JOIN actors a ON a.id = m.sender_id
WHERE m.state = 'complete'
	AND NOT (m.id = ANY($1))
	AND abs(m.ts - s.ts) <= $2
ORDER BY m.id, m.ts ASC`

// SemanticSearch retrieves the limit nearest messages by cosine
// distance against the stored embeddings.
func (s *GraphDBStorage) SemanticSearch(
	ctx context.Context,
	embedding []float32,
	limit int,
) ([]store.Hit, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("empty query embedding")
	}
	rows, err := s.conn.Query(ctx, semanticSearchSQL, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	return scanHits(rows, scanDistance)
}

// LexicalSearch retrieves the limit best full-text matches over
// message bodies.
func (s *GraphDBStorage) LexicalSearch(
	ctx context.Context,
	query string,
	limit int,
) ([]store.Hit, error) {
	rows, err := s.conn.Query(ctx, lexicalSearchSQL, query, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	return scanHits(rows, scanRank)
}

// ReplyRelatives returns the reply parents and children of the given
// message ids, excluding the seeds themselves.
func (s *GraphDBStorage) ReplyRelatives(ctx context.Context, ids []int64) ([]store.Hit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.conn.Query(ctx, replyRelativesSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("reply relatives: %w", err)
	}
	return scanHits(rows, scanRelation)
}

// ConversationNeighbours returns messages sharing a conversation with
// the given ids and lying within windowSec seconds of them.
func (s *GraphDBStorage) ConversationNeighbours(
	ctx context.Context,
	ids []int64,
	windowSec int64,
) ([]store.Hit, error) {
	if len(ids) == 0 || windowSec <= 0 {
		return nil, nil
	}
	rows, err := s.conn.Query(ctx, conversationNeighboursSQL, ids, windowSec)
	if err != nil {
		return nil, fmt.Errorf("conversation neighbours: %w", err)
	}
	return scanHits(rows, scanRelation)
}

func scanDistance(rows pgxv5.Rows, h *store.Hit) error {
	return rows.Scan(&h.ID, &h.ExternalID, &h.ConversationTitle, &h.SenderName,
		&h.Body, &h.Type, &h.Timestamp, &h.IsReaction, &h.Distance)
}

func scanRank(rows pgxv5.Rows, h *store.Hit) error {
	return rows.Scan(&h.ID, &h.ExternalID, &h.ConversationTitle, &h.SenderName,
		&h.Body, &h.Type, &h.Timestamp, &h.IsReaction, &h.Rank)
}

func scanRelation(rows pgxv5.Rows, h *store.Hit) error {
	return rows.Scan(&h.ID, &h.ExternalID, &h.ConversationTitle, &h.SenderName,
		&h.Body, &h.Type, &h.Timestamp, &h.IsReaction, &h.Relation)
}

func scanHits(rows pgxv5.Rows, scan func(pgxv5.Rows, *store.Hit) error) ([]store.Hit, error) {
	defer rows.Close()

	var hits []store.Hit
	for rows.Next() {
		var h store.Hit
		if err := scan(rows, &h); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating hits: %w", err)
	}
	return hits, nil
}
