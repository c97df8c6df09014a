package pgx

import (
	"context"
	"fmt"

	"chatgraph/pkg/graph"

	"github.com/pgvector/pgvector-go"
)

const upsertConversationSQL = `
INSERT INTO conversations (external_id, source, title)
VALUES ($1, $2, NULLIF($3, ''))
ON CONFLICT (external_id) DO UPDATE SET
	title = COALESCE(NULLIF(EXCLUDED.title, ''), conversations.title)
RETURNING id`

const upsertActorSQL = `
INSERT INTO actors (external_id, source, name)
VALUES ($1, $2, $3)
ON CONFLICT (external_id) DO UPDATE SET
	name = EXCLUDED.name
RETURNING id`

// Complete rows keep their first-written content; only a placeholder
// takes the incoming body, sender and timestamp. Embeddings survive
// re-ingestion unless a new one is supplied.
const upsertMessageSQL = `
INSERT INTO messages
	(external_id, conversation_id, sender_id, body, msg_type, ts, state, is_reaction, reaction_target, embedding)
VALUES ($1, $2, $3, $4, $5, $6, 'complete', $7, NULLIF($8, ''), $9)
ON CONFLICT (external_id) DO UPDATE SET
	conversation_id = CASE WHEN messages.state = 'placeholder' THEN EXCLUDED.conversation_id ELSE messages.conversation_id END,
	sender_id       = CASE WHEN messages.state = 'placeholder' THEN EXCLUDED.sender_id ELSE messages.sender_id END,
	body            = CASE WHEN messages.state = 'placeholder' THEN EXCLUDED.body ELSE messages.body END,
	msg_type        = CASE WHEN messages.state = 'placeholder' THEN EXCLUDED.msg_type ELSE messages.msg_type END,
	ts              = CASE WHEN messages.state = 'placeholder' THEN EXCLUDED.ts ELSE messages.ts END,
	is_reaction     = CASE WHEN messages.state = 'placeholder' THEN EXCLUDED.is_reaction ELSE messages.is_reaction END,
	reaction_target = CASE WHEN messages.state = 'placeholder' THEN EXCLUDED.reaction_target ELSE messages.reaction_target END,
	embedding       = COALESCE(EXCLUDED.embedding, messages.embedding),
	state           = 'complete'
RETURNING id`

const insertPlaceholderSQL = `
INSERT INTO messages (external_id, conversation_id, body, msg_type, ts, state)
VALUES ($1, $2, '', 'unknown', 0, 'placeholder')
ON CONFLICT (external_id) DO NOTHING`

const selectMessageIDSQL = `
SELECT id FROM messages WHERE external_id = $1`

const insertReplyEdgeSQL = `
INSERT INTO message_replies (child_id, parent_id)
VALUES ($1, $2)
ON CONFLICT (child_id, parent_id) DO NOTHING`

// ApplyUpsert applies one event's node and edge upserts in a single
// transaction, so a failure never leaves the event half-written.
func (s *GraphDBStorage) ApplyUpsert(
	ctx context.Context,
	up graph.Upsert,
	embedding []float32,
) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var conversationID int64
	err = tx.QueryRow(ctx, upsertConversationSQL,
		up.ConversationKey, up.Source, up.ConversationTitle,
	).Scan(&conversationID)
	if err != nil {
		return fmt.Errorf("upserting conversation %s: %w", up.ConversationKey, err)
	}

	var actorID int64
	err = tx.QueryRow(ctx, upsertActorSQL,
		up.ActorKey, up.Source, up.ActorName,
	).Scan(&actorID)
	if err != nil {
		return fmt.Errorf("upserting actor %s: %w", up.ActorKey, err)
	}

	var vec any
	if len(embedding) > 0 {
		vec = pgvector.NewVector(embedding)
	}

	var messageID int64
	err = tx.QueryRow(ctx, upsertMessageSQL,
		up.MessageKey, conversationID, actorID,
		up.Body, up.Type, up.Timestamp,
		up.IsReaction, up.ReactionTargetKey, vec,
	).Scan(&messageID)
	if err != nil {
		return fmt.Errorf("upserting message %s: %w", up.MessageKey, err)
	}

	if up.ParentKey != "" {
		if _, err := tx.Exec(ctx, insertPlaceholderSQL, up.ParentKey, conversationID); err != nil {
			return fmt.Errorf("creating placeholder %s: %w", up.ParentKey, err)
		}

		var parentID int64
		if err := tx.QueryRow(ctx, selectMessageIDSQL, up.ParentKey).Scan(&parentID); err != nil {
			return fmt.Errorf("resolving parent %s: %w", up.ParentKey, err)
		}

		if _, err := tx.Exec(ctx, insertReplyEdgeSQL, messageID, parentID); err != nil {
			return fmt.Errorf("linking reply %s -> %s: %w", up.MessageKey, up.ParentKey, err)
		}
	}

	return tx.Commit(ctx)
}
