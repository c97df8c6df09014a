// Package search implements hybrid retrieval over the conversation
// graph: a semantic vector channel, a lexical full-text channel and a
// graph channel expanding reply edges and temporal neighbours, fused
// by reciprocal-rank aggregation.
package search

import (
	"context"
	"fmt"

	"chatgraph/internal/util"
	"chatgraph/pkg/ai"
	"chatgraph/pkg/logger"
	"chatgraph/pkg/store"
)

// Result is a ranked retrieval outcome plus the flattened context
// block handed to answer synthesis.
type Result struct {
	Hits    []store.Hit
	Context string
}

// Engine runs hybrid searches against a GraphStorage.
type Engine struct {
	store    store.GraphStorage
	aiClient ai.GraphAIClient

	topK            int
	neighbourWindow int64
	contextTokens   int
	countTokens     tokenCounter
}

// NewEngine creates a search engine. Retrieval knobs come from the
// environment: SEARCH_TOP_K (default 10), SEARCH_NEIGHBOUR_WINDOW in
// seconds (default 3600), SEARCH_CONTEXT_TOKENS (default 2000) and
// TOKEN_ENCODER (default o200k_base).
func NewEngine(storage store.GraphStorage, aiClient ai.GraphAIClient) *Engine {
	return &Engine{
		store:           storage,
		aiClient:        aiClient,
		topK:            int(util.GetEnvNumeric("SEARCH_TOP_K", 10)),
		neighbourWindow: int64(util.GetEnvNumeric("SEARCH_NEIGHBOUR_WINDOW", 3600)),
		contextTokens:   int(util.GetEnvNumeric("SEARCH_CONTEXT_TOKENS", 2000)),
		countTokens:     newTokenCounter(util.GetEnvString("TOKEN_ENCODER", "o200k_base")),
	}
}

// Search embeds the query, gathers the three retrieval channels, fuses
// their rankings and renders the bounded context block. The semantic
// channel is mandatory; lexical and graph channel failures degrade the
// result instead of failing the query.
func (e *Engine) Search(ctx context.Context, query string) (*Result, error) {
	embedding, err := e.aiClient.GenerateEmbedding(ctx, []byte(query))
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	semantic, err := e.store.SemanticSearch(ctx, embedding, e.topK)
	if err != nil {
		return nil, fmt.Errorf("semantic channel: %w", err)
	}

	lexical, err := e.store.LexicalSearch(ctx, query, e.topK)
	if err != nil {
		logger.Warn("Lexical channel failed, continuing without it", "error", err)
		lexical = nil
	}

	graphChannel := e.expandGraph(ctx, semantic)

	hits := fuse(semantic, lexical, graphChannel)

	return &Result{
		Hits:    hits,
		Context: buildContext(hits, e.contextTokens, e.countTokens),
	}, nil
}

// expandGraph pulls in messages directly connected to the semantic
// seeds: reply parents and children first, then same-conversation
// temporal neighbours.
func (e *Engine) expandGraph(ctx context.Context, seeds []store.Hit) []store.Hit {
	if len(seeds) == 0 {
		return nil
	}

	ids := make([]int64, len(seeds))
	for i, h := range seeds {
		ids[i] = h.ID
	}

	var out []store.Hit
	seen := make(map[int64]struct{})

	relatives, err := e.store.ReplyRelatives(ctx, ids)
	if err != nil {
		logger.Warn("Reply expansion failed, continuing without it", "error", err)
	}
	for _, h := range relatives {
		if _, ok := seen[h.ID]; ok {
			continue
		}
		seen[h.ID] = struct{}{}
		out = append(out, h)
	}

	neighbours, err := e.store.ConversationNeighbours(ctx, ids, e.neighbourWindow)
	if err != nil {
		logger.Warn("Neighbour expansion failed, continuing without it", "error", err)
	}
	for _, h := range neighbours {
		if _, ok := seen[h.ID]; ok {
			continue
		}
		seen[h.ID] = struct{}{}
		out = append(out, h)
	}

	return out
}
