// Package query answers natural-language questions over the
// conversation graph: hybrid retrieval builds a context block, a chat
// model synthesizes a concise answer from it.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"chatgraph/internal/util"
	"chatgraph/pkg/ai"
	"chatgraph/pkg/logger"
	"chatgraph/pkg/search"
	"chatgraph/pkg/store"
	storepgx "chatgraph/pkg/store/pgx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// State tracks the service lifecycle.
type State int32

const (
	StateUninitialized State = iota
	StateConnecting
	StateReady
	StateSearching
	StateSynthesizing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateSearching:
		return "searching"
	case StateSynthesizing:
		return "synthesizing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrNotReady is returned for queries arriving before Connect has
// completed or after Close.
var ErrNotReady = errors.New("query service not initialized")

const promptTemplate = `You are answering based on WhatsApp conversations.

Context:
%s

Question:
%s

Answer concisely and only using the context.`

// structuredAnswer is the schema-enforced response shape for the
// structured synthesis path.
type structuredAnswer struct {
	Answer string `json:"answer" jsonschema_description:"Concise answer derived only from the supplied context."`
}

// Response is the answer payload for one query.
type Response struct {
	Query   string `json:"query"`
	Answer  string `json:"answer"`
	Context string `json:"context"`
}

// Service owns the long-lived query-side resources: the database pool,
// the AI client and the search engine built on them. Acquire with
// Connect at startup, release with Close at shutdown.
type Service struct {
	state atomic.Int32

	pool       *pgxpool.Pool
	aiClient   ai.GraphAIClient
	engine     *search.Engine
	structured bool
}

// NewService returns an uninitialized Service.
func NewService() *Service {
	return &Service{}
}

// State reports the current lifecycle state.
func (s *Service) State() State {
	return State(s.state.Load())
}

// ConnectParams configures Connect. Storage overrides the pgx-backed
// storage built from DatabaseURL when set; the service then opens no
// pool of its own.
type ConnectParams struct {
	DatabaseURL string
	AIClient    ai.GraphAIClient
	Storage     store.GraphStorage
	// Structured enforces a JSON answer schema during synthesis.
	// Defaults to QUERY_STRUCTURED.
	Structured bool
}

// Connect acquires the database pool and wires the search engine.
// Failure leaves the service uninitialized; it accepts no queries
// until a later Connect succeeds.
func (s *Service) Connect(ctx context.Context, params ConnectParams) error {
	s.state.Store(int32(StateConnecting))

	storage := params.Storage
	if storage == nil {
		cfg, err := pgxpool.ParseConfig(params.DatabaseURL)
		if err != nil {
			s.state.Store(int32(StateUninitialized))
			return fmt.Errorf("parsing database config: %w", err)
		}
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			return pgxvec.RegisterTypes(ctx, conn)
		}
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			s.state.Store(int32(StateUninitialized))
			return fmt.Errorf("creating database pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			s.state.Store(int32(StateUninitialized))
			return fmt.Errorf("pinging database: %w", err)
		}
		s.pool = pool
		storage = storepgx.NewGraphDBStorageWithConnection(pool)
	}

	s.aiClient = params.AIClient
	s.engine = search.NewEngine(storage, params.AIClient)
	s.structured = params.Structured || util.GetEnvBool("QUERY_STRUCTURED", false)
	s.state.Store(int32(StateReady))
	return nil
}

// Answer runs one query through retrieval and synthesis. Fails fast
// with ErrNotReady before Connect or after Close.
func (s *Service) Answer(ctx context.Context, query string) (*Response, error) {
	current := s.State()
	if current != StateReady && current != StateSearching && current != StateSynthesizing {
		return nil, ErrNotReady
	}

	s.transition(StateSearching)
	defer s.transition(StateReady)

	result, err := s.engine.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}

	s.transition(StateSynthesizing)

	prompt := fmt.Sprintf(promptTemplate, result.Context, query)
	answer, err := s.synthesize(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return &Response{
		Query:   query,
		Answer:  answer,
		Context: result.Context,
	}, nil
}

// synthesize generates the answer text. With the structured path
// enabled the chat model is held to an answer schema; a failed or
// empty structured response falls back to freeform completion and the
// tolerant answer resolver.
func (s *Service) synthesize(ctx context.Context, prompt string) (string, error) {
	if s.structured {
		var sa structuredAnswer
		err := s.aiClient.GenerateCompletionWithFormat(
			ctx,
			"answer",
			"Concise answer derived only from the supplied conversation context.",
			prompt,
			&sa,
		)
		if err == nil && strings.TrimSpace(sa.Answer) != "" {
			return sa.Answer, nil
		}
		logger.Warn("[Query] Structured synthesis failed, falling back to freeform", "err", err)
	}

	raw, err := s.aiClient.GenerateCompletion(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return ResolveAnswer(raw)
}

// transition moves between per-query states without reviving a closed
// service.
func (s *Service) transition(to State) {
	if s.State() == StateClosed {
		return
	}
	s.state.Store(int32(to))
}

// Close releases the pool. Queries after Close fail with ErrNotReady.
func (s *Service) Close() {
	s.state.Store(int32(StateClosed))
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
}
