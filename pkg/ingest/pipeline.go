// Package ingest runs the ingestion pipeline: normalize raw payloads,
// resolve them into graph upserts, embed message bodies and write the
// result to the store.
package ingest

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"chatgraph/internal/util"
	"chatgraph/pkg/ai"
	"chatgraph/pkg/event"
	"chatgraph/pkg/graph"
	"chatgraph/pkg/logger"
	"chatgraph/pkg/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/errgroup"
)

// Summary reports the outcome of one ingestion batch.
type Summary struct {
	BatchID   string
	Events    int
	Written   int
	Skipped   int
	Failed    int
	Malformed int
}

// Pipeline wires the normalizer, the AI client and the graph store.
// One Pipeline serves many batches and is safe for concurrent use
// except for the normalizer's contact snapshots, which assume batches
// of one source arrive sequentially.
type Pipeline struct {
	normalizer *event.Normalizer
	aiClient   ai.GraphAIClient
	storage    store.GraphStorage

	writeParallel int
	writeRetries  int
	retryBase     time.Duration

	locks   *keyedMutex
	dimOnce sync.Once
}

// PipelineParams configures NewPipeline. Zero values fall back to the
// environment: INGEST_PARALLEL (default 4) and INGEST_WRITE_RETRIES
// (default 3).
type PipelineParams struct {
	Source        string
	AIClient      ai.GraphAIClient
	Storage       store.GraphStorage
	WriteParallel int
	WriteRetries  int
	RetryBase     time.Duration
}

func NewPipeline(params PipelineParams) *Pipeline {
	if params.Source == "" {
		params.Source = "whatsapp"
	}
	if params.WriteParallel <= 0 {
		params.WriteParallel = int(util.GetEnvNumeric("INGEST_PARALLEL", 4))
	}
	if params.WriteRetries <= 0 {
		params.WriteRetries = int(util.GetEnvNumeric("INGEST_WRITE_RETRIES", 3))
	}
	if params.RetryBase <= 0 {
		params.RetryBase = 500 * time.Millisecond
	}
	return &Pipeline{
		normalizer:    event.NewNormalizer(params.Source),
		aiClient:      params.AIClient,
		storage:       params.Storage,
		writeParallel: params.WriteParallel,
		writeRetries:  params.WriteRetries,
		retryBase:     params.RetryBase,
		locks:         newKeyedMutex(),
	}
}

// Run ingests one raw webhook payload (object or array form).
func (p *Pipeline) Run(ctx context.Context, raw []byte) (*Summary, error) {
	events, errs := p.normalizer.ParsePayload(raw)
	return p.process(ctx, events, errs)
}

// RunLines ingests newline-delimited JSON payloads from r.
func (p *Pipeline) RunLines(ctx context.Context, r io.Reader) (*Summary, error) {
	events, errs := p.normalizer.ParseLines(r)
	return p.process(ctx, events, errs)
}

func (p *Pipeline) process(ctx context.Context, events []event.Event, parseErrs []error) (*Summary, error) {
	batchID, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	summary := &Summary{BatchID: batchID, Events: len(events), Malformed: len(parseErrs)}
	for _, perr := range parseErrs {
		logger.Warn("[Ingest] Skipping malformed record", "batch_id", batchID, "err", perr)
	}
	if len(events) == 0 {
		return summary, nil
	}

	upserts := make([]graph.Upsert, 0, len(events))
	for _, ev := range events {
		up, err := graph.Resolve(ev)
		if err != nil {
			logger.Warn("[Ingest] Skipping unresolvable event", "batch_id", batchID, "err", err)
			summary.Skipped++
			continue
		}
		upserts = append(upserts, up)
	}
	if len(upserts) == 0 {
		return summary, nil
	}

	inputs := make([][]byte, len(upserts))
	for i, up := range upserts {
		inputs[i] = []byte(up.Body)
	}

	vectors, err := util.RetryWithContext(ctx, p.writeRetries, func(ctx context.Context) ([][]float32, error) {
		return p.aiClient.GenerateEmbeddings(ctx, inputs)
	})
	if err != nil {
		return summary, fmt.Errorf("embedding batch %s: %w", batchID, err)
	}
	if len(vectors) != len(upserts) {
		return summary, fmt.Errorf("embedding batch %s: got %d vectors for %d inputs", batchID, len(vectors), len(upserts))
	}
	p.dimOnce.Do(func() {
		if len(vectors) > 0 {
			logger.Info("[Ingest] Detected embedding dimension", "dim", len(vectors[0]))
		}
	})

	var mu sync.Mutex
	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.writeParallel)

	for i := range upserts {
		up := upserts[i]
		vec := vectors[i]
		eg.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
			}

			unlock := p.locks.lock(up.MessageKey)
			err := util.RetryErrBackoff(gCtx, p.writeRetries, p.retryBase, func(ctx context.Context) error {
				return p.storage.ApplyUpsert(ctx, up, vec)
			})
			unlock()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// A permanently failing event is reported and skipped,
				// never silently dropped.
				logger.Error("[Ingest] Failed to write event", "batch_id", batchID, "message", up.MessageKey, "err", err)
				summary.Failed++
				return nil
			}
			summary.Written++
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return summary, err
	}

	logger.Info("[Ingest] Batch complete",
		"batch_id", batchID,
		"events", summary.Events,
		"written", summary.Written,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"malformed", summary.Malformed,
	)
	return summary, nil
}

// keyedMutex serializes writes that touch the same message identity.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*lockEntry)}
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
