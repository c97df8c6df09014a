package openai

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"chatgraph/internal/util"
	"chatgraph/pkg/ai"
	"chatgraph/pkg/logger"

	"github.com/openai/openai-go/v3"
	"golang.org/x/sync/errgroup"
)

const defaultDimensions = 4096

// GenerateEmbedding creates a vector embedding for the given input text
// using the configured embedding model.
func (c *GraphOpenAIClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	res, err := c.GenerateEmbeddings(ctx, [][]byte{input})
	if err != nil {
		return nil, err
	}
	if len(res) != 1 {
		return nil, fmt.Errorf("unexpected embedding result size: got %d want 1", len(res))
	}
	return res[0], nil
}

// GenerateEmbeddings creates embeddings for the inputs, splitting them into
// batches (EMBED_BATCH, default 64) issued concurrently. Output order always
// matches input order: output[i] is the vector for inputs[i].
//
// The embedding dimension is taken from the first service response, not
// hard-coded; AI_EMBED_DIM only sizes zero vectors produced for empty inputs
// before the first response arrives.
func (c *GraphOpenAIClient) GenerateEmbeddings(ctx context.Context, inputs [][]byte) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	idxMap, stringsIn, out := normalizeEmbeddingInputs(inputs, c.embeddingDim())
	if len(stringsIn) == 0 {
		return out, nil
	}

	batchSize := int(util.GetEnvNumeric("EMBED_BATCH", 64))
	if batchSize < 1 {
		batchSize = 1
	}

	stringsOut := make([][]float32, len(stringsIn))
	eg, ectx := errgroup.WithContext(ctx)
	for start := 0; start < len(stringsIn); start += batchSize {
		end := min(start+batchSize, len(stringsIn))
		offset := start
		batch := stringsIn[start:end]
		eg.Go(func() error {
			vecs, err := c.embedBatch(ectx, batch)
			if err != nil {
				return err
			}
			copy(stringsOut[offset:], vecs)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for i := range stringsOut {
		if stringsOut[i] == nil {
			return nil, fmt.Errorf("missing embedding for input %d", idxMap[i])
		}
		out[idxMap[i]] = stringsOut[i]
	}
	return out, nil
}

func normalizeEmbeddingInputs(inputs [][]byte, dim int) (idxMap []int, stringsIn []string, out [][]float32) {
	idxMap = make([]int, 0, len(inputs))
	stringsIn = make([]string, 0, len(inputs))
	out = make([][]float32, len(inputs))
	for i, in := range inputs {
		if len(strings.TrimSpace(string(in))) == 0 {
			out[i] = make([]float32, dim)
			continue
		}
		idxMap = append(idxMap, i)
		stringsIn = append(stringsIn, string(in))
	}
	return idxMap, stringsIn, out
}

func (c *GraphOpenAIClient) embedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	if c.EmbeddingClient == nil {
		return nil, fmt.Errorf("embedding client not configured")
	}

	rCtx, cancel := context.WithTimeout(ctx, time.Minute*time.Duration(c.timeoutMin))
	defer cancel()

	body := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
		Model: c.embeddingModel,
	}

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	start := time.Now()
	response, err := c.EmbeddingClient.Embeddings.New(rCtx, body)
	if err != nil {
		return nil, err
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens: int(response.Usage.PromptTokens),
		TotalTokens: int(response.Usage.TotalTokens),
		DurationMs:  time.Since(start).Milliseconds(),
	})

	if len(response.Data) != len(inputs) {
		return nil, fmt.Errorf("embedding response size mismatch: got %d want %d", len(response.Data), len(inputs))
	}

	out := make([][]float32, len(inputs))
	for _, embedding := range response.Data {
		dataIdx := int(embedding.Index)
		if dataIdx < 0 || dataIdx >= len(inputs) {
			return nil, fmt.Errorf("embedding index out of range: %d", embedding.Index)
		}
		vec := make([]float32, 0, len(embedding.Embedding))
		for _, v := range embedding.Embedding {
			vec = append(vec, float32(v))
		}
		out[dataIdx] = vec
	}
	for i := range out {
		if out[i] == nil {
			return nil, fmt.Errorf("missing embedding for index %d", i)
		}
	}

	if len(out) > 0 {
		c.recordEmbeddingDim(len(out[0]))
	}
	return out, nil
}

func (c *GraphOpenAIClient) embeddingDim() int {
	if d := atomic.LoadInt64(&c.detectedDim); d > 0 {
		return int(d)
	}
	return int(util.GetEnvNumeric("AI_EMBED_DIM", defaultDimensions))
}

func (c *GraphOpenAIClient) recordEmbeddingDim(dim int) {
	if dim <= 0 {
		return
	}
	if atomic.CompareAndSwapInt64(&c.detectedDim, 0, int64(dim)) {
		logger.Info("Embedding dimension detected", "dim", dim)
	}
}
