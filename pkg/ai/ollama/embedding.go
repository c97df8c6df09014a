package ollama

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"chatgraph/internal/util"
	"chatgraph/pkg/ai"
	"chatgraph/pkg/logger"

	"github.com/ollama/ollama/api"
)

const defaultDimensions = 4096

// GenerateEmbedding creates a vector embedding for the given input text
// using the configured embedding model on Ollama.
func (c *GraphOllamaClient) GenerateEmbedding(
	ctx context.Context,
	input []byte,
) ([]float32, error) {
	res, err := c.GenerateEmbeddings(ctx, [][]byte{input})
	if err != nil {
		return nil, err
	}
	if len(res) != 1 {
		return nil, fmt.Errorf("unexpected embedding result size: got %d want 1", len(res))
	}
	return res[0], nil
}

// GenerateEmbeddings embeds the inputs in order via a single Ollama embed
// request per batch (EMBED_BATCH, default 64). output[i] corresponds to
// inputs[i].
func (c *GraphOllamaClient) GenerateEmbeddings(
	ctx context.Context,
	inputs [][]byte,
) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	dim := c.embeddingDim()

	idxMap := make([]int, 0, len(inputs))
	stringsIn := make([]string, 0, len(inputs))
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		if len(strings.TrimSpace(string(in))) == 0 {
			out[i] = make([]float32, dim)
			continue
		}
		idxMap = append(idxMap, i)
		stringsIn = append(stringsIn, string(in))
	}
	if len(stringsIn) == 0 {
		return out, nil
	}

	batchSize := int(util.GetEnvNumeric("EMBED_BATCH", 64))
	if batchSize < 1 {
		batchSize = 1
	}

	pos := 0
	for start := 0; start < len(stringsIn); start += batchSize {
		end := min(start+batchSize, len(stringsIn))
		vecs, err := c.embedBatch(ctx, stringsIn[start:end])
		if err != nil {
			return nil, err
		}
		for _, v := range vecs {
			out[idxMap[pos]] = v
			pos++
		}
	}
	return out, nil
}

func (c *GraphOllamaClient) embedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	rCtx, cancel := context.WithTimeout(ctx, time.Minute*time.Duration(c.timeoutMin))
	defer cancel()

	req := &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: inputs,
	}

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	res, err := c.Client.Embed(rCtx, req)
	if err != nil {
		return nil, err
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens: res.PromptEvalCount,
		TotalTokens: res.PromptEvalCount,
		DurationMs:  res.TotalDuration.Milliseconds(),
	})

	if len(res.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("embedding response size mismatch: got %d want %d", len(res.Embeddings), len(inputs))
	}

	out := make([][]float32, len(inputs))
	for i, v := range res.Embeddings {
		vec := make([]float32, len(v))
		copy(vec, v)
		out[i] = vec
	}
	if len(out) > 0 {
		c.recordEmbeddingDim(len(out[0]))
	}
	return out, nil
}

func (c *GraphOllamaClient) embeddingDim() int {
	if d := atomic.LoadInt64(&c.detectedDim); d > 0 {
		return int(d)
	}
	return int(util.GetEnvNumeric("AI_EMBED_DIM", defaultDimensions))
}

func (c *GraphOllamaClient) recordEmbeddingDim(dim int) {
	if dim <= 0 {
		return
	}
	if atomic.CompareAndSwapInt64(&c.detectedDim, 0, int64(dim)) {
		logger.Info("Embedding dimension detected", "dim", dim)
	}
}
