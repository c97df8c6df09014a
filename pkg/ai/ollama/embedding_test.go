package ollama

import "testing"

func TestEmbeddingDimDetection(t *testing.T) {
	t.Setenv("AI_EMBED_DIM", "")
	c := &GraphOllamaClient{}

	if got := c.embeddingDim(); got != defaultDimensions {
		t.Fatalf("dim before detection = %d, want %d", got, defaultDimensions)
	}

	c.recordEmbeddingDim(1024)
	if got := c.embeddingDim(); got != 1024 {
		t.Fatalf("dim after detection = %d, want 1024", got)
	}

	// First detection wins; later responses cannot change it.
	c.recordEmbeddingDim(2048)
	if got := c.embeddingDim(); got != 1024 {
		t.Fatalf("dim after second record = %d, want 1024", got)
	}

	c.recordEmbeddingDim(0)
	if got := c.embeddingDim(); got != 1024 {
		t.Fatalf("zero dim should be ignored, got %d", got)
	}
}
