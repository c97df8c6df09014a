package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chatgraph/internal/storage"
	"chatgraph/internal/util"
	"chatgraph/pkg/ai"
	oai "chatgraph/pkg/ai/ollama"
	gai "chatgraph/pkg/ai/openai"
	"chatgraph/pkg/ingest"
	"chatgraph/pkg/logger"
	"chatgraph/pkg/logger/console"
	storepgx "chatgraph/pkg/store/pgx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

func newAIClient() ai.GraphAIClient {
	adapter := util.GetEnv("AI_ADAPTER")

	switch adapter {
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			ChatModel:      util.GetEnv("AI_CHAT_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15)),
		})
		if err != nil {
			logger.Fatal("Could not create Ollama client", "err", err)
		}
		return client
	default:
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			ChatModel:      util.GetEnv("AI_CHAT_MODEL"),

			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15)),
		})
	}
}

// parseS3URI splits s3://bucket/key into its components. An empty
// bucket means the URI carried none and the configured default applies.
func parseS3URI(path string) (bucket string, key string) {
	trimmed := strings.TrimPrefix(path, "s3://")
	bucket, key, found := strings.Cut(trimmed, "/")
	if !found {
		return "", trimmed
	}
	return bucket, key
}

// readInput loads the payload file, fetching from object storage when the
// path is of the form s3://bucket/key.
func readInput(ctx context.Context, path string) ([]byte, error) {
	if strings.HasPrefix(path, "s3://") {
		bucket, key := parseS3URI(path)
		client := storage.NewS3Client(ctx)
		if bucket == "" {
			return storage.GetFile(ctx, client, key)
		}
		return storage.GetFileFrom(ctx, client, bucket, key)
	}
	return os.ReadFile(path)
}

func main() {
	filePath := flag.String("file", "", "payload file to ingest (path or s3://bucket/key)")
	jsonl := flag.Bool("jsonl", false, "treat the input as newline-delimited JSON payloads")
	source := flag.String("source", "whatsapp", "event source identifier")
	flag.Parse()

	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	if *filePath == "" {
		logger.Fatal("Missing required -file argument")
	}

	raw, err := readInput(ctx, *filePath)
	if err != nil {
		logger.Fatal("Could not read input", "file", *filePath, "err", err)
	}

	aiClient := newAIClient()

	pgCfg, err := pgxpool.ParseConfig(util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Invalid database config", "err", err)
	}
	pgCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pgConn, err := pgxpool.NewWithConfig(ctx, pgCfg)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	pipeline := ingest.NewPipeline(ingest.PipelineParams{
		Source:   *source,
		AIClient: aiClient,
		Storage:  storepgx.NewGraphDBStorageWithConnection(pgConn),
	})

	startTime := time.Now()

	var summary *ingest.Summary
	if *jsonl {
		summary, err = pipeline.RunLines(ctx, bytes.NewReader(raw))
	} else {
		summary, err = pipeline.Run(ctx, raw)
	}
	if err != nil {
		logger.Fatal("Ingestion failed", "err", err)
	}

	metrics := aiClient.GetMetrics()
	logger.Info(
		"AI Metrics",
		"input_tokens", metrics.InputTokens,
		"output_tokens", metrics.OutputTokens,
		"total_tokens", metrics.TotalTokens,
	)
	logger.Info(
		"Ingestion complete",
		"batch", summary.BatchID,
		"events", summary.Events,
		"written", summary.Written,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"malformed", summary.Malformed,
		"duration", time.Since(startTime).Round(time.Millisecond).String(),
	)
}
