package rag

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"pdfqa/internal/chromemdb"
	"pdfqa/internal/embedding"
	"pdfqa/internal/parser"
)

// IngestStats describes one indexed document.
type IngestStats struct {
	Chars    int
	Chunks   int
	Duration time.Duration
}

// Ingest extracts, chunks, embeds and indexes a PDF. An unreadable or empty
// document produces an empty index, not an error. Embedding failures abort
// and no index is returned.
func Ingest(ctx context.Context, embedder embeddings.Embedder, data []byte, opts parser.ChunkOptions) (*chromemdb.Index, IngestStats, error) {
	start := time.Now()

	text := parser.ExtractText(data)
	chunks, err := parser.SplitText(text, opts)
	if err != nil {
		return nil, IngestStats{}, err
	}

	chunkEmbeddings, err := embedding.GenerateEmbedding(ctx, embedder, chunks)
	if err != nil {
		return nil, IngestStats{}, err
	}

	index, err := chromemdb.BuildFromEmbeddings(ctx, chunkEmbeddings)
	if err != nil {
		return nil, IngestStats{}, err
	}

	stats := IngestStats{Chars: len(text), Chunks: len(chunks), Duration: time.Since(start)}
	log.Info().
		Int("chars", stats.Chars).
		Int("chunks", stats.Chunks).
		Dur("duration", stats.Duration).
		Msg("Indexed document")
	return index, stats, nil
}
