package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"pdfqa/internal/config"
	"pdfqa/internal/models"
)

const (
	defaultChunkSize    = 1000 // characters
	defaultChunkOverlap = 200  // characters
	defaultSeparator    = "\n"
)

type ChunkOptions struct {
	Separator    string
	ChunkSize    int
	ChunkOverlap int
}

func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{
		Separator:    defaultSeparator,
		ChunkSize:    defaultChunkSize,
		ChunkOverlap: defaultChunkOverlap,
	}
}

// ChunkOptionsFromConfig falls back to the defaults for unset values
func ChunkOptionsFromConfig(cfg *config.RAGConfig) ChunkOptions {
	opts := DefaultChunkOptions()
	if cfg == nil {
		return opts
	}
	if cfg.Separator != "" {
		opts.Separator = cfg.Separator
	}
	if cfg.ChunkSize > 0 {
		opts.ChunkSize = cfg.ChunkSize
	}
	if cfg.ChunkOverlap > 0 {
		opts.ChunkOverlap = cfg.ChunkOverlap
	}
	if opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = opts.ChunkSize / 5
	}
	return opts
}

// SplitText splits text on the separator and packs the pieces into windows of
// at most ChunkSize characters, each starting with up to ChunkOverlap
// characters carried over from the previous window. A single piece longer
// than ChunkSize becomes its own chunk, unsplit.
func SplitText(text string, opts ChunkOptions) ([]models.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithSeparators([]string{opts.Separator}),
		textsplitter.WithChunkSize(opts.ChunkSize),
		textsplitter.WithChunkOverlap(opts.ChunkOverlap),
		textsplitter.WithLenFunc(utf8.RuneCountInString),
	)
	pieces, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}

	chunks := make([]models.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		chunks = append(chunks, models.Chunk{
			Content: piece,
			Source:  models.SourcePDF,
			ChunkID: len(chunks) + 1,
		})
	}
	return chunks, nil
}
