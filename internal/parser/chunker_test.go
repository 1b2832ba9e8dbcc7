package parser

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"pdfqa/internal/config"
	"pdfqa/internal/models"
)

// lines returns n distinct lines of exactly width characters.
func lines(n, width int) []string {
	out := make([]string, n)
	for i := range out {
		l := fmt.Sprintf("line %04d ", i)
		out[i] = l + strings.Repeat("x", width-len(l))
	}
	return out
}

func TestSplitText_ShortTextIsOneChunk(t *testing.T) {
	text := "The sky is blue.\nGrass is green."
	chunks, err := SplitText(text, DefaultChunkOptions())
	if err != nil {
		t.Fatalf("SplitText: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Content != text {
		t.Errorf("chunk = %q, want %q", chunks[0].Content, text)
	}
	if chunks[0].Source != models.SourcePDF || chunks[0].ChunkID != 1 {
		t.Errorf("chunk metadata = %+v", chunks[0])
	}
}

func TestSplitText_EmptyInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\n\n"} {
		chunks, err := SplitText(text, DefaultChunkOptions())
		if err != nil {
			t.Fatalf("SplitText(%q): %v", text, err)
		}
		if len(chunks) != 0 {
			t.Errorf("SplitText(%q) = %d chunks, want 0", text, len(chunks))
		}
	}
}

func TestSplitText_SizeCountAndOverlap(t *testing.T) {
	src := lines(200, 49)
	text := strings.Join(src, "\n")
	L := utf8.RuneCountInString(text)

	chunks, err := SplitText(text, DefaultChunkOptions())
	if err != nil {
		t.Fatalf("SplitText: %v", err)
	}

	want := (L + 799) / 800
	if len(chunks) < want-2 || len(chunks) > want+2 {
		t.Errorf("got %d chunks for %d chars, want about %d", len(chunks), L, want)
	}

	for i, c := range chunks {
		if n := utf8.RuneCountInString(c.Content); n > 1000 {
			t.Errorf("chunk %d has %d chars, over the limit", i, n)
		}
		if c.ChunkID != i+1 {
			t.Errorf("chunk %d has id %d", i, c.ChunkID)
		}
		if strings.TrimSpace(c.Content) == "" {
			t.Errorf("chunk %d is empty", i)
		}
	}

	for i := 1; i < len(chunks); i++ {
		firstLine := strings.SplitN(chunks[i].Content, "\n", 2)[0]
		if !strings.Contains(chunks[i-1].Content, firstLine) {
			t.Errorf("chunk %d does not start inside chunk %d", i, i-1)
		}
		if strings.Index(text, firstLine) <= strings.Index(text, strings.SplitN(chunks[i-1].Content, "\n", 2)[0]) {
			t.Errorf("chunk %d does not advance past chunk %d", i, i-1)
		}
	}

	// every line survives chunking
	joined := ""
	for _, c := range chunks {
		joined += c.Content + "\n"
	}
	for _, l := range src {
		if !strings.Contains(joined, l) {
			t.Fatalf("line %q lost", l)
		}
	}
}

func TestSplitText_OversizedUnitKeptWhole(t *testing.T) {
	long := strings.Repeat("a", 1500)
	text := "short line\n" + long + "\nanother short line"

	chunks, err := SplitText(text, DefaultChunkOptions())
	if err != nil {
		t.Fatalf("SplitText: %v", err)
	}
	found := false
	for _, c := range chunks {
		if c.Content == long {
			found = true
		}
	}
	if !found {
		t.Errorf("oversized unit was split or lost: %d chunks", len(chunks))
	}
}

func TestChunkOptionsFromConfig(t *testing.T) {
	opts := ChunkOptionsFromConfig(nil)
	if opts != DefaultChunkOptions() {
		t.Errorf("nil config = %+v", opts)
	}

	opts = ChunkOptionsFromConfig(&config.RAGConfig{ChunkSize: 300, ChunkOverlap: 50, Separator: "\n\n"})
	if opts.ChunkSize != 300 || opts.ChunkOverlap != 50 || opts.Separator != "\n\n" {
		t.Errorf("opts = %+v", opts)
	}

	opts = ChunkOptionsFromConfig(&config.RAGConfig{ChunkSize: 100, ChunkOverlap: 150})
	if opts.ChunkOverlap != 20 {
		t.Errorf("overlap %d not below size %d", opts.ChunkOverlap, opts.ChunkSize)
	}
}
