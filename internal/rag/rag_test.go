package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"pdfqa/internal/chromemdb"
	"pdfqa/internal/config"
	"pdfqa/internal/models"
	"pdfqa/internal/parser"
	"pdfqa/internal/testutil"
)

func skyIndex(t *testing.T, emb *testutil.Embedder) *chromemdb.Index {
	t.Helper()
	idx, _, err := Ingest(context.Background(), emb, testutil.PDF("The sky is blue."), parser.DefaultChunkOptions())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	return idx
}

func defaultOptions() Options {
	return Options{TopK: 4, Temperature: 0.6, CondenseEmptyHistory: true}
}

func TestQuery_GroundedPromptCarriesChunk(t *testing.T) {
	emb := &testutil.Embedder{}
	idx := skyIndex(t, emb)
	chat := &testutil.ChatModel{Replies: []string{"What color is the sky?", "Blue, according to the document."}}

	p := NewPipeline(chat, emb, idx, defaultOptions())
	got, err := p.Query(context.Background(), nil, "What color is the sky?")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if got.Answer != "Blue, according to the document." {
		t.Errorf("answer = %q, want the model output", got.Answer)
	}
	if chat.CallCount() != 2 {
		t.Fatalf("model calls = %d, want 2 (condense + answer)", chat.CallCount())
	}

	answerReq := chat.Request(1)
	if answerReq[0].Role != llms.ChatMessageTypeSystem {
		t.Fatalf("first message role = %s, want system", answerReq[0].Role)
	}
	system := testutil.Text(answerReq[0])
	if !strings.Contains(system, "The sky is blue.") {
		t.Errorf("grounded prompt lacks the chunk: %q", system)
	}
	if !strings.Contains(system, "three sentences maximum") {
		t.Errorf("grounded prompt lacks the style instruction: %q", system)
	}
	if last := testutil.LastHuman(answerReq); last != "What color is the sky?" {
		t.Errorf("answer step asked %q", last)
	}
	if len(got.Context) != 1 || !strings.Contains(got.Context[0].Content, "The sky is blue.") {
		t.Errorf("context = %+v", got.Context)
	}
}

func TestCondense_AlwaysCalledByDefault(t *testing.T) {
	chat := &testutil.ChatModel{Replies: []string{"standalone question"}}
	p := NewPipeline(chat, &testutil.Embedder{}, nil, defaultOptions())

	got, err := p.Condense(context.Background(), nil, "raw question")
	if err != nil {
		t.Fatalf("Condense: %v", err)
	}
	if got != "standalone question" {
		t.Errorf("Condense = %q", got)
	}
	req := chat.Request(0)
	if len(req) != 2 {
		t.Fatalf("condense sent %d messages, want system + question", len(req))
	}
	if !strings.Contains(testutil.Text(req[0]), "formulate a standalone question") {
		t.Errorf("condense system prompt = %q", testutil.Text(req[0]))
	}
}

func TestCondense_GatedWithoutHistory(t *testing.T) {
	chat := &testutil.ChatModel{}
	opts := defaultOptions()
	opts.CondenseEmptyHistory = false
	p := NewPipeline(chat, &testutil.Embedder{}, nil, opts)

	got, err := p.Condense(context.Background(), nil, "raw question")
	if err != nil {
		t.Fatalf("Condense: %v", err)
	}
	if got != "raw question" || chat.CallCount() != 0 {
		t.Errorf("Condense = %q with %d calls, want passthrough and no calls", got, chat.CallCount())
	}

	// history re-enables the call
	_, err = p.Condense(context.Background(), []models.Turn{{Question: "q1", Answer: "a1"}}, "and then?")
	if err != nil {
		t.Fatalf("Condense: %v", err)
	}
	if chat.CallCount() != 1 {
		t.Fatalf("calls = %d, want 1", chat.CallCount())
	}
	req := chat.Request(0)
	if len(req) != 4 || req[1].Role != llms.ChatMessageTypeHuman || req[2].Role != llms.ChatMessageTypeAI {
		t.Errorf("history not forwarded as human/ai turns: %+v", req)
	}
}

func TestCondense_EmptyReplyKeepsQuestion(t *testing.T) {
	chat := &testutil.ChatModel{Replies: []string{"   "}}
	p := NewPipeline(chat, &testutil.Embedder{}, nil, defaultOptions())
	got, err := p.Condense(context.Background(), nil, "raw question")
	if err != nil || got != "raw question" {
		t.Errorf("Condense = %q, %v", got, err)
	}
}

func TestAnswer_FallbackWhenResponseHasNoAnswer(t *testing.T) {
	responses := map[string]*llms.ContentResponse{
		"no choices":    {},
		"empty content": testutil.TextResponse(""),
	}
	for name, res := range responses {
		t.Run(name, func(t *testing.T) {
			chat := &testutil.ChatModel{Reply: func(int, []llms.MessageContent) (*llms.ContentResponse, error) {
				return res, nil
			}}
			p := NewPipeline(chat, &testutil.Embedder{}, nil, defaultOptions())
			got, err := p.Answer(context.Background(), nil, "q", nil)
			if err != nil {
				t.Fatalf("Answer: %v", err)
			}
			if got != models.NoAnswerFound {
				t.Errorf("Answer = %q, want fallback", got)
			}
		})
	}
}

func TestQuery_RemoteFailuresPropagate(t *testing.T) {
	emb := &testutil.Embedder{}
	idx := skyIndex(t, emb)

	t.Run("condense", func(t *testing.T) {
		chat := &testutil.ChatModel{Reply: func(int, []llms.MessageContent) (*llms.ContentResponse, error) {
			return nil, testutil.ErrRemote
		}}
		_, err := NewPipeline(chat, emb, idx, defaultOptions()).Query(context.Background(), nil, "q")
		if !errors.Is(err, testutil.ErrRemote) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("answer", func(t *testing.T) {
		chat := &testutil.ChatModel{Reply: func(call int, msgs []llms.MessageContent) (*llms.ContentResponse, error) {
			if call == 1 {
				return nil, testutil.ErrRemote
			}
			return testutil.TextResponse(testutil.LastHuman(msgs)), nil
		}}
		_, err := NewPipeline(chat, emb, idx, defaultOptions()).Query(context.Background(), nil, "q")
		if !errors.Is(err, testutil.ErrRemote) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("embedding", func(t *testing.T) {
		failing := &testutil.Embedder{Err: testutil.ErrRemote}
		_, err := NewPipeline(&testutil.ChatModel{}, failing, idx, defaultOptions()).Query(context.Background(), nil, "q")
		if !errors.Is(err, testutil.ErrRemote) {
			t.Errorf("err = %v", err)
		}
	})
}

func TestQuery_EmptyDocument(t *testing.T) {
	emb := &testutil.Embedder{}
	idx, stats, err := Ingest(context.Background(), emb, testutil.PDF(""), parser.DefaultChunkOptions())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if stats.Chunks != 0 || idx.Len() != 0 {
		t.Fatalf("empty PDF gave %d chunks, %d entries", stats.Chunks, idx.Len())
	}

	chat := &testutil.ChatModel{Replies: []string{"What is this?", "I don't know."}}
	got, err := NewPipeline(chat, emb, idx, defaultOptions()).Query(context.Background(), nil, "What is this?")
	if err != nil {
		t.Fatalf("Query on empty index: %v", err)
	}
	if got.Answer != "I don't know." || len(got.Context) != 0 {
		t.Errorf("answer = %+v", got)
	}
}

func TestIngest_EmbeddingFailureLeavesNoIndex(t *testing.T) {
	idx, _, err := Ingest(context.Background(), &testutil.Embedder{Err: testutil.ErrRemote}, testutil.PDF("The sky is blue."), parser.DefaultChunkOptions())
	if !errors.Is(err, testutil.ErrRemote) {
		t.Fatalf("err = %v", err)
	}
	if idx != nil {
		t.Error("index returned despite embedding failure")
	}
}

func TestGroundedPrompt(t *testing.T) {
	prompt := GroundedPrompt([]models.Chunk{{Content: "alpha"}, {Content: "beta"}})
	if !strings.HasSuffix(prompt, "alpha\n\nbeta") {
		t.Errorf("prompt = %q", prompt)
	}
	if !strings.Contains(prompt, "say that you don't know") {
		t.Errorf("prompt missing fallback instruction")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	off := false
	cfg := &config.Config{
		LLM: config.LLMConfig{Temperature: 0.2},
		RAG: config.RAGConfig{TopK: 7, CondenseEmptyHistory: &off},
	}
	opts := OptionsFromConfig(cfg)
	if opts.TopK != 7 || opts.Temperature != 0.2 || opts.CondenseEmptyHistory {
		t.Errorf("opts = %+v", opts)
	}

	if p := NewPipeline(nil, nil, nil, Options{}); p.opts.TopK != defaultTopK {
		t.Errorf("default top k = %d", p.opts.TopK)
	}
}
