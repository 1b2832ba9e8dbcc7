package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"pdfqa/internal/config"
	"pdfqa/internal/embedding"
	"pdfqa/internal/llmservice"
	"pdfqa/internal/models"
)

const defaultTopK = 4

// Retriever finds the chunks most similar to a query vector.
type Retriever interface {
	Search(ctx context.Context, query []float32, k int) ([]models.Chunk, error)
}

type Options struct {
	TopK        int
	Temperature float64
	// CondenseEmptyHistory runs the condense step even without history.
	CondenseEmptyHistory bool
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TopK:                 cfg.RAG.TopK,
		Temperature:          cfg.LLM.Temperature,
		CondenseEmptyHistory: cfg.CondenseEmptyHistory(),
	}
}

// Pipeline answers questions about one indexed document in two model calls:
// the question is first condensed into a standalone question, which drives
// retrieval, then answered with the retrieved chunks as context.
type Pipeline struct {
	llm       llmservice.ChatModel
	embedder  embeddings.Embedder
	retriever Retriever
	opts      Options
}

func NewPipeline(llm llmservice.ChatModel, embedder embeddings.Embedder, retriever Retriever, opts Options) *Pipeline {
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	return &Pipeline{llm: llm, embedder: embedder, retriever: retriever, opts: opts}
}

// Condense rewrites question so it can be understood without history.
func (p *Pipeline) Condense(ctx context.Context, history []models.Turn, question string) (string, error) {
	if len(history) == 0 && !p.opts.CondenseEmptyHistory {
		return question, nil
	}

	messages := buildMessages(models.CondenseQuestionPrompt, history, question)
	res, err := llmservice.GenerateContent(ctx, p.llm, messages, p.callOptions()...)
	if err != nil {
		return "", fmt.Errorf("failed to condense question: %w", err)
	}

	standalone := strings.TrimSpace(llmservice.FirstContent(res))
	if standalone == "" {
		return question, nil
	}
	return standalone, nil
}

// Retrieve embeds the standalone question and looks up the closest chunks.
func (p *Pipeline) Retrieve(ctx context.Context, standalone string) ([]models.Chunk, error) {
	queryEmbedding, err := embedding.EmbedQuestion(ctx, p.embedder, standalone)
	if err != nil {
		return nil, err
	}
	docs, err := p.retriever.Search(ctx, queryEmbedding, p.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}
	return docs, nil
}

// Answer asks the model to answer question from docs. A response without
// content yields models.NoAnswerFound.
func (p *Pipeline) Answer(ctx context.Context, history []models.Turn, question string, docs []models.Chunk) (string, error) {
	messages := buildMessages(GroundedPrompt(docs), history, question)
	res, err := llmservice.GenerateContent(ctx, p.llm, messages, p.callOptions()...)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}

	answer := llmservice.FirstContent(res)
	if strings.TrimSpace(answer) == "" {
		return models.NoAnswerFound, nil
	}
	return answer, nil
}

// Query runs condense, retrieve and answer in order.
func (p *Pipeline) Query(ctx context.Context, history []models.Turn, question string) (*models.Answer, error) {
	start := time.Now()

	standalone, err := p.Condense(ctx, history, question)
	if err != nil {
		return nil, err
	}

	docs, err := p.Retrieve(ctx, standalone)
	if err != nil {
		return nil, err
	}

	answer, err := p.Answer(ctx, history, question, docs)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("standalone", standalone).
		Int("context_chunks", len(docs)).
		Dur("duration", time.Since(start)).
		Msg("Answered question")

	return &models.Answer{
		Question:           question,
		StandaloneQuestion: standalone,
		Context:            docs,
		Answer:             answer,
	}, nil
}

// GroundedPrompt is the system prompt for the answer step.
func GroundedPrompt(docs []models.Chunk) string {
	var context strings.Builder
	for i, doc := range docs {
		if i > 0 {
			context.WriteString(models.ContextJoiner)
		}
		context.WriteString(doc.Content)
	}
	return fmt.Sprintf(models.QAPromptTemplate, context.String())
}

func (p *Pipeline) callOptions() []llms.CallOption {
	if p.opts.Temperature == 0 {
		return nil
	}
	return []llms.CallOption{llms.WithTemperature(p.opts.Temperature)}
}

func buildMessages(system string, history []models.Turn, question string) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, 2+2*len(history))
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	for _, turn := range history {
		messages = append(messages,
			llms.TextParts(llms.ChatMessageTypeHuman, turn.Question),
			llms.TextParts(llms.ChatMessageTypeAI, turn.Answer),
		)
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, question))
	return messages
}
