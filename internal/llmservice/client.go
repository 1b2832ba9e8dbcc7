package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"pdfqa/internal/config"
)

// ChatModel is the part of llms.Model the QA pipeline needs.
type ChatModel interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// NewClient creates the provider client used for both chat and embeddings.
// Azure is addressed by deployment names, plain OpenAI-compatible endpoints
// by model names.
func NewClient(llmConfig *config.LLMConfig) (*openai.LLM, error) {
	opts := []openai.Option{
		openai.WithBaseURL(llmConfig.Endpoint),
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
	}

	switch llmConfig.APIType {
	case config.APITypeAzure:
		opts = append(opts,
			openai.WithAPIType(openai.APITypeAzure),
			openai.WithAPIVersion(llmConfig.APIVersion),
			openai.WithModel(llmConfig.ChatDeployment),
			openai.WithEmbeddingModel(llmConfig.EmbeddingDeployment),
		)
	case config.APITypeOpenAI, "":
		opts = append(opts,
			openai.WithModel(llmConfig.ChatModel),
			openai.WithEmbeddingModel(llmConfig.EmbeddingModel),
		)
	default:
		return nil, fmt.Errorf("unsupported api type: %s", llmConfig.APIType)
	}

	log.Debug().Interface("llm", map[string]string{
		"api_type":             llmConfig.APIType,
		"endpoint":             llmConfig.Endpoint,
		"api_version":          llmConfig.APIVersion,
		"chat_deployment":      llmConfig.ChatDeployment,
		"chat_model":           llmConfig.ChatModel,
		"embedding_deployment": llmConfig.EmbeddingDeployment,
		"embedding_model":      llmConfig.EmbeddingModel,
	}).Msg("Creating LLM client")

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return llm, nil
}

// call llm
func GenerateContent(ctx context.Context, model ChatModel, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	log.Debug().Int("messages", len(messages)).Msg("Generating content")
	return model.GenerateContent(ctx, messages, options...)
}

// FirstContent returns the text of the first choice, or "" when the
// response carries none.
func FirstContent(res *llms.ContentResponse) string {
	if res == nil || len(res.Choices) == 0 || res.Choices[0] == nil {
		return ""
	}
	return res.Choices[0].Content
}
