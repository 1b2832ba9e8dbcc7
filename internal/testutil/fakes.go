package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// ErrRemote stands in for a failed remote call.
var ErrRemote = errors.New("remote call failed")

// Embedder is a deterministic embeddings.Embedder: letter frequencies plus a
// constant component so no vector is zero.
type Embedder struct {
	mu      sync.Mutex
	Calls   int
	Queries []string
	Err     error
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls++
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = Vector(t)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls++
	e.Queries = append(e.Queries, text)
	if e.Err != nil {
		return nil, e.Err
	}
	return Vector(text), nil
}

func (e *Embedder) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Calls
}

// Vector is the embedding Embedder produces for text.
func Vector(text string) []float32 {
	v := make([]float32, 27)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	v[26] = 1
	return v
}

// ChatModel records every request and answers from Reply, or with Replies in
// order, or by echoing the last human message.
type ChatModel struct {
	mu       sync.Mutex
	Requests [][]llms.MessageContent
	Replies  []string
	Reply    func(call int, messages []llms.MessageContent) (*llms.ContentResponse, error)
}

func (m *ChatModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	call := len(m.Requests)
	m.Requests = append(m.Requests, messages)
	m.mu.Unlock()

	if m.Reply != nil {
		return m.Reply(call, messages)
	}
	if call < len(m.Replies) {
		return TextResponse(m.Replies[call]), nil
	}
	return TextResponse(LastHuman(messages)), nil
}

func (m *ChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// Request returns the messages of the i-th call.
func (m *ChatModel) Request(i int) []llms.MessageContent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Requests[i]
}

func TextResponse(text string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}
}

// Text flattens the text parts of a message.
func Text(msg llms.MessageContent) string {
	var sb strings.Builder
	for _, part := range msg.Parts {
		if tc, ok := part.(llms.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

func LastHuman(messages []llms.MessageContent) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llms.ChatMessageTypeHuman {
			return Text(messages[i])
		}
	}
	return ""
}
