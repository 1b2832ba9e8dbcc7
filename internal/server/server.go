package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/yuin/goldmark"

	"pdfqa/internal/config"
	"pdfqa/internal/llmservice"
	"pdfqa/internal/parser"
	"pdfqa/internal/rag"
	"pdfqa/internal/session"
)

const (
	sessionCookie = "pdfqa_session"
	sweepInterval = time.Minute
	shutdownGrace = 10 * time.Second
)

// Server serves the question-answering page. The chat model and embedder
// are shared by all sessions; everything document-specific lives in the
// session.
type Server struct {
	cfg       *config.Config
	llm       llmservice.ChatModel
	embedder  embeddings.Embedder
	sessions  *session.Store
	chunkOpts parser.ChunkOptions
	ragOpts   rag.Options
	pages     *template.Template
	static    fs.FS
	markdown  goldmark.Markdown
	mux       *http.ServeMux
}

// New creates a Server. webFS must contain templates/ and static/.
func New(cfg *config.Config, llm llmservice.ChatModel, embedder embeddings.Embedder, sessions *session.Store, webFS fs.FS) (*Server, error) {
	pages, err := template.ParseFS(webFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	static, err := fs.Sub(webFS, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to open static assets: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		llm:       llm,
		embedder:  embedder,
		sessions:  sessions,
		chunkOpts: parser.ChunkOptionsFromConfig(&cfg.RAG),
		ragOpts:   rag.OptionsFromConfig(cfg),
		pages:     pages,
		static:    static,
		markdown:  newMarkdown(),
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.sessions.Run(ctx, sweepInterval)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
